// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrProtocolMalformedRoom("/abc")
	err = errors.Wrap(err, "failed to read initial room")
	s.ErrorIs(err, ErrProtocolMalformedRoom)
	s.Equal(Code(ErrProtocolMalformedRoom), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))
	s.Equal(errUnexpected.errCode, Code(io.EOF))
	s.Equal(int32(0), Code(nil))

	sameCodeErr := newChatError("new error", ErrProtocolMalformedRoom.errCode, KindProtocol, false)
	s.True(sameCodeErr.Is(ErrProtocolMalformedRoom))
}

func (s *ErrSuite) TestWrap() {
	// Protocol 相关错误。
	s.ErrorIs(WrapErrProtocolMalformedRoom("/abc", "initial line"), ErrProtocolMalformedRoom)
	s.ErrorIs(WrapErrProtocolLineTooLong(4096), ErrProtocolLineTooLong)

	// Transport 相关错误。
	s.ErrorIs(WrapErrTransportDisconnected("127.0.0.1:5000", "peer reset"), ErrTransportDisconnected)
	s.ErrorIs(WrapErrTransportIO("write", os.ErrClosed), ErrTransportIO)
	s.ErrorIs(WrapErrTransportIO("read", nil), ErrTransportIO)
	s.ErrorIs(WrapErrTransportAccept(os.ErrClosed), ErrTransportAccept)

	// 配置相关错误。
	s.ErrorIs(WrapErrConfigInvalid("port", "abc", "not a number"), ErrConfigInvalid)
	s.ErrorIs(WrapErrConfigOutOfRange("port", 70000, 1, 65535), ErrConfigInvalid)
	s.ErrorIs(WrapErrConfigMissing("maxrooms"), ErrConfigMissing)
	s.ErrorIs(WrapErrConfigFileInvalid("/tmp/x.yaml", os.ErrNotExist), ErrConfigFileInvalid)

	// 关闭相关错误。
	s.ErrorIs(WrapErrShutdown("listener", "closed twice"), ErrShutdown)

	// 会话相关错误。
	s.ErrorIs(WrapErrSessionInvalidState(7, "already registered"), ErrSessionInvalidState)
	s.ErrorIs(WrapErrSessionOverloaded(16), ErrSessionOverloaded)
}

func (s *ErrSuite) TestMessage() {
	err := WrapErrConfigOutOfRange("port", 70000, 1, 65535)
	s.Equal("invalid configuration[70000 out of range 1 <= port <= 65535]", err.Error())

	err = WrapErrTransportIO("write", os.ErrClosed)
	s.True(strings.HasPrefix(err.Error(), "connection IO failed[op=write]: "))

	long := strings.Repeat("x", 100)
	err = WrapErrProtocolMalformedRoom(long)
	s.Contains(err.Error(), "...")
}

func (s *ErrSuite) TestKindOf() {
	s.Equal(KindProtocol, KindOf(WrapErrProtocolMalformedRoom("/")))
	s.Equal(KindTransport, KindOf(errors.Wrap(WrapErrTransportIO("read", io.ErrUnexpectedEOF), "session")))
	s.Equal(KindConfiguration, KindOf(WrapErrConfigMissing("port")))
	s.Equal(KindShutdown, KindOf(ErrShutdown))
	s.Equal(KindShutdown, KindOf(context.Canceled))
	s.Equal(KindInvalidState, KindOf(WrapErrSessionInvalidState(1, "dup")))
	s.Equal(KindUnknown, KindOf(io.EOF))
	s.Equal(KindUnknown, KindOf(nil))

	s.True(IsProtocolErr(ErrProtocolLineTooLong))
	s.True(IsTransportErr(ErrTransportDisconnected))
	s.True(IsConfigurationErr(ErrConfigInvalid))
	s.True(IsShutdownErr(ErrServerStopping))
	s.False(IsShutdownErr(ErrConfigInvalid))

	s.Equal("protocol", KindProtocol.String())
	s.Equal("unknown", Kind(99).String())
}

func (s *ErrSuite) TestRetryable() {
	s.True(IsRetryableErr(WrapErrTransportIO("dial", os.ErrDeadlineExceeded)))
	s.True(IsRetryableErr(errors.Wrap(ErrSessionOverloaded, "accept")))
	s.False(IsRetryableErr(ErrConfigInvalid))
	s.False(IsRetryableErr(io.EOF))

	s.True(IsCanceledOrTimeout(errors.Wrap(context.Canceled, "stop")))
	s.False(IsCanceledOrTimeout(io.EOF))
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
}

func (s *ErrSuite) TestCombineWithNil() {
	err := errors.New("non-nil")

	err = Combine(nil, err)
	s.NotNil(err)
}

func (s *ErrSuite) TestCombineOnlyNil() {
	err := Combine(nil, nil)
	s.Nil(err)
}

func (s *ErrSuite) TestCombineCode() {
	err := Combine(WrapErrTransportIO("close", nil), WrapErrShutdown("listener"))
	s.Equal(Code(ErrShutdown), Code(err))
	s.Equal(KindShutdown, KindOf(err))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
