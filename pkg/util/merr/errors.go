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
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

// Kind 对错误做粗粒度分类，决定错误在哪一层被处理。
type Kind int32

const (
	KindUnknown Kind = iota
	// KindProtocol 客户端发送了无法解析的指令，只终止当前会话。
	KindProtocol
	// KindTransport 连接异常断开或读写失败，只终止当前会话（accept 失败时终止服务）。
	KindTransport
	// KindConfiguration 启动参数或配置文件非法，进程以非 0 退出。
	KindConfiguration
	// KindShutdown 重复关闭或资源已释放，必须被静默吸收。
	KindShutdown
	// KindInvalidState 调用顺序错误，例如重复注册同一个会话。
	KindInvalidState
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindProtocol:      "protocol",
	KindTransport:     "transport",
	KindConfiguration: "configuration",
	KindShutdown:      "shutdown",
	KindInvalidState:  "invalid_state",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Protocol related
	ErrProtocolMalformedRoom = newChatError("malformed room directive", 100, KindProtocol, false)
	ErrProtocolLineTooLong   = newChatError("line exceeds maximum length", 101, KindProtocol, false)

	// Transport related
	ErrTransportDisconnected = newChatError("connection lost", 200, KindTransport, false)
	ErrTransportIO           = newChatError("connection IO failed", 201, KindTransport, true)
	ErrTransportAccept       = newChatError("accept failed", 202, KindTransport, false)

	// Configuration related
	ErrConfigInvalid     = newChatError("invalid configuration", 300, KindConfiguration, false)
	ErrConfigMissing     = newChatError("missing configuration", 301, KindConfiguration, false)
	ErrConfigFileInvalid = newChatError("invalid configuration file", 302, KindConfiguration, false)

	// Shutdown related
	ErrShutdown       = newChatError("resource already shut down", 400, KindShutdown, false)
	ErrServerStopping = newChatError("server is stopping", 401, KindShutdown, false)

	// Session state related
	ErrSessionInvalidState = newChatError("session invalid state", 500, KindInvalidState, false)
	ErrSessionOverloaded   = newChatError("too many concurrent sessions", 501, KindInvalidState, true)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to chatError
	errUnexpected = newChatError("unexpected error", (1<<16)-1, KindUnknown, false)
)

type chatError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	kind      Kind
}

func newChatError(msg string, code int32, kind Kind, retriable bool) chatError {
	return chatError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
		kind:      kind,
	}
}

func (e chatError) code() int32 {
	return e.errCode
}

func (e chatError) Error() string {
	return e.msg
}

func (e chatError) Detail() string {
	return e.detail
}

func (e chatError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(chatError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

// Combine 合并多个错误，nil 会被忽略；全部为 nil 时返回 nil。
func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
