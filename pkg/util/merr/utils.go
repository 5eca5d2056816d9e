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
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case chatError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

// KindOf 返回错误所属的分类，无法识别的错误归为 KindUnknown。
// context 取消视为关闭流程的一部分。
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce chatError
	if errors.As(err, &ce) {
		return ce.kind
	}
	if IsCanceledOrTimeout(err) {
		return KindShutdown
	}
	return KindUnknown
}

func IsProtocolErr(err error) bool {
	return KindOf(err) == KindProtocol
}

func IsTransportErr(err error) bool {
	return KindOf(err) == KindTransport
}

func IsConfigurationErr(err error) bool {
	return KindOf(err) == KindConfiguration
}

func IsShutdownErr(err error) bool {
	return KindOf(err) == KindShutdown
}

func IsRetryableErr(err error) bool {
	var ce chatError
	if errors.As(err, &ce) {
		return ce.retriable
	}
	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

// Protocol 相关错误封装。
func WrapErrProtocolMalformedRoom(line string, msg ...string) error {
	err := wrapFields(ErrProtocolMalformedRoom, value("line", quote(line)))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrProtocolLineTooLong(limit int, msg ...string) error {
	err := wrapFields(ErrProtocolLineTooLong, value("limit", limit))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Transport 相关错误封装。
func WrapErrTransportDisconnected(remote string, msg ...string) error {
	err := wrapFields(ErrTransportDisconnected, value("remote", remote))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrTransportIO(op string, cause error) error {
	desc := "<nil>"
	if cause != nil {
		desc = cause.Error()
	}
	return wrapFieldsWithDesc(ErrTransportIO, desc, value("op", op))
}

func WrapErrTransportAccept(cause error) error {
	desc := "<nil>"
	if cause != nil {
		desc = cause.Error()
	}
	return wrapFieldsWithDesc(ErrTransportAccept, desc)
}

// Configuration 相关错误封装。
func WrapErrConfigInvalid(key string, val any, msg ...string) error {
	err := wrapFields(ErrConfigInvalid, value(key, val))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrConfigOutOfRange(key string, val, lower, upper any, msg ...string) error {
	err := wrapFields(ErrConfigInvalid, bound(key, val, lower, upper))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrConfigMissing(key string, msg ...string) error {
	err := wrapFields(ErrConfigMissing, value("key", key))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrConfigFileInvalid(path string, cause error) error {
	desc := "<nil>"
	if cause != nil {
		desc = cause.Error()
	}
	return wrapFieldsWithDesc(ErrConfigFileInvalid, desc, value("path", path))
}

// Shutdown 相关错误封装。
func WrapErrShutdown(resource string, msg ...string) error {
	err := wrapFields(ErrShutdown, value("resource", resource))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Session 相关错误封装。
func WrapErrSessionInvalidState(id uint64, state string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrSessionInvalidState, state, value("session", id))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrSessionOverloaded(limit int, msg ...string) error {
	err := wrapFields(ErrSessionOverloaded, value("limit", limit))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func quote(s string) string {
	const maxQuoted = 64
	if len(s) > maxQuoted {
		s = s[:maxQuoted] + "..."
	}
	return fmt.Sprintf("%q", s)
}

func wrapFields(err chatError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err chatError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}

type boundField struct {
	name  string
	value any
	lower any
	upper any
}

func bound(name string, value, lower, upper any) boundField {
	return boundField{
		name,
		value,
		lower,
		upper,
	}
}

func (f boundField) String() string {
	return fmt.Sprintf("%v out of range %v <= %s <= %v", f.value, f.lower, f.name, f.upper)
}
