// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type bufferSyncer struct {
	bytes.Buffer
}

func (b *bufferSyncer) Sync() error { return nil }

func TestInitLoggerWithWriteSyncer(t *testing.T) {
	buf := &bufferSyncer{}
	lg, props, err := InitLoggerWithWriteSyncer(&Config{Format: FormatJSON, DisableTimestamp: true}, buf)
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, props.Level.Level())

	lg.Debug("hidden")
	lg.Info("visible", FieldSessionID(7), FieldRoom(2))
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"visible"`)
	assert.Contains(t, out, `"sessionID":7`)
	assert.Contains(t, out, `"room":2`)
	assert.NotContains(t, out, `"ts"`)
}

func TestInitLoggerBadLevel(t *testing.T) {
	_, _, err := InitLoggerWithWriteSyncer(&Config{Level: "verbose"}, &bufferSyncer{})
	assert.Error(t, err)
}

func TestInitLoggerFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Level: "debug",
		File: FileLogConfig{
			RootPath: dir,
			Filename: "roomchat.log",
		},
	}
	lg, props, err := InitLogger(cfg)
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, props.Level.Level())
	assert.Equal(t, defaultLogMaxSize, cfg.File.MaxSize)

	lg.Debug("written to file")
	require.NoError(t, lg.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "roomchat.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestInitLoggerDirectoryAsFile(t *testing.T) {
	dir := t.TempDir()
	_, _, err := InitLogger(&Config{File: FileLogConfig{Filename: dir}})
	assert.Error(t, err)
}

func TestReplaceGlobalsAndLevel(t *testing.T) {
	oldL, oldP := L(), _globalP.Load().(*ZapProperties)
	defer ReplaceGlobals(oldL, oldP)

	buf := &bufferSyncer{}
	lg, props, err := InitLoggerWithWriteSyncer(&Config{DisableTimestamp: true}, buf)
	require.NoError(t, err)
	ReplaceGlobals(lg, props)

	Info("global info")
	SetLevel(zapcore.ErrorLevel)
	assert.Equal(t, zapcore.ErrorLevel, GetLevel())
	Warn("suppressed warn")
	With(FieldModule("chat")).Error("module error")

	out := buf.String()
	assert.Contains(t, out, "global info")
	assert.NotContains(t, out, "suppressed warn")
	assert.Contains(t, out, "module error")
	assert.Contains(t, out, "chat")
}

func TestCtxLogger(t *testing.T) {
	ctx := WithModule(context.Background(), "acceptor")
	l := Ctx(ctx)
	assert.NotNil(t, l)
	assert.Same(t, l, Ctx(ctx))

	ctx = WithFields(ctx, zap.String("k", "v"))
	assert.NotSame(t, l, Ctx(ctx))

	//nolint:staticcheck
	assert.NotNil(t, Ctx(nil))
}

// 默认 Logger 输出到标准输出，这里临时替换 os.Stdout 以捕获输出。
func TestDefaultLoggerCtxCaller(t *testing.T) {
	oldL, oldP, oldS := L(), _globalP.Load().(*ZapProperties), S()
	stdout := os.Stdout
	defer func() {
		os.Stdout = stdout
		initGlobals()
		ReplaceGlobals(oldL, oldP)
		_globalS.Store(oldS)
	}()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	initGlobals()

	Ctx(context.Background()).Info("default ctx logger")
	Ctx(context.Background()).Debug("debug is below default level")
	os.Stdout = stdout
	require.NoError(t, w.Close())

	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	out := string(raw)
	assert.NotContains(t, out, "IncreaseLevel")
	assert.Contains(t, out, "default ctx logger")
	assert.Contains(t, out, "log/log_test.go")
	assert.NotContains(t, out, "debug is below default level")
	assert.Equal(t, zapcore.InfoLevel, GetLevel())
}

type countingLimiter struct {
	allow int
}

func (c *countingLimiter) CheckCredit(float64) bool {
	if c.allow <= 0 {
		return false
	}
	c.allow--
	return true
}

func TestRatedLogging(t *testing.T) {
	old := _globalR.Load()
	defer _globalR.Store(old)

	_globalR.Store(rateLimiterHolder{rl: &countingLimiter{allow: 1}})
	assert.True(t, RatedWarn(1, "first"))
	assert.False(t, RatedWarn(1, "second"))

	l := With(FieldComponent("registry")).WithRateGroup("test.rated", 1, 1)
	assert.True(t, l.RatedInfo(1, "allowed"))
	assert.False(t, l.RatedInfo(1, "dropped"))

	child := l.With(zap.Int("n", 1))
	assert.False(t, child.RatedWarn(1, "shares the group"))
}

func TestRateLimiterFromEnv(t *testing.T) {
	old := _globalR.Load()
	defer _globalR.Store(old)

	t.Setenv("ROOMCHAT_LOG_RATE_ENABLE", "true")
	t.Setenv("ROOMCHAT_LOG_RATE_CREDIT_PER_SECOND", "0.001")
	t.Setenv("ROOMCHAT_LOG_RATE_MAX_BALANCE", "1")
	configureRateLimiterFromEnv()
	assert.True(t, R().CheckCredit(1))
	assert.False(t, R().CheckCredit(1))

	t.Setenv("ROOMCHAT_LOG_RATE_ENABLE", "off")
	configureRateLimiterFromEnv()
	assert.IsType(t, nopRateLimiter{}, R())
}

func TestBinder(t *testing.T) {
	var b Binder
	assert.NotNil(t, b.Logger())

	l := With(FieldModule("server"))
	b.SetLogger(l)
	assert.Same(t, l, b.Logger())
}

func TestInitTestLogger(t *testing.T) {
	lg, _, err := InitTestLogger(t, &Config{Level: "debug"})
	require.NoError(t, err)
	lg.Debug("goes to t.Log")
}

func TestGetenvBool(t *testing.T) {
	t.Setenv("ROOMCHAT_TEST_BOOL", "YES")
	assert.True(t, getenvBool("ROOMCHAT_TEST_BOOL", false))
	t.Setenv("ROOMCHAT_TEST_BOOL", "garbage")
	assert.True(t, getenvBool("ROOMCHAT_TEST_BOOL", true))
	assert.Equal(t, 1.5, getenvFloat("ROOMCHAT_TEST_MISSING", 1.5))
	assert.True(t, strings.EqualFold(getenvDefault("ROOMCHAT_TEST_MISSING", "Info"), "info"))
}
