package network

import (
	"github.com/cockroachdb/errors"
)

// Stage 表示网络收发链路中的处理阶段。
//
// 主要用于在回调中标记错误发生的位置，便于监控与排查。
type Stage string

const (
	StageAccept    Stage = "accept"
	StageHandshake Stage = "handshake" // 写出房间数量
	StageRecv      Stage = "recv"      // 从连接读取一行
	StageDecode    Stage = "decode"    // 行 -> 指令
	StageDispatch  Stage = "dispatch"  // 指令 -> 注册表操作
	StageSend      Stage = "send"      // 写出到对端
	StageClose     Stage = "close"
)

// StageError 为错误附加发生阶段，原始错误通过 Unwrap 保留。
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return "network:" + string(e.Stage)
	}
	return "network:" + string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// WithStage 为 err 标记阶段，err 为 nil 时返回 nil。
func WithStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf 返回错误链上最近一次标记的阶段。
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
