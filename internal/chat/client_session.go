package chat

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	network "github.com/lk2023060901/roomchat/internal/network"
	"github.com/lk2023060901/roomchat/internal/network/framer"
	"github.com/lk2023060901/roomchat/internal/network/session"
	"github.com/lk2023060901/roomchat/pkg/log"
	"github.com/lk2023060901/roomchat/pkg/metrics"
	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

// State 是 ClientSession 协议状态机的状态，只会向后推进。
type State int32

const (
	StateAwaitingRoom State = iota
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingRoom:
		return "awaiting_room"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ClientSession 在一条连接上运行聊天协议：
// 先读取初始房间，注册到 Registry，然后循环处理广播、切换房间与退出。
type ClientSession struct {
	*session.BaseSession

	registry session.Registry
	reader   *framer.LineReader
	state    atomic.Int32
}

var _ session.Runner = (*ClientSession)(nil)

// NewClientSession 基于已完成握手的 BaseSession 创建协议会话。
func NewClientSession(base *session.BaseSession, registry session.Registry, maxLineBytes int) *ClientSession {
	return &ClientSession{
		BaseSession: base,
		registry:    registry,
		reader:      framer.NewLineReader(base.Conn(), maxLineBytes),
	}
}

// State 返回当前状态。
func (s *ClientSession) State() State {
	return State(s.state.Load())
}

func (s *ClientSession) setState(state State) {
	s.state.Store(int32(state))
}

// Run 实现 session.Runner.Run。
//
// 主动退出、对端正常断开以及服务端关闭都返回 nil；
// 协议错误与传输错误在记录日志后返回，并带有发生阶段。
func (s *ClientSession) Run(ctx context.Context) (err error) {
	logger := log.Ctx(ctx).With(
		log.FieldSessionID(s.ID()),
		log.FieldRemote(s.RemoteAddr()),
	)
	metrics.SessionsActive.Inc()

	registered := false
	reason := metrics.TerminateReasonDisconnect
	defer func() {
		if registered {
			s.registry.Unregister(s.ID())
		}
		s.setState(StateTerminated)
		s.Terminate()
		metrics.SessionsActive.Dec()
		metrics.SessionTerminations.WithLabelValues(reason).Inc()
	}()

	line, err := s.reader.ReadLine()
	if err != nil {
		reason, err = s.classify(logger, network.StageRecv, err)
		return err
	}
	room, err := ParseRoom(line)
	if err != nil {
		reason, err = s.classify(logger, network.StageDecode, err)
		return err
	}
	s.SetRoom(room)
	logger.Info("room assigned", log.FieldRoom(room))

	if err := s.registry.Register(s); err != nil {
		reason = metrics.TerminateReasonInvalid
		logger.Error("register session failed", zap.Error(err))
		return network.WithStage(network.StageDispatch, err)
	}
	registered = true
	s.setState(StateActive)

	for {
		line, err := s.reader.ReadLine()
		if err != nil {
			reason, err = s.classify(logger, network.StageRecv, err)
			return err
		}

		d, err := ParseDirective(line)
		if err != nil {
			reason, err = s.classify(logger.With(log.FieldRoom(s.Room())), network.StageDecode, err)
			return err
		}

		switch d.Kind {
		case DirectiveExit:
			s.registry.Unregister(s.ID())
			registered = false
			reason = metrics.TerminateReasonExit
			logger.Info("client exit", log.FieldRoom(s.Room()))
			return nil
		case DirectiveSwitchRoom:
			old := s.SetRoom(d.Room)
			metrics.RoomSwitches.Inc()
			logger.Info("room changed", zap.Int64("from", old), log.FieldRoom(d.Room))
		default:
			s.registry.Broadcast(s.Room(), []byte(d.Text+"\n"))
		}
	}
}

// classify 将会话结束的原因分类，记录日志并返回需要上报的错误。
func (s *ClientSession) classify(logger *log.MLogger, stage network.Stage, err error) (string, error) {
	switch {
	case s.Forced():
		// 服务端关闭连接导致的读错误
		logger.Debug("session closed by server", zap.Error(merr.WrapErrShutdown("connection")))
		return metrics.TerminateReasonShutdown, nil
	case errors.Is(err, io.EOF):
		logger.Info("client disconnected", log.FieldRoom(s.Room()))
		return metrics.TerminateReasonDisconnect, nil
	case merr.IsProtocolErr(err):
		logger.Warn("protocol error, closing session", zap.String("state", s.State().String()), zap.Error(err))
		return metrics.TerminateReasonProtocol, network.WithStage(stage, err)
	default:
		err = merr.WrapErrTransportDisconnected(s.RemoteAddr().String(), err.Error())
		logger.Warn("connection lost", log.FieldRoom(s.Room()), zap.Error(err))
		return metrics.TerminateReasonTransport, network.WithStage(stage, err)
	}
}
