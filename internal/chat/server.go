package chat

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	network "github.com/lk2023060901/roomchat/internal/network"
	"github.com/lk2023060901/roomchat/internal/network/acceptor"
	"github.com/lk2023060901/roomchat/internal/network/session"
	"github.com/lk2023060901/roomchat/pkg/log"
	"github.com/lk2023060901/roomchat/pkg/metrics"
	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

// Server 持有监听器、注册表与接入器，负责握手与整体生命周期。
//
// 生命周期：NewServer -> Start/StartWithListener -> Shutdown -> Wait。
type Server struct {
	log.Binder

	cfg      Config
	registry *session.BaseRegistry
	ids      session.IDGenerator
	acceptor *acceptor.BaseAcceptor

	started atomic.Bool
	// serveDone 在接入循环退出后关闭，serveErr 只在此之后可读。
	serveDone chan struct{}
	serveErr  error

	shutdownOnce sync.Once
	shutdownErr  error
}

var _ acceptor.Handler = (*Server)(nil)

// NewServer 校验配置并创建服务，不会监听端口。
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:       cfg,
		registry:  session.NewBaseRegistry(),
		ids:       session.NewUint64IDGenerator(),
		serveDone: make(chan struct{}),
	}
	s.SetLogger(log.With(log.FieldModule("chat"), log.FieldComponent("server")))
	return s, nil
}

// Config 返回服务配置。
func (s *Server) Config() Config {
	return s.cfg
}

// Registry 返回服务的会话注册表。
func (s *Server) Registry() session.Registry {
	return s.registry
}

// Start 在 cfg.Addr() 上监听并开始接入。
func (s *Server) Start(ctx context.Context) error {
	if s.started.Load() {
		return merr.WrapErrSessionInvalidState(0, "server already started")
	}
	a, err := acceptor.NewTCPAcceptor(s.cfg.Addr(), s.cfg.MaxSessions)
	if err != nil {
		return err
	}
	return s.serve(ctx, a)
}

// StartWithListener 使用已有的 listener 开始接入，只能调用一次。
func (s *Server) StartWithListener(ctx context.Context, ln net.Listener) error {
	a, err := acceptor.NewBaseAcceptor(ln, s.cfg.MaxSessions)
	if err != nil {
		return err
	}
	return s.serve(ctx, a)
}

func (s *Server) serve(ctx context.Context, a *acceptor.BaseAcceptor) error {
	if !s.started.CompareAndSwap(false, true) {
		_ = a.Close()
		return merr.WrapErrSessionInvalidState(0, "server already started")
	}
	a.SetLogger(s.Logger().With(log.FieldComponent("acceptor")))
	s.acceptor = a

	s.Logger().Info("chat server listening",
		zap.Stringer("addr", a.Addr()),
		zap.Int("maxRooms", s.cfg.MaxRooms),
		zap.Int("maxSessions", s.cfg.MaxSessions))

	ctx = log.WithModule(ctx, "chat")
	go func() {
		defer close(s.serveDone)
		s.serveErr = a.Serve(ctx, s)
	}()
	return nil
}

// Addr 返回实际监听地址，未启动时返回 nil。
func (s *Server) Addr() net.Addr {
	if s.acceptor == nil {
		return nil
	}
	return s.acceptor.Addr()
}

// Wait 阻塞直到接入循环退出，返回导致退出的 accept 错误（正常关闭时为 nil）。
func (s *Server) Wait() error {
	if !s.started.Load() {
		return nil
	}
	<-s.serveDone
	return s.serveErr
}

// Done 返回接入循环退出时关闭的 channel。
func (s *Server) Done() <-chan struct{} {
	return s.serveDone
}

// Shutdown 停止接入并等待所有会话退出，ctx 结束时提前返回 ctx 的错误。
// 重复调用只执行一次关闭流程。
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	s.shutdownOnce.Do(func() {
		s.Logger().Info("chat server shutting down",
			zap.Int("sessions", len(s.acceptor.Sessions())),
			zap.Int("registered", s.registry.Count()),
			zap.Int64s("rooms", s.registry.Rooms()))

		closed := make(chan error, 1)
		go func() {
			closed <- s.acceptor.Close()
		}()

		select {
		case err := <-closed:
			if err != nil {
				s.Logger().Warn("close acceptor", zap.Error(err))
			}
			<-s.serveDone
			s.Logger().Info("chat server stopped")
		case <-ctx.Done():
			s.shutdownErr = errors.Wrap(ctx.Err(), "wait sessions")
		}
	})
	return s.shutdownErr
}

// OnAccept 实现 acceptor.Handler.OnAccept：先写出房间数量，再构造会话。
func (s *Server) OnAccept(_ context.Context, conn net.Conn) (session.Runner, error) {
	base := session.NewBaseSession(s.ids.Next(), conn, session.WithWriteTimeout(s.cfg.WriteTimeout))
	if err := base.Send([]byte(strconv.Itoa(s.cfg.MaxRooms) + "\n")); err != nil {
		return nil, network.WithStage(network.StageHandshake, err)
	}
	metrics.SessionsAccepted.Inc()
	s.Logger().Debug("connection accepted",
		log.FieldSessionID(base.ID()),
		log.FieldRemote(base.RemoteAddr()))
	return NewClientSession(base, s.registry, s.cfg.MaxLineBytes), nil
}

// OnSessionClosed 实现 acceptor.Handler.OnSessionClosed。
func (s *Server) OnSessionClosed(sess session.Runner, err error) {
	fields := []zap.Field{
		log.FieldSessionID(sess.ID()),
		log.FieldRemote(sess.RemoteAddr()),
	}
	if err != nil {
		stage, _ := network.StageOf(err)
		fields = append(fields,
			zap.String("stage", string(stage)),
			zap.Stringer("kind", merr.KindOf(err)),
			zap.Error(err))
	}
	s.Logger().Debug("session closed", fields...)

	if _, ok := s.registry.Get(sess.ID()); ok {
		s.registry.Unregister(sess.ID())
		s.Logger().Error("closed session was still registered", log.FieldSessionID(sess.ID()))
	}
}

// OnError 实现 acceptor.Handler.OnError。
func (s *Server) OnError(sess session.Session, stage network.Stage, err error) {
	fields := []zap.Field{
		zap.String("stage", string(stage)),
		zap.Stringer("kind", merr.KindOf(err)),
		zap.Error(err),
	}
	if sess != nil {
		fields = append(fields, log.FieldSessionID(sess.ID()), log.FieldRemote(sess.RemoteAddr()))
	}
	if merr.IsShutdownErr(err) {
		s.Logger().Debug("network error during shutdown", fields...)
		return
	}
	s.Logger().Warn("network error", fields...)
}
