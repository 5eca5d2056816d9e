package acceptor

import (
	"context"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	ants "github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	network "github.com/lk2023060901/roomchat/internal/network"
	"github.com/lk2023060901/roomchat/internal/network/session"
	"github.com/lk2023060901/roomchat/pkg/log"
	"github.com/lk2023060901/roomchat/pkg/metrics"
	"github.com/lk2023060901/roomchat/pkg/util/conc"
	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

// BaseAcceptor 是 Acceptor 接口的基础 TCP 实现。
//
// 设计目标：
//   - 接入协程只负责 accept 与握手，每个会话在协程池中独立运行；
//   - maxSessions > 0 时限制并发会话数，超出的连接直接关闭；
//   - Close 的顺序固定：关闭 listener、关闭所有会话连接、清空跟踪表、等待会话退出。
type BaseAcceptor struct {
	log.Binder

	ln          net.Listener
	pool        *conc.Pool[struct{}]
	maxSessions int

	mu      sync.Mutex
	closed  bool
	running map[uint64]*tracked

	closeOnce sync.Once
	closeErr  error
}

type tracked struct {
	sess   session.Runner
	future *conc.Future[struct{}]
}

// 确保 BaseAcceptor 实现了 Acceptor 接口。
var _ Acceptor = (*BaseAcceptor)(nil)

// NewBaseAcceptor 使用已有的 Listener 创建一个基础接入器。
//
// 参数：
//   - ln          ：已创建好的 net.Listener；
//   - maxSessions ：并发会话上限，<= 0 表示不限制。
func NewBaseAcceptor(ln net.Listener, maxSessions int) (*BaseAcceptor, error) {
	if ln == nil {
		return nil, merr.WrapErrConfigMissing("listener")
	}
	if maxSessions < 0 {
		maxSessions = 0
	}
	a := &BaseAcceptor{
		ln:          ln,
		maxSessions: maxSessions,
		running:     make(map[uint64]*tracked),
		pool: conc.NewPool[struct{}](maxSessions,
			conc.WithNonBlocking(true),
			conc.WithConcealPanic(true),
			conc.WithName("session"),
		),
	}
	a.SetLogger(log.With(log.FieldComponent("acceptor")))
	return a, nil
}

// NewTCPAcceptor 在给定地址上监听 TCP，并创建一个基础接入器。
func NewTCPAcceptor(addr string, maxSessions int) (*BaseAcceptor, error) {
	if addr == "" {
		return nil, merr.WrapErrConfigMissing("addr")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, merr.WrapErrConfigInvalid("addr", addr, err.Error())
	}
	return NewBaseAcceptor(ln, maxSessions)
}

// Addr 实现 Acceptor.Addr。
func (a *BaseAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Serve 实现 Acceptor.Serve。
func (a *BaseAcceptor) Serve(ctx context.Context, h Handler) error {
	if h == nil {
		return merr.WrapErrConfigMissing("handler")
	}

	stop := context.AfterFunc(ctx, func() {
		_ = a.Close()
	})
	defer stop()

	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if a.isClosed() {
				return nil
			}
			err = merr.WrapErrTransportAccept(err)
			a.Logger().Error("accept failed, stop serving", zap.Error(err))
			h.OnError(nil, network.StageAccept, err)
			return err
		}
		a.handleConnection(ctx, conn, h)
	}
}

// handleConnection 完成握手并把会话交给协程池。
func (a *BaseAcceptor) handleConnection(ctx context.Context, conn net.Conn, h Handler) {
	sess, err := h.OnAccept(ctx, conn)
	if err != nil {
		_ = conn.Close()
		h.OnError(nil, network.StageHandshake, err)
		return
	}
	if sess == nil {
		_ = conn.Close()
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		_ = sess.Close()
		h.OnError(sess, network.StageAccept, merr.WrapErrShutdown("acceptor", "connection accepted while closing"))
		return
	}

	t := &tracked{sess: sess}
	future, err := a.pool.TrySubmit(func() (struct{}, error) {
		runErr := sess.Run(ctx)
		a.untrack(sess.ID())
		h.OnSessionClosed(sess, runErr)
		return struct{}{}, runErr
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			metrics.SessionsRejected.Inc()
			err = merr.WrapErrSessionOverloaded(a.maxSessions)
		}
		_ = sess.Close()
		a.Logger().Warn("reject connection",
			log.FieldSessionID(sess.ID()),
			log.FieldRemote(sess.RemoteAddr()),
			zap.Error(err))
		h.OnError(sess, network.StageDispatch, err)
		return
	}
	t.future = future
	a.running[sess.ID()] = t
}

func (a *BaseAcceptor) untrack(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.running, id)
}

func (a *BaseAcceptor) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Close 实现 Acceptor.Close。
func (a *BaseAcceptor) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()

		if err := a.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			a.closeErr = merr.WrapErrTransportIO("close listener", err)
		}

		a.mu.Lock()
		snapshot := lo.Values(a.running)
		clear(a.running)
		a.mu.Unlock()

		for _, t := range snapshot {
			// 已经关闭的连接直接忽略
			_ = t.sess.Close()
		}
		a.Logger().Info("acceptor closing, waiting for sessions", zap.Int("sessions", len(snapshot)))

		for _, t := range snapshot {
			<-t.sess.Done()
		}
		conc.BlockOnAll(lo.Map(snapshot, func(t *tracked, _ int) *conc.Future[struct{}] { return t.future })...)
		a.pool.Release()
	})
	return a.closeErr
}

// Sessions 实现 Acceptor.Sessions。
func (a *BaseAcceptor) Sessions() []session.Runner {
	a.mu.Lock()
	defer a.mu.Unlock()
	return lo.MapToSlice(a.running, func(_ uint64, t *tracked) session.Runner { return t.sess })
}
