package acceptor

import (
	"context"
	"net"

	network "github.com/lk2023060901/roomchat/internal/network"
	"github.com/lk2023060901/roomchat/internal/network/session"
)

// Handler 由接入层的使用者实现，用于在连接生命周期的各个阶段插入自定义逻辑。
//
// 说明：
//   - OnAccept 在接入协程中同步调用，耗时操作会推迟下一个连接的接入；
//   - 其余回调在会话所在的 worker 中调用。
type Handler interface {
	// OnAccept 在连接接入后调用，完成握手并构造会话。
	// 返回错误时连接会被关闭，会话不会运行。
	OnAccept(ctx context.Context, conn net.Conn) (session.Runner, error)

	// OnSessionClosed 在会话的 Run 返回之后调用，err 为 Run 的返回值。
	OnSessionClosed(sess session.Runner, err error)

	// OnError 在接入、握手或调度阶段发生错误时调用，sess 可能为 nil。
	OnError(sess session.Session, stage network.Stage, err error)
}

// Acceptor 抽象了服务器侧的 TCP 接入层。
//
// 职责：
//   - 在 listener 上接受连接，调用 Handler 构造会话并交给协程池运行；
//   - 跟踪所有运行中的会话，关闭时强制结束并等待它们退出。
type Acceptor interface {
	// Serve 阻塞地接受连接，直到 Close 被调用、ctx 取消或 accept 出错。
	// 因 Close 或 ctx 退出时返回 nil。
	Serve(ctx context.Context, h Handler) error

	// Close 停止接入，关闭所有会话的连接，并等待它们全部退出。可重复调用。
	Close() error

	// Sessions 返回当前运行中会话的快照。
	Sessions() []session.Runner

	// Addr 返回监听地址。
	Addr() net.Addr
}
