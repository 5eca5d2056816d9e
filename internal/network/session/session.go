package session

import (
	"context"
	"net"
)

// Session 抽象了一条聊天连接在注册表中可见的部分。
//
// 约定：
//   - 每个 Session 对应一条底层连接，连接由 Session 独占。
//   - Session ID 使用 64 位无符号整型，进程内不重复。
//   - 注册表只持有 Session 的引用用于广播写出，不负责关闭连接。
type Session interface {
	// ID 返回该会话在进程内的唯一标识。
	ID() uint64

	// Room 返回会话当前所在的房间。
	Room() int64

	// RemoteAddr 返回远端地址，主要用于日志。
	RemoteAddr() net.Addr

	// Alive 在会话结束前返回 true。
	Alive() bool

	// Send 将 payload 原样写到对端。
	//
	// 行为：
	//   - 同一会话的多次 Send 互斥，保证报文不交叉。
	//   - 写失败返回 merr.ErrTransportIO，不会关闭会话。
	Send(payload []byte) error

	// Close 强制关闭底层连接，用于服务关闭流程，可重复调用。
	Close() error

	// Done 返回会话运行循环完全退出后关闭的 channel。
	Done() <-chan struct{}
}

// Runner 是可以被 acceptor 驱动运行的会话。
type Runner interface {
	Session

	// Run 执行会话的协议循环，直到会话结束才返回。
	// 返回前必须已经从注册表注销并关闭 Done。
	Run(ctx context.Context) error
}
