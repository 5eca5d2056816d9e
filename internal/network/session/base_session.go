package session

import (
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

// BaseSession 提供了 Session 接口的基础实现。
//
// 设计目标：
//   - 封装最小但完整的会话状态：ID、房间、存活标记、终止信号、独占的连接；
//   - 不包含协议循环，由上层（例如 chat.ClientSession）嵌入后实现 Run。
type BaseSession struct {
	id uint64

	conn net.Conn

	remoteAddr net.Addr
	localAddr  net.Addr

	// room 会被注册表在广播时并发读取。
	room atomic.Int64

	alive atomic.Bool

	// forced 在服务端主动关闭连接时置位，用于区分关闭导致的读错误。
	forced atomic.Bool

	writeTimeout time.Duration
	writeMu      sync.Mutex

	closeOnce sync.Once
	closeErr  error

	done     chan struct{}
	doneOnce sync.Once
}

// 确保 BaseSession 实现了 Session 接口。
var _ Session = (*BaseSession)(nil)

// Option 配置 BaseSession。
type Option func(s *BaseSession)

// WithWriteTimeout 为每次 Send 设置写超时，0 表示不限制。
func WithWriteTimeout(d time.Duration) Option {
	return func(s *BaseSession) {
		s.writeTimeout = d
	}
}

// WithRoom 设置初始房间。
func WithRoom(room int64) Option {
	return func(s *BaseSession) {
		s.room.Store(room)
	}
}

// NewBaseSession 创建一个基于 net.Conn 的基础 Session 实例。
func NewBaseSession(id uint64, conn net.Conn, opts ...Option) *BaseSession {
	s := &BaseSession{
		id:         id,
		conn:       conn,
		remoteAddr: conn.RemoteAddr(),
		localAddr:  conn.LocalAddr(),
		done:       make(chan struct{}),
	}
	s.alive.Store(true)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID 实现 Session.ID。
func (s *BaseSession) ID() uint64 {
	return s.id
}

// Room 实现 Session.Room。
func (s *BaseSession) Room() int64 {
	return s.room.Load()
}

// SetRoom 覆盖当前房间并返回旧值。
func (s *BaseSession) SetRoom(room int64) int64 {
	return s.room.Swap(room)
}

// RemoteAddr 实现 Session.RemoteAddr。
func (s *BaseSession) RemoteAddr() net.Addr {
	return s.remoteAddr
}

// LocalAddr 返回本端地址。
func (s *BaseSession) LocalAddr() net.Addr {
	return s.localAddr
}

// Conn 返回底层连接，仅供会话自身读取。
func (s *BaseSession) Conn() net.Conn {
	return s.conn
}

// Alive 实现 Session.Alive。
func (s *BaseSession) Alive() bool {
	return s.alive.Load()
}

// Forced 返回连接是否由服务端强制关闭。
func (s *BaseSession) Forced() bool {
	return s.forced.Load()
}

// Send 实现 Session.Send。
func (s *BaseSession) Send(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return merr.WrapErrTransportIO("set write deadline", err)
		}
	}
	if _, err := s.conn.Write(payload); err != nil {
		return merr.WrapErrTransportIO("write", err)
	}
	return nil
}

// Close 实现 Session.Close。
//
// 只关闭连接，阻塞在读上的运行循环随之返回并完成自身的清理。
func (s *BaseSession) Close() error {
	s.forced.Store(true)
	return s.closeConn()
}

// Done 实现 Session.Done。
func (s *BaseSession) Done() <-chan struct{} {
	return s.done
}

// Terminate 结束会话：关闭连接、清除存活标记并关闭 Done。可重复调用。
func (s *BaseSession) Terminate() {
	s.alive.Store(false)
	_ = s.closeConn()
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

func (s *BaseSession) closeConn() error {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = merr.WrapErrTransportIO("close", err)
		}
	})
	return s.closeErr
}
