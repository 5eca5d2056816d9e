package chat

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/roomchat/internal/network/framer"
	"github.com/lk2023060901/roomchat/pkg/log"
	"github.com/lk2023060901/roomchat/pkg/util/merr"
	"github.com/lk2023060901/roomchat/pkg/util/retry"
)

// DialOption 调整 Dial 的行为。
type DialOption func(*dialConfig)

type dialConfig struct {
	attempts     uint
	sleep        time.Duration
	dialTimeout  time.Duration
	maxLineBytes int
}

func defaultDialConfig() *dialConfig {
	return &dialConfig{
		attempts:     5,
		sleep:        200 * time.Millisecond,
		dialTimeout:  3 * time.Second,
		maxLineBytes: framer.DefaultMaxLineBytes,
	}
}

// WithDialAttempts 设置建连的最大尝试次数。
func WithDialAttempts(attempts uint) DialOption {
	return func(c *dialConfig) {
		c.attempts = attempts
	}
}

// WithDialBackoff 设置首次重试前的等待时长。
func WithDialBackoff(sleep time.Duration) DialOption {
	return func(c *dialConfig) {
		c.sleep = sleep
	}
}

// WithDialTimeout 设置单次建连超时。
func WithDialTimeout(d time.Duration) DialOption {
	return func(c *dialConfig) {
		c.dialTimeout = d
	}
}

// Client 是聊天协议的客户端，读写可以在不同协程中进行。
type Client struct {
	conn   net.Conn
	reader *framer.LineReader
	rooms  int

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial 带重试地连接服务端，并读取握手中的房间数量。
func Dial(ctx context.Context, addr string, opts ...DialOption) (*Client, error) {
	c := defaultDialConfig()
	for _, opt := range opts {
		opt(c)
	}

	var conn net.Conn
	dialer := &net.Dialer{Timeout: c.dialTimeout}
	err := retry.Do(ctx, func() error {
		var err error
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return merr.WrapErrTransportIO("dial", err)
		}
		return nil
	}, retry.Attempts(c.attempts), retry.Sleep(c.sleep), retry.RetryErr(merr.IsRetryableErr))
	if err != nil {
		return nil, err
	}

	cli := &Client{
		conn:   conn,
		reader: framer.NewLineReader(conn, c.maxLineBytes),
	}
	line, err := cli.reader.ReadLine()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(merr.WrapErrTransportIO("read handshake", err), addr)
	}
	rooms, err := strconv.Atoi(line)
	if err != nil || rooms < 1 {
		_ = conn.Close()
		return nil, merr.WrapErrProtocolMalformedRoom(line, "handshake")
	}
	cli.rooms = rooms
	log.Debug("connected to chat server", zap.String("addr", addr), zap.Int("rooms", rooms))
	return cli, nil
}

// Rooms 返回服务端声明的房间数量。
func (c *Client) Rooms() int {
	return c.rooms
}

// Join 进入或切换到 room。
func (c *Client) Join(room int64) error {
	return c.writeLine(FormatRoom(room))
}

// Say 发送一条聊天消息，text 不能是指令。
func (c *Client) Say(text string) error {
	return c.writeLine(text)
}

// Exit 通知服务端主动断开。
func (c *Client) Exit() error {
	return c.writeLine(ExitToken)
}

// Receive 阻塞读取下一条转发的消息，连接关闭时返回 io.EOF。
func (c *Client) Receive() (string, error) {
	return c.reader.ReadLine()
}

// Close 关闭连接，可重复调用。
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if cerr := c.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = merr.WrapErrTransportIO("close", cerr)
		}
	})
	return err
}

func (c *Client) writeLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := framer.WriteLine(c.conn, line); err != nil {
		return merr.WrapErrTransportIO("write", err)
	}
	return nil
}
