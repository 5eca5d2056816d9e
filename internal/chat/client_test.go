package chat

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

func startTestServer(t *testing.T, maxRooms int) *Server {
	srv, err := NewServer(Config{Port: 1, MaxRooms: maxRooms})
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, srv.StartWithListener(context.Background(), ln))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
	})
	return srv
}

func receive(t *testing.T, c *Client) string {
	_ = c.conn.SetReadDeadline(time.Now().Add(waitFor))
	line, err := c.Receive()
	require.NoError(t, err)
	return line
}

func TestClientConversation(t *testing.T) {
	srv := startTestServer(t, 7)
	ctx := context.Background()

	alice, err := Dial(ctx, srv.Addr().String())
	require.NoError(t, err)
	defer alice.Close()
	bob, err := Dial(ctx, srv.Addr().String())
	require.NoError(t, err)
	defer bob.Close()

	assert.Equal(t, 7, alice.Rooms())
	require.NoError(t, alice.Join(1))
	require.NoError(t, bob.Join(1))
	require.Eventually(t, func() bool { return srv.Registry().Count() == 2 }, waitFor, tick)

	require.NoError(t, alice.Say("alice: hi"))
	assert.Equal(t, "alice: hi", receive(t, alice))
	assert.Equal(t, "alice: hi", receive(t, bob))

	require.NoError(t, bob.Exit())
	_ = bob.conn.SetReadDeadline(time.Now().Add(waitFor))
	_, err = bob.Receive()
	assert.ErrorIs(t, err, io.EOF)

	assert.NoError(t, bob.Close())
	assert.NoError(t, bob.Close())
}

func TestDialRetriesUntilServerUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv, err := NewServer(Config{Port: 1, MaxRooms: 3})
	require.NoError(t, err)
	go func() {
		time.Sleep(300 * time.Millisecond)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		_ = srv.StartWithListener(context.Background(), ln)
	}()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	cli, err := Dial(context.Background(), addr, WithDialAttempts(20), WithDialBackoff(50*time.Millisecond))
	require.NoError(t, err)
	defer cli.Close()
	assert.Equal(t, 3, cli.Rooms())
}

func TestDialGivesUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), addr,
		WithDialAttempts(2), WithDialBackoff(time.Millisecond), WithDialTimeout(100*time.Millisecond))
	assert.ErrorIs(t, err, merr.ErrTransportIO)
}

func TestDialBadHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.WriteString(conn, "many\n")
	}()

	_, err = Dial(context.Background(), ln.Addr().String(), WithDialAttempts(1))
	assert.True(t, merr.IsProtocolErr(err))
}
