package tcpserver

import (
	"bytes"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcpserver/tests/testutil"
)

// ============================================================================
//                              端到端（真实引擎）
// ============================================================================

func newLoopServer(t *testing.T) *Server {
	t.Helper()
	if testing.Short() {
		t.Skip("跳过端到端测试")
	}
	s, err := New(WithWorkers(4), WithoutMetrics())
	require.NoError(t, err)
	return s
}

func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()
	addr := s.Address()
	require.NotNil(t, addr)
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(addr.Port)), waitTimeout)
	require.NoError(t, err)
	return conn
}

// readUntilEnd 在完成回调中持续读，直到对端关闭或连接关闭
func readUntilEnd(c *Connection, out chan<- []byte) {
	var data []byte
	buf := make([]byte, 256)

	var next func()
	next = func() {
		err := c.Read(buf, func(n int) {
			switch {
			case n > 0:
				data = append(data, buf[:n]...)
				next()
			case n == 0 && c.State() == ConnOpen:
				next()
			default:
				out <- data
			}
		})
		if err != nil {
			out <- data
		}
	}
	next()
}

// TestE2E_ReadInOrder 测试按顺序读取全部数据，对端关闭后连接注销
func TestE2E_ReadInOrder(t *testing.T) {
	s := newLoopServer(t)

	received := make(chan []byte, 1)
	conns := make(chan *Connection, 1)
	s.OnClientConnected(func(c *Connection) {
		conns <- c
		readUntilEnd(c, received)
	})
	listenAndStart(t, s)

	addr := s.Address()
	require.NotNil(t, addr)
	assert.NotZero(t, addr.Port)
	assert.Equal(t, "127.0.0.1", addr.IP)

	payload := bytes.Repeat([]byte("0123456789abcdef"), 1024)
	client := dial(t, s)
	for off := 0; off < len(payload); off += 1000 {
		end := min(off+1000, len(payload))
		_, err := client.Write(payload[off:end])
		require.NoError(t, err)
	}
	require.NoError(t, client.Close())

	c := testutil.Receive(t, conns, waitTimeout)
	got := testutil.Receive(t, received, waitTimeout)
	assert.Equal(t, payload, got)

	testutil.Eventually(t, waitTimeout, func() bool {
		return c.State() == ConnClosed && s.ConnectionsCount() == 0
	}, "对端关闭后连接应该注销")

	stopAndWait(t, s)
}

// TestE2E_Write 测试服务器写出
func TestE2E_Write(t *testing.T) {
	s := newLoopServer(t)

	s.OnClientConnected(func(c *Connection) {
		msg := []byte("welcome")
		var send func(p []byte)
		send = func(p []byte) {
			_ = c.Write(p, func(n int) {
				if n > 0 && n < len(p) {
					send(p[n:])
				}
			})
		}
		send(msg)
	})
	listenAndStart(t, s)

	client := dial(t, s)
	defer client.Close()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(waitTimeout)))

	buf := make([]byte, 7)
	_, err := io.ReadFull(client, buf)
	require.NoError(t, err)
	assert.Equal(t, "welcome", string(buf))

	stopAndWait(t, s)
}

// TestE2E_StopClosesConnections 测试停止时先关闭所有连接
func TestE2E_StopClosesConnections(t *testing.T) {
	s := newLoopServer(t)

	const total = 10
	var connClosed atomic.Int32
	s.OnClientConnected(func(c *Connection) {
		c.OnceClosed(func() { connClosed.Add(1) })
	})
	listenAndStart(t, s)

	clients := make([]net.Conn, 0, total)
	for i := 0; i < total; i++ {
		clients = append(clients, dial(t, s))
	}
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()
	testutil.Eventually(t, waitTimeout, func() bool {
		return s.ConnectionsCount() == total
	}, "所有连接应该被接纳")

	var atServerClosed atomic.Int32
	s.OnceClosed(func() { atServerClosed.Store(connClosed.Load()) })

	stopAndWait(t, s)
	assert.Equal(t, int32(total), atServerClosed.Load(), "服务器关闭前所有连接应该已关闭")
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, s.ConnectionsCount())

	// 客户端观察到对端关闭
	require.NoError(t, clients[0].SetReadDeadline(time.Now().Add(waitTimeout)))
	_, err := clients[0].Read(make([]byte, 1))
	assert.Error(t, err)
}

// TestE2E_StopWithBlockedWrite 测试对端不读时停止服务器
func TestE2E_StopWithBlockedWrite(t *testing.T) {
	s := newLoopServer(t)

	payload := make([]byte, 64<<20)
	conns := make(chan *Connection, 1)
	written := make(chan int, 1)
	s.OnClientConnected(func(c *Connection) {
		assert.NoError(t, c.Write(payload, func(n int) { written <- n }))
		conns <- c
	})
	listenAndStart(t, s)

	client := dial(t, s)
	defer client.Close()

	c := testutil.Receive(t, conns, waitTimeout)
	// 等内核缓冲区写满
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, c.Read(make([]byte, 8), func(int) {}), ErrChannelClosed)

	testutil.WaitClosed(t, s.Done(), waitTimeout, "在途写不应阻止服务器关闭")
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, ConnClosed, c.State())
	assert.Less(t, testutil.Receive(t, written, waitTimeout), len(payload))
}

// TestE2E_DefaultHost 测试默认主机绑定
func TestE2E_DefaultHost(t *testing.T) {
	s := newLoopServer(t)

	listening := make(chan struct{})
	require.NoError(t, s.Listen(ListenOptions{OnListening: func() { close(listening) }}))
	s.Start()
	testutil.WaitClosed(t, listening, waitTimeout, "应该触发 listening")

	addr := s.Address()
	require.NotNil(t, addr)
	assert.NotZero(t, addr.Port)
	assert.True(t, addr.IsUnspecified())

	stopAndWait(t, s)
}

// TestE2E_StreamEcho 测试阻塞式适配器回显
func TestE2E_StreamEcho(t *testing.T) {
	s := newLoopServer(t)

	var wg sync.WaitGroup
	s.OnClientConnected(func(c *Connection) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rw := c.Stream()
			defer rw.Close()
			_, _ = io.Copy(rw, rw)
		}()
	})
	listenAndStart(t, s)

	client := dial(t, s)
	require.NoError(t, client.SetDeadline(time.Now().Add(waitTimeout)))

	for _, msg := range []string{"hello", "world"} {
		_, err := client.Write([]byte(msg))
		require.NoError(t, err)
		buf := make([]byte, len(msg))
		_, err = io.ReadFull(client, buf)
		require.NoError(t, err)
		assert.Equal(t, msg, string(buf))
	}
	require.NoError(t, client.Close())

	testutil.Eventually(t, waitTimeout, func() bool {
		return s.ConnectionsCount() == 0
	}, "回显连接应该关闭")
	wg.Wait()

	stopAndWait(t, s)
}
