package tcpserver

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcpserver/tests/mocks"
	"github.com/dep2p/go-tcpserver/tests/testutil"
)

const waitTimeout = 5 * time.Second

// countingRecorder 计数的指标上报器
type countingRecorder struct {
	accepted, rejected, closed atomic.Int64
	read, written              atomic.Int64
	errors, retries            atomic.Int64
}

func (r *countingRecorder) ConnAccepted()      { r.accepted.Add(1) }
func (r *countingRecorder) ConnRejected()      { r.rejected.Add(1) }
func (r *countingRecorder) ConnClosed()        { r.closed.Add(1) }
func (r *countingRecorder) BytesRead(n int)    { r.read.Add(int64(n)) }
func (r *countingRecorder) BytesWritten(n int) { r.written.Add(int64(n)) }
func (r *countingRecorder) Error(string)       { r.errors.Add(1) }
func (r *countingRecorder) CloseRetry()        { r.retries.Add(1) }

// newMockServer 创建使用模拟引擎的服务器
func newMockServer(t *testing.T, opts ...Option) (*Server, *mocks.Engine) {
	t.Helper()
	e := mocks.NewEngine()
	base := []Option{
		WithEngineFactory(e.Factory()),
		WithWorkers(2),
		WithoutMetrics(),
	}
	s, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return s, e
}

// listenAndStart 监听回环地址并启动
func listenAndStart(t *testing.T, s *Server) {
	t.Helper()
	require.NoError(t, s.Listen(ListenOptions{Host: "127.0.0.1"}))
	s.Start()
}

// acceptConn 模拟一个连接并等待服务器接纳
func acceptConn(t *testing.T, s *Server, e *mocks.Engine, h *mocks.ConnHandle) *Connection {
	t.Helper()
	connected := make(chan *Connection, 1)
	id := s.OnClientConnected(func(c *Connection) { connected <- c })
	defer s.RemoveHandler(EventClientConnected, id)

	if h == nil {
		h = mocks.NewConnHandle(e)
	}
	require.True(t, e.AcceptHandle(h))
	return testutil.Receive(t, connected, waitTimeout)
}

// stopAndWait 停止服务器并等待 CLOSED
func stopAndWait(t *testing.T, s *Server) {
	t.Helper()
	require.NoError(t, s.Stop())
	testutil.WaitClosed(t, s.Done(), waitTimeout, "服务器应该关闭")
}
