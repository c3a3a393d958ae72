package tcpserver

import (
	"errors"
	"io"

	"github.com/dep2p/go-tcpserver/pkg/types"
)

// Stream 返回连接的阻塞式读写适配器
//
// 适配器的完成回调直接在引擎 goroutine 上送达，
// 因此可以在事件处理器（工作池）中阻塞使用而不会占死工作协程。
// 同一时刻只能有一个 goroutine 读、一个 goroutine 写。
func (c *Connection) Stream() io.ReadWriteCloser {
	return &stream{c: c}
}

// stream 阻塞式读写适配器
type stream struct {
	c *Connection
}

// Read 读取数据，连接结束或关闭时返回 io.EOF
func (s *stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	done := make(chan int, 1)
	for {
		if err := s.c.read(p, func(n int) { done <- n }, true); err != nil {
			if errors.Is(err, ErrChannelClosed) {
				return 0, io.EOF
			}
			return 0, err
		}

		n := <-done
		switch {
		case n > 0:
			return n, nil
		case n < 0:
			return 0, io.EOF
		case s.c.State() != types.ConnOpen:
			return 0, io.EOF
		}
	}
}

// Write 写出全部数据
func (s *stream) Write(p []byte) (int, error) {
	done := make(chan int, 1)
	written := 0
	for len(p) > 0 {
		if err := s.c.write(p, func(n int) { done <- n }, true); err != nil {
			return written, err
		}

		n := <-done
		if n <= 0 {
			if s.c.State() != types.ConnOpen {
				return written, ErrChannelClosed
			}
			return written, io.ErrShortWrite
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

// Close 关闭连接
func (s *stream) Close() error {
	return s.c.Close()
}
