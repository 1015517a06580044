package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
)

// Stream 把阻塞的 io.Reader 转换为可带超时读取的块通道。
// 后台 goroutine 持续读取，直到底层返回错误（通常是连接被关闭）或 Close 被调用。
type Stream struct {
	chunks   chan []byte
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	errOnce  sync.Once
	err      error
}

// NewStream 启动读取 goroutine
func NewStream(r io.Reader) *Stream {
	s := &Stream{
		chunks: make(chan []byte, 256),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go s.pump(r)
	return s
}

func (s *Stream) pump(r io.Reader) {
	defer close(s.done)
	defer close(s.chunks)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.stop:
				s.setErr(clierr.Wrap(clierr.ErrClosed, nil, "stream closed"))
				return
			}
		}
		if err != nil {
			s.setErr(err)
			return
		}
	}
}

func (s *Stream) setErr(err error) {
	s.errOnce.Do(func() { s.err = err })
}

// Close 停止投递数据；阻塞在底层 Read 上的 goroutine 需要关闭连接才能退出
func (s *Stream) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done 读取 goroutine 退出后关闭
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err 读取结束的原因，未结束时为 nil
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// ReadUntil 累积数据直到 m 匹配；超时返回 clierr.ErrReadTimeout 与已读数据
func (s *Stream) ReadUntil(ctx context.Context, m *Matcher, timeout time.Duration) ([]byte, error) {
	var acc []byte
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return acc, clierr.Wrap(clierr.ErrClosed, s.err, "stream ended before terminator")
			}
			acc = append(acc, chunk...)
			if m.Match(acc) {
				return acc, nil
			}
		case <-s.stop:
			return acc, clierr.Wrap(clierr.ErrClosed, nil, "stream closed")
		case <-timer.C:
			return acc, clierr.Wrap(clierr.ErrReadTimeout, nil, "no %s terminator within %s", m.Mode(), timeout)
		case <-ctx.Done():
			return acc, ctx.Err()
		}
	}
}

// Drain 收集数据直到 quiet 时间内无新数据到达，或总时长达到 limit
func (s *Stream) Drain(ctx context.Context, quiet, limit time.Duration) ([]byte, error) {
	var acc []byte
	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	idle := time.NewTimer(quiet)
	defer idle.Stop()
	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return acc, nil
			}
			acc = append(acc, chunk...)
			idle.Reset(quiet)
		case <-s.stop:
			return acc, nil
		case <-idle.C:
			return acc, nil
		case <-deadline.C:
			return acc, nil
		case <-ctx.Done():
			return acc, ctx.Err()
		}
	}
}
