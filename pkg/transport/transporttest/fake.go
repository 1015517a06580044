// Package transporttest 提供按脚本回放设备输出的 Transport，用于自动机与清洗测试。
package transporttest

import (
	"context"
	"sync"
	"time"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
	"github.com/sshcollectorpro/clisession/pkg/transport"
)

// Fake 脚本化 Transport：每次 Write 按输入查找预设回复追加到读缓冲区。
// 同一输入注册多次回复时依次消费，耗尽后重复最后一条。未注册的输入不产生输出。
type Fake struct {
	mu        sync.Mutex
	replies   map[string][]string
	pending   []byte
	writes    []string
	logins    [][2]string
	connected bool
	closed    chan struct{}
	closeOnce sync.Once
	discCount int

	// ConnectErr / LoginErr 非空时对应操作直接失败
	ConnectErr error
	LoginErr   error
	// ReadTimeout 缓冲区不匹配时等待的时长
	ReadTimeout time.Duration
}

// New 创建 Fake
func New() *Fake {
	return &Fake{
		replies:     make(map[string][]string),
		closed:      make(chan struct{}),
		ReadTimeout: 30 * time.Millisecond,
	}
}

// Banner 预置连接后立即可读的数据（横幅与首个提示符）
func (f *Fake) Banner(s string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, s...)
	return f
}

// Expect 注册输入 in 的回复 out
func (f *Fake) Expect(in, out string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[in] = append(f.replies[in], out)
	return f
}

// Writes 已写入的数据
func (f *Fake) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// Logins 已提交的凭据
func (f *Fake) Logins() [][2]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]string(nil), f.logins...)
}

// Disconnects Disconnect 被调用的次数
func (f *Fake) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discCount
}

// Connected 是否处于已连接状态
func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Fake) Connect(ctx context.Context) error {
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) Login(ctx context.Context, username, password string) error {
	f.mu.Lock()
	f.logins = append(f.logins, [2]string{username, password})
	f.mu.Unlock()
	if username == "" && password == "" {
		return nil
	}
	return f.LoginErr
}

func (f *Fake) Write(data []byte) error {
	select {
	case <-f.closed:
		return clierr.Wrap(clierr.ErrClosed, nil, "write after disconnect")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	in := string(data)
	f.writes = append(f.writes, in)
	queue := f.replies[in]
	if len(queue) == 0 {
		return nil
	}
	f.pending = append(f.pending, queue[0]...)
	if len(queue) > 1 {
		f.replies[in] = queue[1:]
	}
	return nil
}

func (f *Fake) Read(ctx context.Context, terminator string, mode transport.ReadMode) ([]byte, error) {
	m, err := transport.NewMatcher(terminator, mode)
	if err != nil {
		return nil, err
	}
	if out, ok := f.take(m); ok {
		return out, nil
	}
	timer := time.NewTimer(f.ReadTimeout)
	defer timer.Stop()
	select {
	case <-f.closed:
		out, _ := f.take(nil)
		return out, clierr.Wrap(clierr.ErrClosed, nil, "read interrupted by disconnect")
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		out, _ := f.take(nil)
		return out, clierr.Wrap(clierr.ErrReadTimeout, nil, "no %s terminator %q", mode, terminator)
	}
}

// take 匹配时取出整个缓冲区；m 为 nil 时无条件取出
func (f *Fake) take(m *transport.Matcher) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m != nil && !m.Match(f.pending) {
		return nil, false
	}
	out := f.pending
	f.pending = nil
	return out, true
}

func (f *Fake) Flush(ctx context.Context) ([]byte, error) {
	out, _ := f.take(nil)
	return out, nil
}

func (f *Fake) Disconnect() error {
	f.mu.Lock()
	f.discCount++
	f.connected = false
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}
