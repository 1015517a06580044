package transport

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Recorder 装饰 Transport，保存设备侧收到的全部字节作为会话记录。
// 只记录读方向：设备会回显普通输入，但不会回显密码。
type Recorder struct {
	Transport

	entry   *logrus.Entry
	verbose atomic.Bool

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewRecorder 包装 t；verbose 为 true 时每次读取都输出到 entry
func NewRecorder(t Transport, entry *logrus.Entry, verbose bool) *Recorder {
	r := &Recorder{Transport: t, entry: entry}
	r.verbose.Store(verbose)
	return r
}

// SetVerbose 切换逐次输出
func (r *Recorder) SetVerbose(v bool) { r.verbose.Store(v) }

// Verbose 当前是否逐次输出
func (r *Recorder) Verbose() bool { return r.verbose.Load() }

func (r *Recorder) Read(ctx context.Context, terminator string, mode ReadMode) ([]byte, error) {
	data, err := r.Transport.Read(ctx, terminator, mode)
	r.record("read", data, logrus.Fields{"terminator": terminator, "mode": mode.String()})
	return data, err
}

func (r *Recorder) Flush(ctx context.Context) ([]byte, error) {
	data, err := r.Transport.Flush(ctx)
	r.record("flush", data, nil)
	return data, err
}

func (r *Recorder) record(op string, data []byte, fields logrus.Fields) {
	if len(data) == 0 {
		return
	}
	r.mu.Lock()
	r.buf.Write(data)
	r.mu.Unlock()
	if r.verbose.Load() && r.entry != nil {
		r.entry.WithFields(fields).WithField("bytes", len(data)).Infof("[%s] %s", op, data)
	}
}

// Transcript 返回目前为止的会话记录副本
func (r *Recorder) Transcript() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Clone(r.buf.Bytes())
}
