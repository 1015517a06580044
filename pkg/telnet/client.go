// Package telnet 基于 github.com/ziutek/telnet 实现 transport.Transport。
//
// 读取循环按块进行：每块最多 128 字节，遇到换行或缓冲区暂无数据即结束。
// 字面量模式将每块去掉首尾空白后与终止符比较；正则模式只检测最新的一块，
// 因此跨块边界的提示符可能匹配不到，这一点与旧实现保持一致。
package telnet

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ziutek/telnet"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
	"github.com/sshcollectorpro/clisession/pkg/transport"
)

// DefaultPort telnet 标准端口
const DefaultPort = 23

// ChunkSize 单次读取的最大字节数
const ChunkSize = 128

func init() {
	transport.Register("telnet", DefaultPort, New)
}

var (
	loginPrompt    = regexp.MustCompile(`(?i)(user ?name|login)\s*:\s*$`)
	passwordPrompt = regexp.MustCompile(`(?i)password\s*:\s*$`)
	anyAuthPrompt  = `(?i)((user ?name|login)|password)\s*:\s*$`
	loginFailures  = []string{"login invalid", "authentication failed", "login incorrect", "access denied", "bad password"}
)

// Client telnet 通道
type Client struct {
	opts transport.Options
	log  *logrus.Entry

	mu     sync.Mutex
	conn   *telnet.Conn
	closed bool

	// 已读取但尚未消费的块
	pending [][]byte
}

// New 构造未连接的 telnet Transport
func New(opts transport.Options) (transport.Transport, error) {
	opts = opts.WithDefaults()
	if opts.Hostname == "" {
		return nil, clierr.Configurationf("telnet: hostname is required")
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	return &Client{opts: opts, log: opts.Logger.WithField("transport", "telnet")}, nil
}

func (c *Client) address() string {
	return net.JoinHostPort(c.opts.Hostname, strconv.Itoa(c.opts.Port))
}

func (c *Client) Connect(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: c.opts.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", c.address())
	if err != nil {
		return clierr.Wrap(clierr.ErrConnection, err, "dial %s", c.address())
	}
	conn, err := telnet.NewConn(raw)
	if err != nil {
		_ = raw.Close()
		return clierr.Wrap(clierr.ErrConnection, err, "telnet negotiate %s", c.address())
	}
	// 写入时把 \n 转换为 \r\n
	conn.SetUnixWriteMode(true)
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.log.Debugf("telnet connected to %s", c.address())
	return nil
}

// Login 等待用户名/密码提示并提交凭据；两者都为空时不做任何事
func (c *Client) Login(ctx context.Context, username, password string) error {
	if username == "" && password == "" {
		return nil
	}
	prompt, err := c.readAll(ctx, anyAuthPrompt)
	if err != nil {
		return clierr.Wrap(clierr.ErrAuthentication, err, "no login prompt from %s", c.address())
	}
	if loginPrompt.Match(bytes.TrimRight(prompt, " \r\n")) {
		if err := c.Write([]byte(username + "\n")); err != nil {
			return err
		}
		if _, err := c.readAll(ctx, passwordPrompt.String()); err != nil {
			return clierr.Wrap(clierr.ErrAuthentication, err, "no password prompt after username")
		}
	}
	if err := c.Write([]byte(password + "\n")); err != nil {
		return err
	}

	after, err := c.Flush(ctx)
	if err != nil {
		return err
	}
	lower := strings.ToLower(string(after))
	for _, f := range loginFailures {
		if strings.Contains(lower, f) {
			return clierr.Wrap(clierr.ErrAuthentication, nil, "telnet login as %q rejected: %s", username, f)
		}
	}
	if loginPrompt.Match(bytes.TrimRight(after, " \r\n")) {
		return clierr.Wrap(clierr.ErrAuthentication, nil, "telnet login as %q rejected", username)
	}
	// 登录后的横幅与提示符留给会话的提示符同步读取
	c.unread(after)
	return nil
}

// readAll 登录阶段按完整缓冲区匹配，提示符较短且可能被拆分
func (c *Client) readAll(ctx context.Context, pattern string) ([]byte, error) {
	m, err := transport.NewMatcher(pattern, transport.ReadRegex)
	if err != nil {
		return nil, err
	}
	var acc []byte
	deadline := time.Now().Add(c.opts.ReadTimeout)
	for {
		chunk, err := c.nextChunk(ctx, deadline)
		acc = append(acc, chunk...)
		if m.Match(acc) {
			return acc, nil
		}
		if err != nil {
			return acc, err
		}
	}
}

func (c *Client) Write(data []byte) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.ReadTimeout))
	if _, err := conn.Write(data); err != nil {
		return c.classify(err, "telnet write")
	}
	return nil
}

func (c *Client) Read(ctx context.Context, terminator string, mode transport.ReadMode) ([]byte, error) {
	var match func(chunk []byte) bool
	switch mode {
	case transport.ReadLiteral:
		want := strings.TrimSpace(terminator)
		match = func(chunk []byte) bool { return strings.TrimSpace(string(chunk)) == want }
	case transport.ReadRegex:
		m, err := transport.NewMatcher(terminator, mode)
		if err != nil {
			return nil, err
		}
		match = m.Match
	default:
		return nil, clierr.Configurationf("unknown read mode %d", int(mode))
	}

	var acc []byte
	deadline := time.Now().Add(c.opts.ReadTimeout)
	for {
		chunk, err := c.nextChunk(ctx, deadline)
		if len(chunk) > 0 {
			acc = append(acc, chunk...)
			if match(chunk) {
				return acc, nil
			}
		}
		if err != nil {
			return acc, err
		}
	}
}

// Flush 读取直到 FlushQuiet 内没有新数据
func (c *Client) Flush(ctx context.Context) ([]byte, error) {
	var acc []byte
	limit := time.Now().Add(c.opts.ReadTimeout)
	for time.Now().Before(limit) {
		chunk, err := c.nextChunk(ctx, time.Now().Add(c.opts.FlushQuiet))
		acc = append(acc, chunk...)
		if errors.Is(err, clierr.ErrReadTimeout) {
			return acc, nil
		}
		if err != nil {
			return acc, err
		}
	}
	return acc, nil
}

// nextChunk 返回下一块数据：优先消费 pending，否则从连接读取最多 ChunkSize 字节并按换行切分
func (c *Client) nextChunk(ctx context.Context, deadline time.Time) ([]byte, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		chunk := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		return chunk, nil
	}
	c.mu.Unlock()

	conn, err := c.current()
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	buf := make([]byte, ChunkSize)
	n, err := conn.Read(buf)
	if n > 0 {
		pieces := splitLines(buf[:n])
		c.mu.Lock()
		c.pending = append(c.pending, pieces[1:]...)
		c.mu.Unlock()
		return pieces[0], nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, c.classify(err, "telnet read")
	}
	return nil, nil
}

// unread 把数据放回 pending 队首
func (c *Client) unread(data []byte) {
	if len(data) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(splitLines(data), c.pending...)
}

// splitLines 按换行切分，每段保留结尾的换行
func splitLines(b []byte) [][]byte {
	var out [][]byte
	for len(b) > 0 {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			out = append(out, bytes.Clone(b))
			break
		}
		out = append(out, bytes.Clone(b[:i+1]))
		b = b[i+1:]
	}
	return out
}

func (c *Client) current() (*telnet.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return nil, clierr.Wrap(clierr.ErrClosed, nil, "telnet not connected")
	}
	return c.conn, nil
}

func (c *Client) classify(err error, op string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return clierr.Wrap(clierr.ErrClosed, err, "%s", op)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return clierr.Wrap(clierr.ErrReadTimeout, nil, "%s: no terminator within %s", op, c.opts.ReadTimeout)
	}
	return clierr.Wrap(clierr.ErrClosed, err, "%s", op)
}

// Disconnect 关闭连接，可重复调用
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	c.log.Debugf("telnet disconnected from %s", c.address())
	return c.conn.Close()
}
