// Package ssh 基于 golang.org/x/crypto/ssh 的 PTY Shell 通道实现 transport.Transport。
package ssh

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
	"github.com/sshcollectorpro/clisession/pkg/transport"
)

// DefaultPort ssh 标准端口
const DefaultPort = 22

func init() {
	transport.Register("ssh", DefaultPort, New)
}

// 终端类型回退顺序，部分设备只接受 vt100
var termTypes = []string{"vt100", "xterm", "ansi", "dumb"}

// Client 一条 SSH 连接上的交互式 Shell 会话
type Client struct {
	opts transport.Options
	log  *logrus.Entry

	mu      sync.Mutex
	conn    net.Conn
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stream  *transport.Stream

	done      chan struct{}
	closeOnce sync.Once
}

// New 构造未连接的 SSH Transport
func New(opts transport.Options) (transport.Transport, error) {
	opts = opts.WithDefaults()
	if opts.Hostname == "" {
		return nil, clierr.Configurationf("ssh: hostname is required")
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	return &Client{
		opts: opts,
		log:  opts.Logger.WithField("transport", "ssh"),
		done: make(chan struct{}),
	}, nil
}

func (c *Client) address() string {
	return net.JoinHostPort(c.opts.Hostname, strconv.Itoa(c.opts.Port))
}

// Connect 建立 TCP 连接，SSH 握手在 Login 中进行
func (c *Client) Connect(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: c.opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.address())
	if err != nil {
		return clierr.Wrap(clierr.ErrConnection, err, "dial %s", c.address())
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.log.Debugf("tcp connected to %s", c.address())
	return nil
}

// clientConfig 构建客户端配置，兼容旧设备的密钥交换、加密与 MAC 算法
func (c *Client) clientConfig(username, password string) *ssh.ClientConfig {
	cfg := &ssh.ClientConfig{
		User:            username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.opts.ConnectTimeout,
	}
	if c.opts.LegacyAlgorithms {
		cfg.Config = ssh.Config{
			KeyExchanges: []string{
				"curve25519-sha256",
				"curve25519-sha256@libssh.org",
				"ecdh-sha2-nistp256",
				"ecdh-sha2-nistp384",
				"ecdh-sha2-nistp521",
				"diffie-hellman-group14-sha256",
				"diffie-hellman-group-exchange-sha256",
				"diffie-hellman-group14-sha1",
				"diffie-hellman-group-exchange-sha1",
				"diffie-hellman-group1-sha1",
			},
			Ciphers: []string{
				"aes128-gcm@openssh.com",
				"aes256-gcm@openssh.com",
				"chacha20-poly1305@openssh.com",
				"aes128-ctr",
				"aes192-ctr",
				"aes256-ctr",
				"aes128-cbc",
				"3des-cbc",
			},
			MACs: []string{
				"hmac-sha2-256-etm@openssh.com",
				"hmac-sha2-256",
				"hmac-sha1",
				"hmac-sha1-96",
			},
		}
		cfg.HostKeyAlgorithms = []string{
			"ssh-ed25519",
			"rsa-sha2-256",
			"rsa-sha2-512",
			"ecdsa-sha2-nistp256",
			"ecdsa-sha2-nistp384",
			"ecdsa-sha2-nistp521",
			"ssh-rsa",
		}
	}

	if password != "" {
		// 同时提供 password 与 keyboard-interactive，H3C/Cisco 等设备常用后者
		cfg.Auth = append(cfg.Auth,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}
	if signers := c.loadSigners(); len(signers) > 0 {
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signers...))
	}
	return cfg
}

// loadSigners 读取私钥文件，未配置时尝试 ~/.ssh 下的默认密钥；无法解析的文件跳过
func (c *Client) loadSigners() []ssh.Signer {
	files := c.opts.KeyFiles
	if len(files) == 0 {
		if home, err := os.UserHomeDir(); err == nil {
			files = []string{
				filepath.Join(home, ".ssh", "id_ed25519"),
				filepath.Join(home, ".ssh", "id_rsa"),
			}
		}
	}
	var signers []ssh.Signer
	for _, f := range files {
		pem, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		s, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			c.log.Debugf("skip key file %s: %v", f, err)
			continue
		}
		signers = append(signers, s)
	}
	return signers
}

// Login 完成 SSH 握手并打开 PTY Shell；凭据为空时只使用密钥或 none 认证
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return clierr.Wrap(clierr.ErrConnection, nil, "login before connect")
	}

	// 握手阶段使用连接超时，完成后清除
	_ = conn.SetDeadline(time.Now().Add(c.opts.ConnectTimeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, c.address(), c.clientConfig(username, password))
	if err != nil {
		_ = conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return clierr.Wrap(clierr.ErrAuthentication, err, "ssh login as %q", username)
		}
		return clierr.Wrap(clierr.ErrConnection, err, "ssh handshake with %s", c.address())
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return clierr.Wrap(clierr.ErrConnection, err, "open session")
	}
	if err := requestPty(session); err != nil {
		_ = client.Close()
		return clierr.Wrap(clierr.ErrConnection, err, "request pty")
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		_ = client.Close()
		return clierr.Wrap(clierr.ErrConnection, err, "stdin pipe")
	}
	// stdout 与 stderr 合并到同一条流，提示符可能出现在任意一路
	pr, pw := io.Pipe()
	session.Stdout = pw
	session.Stderr = pw
	if err := session.Shell(); err != nil {
		_ = client.Close()
		return clierr.Wrap(clierr.ErrConnection, err, "start shell")
	}
	go func() {
		err := session.Wait()
		if err == nil {
			err = io.EOF
		}
		_ = pw.CloseWithError(err)
	}()

	c.mu.Lock()
	c.client = client
	c.session = session
	c.stdin = stdin
	c.stream = transport.NewStream(pr)
	c.mu.Unlock()

	go c.keepAlive()
	c.log.Debugf("ssh shell opened on %s as %q", c.address(), username)
	return nil
}

func requestPty(session *ssh.Session) error {
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	var lastErr error
	for _, term := range termTypes {
		if lastErr = session.RequestPty(term, 200, 512, modes); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) Write(data []byte) error {
	c.mu.Lock()
	stdin := c.stdin
	c.mu.Unlock()
	if stdin == nil {
		return clierr.Wrap(clierr.ErrClosed, nil, "ssh shell not open")
	}
	if _, err := stdin.Write(data); err != nil {
		return clierr.Wrap(clierr.ErrClosed, err, "ssh write")
	}
	return nil
}

func (c *Client) Read(ctx context.Context, terminator string, mode transport.ReadMode) ([]byte, error) {
	m, err := transport.NewMatcher(terminator, mode)
	if err != nil {
		return nil, err
	}
	stream, err := c.currentStream()
	if err != nil {
		return nil, err
	}
	return stream.ReadUntil(ctx, m, c.opts.ReadTimeout)
}

func (c *Client) Flush(ctx context.Context) ([]byte, error) {
	stream, err := c.currentStream()
	if err != nil {
		return nil, err
	}
	return stream.Drain(ctx, c.opts.FlushQuiet, c.opts.ReadTimeout)
}

func (c *Client) currentStream() (*transport.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil, clierr.Wrap(clierr.ErrClosed, nil, "ssh shell not open")
	}
	return c.stream, nil
}

// Disconnect 关闭会话与连接，关闭后阻塞中的 Read 返回 clierr.ErrClosed
func (c *Client) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.stream != nil {
			c.stream.Close()
		}
		if c.session != nil {
			_ = c.session.Close()
		}
		if c.client != nil {
			err = c.client.Close()
		} else if c.conn != nil {
			err = c.conn.Close()
		}
		c.log.Debugf("ssh disconnected from %s", c.address())
	})
	if err != nil && !isClosedErr(err) {
		return fmt.Errorf("ssh disconnect: %w", err)
	}
	return nil
}

func isClosedErr(err error) bool {
	return err == io.EOF || strings.Contains(err.Error(), "use of closed network connection")
}

// keepAlive 定期发送 keepalive 请求，不等待回复，避免不支持该请求的设备报错
func (c *Client) keepAlive() {
	if c.opts.KeepAlive <= 0 {
		return
	}
	ticker := time.NewTicker(c.opts.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			client := c.client
			c.mu.Unlock()
			if client == nil {
				return
			}
			if _, _, err := client.SendRequest("keepalive@openssh.com", false, nil); err != nil {
				c.log.Debugf("keepalive failed: %v", err)
				return
			}
		}
	}
}
