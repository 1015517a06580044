package simulate

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/clisession/pkg/logger"
)

// Manager 管理 SSH 与 Telnet 两个监听
type Manager struct {
	mu     sync.RWMutex
	cfg    *Config
	log    *logrus.Entry
	signer ssh.Signer

	ssh    net.Listener
	telnet net.Listener

	active int
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Start 启动模拟服务，端口为 0 时随机分配
func Start(cfg *Config, log *logrus.Entry) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	// host key 仅保存在内存，每次启动重新生成
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to init host key: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{cfg: cfg, log: log.WithField("component", "simulate"), signer: signer, ctx: ctx, cancel: cancel}

	host := cfg.Listen
	if host == "" {
		host = "127.0.0.1"
	}
	if m.ssh, err = net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(cfg.SSHPort))); err != nil {
		cancel()
		return nil, fmt.Errorf("simulate ssh listen: %w", err)
	}
	if m.telnet, err = net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(cfg.TelnetPort))); err != nil {
		_ = m.ssh.Close()
		cancel()
		return nil, fmt.Errorf("simulate telnet listen: %w", err)
	}
	go m.accept(m.ssh, m.handleSSH)
	go m.accept(m.telnet, m.handleTelnet)
	m.log.Infof("simulate: ssh on %s, telnet on %s, %d devices", m.SSHAddr(), m.TelnetAddr(), len(cfg.Devices))
	return m, nil
}

// SSHAddr SSH 监听地址
func (m *Manager) SSHAddr() string { return m.ssh.Addr().String() }

// TelnetAddr Telnet 监听地址
func (m *Manager) TelnetAddr() string { return m.telnet.Addr().String() }

// Reload 替换设备表，已建立的连接不受影响
func (m *Manager) Reload(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	m.log.Infof("simulate: reloaded, %d devices", len(cfg.Devices))
	return nil
}

// Stop 关闭监听并等待所有连接结束
func (m *Manager) Stop() {
	m.cancel()
	_ = m.ssh.Close()
	_ = m.telnet.Close()
	m.wg.Wait()
}

func (m *Manager) config() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) accept(ln net.Listener, handle func(net.Conn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(200 * time.Millisecond)
				continue
			}
			return
		}
		cfg := m.config()
		m.mu.Lock()
		if cfg.MaxConn > 0 && m.active >= cfg.MaxConn {
			m.mu.Unlock()
			_ = conn.Close()
			m.log.Warnf("simulate: reject %s, max_conn exceeded", conn.RemoteAddr())
			continue
		}
		m.active++
		m.mu.Unlock()

		m.wg.Add(1)
		go func(c net.Conn) {
			defer m.wg.Done()
			// Stop 时强制断开仍在进行的会话
			stop := context.AfterFunc(m.ctx, func() { _ = c.Close() })
			defer stop()
			handle(c)
			_ = c.Close()
			m.mu.Lock()
			m.active--
			m.mu.Unlock()
		}(conn)
	}
}

func (m *Manager) idle() time.Duration {
	return time.Duration(m.config().IdleSeconds) * time.Second
}

func (m *Manager) handleSSH(nc net.Conn) {
	cfg := m.config()
	check := func(user, password string) (*ssh.Permissions, error) {
		dev, ok := cfg.device(user)
		if !ok || password != dev.Password {
			return nil, fmt.Errorf("access denied")
		}
		return &ssh.Permissions{Extensions: map[string]string{"device": user}}, nil
	}
	srvCfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			return check(c.User(), string(password))
		},
		KeyboardInteractiveCallback: func(c ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(c.User(), "", []string{"Password:"}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) == 0 {
				return nil, fmt.Errorf("access denied")
			}
			return check(c.User(), answers[0])
		},
	}
	srvCfg.AddHostKey(m.signer)

	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		m.log.Debugf("simulate: ssh handshake failed from %s: %v", nc.RemoteAddr(), err)
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	dev, _ := cfg.device(conn.Permissions.Extensions["device"])
	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			m.log.Debugf("simulate: channel accept failed: %v", err)
			continue
		}
		go m.handleSession(channel, requests, dev)
	}
}

func (m *Manager) handleSession(channel ssh.Channel, requests <-chan *ssh.Request, dev DeviceConfig) {
	defer channel.Close()
	for req := range requests {
		switch req.Type {
		case "pty-req", "env", "window-change":
			_ = req.Reply(true, nil)
		case "shell":
			_ = req.Reply(true, nil)
			newShell(dev, channel, m.idle(), m.log).run(bufio.NewReader(channel), "")
			_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}

// handleTelnet 明文登录：Username/Password 提示，失败三次断开
func (m *Manager) handleTelnet(nc net.Conn) {
	cfg := m.config()
	r := bufio.NewReader(nc)
	readLine := func() (string, bool) {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return "", false
		}
		return strings.TrimRight(line, "\r\n\x00"), true
	}

	_, _ = io.WriteString(nc, "\r\nUser Access Verification\r\n\r\n")
	for attempt := 0; attempt < 3; attempt++ {
		_, _ = io.WriteString(nc, "Username: ")
		user, ok := readLine()
		if !ok {
			return
		}
		_, _ = io.WriteString(nc, user+"\r\nPassword: ")
		pass, ok := readLine()
		if !ok {
			return
		}
		_, _ = io.WriteString(nc, "\r\n")
		dev, found := cfg.device(user)
		if found && pass == dev.Password {
			newShell(dev, nc, m.idle(), m.log).run(r, "\r\n")
			return
		}
		_, _ = io.WriteString(nc, "% Login invalid\r\n\r\n")
	}
}
