// Package device 校验连接参数，解析设备家族与传输协议并打开会话。
package device

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
	"github.com/sshcollectorpro/clisession/pkg/logger"
	"github.com/sshcollectorpro/clisession/pkg/profile"
	"github.com/sshcollectorpro/clisession/pkg/session"
	"github.com/sshcollectorpro/clisession/pkg/transport"

	// 注册内置传输协议
	_ "github.com/sshcollectorpro/clisession/pkg/ssh"
	_ "github.com/sshcollectorpro/clisession/pkg/telnet"
)

// Params 会话构造参数
type Params struct {
	DeviceType string `json:"device_type" mapstructure:"device_type"`
	Hostname   string `json:"hostname" mapstructure:"hostname"`
	// IP 与 Hostname 等价，Hostname 为空时使用
	IP       string `json:"ip,omitempty" mapstructure:"ip"`
	Port     int    `json:"port,omitempty" mapstructure:"port"`
	Protocol string `json:"protocol,omitempty" mapstructure:"protocol"`
	Username string `json:"username,omitempty" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Secret   string `json:"-" mapstructure:"secret"`
	Verbose  bool   `json:"verbose,omitempty" mapstructure:"verbose"`
	Raw      bool   `json:"raw,omitempty" mapstructure:"raw"`

	ConnectTimeout time.Duration `json:"connect_timeout,omitempty" mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout,omitempty" mapstructure:"read_timeout"`
}

// Host 实际连接的主机
func (p Params) Host() string {
	if h := strings.TrimSpace(p.Hostname); h != "" {
		return h
	}
	return strings.TrimSpace(p.IP)
}

// Validate 检查必填参数，不做任何网络 I/O
func (p Params) Validate() error {
	if strings.TrimSpace(p.DeviceType) == "" {
		return clierr.Configurationf("device_type must be set")
	}
	if p.Host() == "" {
		return clierr.Configurationf("hostname or ip must be set")
	}
	if p.Port < 0 || p.Port > 65535 {
		return clierr.Configurationf("port %d out of range", p.Port)
	}
	if p.ConnectTimeout < 0 || p.ReadTimeout < 0 {
		return clierr.Configurationf("timeouts must not be negative")
	}
	return nil
}

// Connector 打开会话所需的协作者
type Connector struct {
	Profiles   *profile.Registry
	Transports *transport.Factory
	Logger     *logrus.Entry

	// 以下为未在 Params 中指定时的默认值
	DefaultProtocol  string
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	FlushQuiet       time.Duration
	KeepAlive        time.Duration
	LegacyAlgorithms bool
	KeyFiles         []string
	DigestLines      int
	// Decode 设备输出解码，为空时按 UTF-8 处理
	Decode func([]byte) string
}

// NewConnector 使用默认注册中心
func NewConnector() *Connector {
	return &Connector{
		Profiles:         profile.Default,
		Transports:       transport.Default,
		LegacyAlgorithms: true,
	}
}

// Resolve 校验参数并解析家族与协议，返回传输参数；不创建 Transport
func (c *Connector) Resolve(p Params) (*profile.Profile, string, transport.Options, error) {
	if err := p.Validate(); err != nil {
		return nil, "", transport.Options{}, err
	}
	prof, err := c.Profiles.Lookup(p.DeviceType)
	if err != nil {
		return nil, "", transport.Options{}, err
	}
	protocol := strings.ToLower(strings.TrimSpace(p.Protocol))
	if protocol == "" {
		protocol = c.DefaultProtocol
	}
	if protocol == "" {
		protocol = transport.DefaultProtocol
	}
	if _, ok := c.Transports.DefaultPort(protocol); !ok {
		return nil, "", transport.Options{}, clierr.Configurationf("unknown protocol %q", p.Protocol)
	}

	opts := transport.Options{
		Hostname:         p.Host(),
		Port:             p.Port,
		ConnectTimeout:   firstPositive(p.ConnectTimeout, c.ConnectTimeout),
		ReadTimeout:      firstPositive(p.ReadTimeout, c.ReadTimeout),
		FlushQuiet:       c.FlushQuiet,
		KeepAlive:        c.KeepAlive,
		LegacyAlgorithms: c.LegacyAlgorithms,
		KeyFiles:         c.KeyFiles,
	}
	return prof, protocol, opts, nil
}

// Connect 打开会话：校验、连接、登录、同步提示符。任何一步失败都会释放已创建的 Transport。
func (c *Connector) Connect(ctx context.Context, p Params) (*session.Session, error) {
	prof, protocol, opts, err := c.Resolve(p)
	if err != nil {
		return nil, err
	}

	entry := c.Logger
	if entry == nil {
		entry = logger.Discard()
	}
	entry = entry.WithFields(logrus.Fields{"host": opts.Hostname, "protocol": protocol})
	opts.Logger = entry

	tr, err := c.Transports.New(protocol, opts)
	if err != nil {
		return nil, err
	}
	if err := tr.Connect(ctx); err != nil {
		_ = tr.Disconnect()
		return nil, err
	}
	if err := tr.Login(ctx, p.Username, p.Password); err != nil {
		_ = tr.Disconnect()
		return nil, err
	}

	s, err := session.New(tr, prof, session.Options{
		Secret:      p.Secret,
		Raw:         p.Raw,
		Verbose:     p.Verbose,
		DigestLines: c.DigestLines,
		Decode:      c.Decode,
		Logger:      entry,
	})
	if err != nil {
		_ = tr.Disconnect()
		return nil, err
	}
	if err := s.Sync(ctx); err != nil {
		_ = s.Disconnect()
		return nil, err
	}
	entry.WithField("device_type", prof.Name).Info("session opened")
	return s, nil
}

func firstPositive(v ...time.Duration) time.Duration {
	for _, d := range v {
		if d > 0 {
			return d
		}
	}
	return 0
}
