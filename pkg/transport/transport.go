// Package transport 定义设备 CLI 字节流通道的能力接口。
//
// 具体协议（ssh、telnet）在各自包的 init() 中注册到默认工厂，
// 会话自动机只依赖 Transport 接口，新增协议无需改动自动机。
package transport

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ReadMode 终止符匹配方式
type ReadMode int

const (
	// ReadLiteral 要求缓冲区以终止符字面量结尾（忽略尾部空白）
	ReadLiteral ReadMode = 1
	// ReadRegex 要求缓冲区最后一行满足正则（多行模式，$ 锚定行尾）
	ReadRegex ReadMode = 2
)

func (m ReadMode) String() string {
	switch m {
	case ReadLiteral:
		return "literal"
	case ReadRegex:
		return "regex"
	default:
		return "unknown"
	}
}

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 10 * time.Second
	DefaultFlushQuiet     = 300 * time.Millisecond
)

// Transport 单条设备连接的字节级通道。
// 一个 Transport 只属于一个会话，非并发安全；Disconnect 可从任意 goroutine 调用，
// 用于解除正在阻塞的 Read。
type Transport interface {
	// Connect 建立到设备的连接，失败返回 clierr.ErrConnection
	Connect(ctx context.Context) error
	// Login 提交凭据；用户名与密码均为空时直接成功（密钥或免密登录）
	Login(ctx context.Context, username, password string) error
	// Write 原样发送字节，不附加换行
	Write(data []byte) error
	// Read 阻塞直到缓冲区匹配终止符，返回截至目前读到的全部字节（含匹配部分）。
	// 超时返回 clierr.ErrReadTimeout，同时返回已读取的部分数据。
	Read(ctx context.Context, terminator string, mode ReadMode) ([]byte, error)
	// Flush 读取直到短暂静默，返回收集到的数据
	Flush(ctx context.Context) ([]byte, error)
	// Disconnect 关闭通道，可重复调用
	Disconnect() error
}

// Options 构造 Transport 的参数
type Options struct {
	Hostname       string
	Port           int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	FlushQuiet     time.Duration

	// 以下仅 ssh 使用
	LegacyAlgorithms bool
	KeyFiles         []string
	KeepAlive        time.Duration

	Logger *logrus.Entry
}

// WithDefaults 填充未设置的超时
func (o Options) WithDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.FlushQuiet <= 0 {
		o.FlushQuiet = DefaultFlushQuiet
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		o.Logger = logrus.NewEntry(l)
	}
	return o
}
