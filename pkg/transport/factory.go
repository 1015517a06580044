package transport

import (
	"sort"
	"strings"
	"sync"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
)

// DefaultProtocol 未指定协议时使用
const DefaultProtocol = "ssh"

// Constructor 按参数构造一个未连接的 Transport
type Constructor func(opts Options) (Transport, error)

type registration struct {
	port int
	ctor Constructor
}

// Factory 协议名到构造函数的注册中心
type Factory struct {
	mu    sync.RWMutex
	ctors map[string]registration
}

// NewFactory 创建空工厂
func NewFactory() *Factory {
	return &Factory{ctors: make(map[string]registration)}
}

// Default 进程级默认工厂，ssh / telnet 包在 init() 中注册
var Default = NewFactory()

// Register 注册到默认工厂
func Register(name string, defaultPort int, ctor Constructor) {
	Default.Register(name, defaultPort, ctor)
}

// Register 注册协议，同名覆盖
func (f *Factory) Register(name string, defaultPort int, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[strings.ToLower(name)] = registration{port: defaultPort, ctor: ctor}
}

// DefaultPort 返回协议的标准端口
func (f *Factory) DefaultPort(protocol string) (int, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.ctors[normalize(protocol)]
	return r.port, ok
}

// Protocols 已注册的协议名
func (f *Factory) Protocols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.ctors))
	for k := range f.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New 构造 Transport；未知协议返回 clierr.ErrConfiguration，端口为 0 时取协议默认端口
func (f *Factory) New(protocol string, opts Options) (Transport, error) {
	f.mu.RLock()
	r, ok := f.ctors[normalize(protocol)]
	f.mu.RUnlock()
	if !ok {
		return nil, clierr.Configurationf("unknown protocol %q", protocol)
	}
	if opts.Port == 0 {
		opts.Port = r.port
	}
	return r.ctor(opts.WithDefaults())
}

func normalize(protocol string) string {
	p := strings.ToLower(strings.TrimSpace(protocol))
	if p == "" {
		return DefaultProtocol
	}
	return p
}
