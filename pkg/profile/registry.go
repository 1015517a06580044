package profile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
)

// ErrNotFound 未知设备类型
var ErrNotFound = errors.New("device profile not found")

// Registry 设备家族注册中心，按规范化名称与别名查找
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	names    map[string]bool
}

// NewRegistry 创建空注册中心
func NewRegistry() *Registry {
	return &Registry{
		profiles: make(map[string]*Profile),
		names:    make(map[string]bool),
	}
}

// Default 内置家族在 init() 中注册到这里
var Default = NewRegistry()

// Register 注册到默认注册中心，失败时 panic，供 init() 使用
func Register(p *Profile) {
	if err := Default.Register(p); err != nil {
		panic(err)
	}
}

// Lookup 在默认注册中心查找
func Lookup(name string) (*Profile, error) {
	return Default.Lookup(name)
}

// Normalize 名称规范化：小写并去掉 _ - 和空白，CiscoIOS 与 cisco_ios 等价
func Normalize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ', '\t':
			return -1
		}
		return r
	}, strings.ToLower(name))
}

// Register 校验并注册；同名覆盖，用于自定义家族的热加载
func (r *Registry) Register(p *Profile) error {
	if err := p.Compile(); err != nil {
		return err
	}
	keys := append([]string{p.Name}, p.Aliases...)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		if n := Normalize(k); n != "" {
			r.profiles[n] = p
		}
	}
	r.names[p.Name] = true
	return nil
}

// Lookup 按名称或别名查找
func (r *Registry) Lookup(name string) (*Profile, error) {
	r.mu.RLock()
	p, ok := r.profiles[Normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", clierr.ErrConfiguration, ErrNotFound, name)
	}
	return p, nil
}

// Names 已注册家族的主名称，排序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Profiles 已注册家族，按名称排序
func (r *Registry) Profiles() []*Profile {
	names := r.Names()
	out := make([]*Profile, 0, len(names))
	for _, n := range names {
		if p, err := r.Lookup(n); err == nil {
			out = append(out, p)
		}
	}
	return out
}
