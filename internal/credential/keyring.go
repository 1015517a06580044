// Package credential 解析配置与请求中的 keyring: 密码引用。
//
// 引用格式为 keyring:<key> 或 keyring:<service>/<key>，不带前缀的值按明文使用。
package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
)

// Prefix 密码引用前缀
const Prefix = "keyring:"

// Resolver 从系统 keyring 读取密码
type Resolver struct {
	// Service 引用中未指定 service 时使用
	Service string
}

// NewResolver 创建解析器，service 为空时使用 clisession
func NewResolver(service string) *Resolver {
	if service == "" {
		service = "clisession"
	}
	return &Resolver{Service: service}
}

// IsReference 判断值是否为 keyring 引用
func IsReference(v string) bool {
	return strings.HasPrefix(v, Prefix)
}

func (r *Resolver) split(ref string) (string, string, error) {
	body := strings.TrimPrefix(ref, Prefix)
	service, key := r.Service, body
	if i := strings.Index(body, "/"); i >= 0 {
		service, key = body[:i], body[i+1:]
	}
	if service == "" || key == "" {
		return "", "", clierr.Configurationf("malformed keyring reference %q", ref)
	}
	return service, key, nil
}

// Resolve 返回明文密码；非引用原样返回，引用不存在时返回配置错误
func (r *Resolver) Resolve(v string) (string, error) {
	if !IsReference(v) {
		return v, nil
	}
	service, key, err := r.split(v)
	if err != nil {
		return "", err
	}
	secret, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", clierr.Configurationf("keyring entry %s/%s not found", service, key)
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %s/%s: %w", service, key, err)
	}
	return secret, nil
}

// Store 写入密码并返回可放入配置的引用
func (r *Resolver) Store(key, secret string) (string, error) {
	if key == "" {
		return "", clierr.Configurationf("keyring key must be set")
	}
	if err := keyring.Set(r.Service, key, secret); err != nil {
		return "", fmt.Errorf("keyring set %s/%s: %w", r.Service, key, err)
	}
	return Prefix + r.Service + "/" + key, nil
}

// Delete 删除密码，条目不存在时不报错
func (r *Resolver) Delete(key string) error {
	if err := keyring.Delete(r.Service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s/%s: %w", r.Service, key, err)
	}
	return nil
}
