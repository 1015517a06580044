package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
)

// catalog YAML 文件结构
type catalog struct {
	Profiles []*Profile `yaml:"profiles"`
}

// LoadYAML 解析自定义家族目录并编译校验
func LoadYAML(data []byte) ([]*Profile, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: parse profile catalog: %v", clierr.ErrConfiguration, err)
	}
	for _, p := range c.Profiles {
		if err := p.Compile(); err != nil {
			return nil, err
		}
	}
	return c.Profiles, nil
}

// LoadFile 读取目录文件
func LoadFile(path string) ([]*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read profile catalog: %v", clierr.ErrConfiguration, err)
	}
	return LoadYAML(data)
}

// LoadFiles 读取目录文件并注册全部家族，返回注册的名称
func (r *Registry) LoadFiles(paths ...string) ([]string, error) {
	var names []string
	for _, path := range paths {
		profiles, err := LoadFile(path)
		if err != nil {
			return names, fmt.Errorf("%s: %w", path, err)
		}
		for _, p := range profiles {
			if err := r.Register(p); err != nil {
				return names, fmt.Errorf("%s: %w", path, err)
			}
			names = append(names, p.Name)
		}
	}
	return names, nil
}
