// Package simulate 本地模拟网络设备，提供 SSH 与 Telnet 两种接入，
// 按设备家族模拟提示符、模式切换、enable 密码与分页。
package simulate

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPassword 未配置密码的设备使用的登录密码
const DefaultPassword = "nova"

// Config simulate.yaml 配置结构
type Config struct {
	Listen      string `mapstructure:"listen"`
	SSHPort     int    `mapstructure:"ssh_port"`
	TelnetPort  int    `mapstructure:"telnet_port"`
	IdleSeconds int    `mapstructure:"idle_seconds"`
	MaxConn     int    `mapstructure:"max_conn"`
	// Devices 以登录用户名作为设备名
	Devices map[string]DeviceConfig `mapstructure:"devices"`
}

// DeviceConfig 单台模拟设备
type DeviceConfig struct {
	Family   string `mapstructure:"family"`
	Hostname string `mapstructure:"hostname"`
	Password string `mapstructure:"password"`
	// Secret 为空时 enable 不询问密码
	Secret string `mapstructure:"secret"`
	// Outputs 命令到输出的映射，覆盖内置输出
	Outputs map[string]string `mapstructure:"outputs"`
}

// LoadConfig 读取 simulate.yaml
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetDefault("listen", "127.0.0.1")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig 每个内置家族一台设备，监听随机端口
func DefaultConfig() *Config {
	return &Config{
		Listen: "127.0.0.1",
		Devices: map[string]DeviceConfig{
			"ios1":    {Family: "cisco_ios", Hostname: "ios1", Secret: "enablepw"},
			"junos1":  {Family: "junos", Hostname: "junos1"},
			"h3c1":    {Family: "comware", Hostname: "h3c1"},
			"huawei1": {Family: "huawei_vrp", Hostname: "huawei1"},
		},
	}
}

// Validate 检查设备家族是否受支持
func (c *Config) Validate() error {
	for name, d := range c.Devices {
		if _, ok := dialects[strings.ToLower(d.Family)]; !ok {
			return fmt.Errorf("simulate device %q: unsupported family %q", name, d.Family)
		}
	}
	return nil
}

func (c *Config) device(user string) (DeviceConfig, bool) {
	d, ok := c.Devices[strings.ToLower(strings.TrimSpace(user))]
	if !ok {
		return DeviceConfig{}, false
	}
	if d.Hostname == "" {
		d.Hostname = user
	}
	if d.Password == "" {
		d.Password = DefaultPassword
	}
	d.Family = strings.ToLower(d.Family)
	return d, true
}
