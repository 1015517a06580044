package profile

import (
	"fmt"
	"strings"
)

// Mode 设备 CLI 的操作级别
type Mode int

const (
	// ModeShell 登录后的基础提示符
	ModeShell Mode = iota + 1
	// ModeOperational 特权/操作模式（enable、Junos cli）
	ModeOperational
	// ModeConfiguration 配置模式
	ModeConfiguration
)

var modeNames = map[Mode]string{
	ModeShell:         "shell",
	ModeOperational:   "operational",
	ModeConfiguration: "configuration",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Valid 是否为已定义的模式
func (m Mode) Valid() bool { return m >= ModeShell && m <= ModeConfiguration }

// ParseMode 解析模式名，接受 cli/operation/configure 等批处理操作名
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shell", "cli", "user":
		return ModeShell, nil
	case "operational", "operation", "privileged", "enable":
		return ModeOperational, nil
	case "configuration", "configure", "config":
		return ModeConfiguration, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
