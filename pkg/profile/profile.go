// Package profile 描述设备家族的提示符与模式状态机。
//
// 每个模式对应一个 Level：终止符正则、进入该模式的步骤、离开该模式的步骤。
// 扁平 CLI 的家族（如 comware）不为 Operational 设置终止符，沿用 Shell 的终止符。
package profile

import (
	"regexp"
	"sync"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
	"github.com/sshcollectorpro/clisession/pkg/transport"
)

// Step 模式切换中的一次写入与读取
type Step struct {
	// Send 写入的命令，自动追加换行
	Send string `yaml:"send" json:"send"`
	// Secret 为 true 时写入会话的 secret 而不是 Send
	Secret bool `yaml:"secret,omitempty" json:"secret,omitempty"`
	// SecretPrompt 配置了 secret 时，写入 Send 后先按字面量读取该提示再写入 secret
	SecretPrompt string `yaml:"secret_prompt,omitempty" json:"secret_prompt,omitempty"`
	// Expect 自定义终止符；为空时使用 Until 模式的终止符
	Expect string `yaml:"expect,omitempty" json:"expect,omitempty"`
	// Literal Expect 按字面量匹配
	Literal bool `yaml:"literal,omitempty" json:"literal,omitempty"`
	// Until 步骤完成后设备所处的模式；为零值时进入步骤取本级，退出步骤取下一级
	Until Mode `yaml:"until,omitempty" json:"until,omitempty"`
	// NoWait 写入后不读取
	NoWait bool `yaml:"no_wait,omitempty" json:"no_wait,omitempty"`
}

// Level 一个模式的定义
type Level struct {
	Terminator string `yaml:"terminator,omitempty" json:"terminator,omitempty"`
	Enter      []Step `yaml:"enter,omitempty" json:"enter,omitempty"`
	Exit       []Step `yaml:"exit,omitempty" json:"exit,omitempty"`
}

// Profile 设备家族描述，注册后只读
type Profile struct {
	Name            string   `yaml:"name" json:"name"`
	Aliases         []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	SecretRequired  bool     `yaml:"secret_required,omitempty" json:"secret_required,omitempty"`
	CleanupPatterns []string `yaml:"cleanup_patterns,omitempty" json:"cleanup_patterns,omitempty"`

	Shell         *Level `yaml:"shell" json:"shell"`
	Operational   *Level `yaml:"operational,omitempty" json:"operational,omitempty"`
	Configuration *Level `yaml:"configuration,omitempty" json:"configuration,omitempty"`

	once        sync.Once
	compileErr  error
	terminators []*regexp.Regexp
	cleanup     []*regexp.Regexp
}

// Level 返回模式对应的定义，未定义返回 nil
func (p *Profile) Level(m Mode) *Level {
	switch m {
	case ModeShell:
		return p.Shell
	case ModeOperational:
		return p.Operational
	case ModeConfiguration:
		return p.Configuration
	}
	return nil
}

// Terminator 模式的终止符；本级未设置时向下沿用
func (p *Profile) Terminator(m Mode) string {
	for l := m; l >= ModeShell; l-- {
		if lv := p.Level(l); lv != nil && lv.Terminator != "" {
			return lv.Terminator
		}
	}
	return ""
}

// Terminators 去重后的全部终止符，按模式顺序
func (p *Profile) Terminators() []string {
	var out []string
	seen := make(map[string]bool)
	for m := ModeShell; m <= ModeConfiguration; m++ {
		if lv := p.Level(m); lv != nil && lv.Terminator != "" && !seen[lv.Terminator] {
			seen[lv.Terminator] = true
			out = append(out, lv.Terminator)
		}
	}
	return out
}

// Action 展开后的一步，终止符已解析
type Action struct {
	Step
	Terminator string
	Mode       transport.ReadMode
}

// EnterPath 从 Shell 进入 target 需要执行的步骤
func (p *Profile) EnterPath(target Mode) []Action {
	var out []Action
	for m := ModeShell; m <= target; m++ {
		if lv := p.Level(m); lv != nil {
			for _, s := range lv.Enter {
				out = append(out, p.resolve(s, m))
			}
		}
	}
	return out
}

// ExitPath 从 target 回到 Shell 需要执行的步骤
func (p *Profile) ExitPath(target Mode) []Action {
	var out []Action
	for m := target; m >= ModeShell; m-- {
		below := m - 1
		if below < ModeShell {
			below = ModeShell
		}
		if lv := p.Level(m); lv != nil {
			for _, s := range lv.Exit {
				out = append(out, p.resolve(s, below))
			}
		}
	}
	return out
}

func (p *Profile) resolve(s Step, def Mode) Action {
	if s.Until == 0 {
		s.Until = def
	}
	a := Action{Step: s, Terminator: p.Terminator(s.Until), Mode: transport.ReadRegex}
	if s.Expect != "" {
		a.Terminator = s.Expect
		if s.Literal {
			a.Mode = transport.ReadLiteral
		}
	}
	return a
}

// Compile 校验并编译全部正则，可重复调用
func (p *Profile) Compile() error {
	p.once.Do(func() {
		p.compileErr = p.compile()
	})
	return p.compileErr
}

func (p *Profile) compile() error {
	if p.Name == "" {
		return clierr.Configurationf("profile without name")
	}
	if p.Shell == nil || p.Shell.Terminator == "" {
		return clierr.Configurationf("profile %s: shell terminator is required", p.Name)
	}
	for _, t := range p.Terminators() {
		re, err := transport.CompileTerminator(t)
		if err != nil {
			return clierr.Wrap(clierr.ErrConfiguration, err, "profile %s", p.Name)
		}
		p.terminators = append(p.terminators, re)
	}
	for _, c := range p.CleanupPatterns {
		re, err := regexp.Compile(c)
		if err != nil {
			return clierr.Configurationf("profile %s: cleanup pattern %q: %v", p.Name, c, err)
		}
		p.cleanup = append(p.cleanup, re)
	}
	for m := ModeShell; m <= ModeConfiguration; m++ {
		for _, a := range append(p.EnterPath(m), p.ExitPath(m)...) {
			if a.Send == "" && !a.Secret {
				return clierr.Configurationf("profile %s: empty step in %s path", p.Name, m)
			}
			if !a.Until.Valid() {
				return clierr.Configurationf("profile %s: step %q has invalid mode", p.Name, a.Send)
			}
			if a.Mode == transport.ReadRegex && !a.NoWait {
				if _, err := transport.CompileTerminator(a.Terminator); err != nil {
					return clierr.Wrap(clierr.ErrConfiguration, err, "profile %s: step %q", p.Name, a.Send)
				}
			}
		}
	}
	return nil
}

// CompiledTerminators 编译后的终止符，需先调用 Compile
func (p *Profile) CompiledTerminators() []*regexp.Regexp { return p.terminators }

// CompiledCleanup 编译后的家族清洗规则，需先调用 Compile
func (p *Profile) CompiledCleanup() []*regexp.Regexp { return p.cleanup }

// Modes 具有独立定义的模式列表
func (p *Profile) Modes() []Mode {
	var out []Mode
	for m := ModeShell; m <= ModeConfiguration; m++ {
		if p.Level(m) != nil {
			out = append(out, m)
		}
	}
	return out
}
