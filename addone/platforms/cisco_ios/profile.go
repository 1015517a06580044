// Package cisco_ios Cisco IOS / IOS-XE 家族
package cisco_ios

import "github.com/sshcollectorpro/clisession/pkg/profile"

const (
	ShellPrompt      = `(?m).*>$`
	PrivilegedPrompt = `(?m).*#$`
	ConfigPrompt     = `(?m).*\([\w-]+\)#$`
)

// New 返回新的 cisco_ios 家族定义
func New() *profile.Profile {
	return &profile.Profile{
		Name:    "cisco_ios",
		Aliases: []string{"ciscoios", "ios", "cisco"},
		Shell:   &profile.Level{Terminator: ShellPrompt},
		Operational: &profile.Level{
			Terminator: PrivilegedPrompt,
			Enter: []profile.Step{
				// 未配置 secret 时直接等待特权提示符（用户已具备 15 级权限）
				{Send: "enable", SecretPrompt: "Password:"},
				{Send: "terminal length 0"},
			},
			Exit: []profile.Step{
				{Send: "terminal no length", Until: profile.ModeOperational},
				{Send: "disable"},
			},
		},
		Configuration: &profile.Level{
			Terminator: ConfigPrompt,
			Enter:      []profile.Step{{Send: "configure terminal"}},
			// end 可以从任意子配置模式直接回到特权模式
			Exit: []profile.Step{{Send: "end"}},
		},
	}
}

func init() {
	profile.Register(New())
}
