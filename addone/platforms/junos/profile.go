// Package junos Juniper Junos 家族，登录后位于 FreeBSD shell
package junos

import "github.com/sshcollectorpro/clisession/pkg/profile"

const (
	ShellPrompt       = `.*@.*:RE:[0-9]{1,2}%\s`
	OperationalPrompt = `.*@.*>\s`
	ConfigPrompt      = `.*@.*#\s`
)

// New 返回新的 junos 家族定义
func New() *profile.Profile {
	return &profile.Profile{
		Name:    "junos",
		Aliases: []string{"juniper", "juniper_junos"},
		Shell:   &profile.Level{Terminator: ShellPrompt},
		Operational: &profile.Level{
			Terminator: OperationalPrompt,
			Enter: []profile.Step{
				{Send: "cli"},
				{Send: "set cli screen-length 10000"},
				{Send: "set cli screen-width 400"},
			},
			Exit: []profile.Step{
				{Send: "set cli screen-length 93", Until: profile.ModeOperational},
				{Send: "exit"},
			},
		},
		Configuration: &profile.Level{
			Terminator: ConfigPrompt,
			Enter:      []profile.Step{{Send: "configure"}},
			Exit:       []profile.Step{{Send: "exit configuration-mode"}},
		},
		CleanupPatterns: []string{
			`\[edit.*\]`,
			`{master:.*}`,
			`{backup:.*}`,
			`{line.*}`,
			`{primary.*}`,
			`{secondary.*}`,
		},
	}
}

func init() {
	profile.Register(New())
}
