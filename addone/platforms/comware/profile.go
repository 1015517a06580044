// Package comware H3C / HPE Comware 家族：用户视图与系统视图，无独立特权模式
package comware

import "github.com/sshcollectorpro/clisession/pkg/profile"

const (
	UserViewPrompt   = `(?m)<.*>$`
	SystemViewPrompt = `(?m)\[.*]$`
)

// New 返回新的 comware 家族定义
func New() *profile.Profile {
	return &profile.Profile{
		Name:    "comware",
		Aliases: []string{"h3c", "hp_comware", "h3c_comware"},
		Shell: &profile.Level{
			Terminator: UserViewPrompt,
			Enter:      []profile.Step{{Send: "screen-length disable"}},
			Exit:       []profile.Step{{Send: "undo screen-length disable"}},
		},
		// Operational 与用户视图相同
		Operational: &profile.Level{},
		Configuration: &profile.Level{
			Terminator: SystemViewPrompt,
			Enter:      []profile.Step{{Send: "system-view"}},
			Exit:       []profile.Step{{Send: "return"}},
		},
	}
}

func init() {
	profile.Register(New())
}
