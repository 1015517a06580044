// Package huawei_vrp 华为 VRP 家族（S/CE/AR 系列）
package huawei_vrp

import "github.com/sshcollectorpro/clisession/pkg/profile"

// New 返回新的 huawei_vrp 家族定义
func New() *profile.Profile {
	return &profile.Profile{
		Name:    "huawei_vrp",
		Aliases: []string{"huawei", "vrp", "huawei_s", "huawei_ce"},
		Shell: &profile.Level{
			Terminator: `(?m)<.*>$`,
			// temporary 只对当前会话生效，无需恢复
			Enter: []profile.Step{{Send: "screen-length 0 temporary"}},
		},
		Operational: &profile.Level{},
		Configuration: &profile.Level{
			Terminator: `(?m)\[.*\]$`,
			Enter:      []profile.Step{{Send: "system-view"}},
			Exit:       []profile.Step{{Send: "return"}},
		},
		CleanupPatterns: []string{
			`(?m)^Info: .*$`,
		},
	}
}

func init() {
	profile.Register(New())
}
