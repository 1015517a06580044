package simulate

import (
	"fmt"
	"strings"
)

// 模式层级，0 表示关闭连接
const (
	levelClosed = 0
	levelShell  = 1
	levelOper   = 2
	levelConfig = 3
)

type move struct {
	from, to int
	cmd      string
	secret   bool
}

// dialect 一个设备家族的提示符与模式切换规则
type dialect struct {
	prompts map[int]string
	moves   []move
	// paging 命令对分页开关的影响
	paging  map[string]bool
	unknown string
	outputs map[string]string
}

// PageLines 分页开启时每屏行数
const PageLines = 24

var dialects = map[string]*dialect{
	"cisco_ios": {
		prompts: map[int]string{
			levelShell:  "%s>",
			levelOper:   "%s#",
			levelConfig: "%s(config)#",
		},
		moves: []move{
			{from: levelShell, cmd: "enable", to: levelOper, secret: true},
			{from: levelOper, cmd: "disable", to: levelShell},
			{from: levelOper, cmd: "configure terminal", to: levelConfig},
			{from: levelConfig, cmd: "end", to: levelOper},
			{from: levelConfig, cmd: "exit", to: levelOper},
			{from: levelOper, cmd: "exit", to: levelClosed},
			{from: levelShell, cmd: "exit", to: levelClosed},
		},
		paging:  map[string]bool{"terminal length 0": false, "terminal no length": true},
		unknown: "% Invalid input detected at '^' marker.\r\n",
		outputs: map[string]string{
			"show version": "Cisco IOS Software, C2960 Software (C2960-LANBASEK9-M), Version 15.0(2)SE11\r\n" +
				"ROM: Bootstrap program is C2960 boot loader\r\n" +
				"%[1]s uptime is 3 weeks, 2 days, 4 hours\r\n",
			"show clock":   "*12:00:00.000 UTC Mon Mar 1 2021\r\n",
			"show logging": numbered("%%LINK-3-UPDOWN: Interface GigabitEthernet0/%d, changed state to up", 40),
		},
	},
	"junos": {
		prompts: map[int]string{
			levelShell:  "root@%s:RE:0%% ",
			levelOper:   "root@%s> ",
			levelConfig: "\r\n[edit]\r\nroot@%s# ",
		},
		moves: []move{
			{from: levelShell, cmd: "cli", to: levelOper},
			{from: levelOper, cmd: "exit", to: levelShell},
			{from: levelOper, cmd: "configure", to: levelConfig},
			{from: levelConfig, cmd: "exit configuration-mode", to: levelOper},
			{from: levelConfig, cmd: "exit", to: levelOper},
			{from: levelShell, cmd: "exit", to: levelClosed},
		},
		paging: map[string]bool{
			"set cli screen-length 10000": false,
			"set cli screen-length 93":    true,
			"set cli screen-width 400":    false,
		},
		unknown: "\r\nunknown command.\r\n",
		outputs: map[string]string{
			"show version": "Hostname: %[1]s\r\nModel: mx480\r\nJunos: 17.3R3-S3\r\n",
			"uname":        "FreeBSD\r\n",
		},
	},
	"comware": {
		prompts: map[int]string{
			levelShell:  "<%s>",
			levelConfig: "[%s]",
		},
		moves: []move{
			{from: levelShell, cmd: "system-view", to: levelConfig},
			{from: levelConfig, cmd: "return", to: levelShell},
			{from: levelConfig, cmd: "quit", to: levelShell},
			{from: levelShell, cmd: "quit", to: levelClosed},
		},
		paging:  map[string]bool{"screen-length disable": false, "undo screen-length disable": true},
		unknown: "                  ^\r\n % Unrecognized command found at '^' position.\r\n",
		outputs: map[string]string{
			"display version": "H3C Comware Software, Version 7.1.064, Release 0427P22\r\n%[1]s uptime is 0 weeks, 1 day\r\n",
			"display clock":   "12:00:00 UTC Mon 03/01/2021\r\n",
		},
	},
	"huawei_vrp": {
		prompts: map[int]string{
			levelShell:  "<%s>",
			levelConfig: "[%s]",
		},
		moves: []move{
			{from: levelShell, cmd: "system-view", to: levelConfig},
			{from: levelConfig, cmd: "return", to: levelShell},
			{from: levelConfig, cmd: "quit", to: levelShell},
			{from: levelShell, cmd: "quit", to: levelClosed},
		},
		paging:  map[string]bool{"screen-length 0 temporary": false},
		unknown: "Error: Unrecognized command found at '^' position.\r\n",
		outputs: map[string]string{
			"display version": "Huawei Versatile Routing Platform Software\r\nVRP (R) software, Version 8.180\r\n%[1]s uptime is 1 day\r\n",
			"system-view":     "Enter system view, return user view with return command.\r\n",
		},
	},
}

func numbered(format string, n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString(fmt.Sprintf(format, i))
		b.WriteString("\r\n")
	}
	return b.String()
}

func (d *dialect) prompt(level int, hostname string) string {
	return fmt.Sprintf(d.prompts[level], hostname)
}

func (d *dialect) move(level int, cmd string) (move, bool) {
	for _, m := range d.moves {
		if m.from == level && strings.EqualFold(m.cmd, cmd) {
			return m, true
		}
	}
	return move{}, false
}

// output 优先使用设备配置中的输出；内置输出中的 %[1]s 替换为主机名
func (d *dialect) output(dev DeviceConfig, cmd string) (string, bool) {
	key := strings.ToLower(cmd)
	if out, ok := dev.Outputs[key]; ok {
		return ensureCRLF(out), true
	}
	out, ok := d.outputs[key]
	if !ok {
		return "", false
	}
	if strings.Contains(out, "%[1]s") {
		out = fmt.Sprintf(out, dev.Hostname)
	}
	return out, true
}

func ensureCRLF(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}
