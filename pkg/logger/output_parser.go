package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// OutputLines 命令输出的头部和尾部行
type OutputLines struct {
	Total     int      `json:"total"`
	HeadLines []string `json:"head_lines"`
	TailLines []string `json:"tail_lines"`
}

// ParseOutputLines 提取输出的前后 maxLines 行，行数不超过 maxLines 时 TailLines 为空
func ParseOutputLines(output string, maxLines int) OutputLines {
	if maxLines <= 0 {
		maxLines = 5
	}
	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return OutputLines{}
	}

	lines := strings.Split(output, "\n")
	res := OutputLines{Total: len(lines)}
	if len(lines) <= maxLines {
		res.HeadLines = lines
		return res
	}
	res.HeadLines = append([]string(nil), lines[:maxLines]...)
	tailStart := len(lines) - maxLines
	if tailStart < maxLines {
		tailStart = maxLines
	}
	res.TailLines = append([]string(nil), lines[tailStart:]...)
	return res
}

// FormatOutputLines 格式化为单行日志文本
func FormatOutputLines(lines OutputLines) string {
	if len(lines.HeadLines) == 0 {
		return ""
	}
	s := "head-lines: [" + strings.Join(lines.HeadLines, " ⟩ ") + "]"
	if len(lines.TailLines) > 0 {
		s += ", tail-lines: [" + strings.Join(lines.TailLines, " ⟩ ") + "]"
	}
	return s
}

// DebugCommandOutput 在 debug 级别记录命令输出摘要
func DebugCommandOutput(entry *logrus.Entry, command string, output string, maxLines int) {
	if entry == nil || !entry.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	lines := ParseOutputLines(output, maxLines)
	if lines.Total == 0 {
		return
	}
	entry.WithField("lines", lines.Total).Debugf("Command echo [%s]: %s", command, FormatOutputLines(lines))
}
