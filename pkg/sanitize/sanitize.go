// Package sanitize 从原始捕获的命令输出中去除回显、提示符与家族特有的装饰行。
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sshcollectorpro/clisession/pkg/profile"
)

// emptyLines 去除清洗后留下的空行
var emptyLines = regexp.MustCompile(`(?m)^[ \t]*\n`)

// Sanitizer 绑定一个设备家族的清洗规则，可并发使用
type Sanitizer struct {
	terminators []*regexp.Regexp
	cleanup     []*regexp.Regexp
}

// New 按家族构造清洗器
func New(p *profile.Profile) (*Sanitizer, error) {
	if err := p.Compile(); err != nil {
		return nil, err
	}
	return &Sanitizer{
		terminators: p.CompiledTerminators(),
		cleanup:     p.CompiledCleanup(),
	}, nil
}

// EchoPattern 由命令构造回显匹配：每个词取前一到两个字符，按顺序出现在同一行即视为回显。
// 这样设备把缩写补全（sh int -> show interface）后的回显也能被识别。
func EchoPattern(command string) *regexp.Regexp {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	frags := make([]string, 0, len(fields))
	for _, f := range fields {
		n := 0
		for i := 0; i < 2 && n < len(f); i++ {
			_, size := utf8.DecodeRuneInString(f[n:])
			n += size
		}
		frags = append(frags, regexp.QuoteMeta(f[:n]))
	}
	return regexp.MustCompile(`(?m)^.*` + strings.Join(frags, ".*") + `.*$`)
}

// Clean 清洗单条命令的输出。各规则只对输入做一次替换，互不依赖中间结果：
// 回显（仅首个非空行）、全部终止符、家族清洗规则、空行。
func (s *Sanitizer) Clean(command, raw string) string {
	out := strings.ReplaceAll(raw, "\r", "")
	out = stripEcho(out, EchoPattern(command))
	for _, re := range s.terminators {
		out = re.ReplaceAllString(out, "")
	}
	for _, re := range s.cleanup {
		out = re.ReplaceAllString(out, "")
	}
	out = emptyLines.ReplaceAllString(out, "")
	out = strings.TrimLeft(out, "\n")
	return strings.TrimRight(out, " \t\n")
}

// stripEcho 回显只会出现在输出开头，因此只检查第一个非空行。
// 输出正文中与命令相似的行（如配置回显中的 "hostname R1"）属于真实输出，必须保留；
// 不要改为对全文逐行替换。缩写容错仍由 EchoPattern 负责。
func stripEcho(out string, echo *regexp.Regexp) string {
	if echo == nil {
		return out
	}
	start := len(out) - len(strings.TrimLeft(out, " \t\n"))
	start = strings.LastIndexByte(out[:start], '\n') + 1
	end := strings.IndexByte(out[start:], '\n')
	if end < 0 {
		end = len(out)
	} else {
		end += start
	}
	line := out[start:end]
	if !echo.MatchString(line) {
		return out
	}
	return out[:start] + out[end:]
}
