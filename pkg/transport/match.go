package transport

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
)

// Matcher 判断读缓冲区是否以终止符结束
type Matcher struct {
	mode    ReadMode
	literal string
	re      *regexp.Regexp
}

// NewMatcher 编译终止符；正则模式自动开启多行标志
func NewMatcher(terminator string, mode ReadMode) (*Matcher, error) {
	switch mode {
	case ReadLiteral:
		lit := strings.TrimRight(terminator, " \t\r\n")
		if lit == "" {
			return nil, clierr.Configurationf("empty literal terminator")
		}
		return &Matcher{mode: mode, literal: lit}, nil
	case ReadRegex:
		re, err := CompileTerminator(terminator)
		if err != nil {
			return nil, err
		}
		return &Matcher{mode: mode, re: re}, nil
	default:
		return nil, clierr.Configurationf("unknown read mode %d", int(mode))
	}
}

// CompileTerminator 以多行模式编译终止符正则
func CompileTerminator(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, clierr.Configurationf("empty terminator pattern")
	}
	if !strings.HasPrefix(pattern, "(?") {
		pattern = "(?m)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: terminator %q: %v", clierr.ErrConfiguration, pattern, err)
	}
	return re, nil
}

// Mode 返回匹配方式
func (m *Matcher) Mode() ReadMode { return m.mode }

// Match 缓冲区以终止符结束时返回 true。
// 回车符不参与匹配；正则只在最后一个非空行上查找，最后一次匹配之后只能是空白。
func (m *Matcher) Match(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	text := bytes.ReplaceAll(buf, []byte("\r"), nil)
	if m.mode == ReadLiteral {
		return bytes.HasSuffix(bytes.TrimRight(text, " \t\n"), []byte(m.literal))
	}

	trimmed := bytes.TrimRight(text, " \t\n")
	if len(trimmed) == 0 {
		return false
	}
	tail := text[bytes.LastIndexByte(trimmed, '\n')+1:]
	locs := m.re.FindAllIndex(tail, -1)
	if len(locs) == 0 {
		return false
	}
	end := locs[len(locs)-1][1]
	return len(bytes.TrimSpace(tail[end:])) == 0
}
