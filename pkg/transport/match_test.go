package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
)

func TestMatcherRegex(t *testing.T) {
	m, err := NewMatcher(`.*#$`, ReadRegex)
	require.NoError(t, err)

	assert.True(t, m.Match([]byte("show clock\r\n10:00:00 UTC\r\nRouter#")), "最后一行是提示符应匹配")
	assert.True(t, m.Match([]byte("Router#\r\n")), "提示符后的空白不影响匹配")
	assert.False(t, m.Match([]byte("Router#\r\nmore output")), "提示符之后仍有内容不应匹配")
	assert.False(t, m.Match([]byte("line with # inside\r\nRouter>")), "行中间的 # 不是终止符")
	assert.False(t, m.Match(nil))
	assert.False(t, m.Match([]byte("\r\n  \r\n")))
}

func TestMatcherRegexTrailingSpace(t *testing.T) {
	m, err := NewMatcher(`.*@.*>\s`, ReadRegex)
	require.NoError(t, err)
	assert.True(t, m.Match([]byte("show version\r\nJunos: 20.4R3\r\n\r\nlab@vmx1> ")))
	assert.False(t, m.Match([]byte("lab@vmx1>")), "缺少提示符后的空格")
}

func TestMatcherLiteral(t *testing.T) {
	m, err := NewMatcher("Password:", ReadLiteral)
	require.NoError(t, err)
	assert.True(t, m.Match([]byte("enable\r\nPassword: ")))
	assert.False(t, m.Match([]byte("Password: x")))

	_, err = NewMatcher("  ", ReadLiteral)
	assert.ErrorIs(t, err, clierr.ErrConfiguration)
}

func TestMatcherBadInput(t *testing.T) {
	_, err := NewMatcher("([", ReadRegex)
	assert.ErrorIs(t, err, clierr.ErrConfiguration)

	_, err = NewMatcher("x", ReadMode(9))
	assert.ErrorIs(t, err, clierr.ErrConfiguration)
}
