package sanitize_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/sshcollectorpro/clisession/addone/platforms/all"
	"github.com/sshcollectorpro/clisession/pkg/profile"
	"github.com/sshcollectorpro/clisession/pkg/sanitize"
)

func mustSanitizer(t *testing.T, family string) *sanitize.Sanitizer {
	t.Helper()
	p, err := profile.Lookup(family)
	require.NoError(t, err)
	s, err := sanitize.New(p)
	require.NoError(t, err)
	return s
}

func TestEchoPattern(t *testing.T) {
	re := sanitize.EchoPattern("sh int")
	assert.Equal(t, `(?m)^.*sh.*in.*$`, re.String())
	assert.True(t, re.MatchString("R1#show interface"), "缩写命令应匹配设备补全后的回显")

	assert.Equal(t, `(?m)^.*s.*\(.*$`, sanitize.EchoPattern("s (").String(), "特殊字符需要转义")
	assert.Nil(t, sanitize.EchoPattern("   "))
	assert.Equal(t, `(?m)^.*显示.*$`, sanitize.EchoPattern("显示版本").String(), "按字符而不是字节截取")
}

func TestCleanCisco(t *testing.T) {
	s := mustSanitizer(t, "cisco_ios")
	raw := "show version\r\nCisco IOS Software, Version 15.2(4)M\r\nuptime is 3 weeks\r\n\r\nR1#"
	assert.Equal(t, "Cisco IOS Software, Version 15.2(4)M\nuptime is 3 weeks", s.Clean("show version", raw))

	raw = "sh ip int br\r\nInterface    IP-Address\r\nGi0/0        10.0.0.1\r\nR1#"
	assert.Equal(t, "Interface    IP-Address\nGi0/0        10.0.0.1", s.Clean("sh ip int br", raw))

	raw = "interface Gi0/1\r\nR1(config-if)#"
	assert.Equal(t, "", s.Clean("interface Gi0/1", raw), "配置命令通常没有输出")
}

func TestCleanJunosDecorations(t *testing.T) {
	s := mustSanitizer(t, "junos")
	raw := "set system host-name foo \r\n\r\n[edit]\r\n{master:0}\r\nlab@vmx1# "
	assert.Equal(t, "", s.Clean("set system host-name foo", raw))

	raw = "show system uptime \r\nCurrent time: 2024-01-01 10:00:00 UTC\r\n\r\n{master:0}\r\nlab@vmx1> "
	assert.Equal(t, "Current time: 2024-01-01 10:00:00 UTC", s.Clean("show system uptime", raw))
}

func TestCleanKeepsLaterLinesResemblingEcho(t *testing.T) {
	s := mustSanitizer(t, "comware")
	raw := "display version\r\nH3C Comware Software, Version 7.1.064\r\ndisplay version done\r\n<H3C>"
	assert.Equal(t, "H3C Comware Software, Version 7.1.064\ndisplay version done", s.Clean("display version", raw),
		"只有第一行被当作回显去除")
}

func TestCleanKeepsExactRepeatOfCommand(t *testing.T) {
	s := mustSanitizer(t, "cisco_ios")
	raw := "show run | include hostname\r\nhostname R1\r\nshow run | include hostname\r\nR1#"
	assert.Equal(t, "hostname R1\nshow run | include hostname", s.Clean("show run | include hostname", raw),
		"正文中与命令完全相同的行不是回显")
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomPayload(r *rand.Rand) string {
	lines := make([]string, 1+r.Intn(8))
	for i := range lines {
		words := make([]string, 1+r.Intn(6))
		for j := range words {
			b := make([]byte, 1+r.Intn(8))
			for k := range b {
				b[k] = letters[r.Intn(len(letters))]
			}
			words[j] = string(b)
		}
		lines[i] = strings.Join(words, " ")
	}
	return strings.Join(lines, "\n")
}

// sanitize(echo + payload + prompt) == payload
func TestCleanProperty(t *testing.T) {
	cases := []struct {
		family string
		prompt string
	}{
		{"cisco_ios", "R1#"},
		{"cisco_ios", "R1>"},
		{"cisco_ios", "R1(config)#"},
		{"junos", "lab@vmx1> "},
		{"junos", "lab@vmx1# "},
		{"comware", "<H3C>"},
		{"comware", "[H3C]"},
		{"huawei_vrp", "<HUAWEI>"},
	}
	commands := []string{"show version", "sh ip int br", "display interface brief", "show route 10.0.0.0/8 | match x"}
	r := rand.New(rand.NewSource(42))
	for _, c := range cases {
		s := mustSanitizer(t, c.family)
		for i := 0; i < 50; i++ {
			cmd := commands[r.Intn(len(commands))]
			payload := randomPayload(r)
			raw := cmd + "\r\n" + strings.ReplaceAll(payload, "\n", "\r\n") + "\r\n" + c.prompt
			assert.Equal(t, payload, s.Clean(cmd, raw), "%s %q", c.family, cmd)
		}
	}
}

func TestCleanOnlyRemoves(t *testing.T) {
	s := mustSanitizer(t, "cisco_ios")
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		raw := "show run\r\n" + randomPayload(r) + "\r\nR1#"
		clean := s.Clean("show run", raw)
		stripped := strings.ReplaceAll(raw, "\r", "")
		for _, line := range strings.Split(clean, "\n") {
			assert.Contains(t, stripped, line, "清洗结果中的每一行都应来自原始输出")
		}
		assert.LessOrEqual(t, len(clean), len(raw))
	}
}
