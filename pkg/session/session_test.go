package session_test

import (
	"context"
	"encoding/json"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/sshcollectorpro/clisession/addone/platforms/all"
	"github.com/sshcollectorpro/clisession/pkg/clierr"
	"github.com/sshcollectorpro/clisession/pkg/profile"
	"github.com/sshcollectorpro/clisession/pkg/session"
	"github.com/sshcollectorpro/clisession/pkg/transport/transporttest"
)

func open(t *testing.T, family string, fake *transporttest.Fake, opts session.Options) *session.Session {
	t.Helper()
	p, err := profile.Lookup(family)
	require.NoError(t, err)
	s, err := session.New(fake, p, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Disconnect() })
	return s
}

// ciscoDevice 模拟一台需要 enable 密码的 IOS 设备
func ciscoDevice() *transporttest.Fake {
	return transporttest.New().
		Banner("\r\nUser Access Verification\r\n\r\nR1>").
		Expect("enable\n", "enable\r\nPassword: ").
		Expect("s3cret\n", "\r\nR1#").
		Expect("terminal length 0\n", "terminal length 0\r\nR1#").
		Expect("show version\n", "show version\r\nCisco IOS Software, Version 15.2(4)M\r\nR1 uptime is 3 weeks\r\nR1#").
		Expect("terminal no length\n", "terminal no length\r\nR1#").
		Expect("disable\n", "disable\r\nR1>").
		Expect("configure terminal\n", "configure terminal\r\nEnter configuration commands, one per line.\r\nR1(config)#").
		Expect("hostname R1\n", "hostname R1\r\nR1(config)#").
		Expect("end\n", "end\r\nR1#")
}

func TestOperationCisco(t *testing.T) {
	fake := ciscoDevice()
	s := open(t, "CiscoIOS", fake, session.Options{Secret: "s3cret"})
	require.NoError(t, s.Sync(context.Background()))

	out, err := s.Operation(context.Background(), "show version")
	require.NoError(t, err)
	assert.Equal(t, []string{"show version"}, out.Commands())
	v, ok := out.Get("show version")
	require.True(t, ok)
	assert.Equal(t, "Cisco IOS Software, Version 15.2(4)M\nR1 uptime is 3 weeks", v)

	assert.Equal(t, []string{
		"enable\n", "s3cret\n", "terminal length 0\n",
		"show version\n",
		"terminal no length\n", "disable\n",
	}, fake.Writes(), "进入与退出的写入顺序应与设备家族定义一致")
}

func TestConfigureJunos(t *testing.T) {
	fake := transporttest.New().
		Banner("--- JUNOS 20.4R3 built 2021-01-01\r\nroot@vmx1:RE:0% ").
		Expect("cli\n", "cli\r\n{master:0}\r\nroot@vmx1> ").
		Expect("set cli screen-length 10000\n", "set cli screen-length 10000 \r\nScreen length set to 10000\r\n\r\n{master:0}\r\nroot@vmx1> ").
		Expect("set cli screen-width 400\n", "set cli screen-width 400 \r\nScreen width set to 400\r\n\r\n{master:0}\r\nroot@vmx1> ").
		Expect("configure\n", "configure \r\nEntering configuration mode\r\n\r\n[edit]\r\nroot@vmx1# ").
		Expect("set system host-name foo\n", "set system host-name foo \r\n\r\n[edit]\r\nroot@vmx1# ").
		Expect("exit configuration-mode\n", "exit configuration-mode \r\nExiting configuration mode\r\n\r\n{master:0}\r\nroot@vmx1> ").
		Expect("set cli screen-length 93\n", "set cli screen-length 93 \r\nScreen length set to 93\r\n\r\n{master:0}\r\nroot@vmx1> ").
		Expect("exit\n", "exit \r\n\r\nroot@vmx1:RE:0% ")
	s := open(t, "Junos", fake, session.Options{})
	require.NoError(t, s.Sync(context.Background()))

	out, err := s.Configure(context.Background(), "set system host-name foo")
	require.NoError(t, err)
	v, _ := out.Get("set system host-name foo")
	assert.Equal(t, "", v)
	assert.Equal(t, []string{
		"cli\n", "set cli screen-length 10000\n", "set cli screen-width 400\n", "configure\n",
		"set system host-name foo\n",
		"exit configuration-mode\n", "set cli screen-length 93\n", "exit\n",
	}, fake.Writes())

	// 退出后仍位于 shell，可以继续执行下一批次
	fake.Expect("uptime\n", "uptime\r\n10:00AM  up 3 days\r\nroot@vmx1:RE:0% ")
	out, err = s.CLI(context.Background(), "uptime")
	require.NoError(t, err)
	v, _ = out.Get("uptime")
	assert.Equal(t, "10:00AM  up 3 days", v)
}

func TestTimeoutAttemptsExitOnce(t *testing.T) {
	fake := ciscoDevice().
		Expect("show x\n", "show x\r\npartial line one\r\n")
	s := open(t, "cisco_ios", fake, session.Options{Secret: "s3cret"})
	require.NoError(t, s.Sync(context.Background()))

	out, err := s.Operation(context.Background(), "show x", "show version")
	assert.ErrorIs(t, err, clierr.ErrReadTimeout)
	require.NotNil(t, out, "失败时应返回部分结果")
	v, ok := out.Get("show x")
	assert.True(t, ok)
	assert.Equal(t, "partial line one", v, "失败命令已读到的内容应保留")
	_, ok = out.Get("show version")
	assert.False(t, ok, "失败之后的命令不应执行")

	count := func(w string) int {
		n := 0
		for _, x := range fake.Writes() {
			if x == w {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, count("terminal no length\n"), "退出序列应恰好尝试一次")
	assert.Equal(t, 1, count("disable\n"))

	// 退出成功，会话仍可用
	_, err = s.Operation(context.Background(), "show version")
	assert.NoError(t, err)
}

func TestExitFailureMakesSessionUnusable(t *testing.T) {
	fake := transporttest.New().
		Banner("R1>").
		Expect("enable\n", "enable\r\nR1#").
		Expect("terminal length 0\n", "terminal length 0\r\nR1#").
		Expect("show x\n", "show x\r\nno prompt follows").
		Expect("terminal no length\n", "terminal no length\r\nR1#")
	// disable 没有回应，退出序列失败
	s := open(t, "cisco_ios", fake, session.Options{})
	require.NoError(t, s.Sync(context.Background()))

	_, err := s.Operation(context.Background(), "show x")
	assert.ErrorIs(t, err, clierr.ErrReadTimeout, "应返回最初的错误而不是退出序列的错误")
	assert.NotErrorIs(t, err, clierr.ErrSessionUnusable)

	_, err = s.CLI(context.Background(), "show clock")
	assert.ErrorIs(t, err, clierr.ErrSessionUnusable)
}

func TestExitFailureAfterSuccessfulBatch(t *testing.T) {
	fake := transporttest.New().
		Banner("R1>").
		Expect("enable\n", "enable\r\nR1#").
		Expect("terminal length 0\n", "terminal length 0\r\nR1#").
		Expect("show clock\n", "show clock\r\n10:00\r\nR1#")
	s := open(t, "cisco_ios", fake, session.Options{})
	require.NoError(t, s.Sync(context.Background()))

	out, err := s.Operation(context.Background(), "show clock")
	assert.ErrorIs(t, err, clierr.ErrSessionUnusable)
	v, _ := out.Get("show clock")
	assert.Equal(t, "10:00", v, "批次本身成功时输出完整返回")
}

func TestSecretRequired(t *testing.T) {
	p := &profile.Profile{
		Name:           "needs_secret",
		SecretRequired: true,
		Shell:          &profile.Level{Terminator: `.*>$`},
		Operational: &profile.Level{
			Terminator: `.*#$`,
			Enter:      []profile.Step{{Send: "enable", SecretPrompt: "Password:"}},
			Exit:       []profile.Step{{Send: "disable"}},
		},
	}
	fake := transporttest.New().Banner("R1>")
	s, err := session.New(fake, p, session.Options{})
	require.NoError(t, err)
	defer s.Disconnect()

	_, err = s.Operation(context.Background(), "show run")
	assert.ErrorIs(t, err, clierr.ErrSecretRequired)
	assert.Empty(t, fake.Writes(), "缺少 secret 时不应写入任何数据")

	fake.Expect("show clock\n", "show clock\r\n10:00\r\nR1>")
	_, err = s.CLI(context.Background(), "show clock")
	assert.NoError(t, err, "Shell 模式不需要 secret")
}

func TestDuplicateCommandsOverwrite(t *testing.T) {
	fake := transporttest.New().
		Banner("<H3C>").
		Expect("screen-length disable\n", "screen-length disable\r\n<H3C>").
		Expect("display clock\n", "display clock\r\n10:00:00\r\n<H3C>").
		Expect("display clock\n", "display clock\r\n10:00:05\r\n<H3C>").
		Expect("display version\n", "display version\r\nComware 7.1\r\n<H3C>").
		Expect("undo screen-length disable\n", "undo screen-length disable\r\n<H3C>")
	s := open(t, "comware", fake, session.Options{})
	require.NoError(t, s.Sync(context.Background()))

	out, err := s.Operation(context.Background(), "display clock", "display version", "display clock")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, []string{"display clock", "display version"}, out.Commands(), "重复命令保持首次出现的位置")
	v, _ := out.Get("display clock")
	assert.Equal(t, "10:00:05", v, "后一次执行的输出覆盖前一次")

	n := 0
	for _, w := range fake.Writes() {
		if w == "display clock\n" {
			n++
		}
	}
	assert.Equal(t, 2, n, "重复命令仍然各自执行")
}

func TestRawIsSuperset(t *testing.T) {
	run := func(raw bool) *session.Output {
		fake := ciscoDevice().
			Expect("show ip int br\n", "show ip int br\r\nInterface  IP-Address\r\nGi0/0      10.0.0.1\r\nR1#")
		s := open(t, "cisco_ios", fake, session.Options{Secret: "s3cret", Raw: raw})
		require.NoError(t, s.Sync(context.Background()))
		out, err := s.Operation(context.Background(), "show version", "show ip int br")
		require.NoError(t, err)
		return out
	}
	raw, clean := run(true), run(false)
	assert.Equal(t, raw.Commands(), clean.Commands(), "两次执行的结果结构相同")
	clean.Each(func(cmd, text string) {
		r, _ := raw.Get(cmd)
		r = strings.ReplaceAll(r, "\r", "")
		assert.Greater(t, len(r), len(text))
		for _, line := range strings.Split(text, "\n") {
			assert.Contains(t, r, line)
		}
	})
}

func TestSyncSendsNewlineWhenNoPrompt(t *testing.T) {
	fake := transporttest.New().
		Banner("Welcome\r\n").
		Expect("\n", "\r\nR1>")
	s := open(t, "cisco_ios", fake, session.Options{})
	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, []string{"\n"}, fake.Writes())
	assert.Contains(t, string(s.Transcript()), "Welcome", "会话记录包含横幅")
}

func TestDisconnectIdempotent(t *testing.T) {
	fake := transporttest.New().Banner("R1>")
	s := open(t, "cisco_ios", fake, session.Options{})
	require.NoError(t, s.Disconnect())
	require.NoError(t, s.Disconnect())
	assert.Equal(t, 1, fake.Disconnects(), "Transport 只释放一次")

	_, err := s.CLI(context.Background(), "show clock")
	assert.ErrorIs(t, err, clierr.ErrClosed)
}

func TestEmptyBatch(t *testing.T) {
	s := open(t, "cisco_ios", transporttest.New(), session.Options{})
	_, err := s.CLI(context.Background())
	assert.ErrorIs(t, err, clierr.ErrConfiguration)
}

func TestOutputJSONKeepsOrder(t *testing.T) {
	out := session.NewOutput()
	out.Set("show version", "v")
	out.Set("show clock", "c")
	out.Set("show arp", "a")
	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Equal(t, `{"show version":"v","show clock":"c","show arp":"a"}`, string(b))
}

func TestDroppedSessionReleasesTransport(t *testing.T) {
	fake := ciscoDevice()
	p, err := profile.Lookup("cisco_ios")
	require.NoError(t, err)

	func() {
		s, err := session.New(fake, p, session.Options{})
		require.NoError(t, err)
		require.NoError(t, s.Sync(context.Background()))
	}()

	assert.Eventually(t, func() bool {
		runtime.GC()
		return fake.Disconnects() == 1
	}, 5*time.Second, 20*time.Millisecond, "会话被丢弃后传输应被释放")
}
