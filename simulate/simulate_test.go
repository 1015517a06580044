package simulate_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/sshcollectorpro/clisession/addone/platforms/all"
	"github.com/sshcollectorpro/clisession/pkg/clierr"
	"github.com/sshcollectorpro/clisession/pkg/device"
	"github.com/sshcollectorpro/clisession/simulate"
)

func startSim(t *testing.T) *simulate.Manager {
	t.Helper()
	m, err := simulate.Start(simulate.DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m
}

func port(t *testing.T, addr string) int {
	t.Helper()
	_, p, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	n, err := strconv.Atoi(p)
	require.NoError(t, err)
	return n
}

func connector() *device.Connector {
	c := device.NewConnector()
	c.ReadTimeout = 2 * time.Second
	c.ConnectTimeout = 2 * time.Second
	c.FlushQuiet = 100 * time.Millisecond
	c.KeyFiles = []string{"/nonexistent"}
	return c
}

func TestCiscoOperationOverSSH(t *testing.T) {
	m := startSim(t)
	ctx := context.Background()

	s, err := connector().Connect(ctx, device.Params{
		DeviceType: "cisco_ios",
		Hostname:   "127.0.0.1",
		Port:       port(t, m.SSHAddr()),
		Username:   "ios1",
		Password:   simulate.DefaultPassword,
		Secret:     "enablepw",
	})
	require.NoError(t, err)
	defer s.Disconnect()

	out, err := s.Operation(ctx, "show version", "show logging")
	require.NoError(t, err)

	ver, ok := out.Get("show version")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(ver, "Cisco IOS Software"), "回显应被移除: %q", ver)
	assert.NotContains(t, ver, "ios1#", "提示符应被移除")

	logs, _ := out.Get("show logging")
	assert.Len(t, strings.Split(logs, "\n"), 40, "分页已关闭，输出完整")
	assert.NotContains(t, logs, "--More--")

	// 批次结束后回到用户模式，可以继续执行
	out, err = s.CLI(ctx, "show clock")
	require.NoError(t, err)
	clock, _ := out.Get("show clock")
	assert.Contains(t, clock, "UTC")
}

func TestCiscoWrongSecret(t *testing.T) {
	m := startSim(t)
	ctx := context.Background()
	c := connector()
	c.ReadTimeout = 300 * time.Millisecond

	s, err := c.Connect(ctx, device.Params{
		DeviceType: "cisco_ios",
		Hostname:   "127.0.0.1",
		Port:       port(t, m.SSHAddr()),
		Username:   "ios1",
		Password:   simulate.DefaultPassword,
		Secret:     "wrong",
	})
	require.NoError(t, err)
	defer s.Disconnect()

	_, err = s.Operation(ctx, "show version")
	assert.ErrorIs(t, err, clierr.ErrReadTimeout, "enable 失败后等不到特权提示符")

	out, err := s.CLI(ctx, "show clock")
	require.NoError(t, err, "设备仍在用户模式，会话可继续使用")
	assert.Equal(t, 1, out.Len())
}

func TestSSHBadPassword(t *testing.T) {
	m := startSim(t)
	_, err := connector().Connect(context.Background(), device.Params{
		DeviceType: "cisco_ios",
		Hostname:   "127.0.0.1",
		Port:       port(t, m.SSHAddr()),
		Username:   "ios1",
		Password:   "nope",
	})
	assert.ErrorIs(t, err, clierr.ErrAuthentication)
}

func TestJunosConfigureOverTelnet(t *testing.T) {
	m := startSim(t)
	ctx := context.Background()

	s, err := connector().Connect(ctx, device.Params{
		DeviceType: "junos",
		Hostname:   "127.0.0.1",
		Port:       port(t, m.TelnetAddr()),
		Protocol:   "telnet",
		Username:   "junos1",
		Password:   simulate.DefaultPassword,
	})
	require.NoError(t, err)
	defer s.Disconnect()

	out, err := s.Configure(ctx, "set system host-name lab")
	require.NoError(t, err)
	text, ok := out.Get("set system host-name lab")
	require.True(t, ok)
	assert.Empty(t, text, "配置命令没有输出，[edit] 与提示符被清理")

	out, err = s.Operation(ctx, "show version")
	require.NoError(t, err)
	ver, _ := out.Get("show version")
	assert.Contains(t, ver, "Hostname: junos1")
}

func TestTelnetBadPassword(t *testing.T) {
	m := startSim(t)
	_, err := connector().Connect(context.Background(), device.Params{
		DeviceType: "junos",
		Hostname:   "127.0.0.1",
		Port:       port(t, m.TelnetAddr()),
		Protocol:   "telnet",
		Username:   "junos1",
		Password:   "nope",
	})
	assert.ErrorIs(t, err, clierr.ErrAuthentication)
}

func TestComwareCLIAndConfigure(t *testing.T) {
	m := startSim(t)
	ctx := context.Background()

	s, err := connector().Connect(ctx, device.Params{
		DeviceType: "h3c",
		Hostname:   "127.0.0.1",
		Port:       port(t, m.SSHAddr()),
		Username:   "h3c1",
		Password:   simulate.DefaultPassword,
	})
	require.NoError(t, err)
	defer s.Disconnect()

	out, err := s.CLI(ctx, "display version")
	require.NoError(t, err)
	ver, _ := out.Get("display version")
	assert.Contains(t, ver, "Comware Software")
	assert.NotContains(t, ver, "<h3c1>")

	out, err = s.Configure(ctx, "interface GigabitEthernet1/0/1", "description uplink")
	require.NoError(t, err)
	assert.Equal(t, []string{"interface GigabitEthernet1/0/1", "description uplink"}, out.Commands())
}

func TestUnknownDeviceRejected(t *testing.T) {
	m := startSim(t)
	_, err := connector().Connect(context.Background(), device.Params{
		DeviceType: "huawei",
		Hostname:   "127.0.0.1",
		Port:       port(t, m.SSHAddr()),
		Username:   "ghost",
		Password:   simulate.DefaultPassword,
	})
	assert.ErrorIs(t, err, clierr.ErrAuthentication)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ssh_port: 0
telnet_port: 0
devices:
  core1:
    family: huawei_vrp
    secret: x
    outputs:
      display clock: "2021-03-01 12:00:00"
`), 0o644))

	cfg, err := simulate.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Listen)
	require.Contains(t, cfg.Devices, "core1")
	assert.Equal(t, "huawei_vrp", cfg.Devices["core1"].Family)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("devices:\n  x:\n    family: vyos\n"), 0o644))
	_, err = simulate.LoadConfig(bad)
	assert.Error(t, err, "不支持的家族")
}

func TestReloadOutputs(t *testing.T) {
	m := startSim(t)
	cfg := simulate.DefaultConfig()
	dev := cfg.Devices["huawei1"]
	dev.Outputs = map[string]string{"display clock": "2021-03-01 12:00:00\n"}
	cfg.Devices["huawei1"] = dev
	require.NoError(t, m.Reload(cfg))

	ctx := context.Background()
	s, err := connector().Connect(ctx, device.Params{
		DeviceType: "huawei",
		Hostname:   "127.0.0.1",
		Port:       port(t, m.SSHAddr()),
		Username:   "huawei1",
		Password:   simulate.DefaultPassword,
	})
	require.NoError(t, err)
	defer s.Disconnect()

	out, err := s.CLI(ctx, "display clock")
	require.NoError(t, err)
	clock, _ := out.Get("display clock")
	assert.Equal(t, "2021-03-01 12:00:00", clock)
}
