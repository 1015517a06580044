package device

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/sshcollectorpro/clisession/addone/platforms/all"
	"github.com/sshcollectorpro/clisession/pkg/clierr"
	"github.com/sshcollectorpro/clisession/pkg/profile"
	"github.com/sshcollectorpro/clisession/pkg/transport"
	"github.com/sshcollectorpro/clisession/pkg/transport/transporttest"
)

// countingFactory 记录 Transport 是否被构造
func countingFactory(fake *transporttest.Fake, built *int) *transport.Factory {
	f := transport.NewFactory()
	ctor := func(opts transport.Options) (transport.Transport, error) {
		*built++
		return fake, nil
	}
	f.Register("ssh", 22, ctor)
	f.Register("telnet", 23, ctor)
	return f
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Params{Hostname: "r1"}.Validate(), clierr.ErrConfiguration)
	assert.ErrorIs(t, Params{DeviceType: "cisco_ios"}.Validate(), clierr.ErrConfiguration)
	assert.ErrorIs(t, Params{DeviceType: "cisco_ios", Hostname: "r1", Port: 70000}.Validate(), clierr.ErrConfiguration)
	assert.NoError(t, Params{DeviceType: "cisco_ios", IP: "10.0.0.1"}.Validate(), "ip 可以代替 hostname")
}

func TestEmptyHostnameFailsBeforeTransport(t *testing.T) {
	built := 0
	c := &Connector{Profiles: profile.Default, Transports: countingFactory(transporttest.New(), &built)}

	_, err := c.Connect(context.Background(), Params{DeviceType: "cisco_ios", Hostname: ""})
	assert.ErrorIs(t, err, clierr.ErrConfiguration)
	assert.Zero(t, built, "参数校验失败时不应构造 Transport")

	_, err = c.Connect(context.Background(), Params{DeviceType: "nokia", Hostname: "r1"})
	assert.ErrorIs(t, err, clierr.ErrConfiguration, "未知设备类型")
	_, err = c.Connect(context.Background(), Params{DeviceType: "cisco_ios", Hostname: "r1", Protocol: "rlogin"})
	assert.ErrorIs(t, err, clierr.ErrConfiguration, "未知协议")
	assert.Zero(t, built)
}

func TestResolveDefaults(t *testing.T) {
	c := NewConnector()
	prof, protocol, opts, err := c.Resolve(Params{DeviceType: "Junos", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "junos", prof.Name)
	assert.Equal(t, "ssh", protocol, "默认协议为 ssh")
	assert.Equal(t, "10.0.0.1", opts.Hostname)

	_, protocol, _, err = c.Resolve(Params{DeviceType: "comware", Hostname: "sw1", Protocol: "TELNET"})
	require.NoError(t, err)
	assert.Equal(t, "telnet", protocol)
	port, ok := c.Transports.DefaultPort(protocol)
	assert.True(t, ok)
	assert.Equal(t, 23, port)
}

func TestConnectSyncsPrompt(t *testing.T) {
	built := 0
	fake := transporttest.New().Banner("banner\r\nR1>")
	c := &Connector{Profiles: profile.Default, Transports: countingFactory(fake, &built)}

	s, err := c.Connect(context.Background(), Params{DeviceType: "cisco", Hostname: "r1", Username: "u", Password: "p"})
	require.NoError(t, err)
	defer s.Disconnect()
	assert.Equal(t, 1, built)
	assert.Equal(t, [][2]string{{"u", "p"}}, fake.Logins())
	assert.True(t, fake.Connected())
}

func TestConnectReleasesTransportOnFailure(t *testing.T) {
	built := 0
	fake := transporttest.New()
	fake.LoginErr = clierr.Wrap(clierr.ErrAuthentication, errors.New("denied"), "login")
	c := &Connector{Profiles: profile.Default, Transports: countingFactory(fake, &built)}

	_, err := c.Connect(context.Background(), Params{DeviceType: "cisco_ios", Hostname: "r1", Username: "u", Password: "bad"})
	assert.ErrorIs(t, err, clierr.ErrAuthentication)
	assert.Equal(t, 1, fake.Disconnects(), "登录失败后应释放 Transport")
}
