package credential

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
)

func TestResolvePlain(t *testing.T) {
	keyring.MockInit()
	r := NewResolver("")
	v, err := r.Resolve("cisco123")
	require.NoError(t, err)
	assert.Equal(t, "cisco123", v, "明文原样返回")
}

func TestStoreAndResolve(t *testing.T) {
	keyring.MockInit()
	r := NewResolver("lab")

	ref, err := r.Store("core-sw1", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "keyring:lab/core-sw1", ref)

	v, err := r.Resolve(ref)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	v, err = r.Resolve("keyring:core-sw1")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v, "省略 service 时使用默认 service")

	require.NoError(t, r.Delete("core-sw1"))
	require.NoError(t, r.Delete("core-sw1"), "重复删除不报错")

	_, err = r.Resolve(ref)
	assert.ErrorIs(t, err, clierr.ErrConfiguration)
}

func TestResolveMalformed(t *testing.T) {
	keyring.MockInit()
	_, err := NewResolver("lab").Resolve("keyring:lab/")
	assert.ErrorIs(t, err, clierr.ErrConfiguration)
}

func TestResolveBackendFailure(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus unavailable"))
	_, err := NewResolver("lab").Resolve("keyring:x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, clierr.ErrConfiguration)
}
