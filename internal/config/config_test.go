package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	assert := assert.New(t)

	v, err := New("")
	require.NoError(t, err)
	c, err := Parse(v)
	require.NoError(t, err)

	assert.Equal("127.0.0.1:8888", c.Addr())
	assert.Equal(StoreMemory, c.Store)
	assert.Empty(c.ServiceKey)
	assert.Empty(c.Users)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TR_PORT", "9090")
	t.Setenv("TR_STORE", "sqlite")
	t.Setenv("TR_SERVICE_KEY", "s3cret")
	t.Setenv("TR_USERS", "alice,bob")

	v, err := New("")
	require.NoError(t, err)
	c, err := Parse(v)
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, StoreSQLite, c.Store)
	assert.Equal(t, "s3cret", c.ServiceKey)
	assert.Equal(t, []string{"alice", "bob"}, c.Users)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustreg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: 0.0.0.0
port: 7000
log_level: debug
users:
  - testuser
seed_name: home
seed_content: welcome
`), 0600))

	v, err := New(path)
	require.NoError(t, err)
	c, err := Parse(v)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7000", c.Addr())
	assert.Equal(t, []string{"testuser"}, c.Users)
	assert.Equal(t, "home", c.SeedName)
	assert.Equal(t, "welcome", c.SeedContent)

	l, err := ParseLevel(c.LogLevel)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	for env, val := range map[string]string{
		"TR_STORE":     "postgres",
		"TR_PORT":      "0",
		"TR_LOG_LEVEL": "loud",
	} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, val)
			v, err := New("")
			require.NoError(t, err)
			_, err = Parse(v)
			assert.Error(t, err)
		})
	}
}
