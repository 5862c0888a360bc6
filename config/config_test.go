package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, ComportAuto, cfg.Comport)
	assert.Equal(t, 57600, cfg.Baud)
	assert.Equal(t, 2*time.Second, cfg.WaitDuration())
	assert.Equal(t, time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, "gateway.db", cfg.DBPath)
	assert.False(t, cfg.MDNS)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.Equal(t, "localhost:9000", cfg.Addr())
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{"--host", "0.0.0.0", "--port", "9100", "--comport", "sim", "--wait", "0", "--log-level", "debug"})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9100", cfg.Addr())
	assert.Equal(t, ComportSimulator, cfg.Comport)
	assert.Zero(t, cfg.WaitDuration())
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoadEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9200\nbaud: 115200\nmdns: true\n"), 0o644))
	t.Setenv("PYMATA_MDNS_NAME", "bench")
	t.Setenv("PYMATA_BAUD", "9600")

	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Port)
	assert.Equal(t, 9600, cfg.Baud, "environment overrides the file")
	assert.True(t, cfg.MDNS)
	assert.Equal(t, "bench", cfg.MDNSName)

	cfg, err = Load([]string{"--config", path, "--baud", "57600"})
	require.NoError(t, err)
	assert.Equal(t, 57600, cfg.Baud, "flags override the environment")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"port too high", []string{"--port", "70000"}},
		{"port zero", []string{"--port", "0"}},
		{"negative wait", []string{"--wait", "-1"}},
		{"zero sleep", []string{"--sleep", "0"}},
		{"zero baud", []string{"--baud", "0"}},
		{"bad level", []string{"--log-level", "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}
