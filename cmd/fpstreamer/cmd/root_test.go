package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/config"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/supervisor"
)

func TestNewLogger(t *testing.T) {
	l, err := newLogger(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l, err = newLogger(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))

	_, err = newLogger(config.LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestNewLoggerWritesToOutputPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fpstreamer.log")
	l, err := newLogger(config.LoggingConfig{Level: "info", Format: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	l.Info("channel pipeline starting", zap.String("channel", "abc"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"channel":"abc"`)
}

func TestVersionSkipsConfig(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "fpstreamer dev"))
}

func TestUnitFactoryInProcess(t *testing.T) {
	logger = zap.NewNop()
	inProcess = true
	t.Cleanup(func() { inProcess = false })

	factory, err := unitFactory()
	require.NoError(t, err)
	u := factory("gen-1")
	assert.IsType(t, &supervisor.FuncUnit{}, u)
	assert.Equal(t, "gen-1", u.Info().Generation)
}

func TestUnitFactoryChildArgs(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()
	path := filepath.Join(dir, "fpstreamer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	cfgFile, logLevel = path, "debug"
	t.Cleanup(func() { cfgFile, logLevel = "", "" })

	factory, err := unitFactory()
	require.NoError(t, err)
	u := factory("gen-2")
	require.IsType(t, &supervisor.ProcessUnit{}, u)
	assert.Equal(t, "gen-2", u.Info().Generation)
	assert.Zero(t, u.Info().PID)
}
