package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"json debug", Config{Level: "debug", Format: "json", Output: "stdout"}, false},
		{"bad level", Config{Level: "loud", Format: "json", Output: "stdout"}, true},
		{"bad format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"no output", Config{Level: "info", Format: "json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewDiscard(t *testing.T) {
	logger, err := New(Config{Output: "discard"}, "test")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "armsim.log")
	logger, err := New(Config{Level: "warn", Format: "json", Output: path}, "armsim")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("movement timeout")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"movement timeout"`)
	assert.Contains(t, string(data), `"logger":"armsim"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewZapConfig(t *testing.T) {
	zc, err := NewZapConfig(Config{Level: "debug", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, []string{"stderr"}, zc.OutputPaths)
	assert.Equal(t, zapcore.DebugLevel, zc.Level.Level())
	assert.True(t, zc.DisableStacktrace)

	_, err = NewZapConfig(Config{Level: "verbose"})
	assert.Error(t, err)
}

func TestTerminal(t *testing.T) {
	assert.True(t, Config{Output: "stdout"}.Terminal())
	assert.False(t, Config{Output: "/var/log/armsim.log"}.Terminal())
}
