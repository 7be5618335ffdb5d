package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestProductionConfig(t *testing.T) {
	cfg := ProductionConfig()
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestNew(t *testing.T) {
	t.Run("console logger", func(t *testing.T) {
		log, err := New(DefaultConfig())
		require.NoError(t, err)
		require.NotNil(t, log)
		log.Info("console line")
	})

	t.Run("json logger", func(t *testing.T) {
		log, err := New(ProductionConfig())
		require.NoError(t, err)
		log.Info("json line")
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "service.log")
		cfg := ProductionConfig()
		cfg.Output = path

		log, err := New(cfg)
		require.NoError(t, err)
		log.Info("to file")
		require.NoError(t, Sync(log))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":     zapcore.DebugLevel,
		"info":      zapcore.InfoLevel,
		"warn":      zapcore.WarnLevel,
		"warning":   zapcore.WarnLevel,
		"error":     zapcore.ErrorLevel,
		"fatal":     zapcore.FatalLevel,
		"WARN":      zapcore.WarnLevel,
		"":          zapcore.InfoLevel,
		"verbosest": zapcore.InfoLevel,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLevel(input), "input %q", input)
	}
}
