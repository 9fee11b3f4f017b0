// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/flowrunner/internal/config"
)

// bufferSink adapts a bytes.Buffer to zapcore.WriteSyncer.
type bufferSink struct {
	bytes.Buffer
}

func (b *bufferSink) Sync() error { return nil }

func newSink(t *testing.T) *bufferSink {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	return &bufferSink{}
}

func TestInitialize(t *testing.T) {
	t.Run("console logger colorizes the level", func(t *testing.T) {
		sink := newSink(t)
		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}
		Initialize(cfg, sink)
		GetLogger().Info("This is a test message.")

		output := sink.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, "TestService.")
		assert.Contains(t, output, colorGreen)
		assert.Contains(t, output, colorReset)
	})

	t.Run("json logger emits structured entries", func(t *testing.T) {
		sink := newSink(t)
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, sink)
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))

		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(sink.Bytes(), &logEntry), "Log output should be valid JSON")
		assert.Equal(t, "warn", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("level filtering", func(t *testing.T) {
		sink := newSink(t)
		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, sink)
		GetLogger().Info("dropped")
		GetLogger().Error("kept")

		assert.NotContains(t, sink.String(), "dropped")
		assert.Contains(t, sink.String(), "kept")
	})

	t.Run("log file receives json", func(t *testing.T) {
		sink := newSink(t)
		logFile := filepath.Join(t.TempDir(), "flowrunner.log")
		Initialize(config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1}, sink)
		GetLogger().Error("This should go to the file.")
		require.NoError(t, GetLogger().Sync())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`)
	})

	t.Run("only the first initialization wins", func(t *testing.T) {
		sink := newSink(t)
		Initialize(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "First"}, sink)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "Second"}, sink)
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		assert.True(t, strings.Contains(sink.String(), "First"))
		assert.False(t, strings.Contains(sink.String(), "Second"))
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("global logger after initialization", func(t *testing.T) {
		sink := newSink(t)
		Initialize(config.LoggerConfig{Level: "info"}, sink)
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}

func TestForRun(t *testing.T) {
	sink := &bufferSink{}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zap.DebugLevel)
	base := zap.New(core)

	ForRun(base, "TC011", "run-1").Info("step")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(sink.Bytes(), &entry))
	assert.Equal(t, "TC011", entry["case"])
	assert.Equal(t, "run-1", entry["run_id"])
}
