// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/divrinavyas/google-form-submitter/internal/config"
)

// setupTestLogger initializes the global logger to write to a buffer for testing.
func setupTestLogger(cfg config.LoggerConfig) *bytes.Buffer {
	buf := new(bytes.Buffer)
	Initialize(cfg, zapcore.AddSync(buf))
	return buf
}

func TestInitializeLogger(t *testing.T) {

	t.Run("should initialize console logger with colors", func(t *testing.T) {
		// Use the exported reset function to ensure a clean slate.
		ResetForTest()

		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
		}
		buf := setupTestLogger(cfg)

		GetLogger().Info("This is a test message.")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "INFO", "Output should contain the log level")
		assert.Contains(t, output, "This is a test message.", "Output should contain the message")
		assert.Contains(t, output, colorGreen, "Info level should be colorized green")
		assert.Contains(t, output, colorReset, "Output should contain the reset color code")
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()

		cfg := config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		}
		buf := setupTestLogger(cfg)

		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
		Sync()

		var logEntry map[string]interface{}
		err := json.Unmarshal(buf.Bytes(), &logEntry)
		require.NoError(t, err, "Log output should be valid JSON")

		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("should write to a log file if configured", func(t *testing.T) {
		ResetForTest()

		logPath := filepath.Join(t.TempDir(), "submitter.log")
		cfg := config.LoggerConfig{
			Level:   "debug",
			Format:  "console",
			LogFile: logPath,
			MaxSize: 1,
		}
		setupTestLogger(cfg)

		GetLogger().Info("File sink message.")
		Sync()

		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		// The file core always writes structured JSON regardless of the
		// console format.
		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(bytes.Split(data, []byte("\n"))[0], &logEntry))
		assert.Equal(t, "File sink message.", logEntry["msg"])
	})

	t.Run("should fall back to info on an invalid level", func(t *testing.T) {
		ResetForTest()

		buf := setupTestLogger(config.LoggerConfig{Level: "shouting", Format: "json"})
		GetLogger().Debug("this should be filtered")
		GetLogger().Info("this should pass")
		Sync()

		output := buf.String()
		assert.NotContains(t, output, "this should be filtered")
		assert.Contains(t, output, "this should pass")
	})

	t.Run("GetLogger before initialization returns a usable nop", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
		// Must not panic.
		GetLogger().Info("into the void")
	})
}
