package oidcverifier

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLogger(t *testing.T) {
	logger := &DefaultLogger{}

	// Test that the logger methods don't panic
	logger.Debugf("debug message: %s", "test")
	logger.Infof("info message: %s", "test")
	logger.Warnf("warn message: %s", "test")
	logger.Errorf("error message: %s", "test")
}

func TestZapLogger(t *testing.T) {
	// Create a zap logger that we can observe
	core, recorded := observer.New(zapcore.InfoLevel)
	zapLogger := zap.New(core)

	logger := NewZapLogger(zapLogger.Sugar())

	logger.Debugf("debug message: %s", "test")
	assert.Equal(t, 0, recorded.Len(), "Debug message should not be recorded at Info level")

	logger.Infof("info message: %s", "test")
	assert.Equal(t, 1, recorded.Len(), "Info message should be recorded")
	assert.Equal(t, "info message: test", recorded.All()[0].Message)

	logger.Warnf("warn message: %s", "test")
	assert.Equal(t, 2, recorded.Len(), "Warn message should be recorded")
	assert.Equal(t, "warn message: test", recorded.All()[1].Message)

	logger.Errorf("error message: %s", "test")
	assert.Equal(t, 3, recorded.Len(), "Error message should be recorded")
	assert.Equal(t, "error message: test", recorded.All()[2].Message)
}

func TestZerologLogger(t *testing.T) {
	// Create a buffer to capture log output
	var buf bytes.Buffer
	zerologLogger := zerolog.New(&buf)

	logger := NewZerologLogger(zerologLogger)

	logger.Debugf("debug message: %s", "test")
	logger.Infof("info message: %s", "test")
	logger.Warnf("warn message: %s", "test")
	logger.Errorf("error message: %s", "test")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "debug message: test")
	assert.Contains(t, logOutput, "info message: test")
	assert.Contains(t, logOutput, "warn message: test")
	assert.Contains(t, logOutput, "error message: test")
}

func TestLogrusLogger(t *testing.T) {
	var buf bytes.Buffer

	logrusLogger := logrus.New()
	logrusLogger.Out = &buf
	logrusLogger.Level = logrus.InfoLevel

	logger := NewLogrusLogger(logrusLogger)

	logger.Debugf("debug message: %s", "test")
	logger.Infof("info message: %s", "test")
	logger.Warnf("warn message: %s", "test")
	logger.Errorf("error message: %s", "test")

	output := buf.String()

	// Debug level should not be logged at InfoLevel
	assert.NotContains(t, output, "debug message: test")
	assert.Contains(t, output, "info message: test")
	assert.Contains(t, output, "warn message: test")
	assert.Contains(t, output, "error message: test")

	buf.Reset()
	logrusLogger.Level = logrus.DebugLevel

	logger.Debugf("debug message: %s", "test")
	assert.Contains(t, buf.String(), "debug message: test", "Debug messages should be logged at Debug level")
}
