package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerReturnsSameEntryPerComponent(t *testing.T) {
	t.Setenv("AGENTDECK_HOME", t.TempDir())

	a := NewLogger("test-component-a")
	b := NewLogger("test-component-a")
	assert.Same(t, a, b)

	c := NewLogger("test-component-b")
	assert.NotSame(t, a, c)
}

func TestLogLevelFromEnv(t *testing.T) {
	t.Setenv("AGENTDECK_HOME", t.TempDir())
	t.Setenv("AGENTDECK_LOG_LEVEL", "debug")

	entry := NewLogger("test-level-env")
	assert.Equal(t, logrus.DebugLevel, entry.Logger.GetLevel())
}

func TestTextFormatter(t *testing.T) {
	f := &TextFormatter{}

	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "something happened",
		Data:    logrus.Fields{"component": "core", "session": "abc"},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.Contains(t, line, "2025-03-01 12:30:00")
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "[core]")
	assert.Contains(t, line, "something happened")
	assert.Contains(t, line, "session=abc")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestTextFormatterSimple(t *testing.T) {
	f := &TextFormatter{Config: FormatConfig{
		DisableTimestamp: true,
		DisableComponent: true,
	}}

	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Now(),
		Level:   logrus.InfoLevel,
		Message: "hello",
		Data:    logrus.Fields{"component": "core"},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.Equal(t, "[INFO] hello\n", line)
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{})

	logger.WithField("component", "reaper").Info("swept sessions")
	assert.Contains(t, buf.String(), "[reaper]")
	assert.Contains(t, buf.String(), "swept sessions")
}
