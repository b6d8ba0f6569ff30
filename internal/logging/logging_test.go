package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidSettings(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", FormatText)
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.ErrorContains(t, err, "invalid log format")
}

func TestNew_DefaultsToText(t *testing.T) {
	l, err := New(&bytes.Buffer{}, "", "")
	require.NoError(t, err)

	assert.Equal(t, logrus.InfoLevel, l.Logrus().GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Logrus().Formatter)
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info", FormatJSON)
	require.NoError(t, err)

	l.Info(context.Background(), "batch loaded", "table", "locations", "cursor", int64(12))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "batch loaded", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "locations", entry["table"])
	assert.Equal(t, float64(12), entry["cursor"])
}

func TestLogger_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info", FormatJSON)
	require.NoError(t, err)

	l.Error(context.Background(), "migration failed", "error", errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "error", entry["level"])
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info", FormatText)
	require.NoError(t, err)

	l.Debug(context.Background(), "batch committed")
	assert.Empty(t, buf.String())

	l.Logrus().SetLevel(logrus.DebugLevel)
	l.Debug(context.Background(), "batch committed", "from", 0, "to", 9)
	assert.Contains(t, buf.String(), "batch committed")
	assert.Contains(t, buf.String(), "to=9")
}

func TestFields(t *testing.T) {
	assert.Equal(t, logrus.Fields{"table": "units", "3": "x", "extra": "dangling"},
		Fields("table", "units", 3, "x", "dangling"))
	assert.Empty(t, Fields())
}

func TestWrap(t *testing.T) {
	logger, hook := newTestLogger()
	l := Wrap(logger)

	l.Info(context.Background(), "migration started", "table", "units")

	require.Len(t, hook.entries, 1)
	assert.Equal(t, "migration started", hook.entries[0].Message)
	assert.Equal(t, "units", hook.entries[0].Data["table"])
}

type recordingHook struct {
	entries []*logrus.Entry
}

func (h *recordingHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *recordingHook) Fire(e *logrus.Entry) error {
	h.entries = append(h.entries, e)
	return nil
}

func newTestLogger() (*logrus.Logger, *recordingHook) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	hook := &recordingHook{}
	logger.AddHook(hook)
	return logger, hook
}
