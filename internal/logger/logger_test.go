package logger

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Levels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	New(&buf, true).Debug("loader: batch committed", "batch", 3)
	out := buf.String()
	assert.Contains(t, out, "loader: batch committed")
	assert.Contains(t, out, "batch=3")
	assert.NotContains(t, out, "\x1b[", "no color codes outside a terminal")
}

func TestReplaceAttr(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 1, 7, 8, 9, 123_456_789, time.FixedZone("X", 3600))
	got := replaceAttr(nil, slog.Time(slog.TimeKey, ts))
	assert.Equal(t, "2026-03-01T06:08:09.123Z", got.Value.String())

	assert.True(t, replaceAttr(nil, slog.String("dsn", "")).Equal(slog.Attr{}))
	assert.Equal(t, "x", replaceAttr(nil, slog.String("k", "x")).Value.String())
}
