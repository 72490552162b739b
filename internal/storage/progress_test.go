package storage

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress_BatchTotalsAndRate(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	clock := clockwork.NewFakeClock()

	p := NewProgress(clock, log, "loader")
	clock.Advance(2 * time.Second)
	p.Batch(100)
	clock.Advance(time.Second)
	p.Batch(50)

	assert.Equal(t, int64(150), p.Total())
	assert.Equal(t, int64(2), p.Batches())
	assert.Equal(t, 3*time.Second, p.Elapsed())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "batch=1")
	assert.Contains(t, lines[0], "rps=50")
	assert.Contains(t, lines[1], "batch=2")
	assert.Contains(t, lines[1], "rps=50")
	assert.Contains(t, lines[1], "total_inserted=150")
}

func TestProgress_FailedAndDefaults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewProgress(nil, slog.New(slog.NewTextHandler(&buf, nil)), "loader")
	p.Failed(errors.New("disk full"))

	assert.Contains(t, buf.String(), "batch failed")
	assert.Contains(t, buf.String(), "disk full")
	assert.Zero(t, p.Total())

	// A nil logger must not panic.
	NewProgress(nil, nil, "x").Batch(1)
}
