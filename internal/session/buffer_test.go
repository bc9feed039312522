package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferBelowLimitKeepsEverything(t *testing.T) {
	b := newOutputBuffer(64)
	b.Append([]byte("hello "))
	b.Append([]byte("world"))
	assert.Equal(t, "hello world", b.Snapshot())
}

func TestBufferTrimsToLimit(t *testing.T) {
	b := newOutputBuffer(16)
	b.Append([]byte(strings.Repeat("x", 100)))
	assert.LessOrEqual(t, b.Len(), 16)
}

func TestTrimPrefersEscapeIntroducer(t *testing.T) {
	// An escape sequence straddles the naive cutoff; the trim must land
	// on its introducer, never inside it.
	b := newOutputBuffer(16)
	payload := strings.Repeat("a", 14) + "\x1b[31m" + "red text"
	b.Append([]byte(payload))

	snap := b.Snapshot()
	require.NotEmpty(t, snap)
	assert.Equal(t, byte(0x1b), snap[0])
	assert.Equal(t, "\x1b[31mred text", snap)
}

func TestTrimFallsBackToNewline(t *testing.T) {
	b := newOutputBuffer(16)
	b.Append([]byte("first line here\nsecond\nthird"))

	snap := b.Snapshot()
	require.NotEmpty(t, snap)
	// Trim lands just past a newline, so the snapshot starts on a fresh
	// line.
	assert.Equal(t, "second\nthird", snap)
}

func TestTrimFallsBackToCarriageReturn(t *testing.T) {
	b := newOutputBuffer(8)
	b.Append([]byte("abcdef\rxy"))

	snap := b.Snapshot()
	require.NotEmpty(t, snap)
	assert.Equal(t, "xy", snap)
}

func TestTrimHardCutWithoutBoundaries(t *testing.T) {
	b := newOutputBuffer(8)
	b.Append([]byte(strings.Repeat("z", 32)))
	assert.Equal(t, strings.Repeat("z", 8), b.Snapshot())
}

func TestTrimBoundaryProperty(t *testing.T) {
	// For synthetic buffers with an escape sequence placed around the
	// cutoff, the trimmed result's first byte is an escape introducer,
	// or follows a newline or carriage return in the original stream.
	const limit = 32
	for offset := 0; offset < 24; offset++ {
		b := newOutputBuffer(limit)
		payload := strings.Repeat("a", offset) + "line one\n" +
			strings.Repeat("b", 20) + "\x1b[1mbold\x1b[0m" + strings.Repeat("c", 10)
		b.Append([]byte(payload))

		snap := b.Snapshot()
		require.NotEmpty(t, snap, "offset %d", offset)
		if len(snap) == len(payload) {
			continue
		}
		first := snap[0]
		prev := payload[len(payload)-len(snap)-1]
		ok := first == 0x1b || prev == '\n' || prev == '\r'
		assert.True(t, ok, "offset %d: snapshot starts mid-content: %q (prev %q)", offset, snap[:1], prev)
	}
}
