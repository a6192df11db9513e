package ui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bbtrace/internal/replay"
)

func TestProgressModel_ApplyEvents(t *testing.T) {
	m := NewProgressModel("replay demo", []uint64{2, 1}, nil).(*progressModel)
	require.Len(t, m.items, 2)
	assert.Equal(t, uint64(1), m.items[0].id, "threads are sorted")

	m.applyEvent(replay.Event{Thread: 1, Status: replay.StatusRunning, Done: 5, Total: 10})
	assert.InDelta(t, 0.25, m.percent(), 1e-9)

	m.applyEvent(replay.Event{Thread: 2, Status: replay.StatusDone, Done: 3, Total: 3})
	assert.InDelta(t, 0.75, m.percent(), 1e-9)

	assert.Nil(t, m.applyEvent(replay.Event{Thread: 99, Status: replay.StatusDone}))

	view := m.View()
	assert.Contains(t, view, "replay demo")
	assert.Contains(t, view, "thread 1  5/10 blocks")
	assert.Contains(t, view, "done")
}

func TestProgressModel_DoneOnClose(t *testing.T) {
	events := make(chan replay.Event)
	close(events)
	m := NewProgressModel("x", []uint64{1}, events).(*progressModel)

	msg := m.listenForEvent()()
	_, ok := msg.(doneMsg)
	require.True(t, ok)
	m.Update(msg)
	assert.True(t, strings.HasPrefix(stripANSI(m.View()), "done: x"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, 7, runewidth.StringWidth(truncate("abcdefghij", 7)))
	assert.Equal(t, "日本...", truncate("日本語のテキスト", 7))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEsc = false
		case !inEsc:
			b.WriteRune(r)
		}
	}
	return b.String()
}
