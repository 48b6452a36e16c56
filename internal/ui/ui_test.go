package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressModelTracksItems(t *testing.T) {
	m := NewProgressModel()
	m.Track("bob/report.pdf", "bob", "report.pdf", 200)
	m.Track("bob/report.pdf", "bob", "report.pdf", 200)
	m.Track("carol/report.pdf", "carol", "report.pdf", 200)

	m.SetProgress("bob/report.pdf", 100)
	m.SetProgress("nobody", 5)

	view := m.View()
	assert.Contains(t, view, "bob")
	assert.Contains(t, view, "carol")
	assert.Contains(t, view, "50.0%")
	assert.False(t, m.AllComplete())

	m.MarkComplete("bob/report.pdf")
	m.MarkError("carol/report.pdf", "peer left")
	assert.True(t, m.AllComplete())
	assert.Contains(t, m.View(), "peer left")
	assert.Contains(t, m.View(), "100.0%")
}

func TestProgressModelQuitsWhenDone(t *testing.T) {
	m := NewProgressModel()
	m.Track("a", "bob", "x", 1)
	m.MarkComplete("a")

	_, cmd := m.Update(TickMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRosterView(t *testing.T) {
	assert.Contains(t, RosterView(nil), "Nobody")

	view := RosterView([]RosterRow{
		{Name: "bob", ClientType: "web", Role: "offerer", State: "connected", Channel: true, Secured: true},
		{Name: "carol", ClientType: "cli", Role: "answerer", State: "have-remote"},
	})
	assert.Contains(t, view, "bob")
	assert.Contains(t, view, "have-remote")
	assert.Contains(t, view, "2 peer(s)")
}

func TestTransferSummaryView(t *testing.T) {
	view := TransferSummaryView(TransferSummary{
		Status: "Sent", File: "notes.txt", Peer: "bob", Size: "1.00 KB", Duration: "1s", Speed: "1.00 KB/s",
	})
	assert.Contains(t, view, "notes.txt")
	assert.Contains(t, view, "Avg Speed")
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "csi", in: "\x1b[2J\x1b[31mred\x1b[0m", want: "red"},
		{name: "osc52", in: "hi\x1b]52;c;cm0gLXJmIH4K\x07!", want: "hi!"},
		{name: "c0 and c1", in: "a\x00b\x07c\u0085d", want: "abcd"},
		{name: "bidi override", in: "abc\u202Etxt.exe", want: "abctxt.exe"},
		{name: "newlines", in: "one\ntwo\tthree", want: "one two three"},
		{name: "capped", in: "abcdef", limit: 3, want: "abc…"},
		{name: "exactly at cap", in: "abc", limit: 3, want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in, tt.limit))
		})
	}
}

func TestChatLine(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)
	line := ChatLine(at, "bob", "hello", false)
	assert.Contains(t, line, "09:30")
	assert.Contains(t, line, "bob")
	assert.Contains(t, line, "hello")

	line = ChatLine(at, "bob\x1b]0;x\x07", "hi\x1b[2J", false)
	assert.NotContains(t, line, "\x1b]")
	assert.NotContains(t, line, "\x1b[2J")
}
