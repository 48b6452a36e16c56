package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Tayyab-Ali-786/Chattify/internal/utils"
)

// ProgressItem is one file moving to one peer.
type ProgressItem struct {
	Key        string
	Peer       string
	Name       string
	Total      int64
	Current    int64
	StartTime  time.Time
	Started    bool
	Speed      float64 // bytes per second
	IsComplete bool
	HasError   bool
	ErrorMsg   string
}

// ProgressModel renders a bar per (peer, file) pair. It is a tea.Model and
// quits on its own once every item is complete or failed.
type ProgressModel struct {
	mu         sync.RWMutex
	items      []*ProgressItem
	index      map[string]int
	progresses []progress.Model
	width      int
}

func NewProgressModel() *ProgressModel {
	return &ProgressModel{
		index: make(map[string]int),
		width: 80,
	}
}

// Track adds an item. Tracking a key twice is a no-op.
func (m *ProgressModel) Track(key, peer, name string, total int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[key]; ok {
		return
	}
	m.index[key] = len(m.items)
	m.items = append(m.items, &ProgressItem{Key: key, Peer: peer, Name: name, Total: total})
	m.progresses = append(m.progresses, progress.New(
		progress.WithGradient(ProgressStart, ProgressEnd),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	))
}

func (m *ProgressModel) item(key string) *ProgressItem {
	i, ok := m.index[key]
	if !ok {
		return nil
	}
	return m.items[i]
}

// SetProgress records how many bytes of key have been sent.
func (m *ProgressModel) SetProgress(key string, current int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.item(key)
	if item == nil {
		return
	}
	// Start timing from the first byte, not from Track
	if !item.Started && current > 0 {
		item.Started = true
		item.StartTime = time.Now()
	}
	if item.Started {
		if elapsed := time.Since(item.StartTime).Seconds(); elapsed > 0 {
			item.Speed = float64(current) / elapsed
		}
	}
	item.Current = current
}

func (m *ProgressModel) MarkComplete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.item(key); item != nil {
		item.IsComplete = true
		item.Current = item.Total
	}
}

func (m *ProgressModel) MarkError(key, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.item(key); item != nil {
		item.HasError = true
		item.ErrorMsg = errMsg
	}
}

// AllComplete returns true if every item is done or failed.
func (m *ProgressModel) AllComplete() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, item := range m.items {
		if !item.IsComplete && !item.HasError {
			return false
		}
	}
	return true
}

// TickMsg is sent periodically to update the progress display
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m *ProgressModel) Init() tea.Cmd {
	return tickCmd()
}

func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		if m.AllComplete() {
			return m, tea.Quit
		}
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		for i := range m.progresses {
			m.progresses[i].Width = max(10, min(30, msg.Width-60))
		}
		m.mu.Unlock()
		return m, nil

	case progress.FrameMsg:
		m.mu.Lock()
		defer m.mu.Unlock()
		var cmds []tea.Cmd
		for i := range m.progresses {
			newModel, cmd := m.progresses[i].Update(msg)
			m.progresses[i] = newModel.(progress.Model)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *ProgressModel) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder

	for i, item := range m.items {
		icon, nameStyle := IconSend, lipgloss.NewStyle()
		switch {
		case item.HasError:
			icon, nameStyle = IconError, ErrorStyle
		case item.IsComplete:
			icon, nameStyle = IconSuccess, SuccessStyle
		}

		fmt.Fprintf(&b, "%s %s %s ", icon,
			NameStyle.Render(utils.TruncateString(item.Peer, 16)),
			nameStyle.Render(utils.TruncateString(item.Name, 30)))

		if item.Total > 0 {
			percent := float64(item.Current) / float64(item.Total)
			b.WriteString(m.progresses[i].ViewAs(percent))
			fmt.Fprintf(&b, " %5.1f%%", percent*100)
		}

		if item.HasError {
			b.WriteString(ErrorStyle.Render(" " + item.ErrorMsg))
		} else if !item.IsComplete && item.Speed > 0 {
			b.WriteString(MutedStyle.Render(" " + utils.FormatSpeed(item.Speed)))
			if remaining := item.Total - item.Current; remaining > 0 {
				eta := time.Duration(float64(remaining) / item.Speed * float64(time.Second))
				b.WriteString(MutedStyle.Render(" ETA: " + utils.FormatTimeDuration(eta)))
			}
		}

		b.WriteString(MutedStyle.Render(fmt.Sprintf(" (%s/%s)",
			utils.FormatSize(item.Current),
			utils.FormatSize(item.Total))))
		b.WriteString("\n")
	}

	return b.String()
}
