package ui

import (
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// ProgressUI runs a ProgressModel inline below the chat log. It never reads
// the terminal, so the command prompt keeps working while bars move.
type ProgressUI struct {
	program *tea.Program
	model   *ProgressModel
	wg      sync.WaitGroup
}

func NewProgressUI(model *ProgressModel) *ProgressUI {
	return &ProgressUI{
		model: model,
		program: tea.NewProgram(model,
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
	}
}

// Model returns the model being rendered.
func (u *ProgressUI) Model() *ProgressModel {
	return u.model
}

// Start renders in the background until every item finishes or Stop is called.
func (u *ProgressUI) Start() {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		if _, err := u.program.Run(); err != nil {
			slog.Debug("progress UI stopped", "error", err)
		}
	}()
}

// Wait blocks until the program exits.
func (u *ProgressUI) Wait() {
	u.wg.Wait()
}

func (u *ProgressUI) Stop() {
	u.program.Quit()
	u.wg.Wait()
}
