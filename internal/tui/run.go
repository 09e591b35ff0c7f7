package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/NCDesigner/QG-Estrat-gico/internal/council"
)

// Run opens the chat screen on the alternate screen until the user quits or
// ctx is canceled. The orchestrator's progress events drive the status line.
func Run(ctx context.Context, opts Options, orch *council.Orchestrator) error {
	if orch != nil {
		opts.Turns = orch
	}
	m, err := New(opts)
	if err != nil {
		return err
	}
	m.ctx = ctx

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if orch != nil {
		prev := orch.Progress
		orch.Progress = council.ProgressFunc(func(e council.Event) { p.Send(progressMsg(e)) })
		defer func() { orch.Progress = prev }()
	}

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
