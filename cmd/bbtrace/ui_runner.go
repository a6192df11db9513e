package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"bbtrace/internal/replay"
	"bbtrace/internal/ui"
)

// runReplayWithUI runs h while rendering its progress events. events must
// be the channel h reports to; it is closed when the replay ends.
func runReplayWithUI(ctx context.Context, title string, threads []uint64, events chan replay.Event, h *replay.Host) error {
	outcomeCh := make(chan error, 1)
	go func() {
		err := h.Run(ctx)
		close(events)
		outcomeCh <- err
	}()

	model := ui.NewProgressModel(title, threads, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()
	// Keep the replay unblocked if the UI stopped early.
	go func() {
		for range events {
		}
	}()
	err := <-outcomeCh
	if err != nil {
		return err
	}
	return uiErr
}
