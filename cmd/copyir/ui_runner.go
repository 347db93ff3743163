package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"copyir/internal/driver"
	"copyir/internal/pipeline"
	"copyir/internal/ui"
)

type lowerOutcome struct {
	session *driver.Session
	err     error
}

// runLowerWithUI drives LowerFiles in the background while a progress view
// consumes its events.
func runLowerWithUI(ctx context.Context, title string, files []string, opts driver.Options) (*driver.Session, error) {
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan lowerOutcome, 1)

	go func() {
		o := opts
		o.Sink = pipeline.ChannelSink{Ch: events}
		sess, err := driver.LowerFiles(ctx, files, o)
		outcomeCh <- lowerOutcome{session: sess, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.session, uiErr
	}
	return outcome.session, outcome.err
}
