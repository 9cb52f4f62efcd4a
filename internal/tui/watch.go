// Package tui shows the execution log of the automation in the terminal
// while it is running.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jakopako/mailwalk/internal/runstate"
	"github.com/jakopako/mailwalk/internal/types"
	"github.com/rivo/tview"
)

// Store is the durable state the watch console reads.
type Store interface {
	runstate.FlagStore
	Logs(ctx context.Context) ([]types.LogEntry, error)
}

var levelColors = map[types.LogLevel]string{
	types.LogLevelInfo:    "white",
	types.LogLevelSuccess: "green",
	types.LogLevelWarn:    "yellow",
	types.LogLevelError:   "red",
}

// Render formats entries as color tagged text for a tview.TextView.
func Render(entries []types.LogEntry) string {
	var b strings.Builder
	for _, e := range entries {
		color, ok := levelColors[e.Type]
		if !ok {
			color = "white"
		}
		fmt.Fprintf(&b, "[%s]%s[-]\n", color, tview.Escape(e.Message))
	}
	return b.String()
}

// StatusLine describes the run flag and the keys of the console.
func StatusLine(running, set bool) string {
	state := "[grey]idle[-]"
	switch {
	case running:
		state = "[green]running[-]"
	case set:
		state = "[yellow]stopped[-]"
	}
	return fmt.Sprintf(" automation: %s   (s) stop   (q) quit", state)
}

// Watcher polls the store and shows the log as it grows.
type Watcher struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
	shown    int
}

func NewWatcher(store Store, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Watcher{
		store:    store,
		interval: interval,
		logger:   slog.With(slog.String("component", "watch")),
		shown:    -1,
	}
}

// Run shows the console until the user quits or ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := tview.NewApplication()
	logView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	logView.SetBorder(true).SetTitle(" execution log ")
	status := tview.NewTextView().SetDynamicColors(true)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(logView, 0, 1, true).
		AddItem(status, 1, 0, false)

	layout.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q':
			app.Stop()
			return nil
		case 's':
			if err := runstate.Stop(ctx, w.store); err != nil {
				w.logger.Error(fmt.Sprintf("error stopping the automation: %v", err))
			}
			return nil
		}
		if event.Key() == tcell.KeyEscape {
			app.Stop()
			return nil
		}
		return event
	})

	go w.poll(ctx, app, logView, status)

	return app.SetRoot(layout, true).SetFocus(logView).Run()
}

// frame is what one poll puts on the screen. The log view is only
// replaced if redraw is set.
type frame struct {
	status string
	log    string
	redraw bool
}

// next reads the store once. A failed read keeps the log view as it is
// and is shown in the status line.
func (w *Watcher) next(ctx context.Context) frame {
	var f frame
	var problem string
	logs, err := w.store.Logs(ctx)
	switch {
	case err != nil:
		if ctx.Err() == nil {
			w.logger.Warn(fmt.Sprintf("error reading logs: %v", err))
		}
		problem = "error reading logs"
	case len(logs) != w.shown:
		w.shown = len(logs)
		f.log = Render(logs)
		f.redraw = true
	}
	running, set, err := w.store.IsAutomationRunning(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn(fmt.Sprintf("error reading run flag: %v", err))
		}
		problem = "error reading run flag"
	}
	f.status = StatusLine(running, set)
	if problem != "" {
		f.status += fmt.Sprintf("   [red]%s[-]", problem)
	}
	return f
}

func (w *Watcher) poll(ctx context.Context, app *tview.Application, logView, status *tview.TextView) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		f := w.next(ctx)
		app.QueueUpdateDraw(func() {
			status.SetText(f.status)
			if f.redraw {
				logView.SetText(f.log)
				logView.ScrollToEnd()
			}
		})

		select {
		case <-ctx.Done():
			app.Stop()
			return
		case <-ticker.C:
		}
	}
}
