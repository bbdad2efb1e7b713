// internal/console/loop.go
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-discovery/internal/status"
)

// field is one modal prompt. set parses and stores the answer.
type field struct {
	ask string
	set func(line string) error
}

// form collects answers one line at a time, then runs.
type form struct {
	title  string
	fields []field
	next   int
	run    func(ctx context.Context)
}

// Loop is the operator console: one goroutine, ticked, never blocking on input.
type Loop struct {
	app  *App
	pump *Pump
	out  io.Writer
	log  *zap.Logger

	form *form
	quit bool
}

func NewLoop(app *App, pump *Pump) *Loop {
	out := app.Out
	if out == nil {
		out = io.Discard
	}
	log := app.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{app: app, pump: pump, out: out, log: log}
}

// Run ticks until ctx is done, input is exhausted, or the operator quits.
func (l *Loop) Run(ctx context.Context) error {
	l.banner()
	l.set(status.Ready, "System ready!")
	l.menu()

	t := time.NewTicker(l.pump.Interval())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		if !l.Step(ctx) {
			return nil
		}
	}
}

// Step ticks the indicator and handles at most one input line.
// It returns false once the loop should stop.
func (l *Loop) Step(ctx context.Context) bool {
	l.pump.Tick()
	if line, ok := l.pump.Next(); ok {
		l.Handle(ctx, line)
	}
	return !l.quit && !l.pump.Closed()
}

// Handle routes one line to the open prompt or the menu.
func (l *Loop) Handle(ctx context.Context, line string) {
	line = strings.TrimSpace(line)

	if l.form != nil {
		l.answer(ctx, line)
		return
	}

	switch strings.ToLower(line) {
	case "":
		return
	case "q", "quit", "exit":
		l.quit = true
		l.printf("Bye.\n")
		return
	}

	if len(line) != 1 || line[0] < '1' || line[0] > '9' {
		l.printf("❌ Please enter a single digit (1-9).\n")
		l.after()
		return
	}

	l.dispatch(ctx, int(line[0]-'0'))
}

// Busy reports whether a prompt is waiting for an answer.
func (l *Loop) Busy() bool { return l.form != nil }

func (l *Loop) start(ctx context.Context, f *form) {
	if len(f.fields) == 0 {
		f.run(ctx)
		l.after()
		return
	}
	l.form = f
	l.printf("\n%s\n", f.title)
	l.printf("%s\n", f.fields[0].ask)
}

func (l *Loop) answer(ctx context.Context, line string) {
	f := l.form
	if err := f.fields[f.next].set(line); err != nil {
		l.form = nil
		l.printf("❌ %v\n", err)
		l.after()
		return
	}
	f.next++
	if f.next < len(f.fields) {
		l.printf("%s\n", f.fields[f.next].ask)
		return
	}
	l.form = nil
	f.run(ctx)
	l.after()
}

// run executes one cancellable operation. Typing q cancels it.
func (l *Loop) run(ctx context.Context, name string, fn func(ctx context.Context) error) {
	opCtx, done := l.pump.Begin(ctx)
	defer done()

	l.printf("(type q and Enter to cancel)\n")
	err := fn(opCtx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		l.printf("Operation cancelled.\n")
	default:
		l.log.Error("operation failed", zap.String("op", name), zap.Error(err))
		l.printf("❌ %v\n", err)
	}
}

func (l *Loop) set(st status.State, msg string) {
	if l.app.Status != nil {
		l.app.Status.Set(st, true)
	}
	l.printf("%s %s\n", st.Badge(), msg)
}

func (l *Loop) after() {
	l.printf("\n%s\n", strings.Repeat("-", 40))
	l.menu()
}

func (l *Loop) printf(format string, args ...any) {
	fmt.Fprintf(l.out, format, args...)
}
