// internal/console/pump.go
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Ticker is the indicator side of the pump.
type Ticker interface {
	Tick(now time.Time)
}

// Lines feeds r line by line into a channel from one goroutine.
// The channel is closed on EOF or read error.
func Lines(r io.Reader) <-chan string {
	ch := make(chan string, 16)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// Pump keeps the indicator and the operator input alive while an operation
// holds the loop goroutine. Everything here runs on that goroutine.
type Pump struct {
	ticker Ticker
	in     <-chan string
	tick   time.Duration
	clock  func() time.Time
	out    io.Writer

	queued []string
	closed bool
	cancel context.CancelFunc
}

func NewPump(t Ticker, in <-chan string, tick time.Duration, out io.Writer) *Pump {
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	if out == nil {
		out = io.Discard
	}
	return &Pump{ticker: t, in: in, tick: tick, clock: time.Now, out: out}
}

// Interval is the tick period.
func (p *Pump) Interval() time.Duration { return p.tick }

// Tick advances the indicator to now.
func (p *Pump) Tick() {
	if p.ticker != nil {
		p.ticker.Tick(p.clock())
	}
}

// Begin derives the context of one cancellable operation.
// A "q" line read by Yield cancels it. The returned func must be called when the operation ends.
func (p *Pump) Begin(ctx context.Context) (context.Context, func()) {
	opCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	return opCtx, func() {
		cancel()
		p.cancel = nil
	}
}

// Yield ticks the indicator and drains pending input without blocking.
func (p *Pump) Yield(ctx context.Context) error {
	p.Tick()
	for {
		select {
		case line, ok := <-p.in:
			if !ok {
				p.closed = true
				p.in = nil
				return ctx.Err()
			}
			if isCancel(line) && p.cancel != nil {
				fmt.Fprintln(p.out, "Cancelling...")
				p.cancel()
				continue
			}
			p.queued = append(p.queued, line)
		default:
			return ctx.Err()
		}
	}
}

// Sleep waits d in tick-sized slices, yielding between them.
func (p *Pump) Sleep(ctx context.Context, d time.Duration) error {
	deadline := p.clock().Add(d)
	for {
		if err := p.Yield(ctx); err != nil {
			return err
		}
		remaining := deadline.Sub(p.clock())
		if remaining <= 0 {
			return nil
		}
		if remaining > p.tick {
			remaining = p.tick
		}

		t := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Next returns one pending line without blocking, queued lines first.
func (p *Pump) Next() (string, bool) {
	if len(p.queued) > 0 {
		line := p.queued[0]
		p.queued = p.queued[1:]
		return line, true
	}
	if p.in == nil {
		return "", false
	}
	select {
	case line, ok := <-p.in:
		if !ok {
			p.closed = true
			p.in = nil
			return "", false
		}
		return line, true
	default:
		return "", false
	}
}

// Closed reports whether input is exhausted and nothing is queued.
func (p *Pump) Closed() bool { return p.closed && len(p.queued) == 0 }

func isCancel(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), "q")
}
