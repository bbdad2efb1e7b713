// internal/status/constants.go
package status

import (
	"math"
	"time"
)

// State is the logical indicator state.
type State uint8

const (
	Off State = iota
	Ready
	Scanning
	Success
	Error
	Warning
	Writing
	Connecting

	numStates
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case Ready:
		return "ready"
	case Scanning:
		return "scanning"
	case Success:
		return "success"
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Writing:
		return "writing"
	case Connecting:
		return "connecting"
	default:
		return "unknown"
	}
}

// Badge prefixes operator messages so the console mirrors the pixel.
func (s State) Badge() string {
	switch s {
	case Ready:
		return "🔵"
	case Success:
		return "✅"
	case Error:
		return "🔴"
	case Warning:
		return "🟠"
	case Writing:
		return "🟡"
	case Connecting:
		return "🔄"
	case Scanning:
		return "🟣"
	default:
		return "⚫"
	}
}

// ---- RESTING COLOURS ----

var (
	Black  = Color{0, 0, 0}
	Blue   = Color{0, 0, 255}
	Purple = Color{128, 0, 128}
	Green  = Color{0, 255, 0}
	Red    = Color{255, 0, 0}
	Orange = Color{255, 165, 0}
	Yellow = Color{255, 255, 0}
	Cyan   = Color{0, 255, 255}
)

// ---- TIMING ----

const (
	// IdleFreeze stops per-tick rendering of static states.
	IdleFreeze = 2 * time.Second

	ErrorBlink  = 250 * time.Millisecond
	ErrorExpiry = 3 * time.Second

	SuccessHold   = 500 * time.Millisecond
	SuccessFade   = 500 * time.Millisecond
	SuccessExpiry = SuccessHold + SuccessFade

	scanPeriod    = 200.0 // ms per radian
	connectPeriod = 300.0
	writePeriod   = 150.0
)

// ---- RULE TABLE ----

// rule is the render law of one logical state.
// Logical state and animation phase are orthogonal: only rules with a
// non-zero expireAfter may move the logical state, and only to expireTo.
type rule struct {
	rest    Color
	animate func(elapsed time.Duration) Color // nil: static

	freezeAfter time.Duration
	expireAfter time.Duration
	expireTo    State
}

var rules = [numStates]rule{
	Off:     {rest: Black, freezeAfter: IdleFreeze},
	Ready:   {rest: Blue, freezeAfter: IdleFreeze},
	Warning: {rest: Orange, freezeAfter: IdleFreeze},

	Scanning:   {rest: Purple, animate: breathe(270, scanPeriod)},
	Connecting: {rest: Cyan, animate: breathe(180, connectPeriod)},
	Writing:    {rest: Yellow, animate: breathe(60, writePeriod)},

	Error: {
		rest:        Red,
		animate:     blink(Red, ErrorBlink),
		expireAfter: ErrorExpiry,
		expireTo:    Ready,
	},
	Success: {
		rest:        Green,
		animate:     fadeTo(Green, Blue, SuccessHold, SuccessFade),
		expireAfter: SuccessExpiry,
		expireTo:    Ready,
	},
}

// breathe is a sinusoidal brightness law at a fixed hue.
func breathe(hue, msPerRadian float64) func(time.Duration) Color {
	return func(elapsed time.Duration) Color {
		ms := float64(elapsed) / float64(time.Millisecond)
		brightness := math.Floor((math.Sin(ms/msPerRadian) + 1) * 127)
		return hsv(hue, brightness/255)
	}
}

// blink alternates on and off every half period.
func blink(on Color, half time.Duration) func(time.Duration) Color {
	return func(elapsed time.Duration) Color {
		if (elapsed/half)%2 == 0 {
			return on
		}
		return Black
	}
}

// fadeTo holds from, then cross-fades linearly to to.
func fadeTo(from, to Color, hold, fade time.Duration) func(time.Duration) Color {
	return func(elapsed time.Duration) Color {
		if elapsed < hold {
			return from
		}
		t := float64(elapsed-hold) / float64(fade)
		if t > 1 {
			t = 1
		}
		return blend(from, to, t)
	}
}
