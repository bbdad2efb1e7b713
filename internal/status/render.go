// internal/status/render.go
package status

import (
	"io"

	"go.uber.org/zap"
)

// LogRenderer logs colour changes. Used when no pixel is attached.
type LogRenderer struct {
	Log *zap.Logger
}

func (r LogRenderer) Show(c Color) {
	if r.Log == nil {
		return
	}
	r.Log.Debug("indicator", zap.Stringer("color", c))
}

// FrameRenderer writes one GRB frame per colour change, e.g. to a pixel bridge.
type FrameRenderer struct {
	W   io.Writer
	Log *zap.Logger
}

func (r FrameRenderer) Show(c Color) {
	frame := Encode(c)
	if _, err := r.W.Write(frame[:]); err != nil && r.Log != nil {
		r.Log.Warn("indicator frame write failed", zap.Error(err))
	}
}

// Multi fans one colour out to several renderers.
type Multi []Renderer

func (m Multi) Show(c Color) {
	for _, r := range m {
		r.Show(c)
	}
}

// Recorder keeps every rendered colour.
type Recorder struct {
	Colors []Color
}

func (r *Recorder) Show(c Color) {
	r.Colors = append(r.Colors, c)
}

// Last returns the most recent colour, Black if none.
func (r *Recorder) Last() Color {
	if len(r.Colors) == 0 {
		return Black
	}
	return r.Colors[len(r.Colors)-1]
}
