// internal/status/encode.go
package status

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is one 8-bit RGB pixel value.
type Color struct {
	R, G, B uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Encode converts a colour into the GRB byte order a WS2812 pixel expects.
// No IO. No side effects.
func Encode(c Color) [3]byte {
	return [3]byte{c.G, c.R, c.B}
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
}

func fromColorful(c colorful.Color) Color {
	r, g, b := c.Clamped().RGB255()
	return Color{r, g, b}
}

// hsv builds a fully saturated colour; hue in degrees, value in 0..1.
func hsv(hue, value float64) Color {
	return fromColorful(colorful.Hsv(hue, 1, value))
}

// blend is a linear RGB cross-fade, t in 0..1.
func blend(from, to Color, t float64) Color {
	return fromColorful(from.colorful().BlendRgb(to.colorful(), t))
}
