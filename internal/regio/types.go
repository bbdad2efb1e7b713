// internal/regio/types.go
package regio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tamzrod/modbus-discovery/internal/link"
	"github.com/tamzrod/modbus-discovery/internal/probe"
	"github.com/tamzrod/modbus-discovery/internal/status"
)

// Per-request protocol limits.
const (
	MaxRegisters = 125
	MaxBits      = 2000
)

var ErrQuantity = errors.New("regio: quantity out of range")

// Indicator receives logical state changes.
type Indicator interface {
	Set(state status.State, animate bool)
}

// Block describes one read geometry.
type Block struct {
	Kind     probe.Kind
	Start    uint16
	Quantity uint16
}

// Validate checks the kind and the per-kind quantity limit.
func (b Block) Validate() error {
	switch b.Kind {
	case probe.ReadCoils, probe.ReadDiscrete, probe.ReadHolding, probe.ReadInput:
	default:
		return fmt.Errorf("regio: unsupported kind %d", b.Kind)
	}

	limit := uint16(MaxRegisters)
	if b.Kind.Bits() {
		limit = MaxBits
	}
	if b.Quantity == 0 || b.Quantity > limit {
		return fmt.Errorf("%w: %d %s (1..%d)", ErrQuantity, b.Quantity, b.Kind, limit)
	}
	if uint32(b.Start)+uint32(b.Quantity) > 0x10000 {
		return fmt.Errorf("%w: %d..%d past end of address space", ErrQuantity, b.Start, uint32(b.Start)+uint32(b.Quantity)-1)
	}
	return nil
}

// BlockResult is the raw result of a single read.
type BlockResult struct {
	Address link.Address
	Block   Block
	Result  probe.Result
	At      time.Time

	// One value per register, or 0/1 per bit.
	Values []uint16
}

func (r BlockResult) OK() bool { return r.Result == probe.Success }

// WriteTo prints one line per value, e.g. "Register 3: 0x002A (42)" or "Coil 1: ON".
func (r BlockResult) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, v := range r.Values {
		off := uint32(r.Block.Start) + uint32(i)

		var n int
		var err error
		switch r.Block.Kind {
		case probe.ReadCoils:
			n, err = fmt.Fprintf(w, "Coil %d: %s\n", off, onOff(v))
		case probe.ReadDiscrete:
			n, err = fmt.Fprintf(w, "Input %d: %s\n", off, highLow(v))
		default:
			n, err = fmt.Fprintf(w, "Register %d: 0x%04X (%d)\n", off, v, v)
		}
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func onOff(v uint16) string {
	if v != 0 {
		return "ON"
	}
	return "OFF"
}

func highLow(v uint16) string {
	if v != 0 {
		return "HIGH"
	}
	return "LOW"
}
