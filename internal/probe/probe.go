// internal/probe/probe.go
package probe

import "github.com/tamzrod/modbus-discovery/internal/link"

// Kind selects the read function of a probe.
type Kind uint8

const (
	ReadCoils    Kind = 1 // FC 1
	ReadDiscrete Kind = 2 // FC 2
	ReadHolding  Kind = 3 // FC 3
	ReadInput    Kind = 4 // FC 4
)

func (k Kind) String() string {
	switch k {
	case ReadCoils:
		return "coils"
	case ReadDiscrete:
		return "discrete inputs"
	case ReadHolding:
		return "holding registers"
	case ReadInput:
		return "input registers"
	default:
		return "unknown"
	}
}

// Bits reports whether values of this kind are single bits.
func (k Kind) Bits() bool {
	return k == ReadCoils || k == ReadDiscrete
}

// ParseKind maps the menu numbering (1=Holding, 2=Input, 3=Coils, 4=Discrete).
func ParseKind(menu int) (Kind, bool) {
	switch menu {
	case 1:
		return ReadHolding, true
	case 2:
		return ReadInput, true
	case 3:
		return ReadCoils, true
	case 4:
		return ReadDiscrete, true
	}
	return 0, false
}

// WriteKind selects the write function.
type WriteKind uint8

const (
	WriteCoil     WriteKind = 5 // FC 5
	WriteRegister WriteKind = 6 // FC 6
)

func (k WriteKind) String() string {
	switch k {
	case WriteCoil:
		return "coil"
	case WriteRegister:
		return "register"
	default:
		return "unknown"
	}
}

// Client is the protocol capability the discovery engine consumes.
// Calls are synchronous and bounded by the implementation's own timeout.
// Bit reads return one value per bit (0 or 1).
type Client interface {
	Probe(kind Kind, addr link.Address, start, count uint16) (Result, []uint16)
	Write(kind WriteKind, addr link.Address, offset, value uint16) Result
}
