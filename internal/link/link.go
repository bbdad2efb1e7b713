// internal/link/link.go
package link

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ---- ADDRESS ----

// Address is a Modbus slave address.
type Address uint8

const (
	MinAddress Address = 1
	MaxAddress Address = 247
)

// ErrInvalidAddress is returned for any address outside 1..247.
var ErrInvalidAddress = errors.New("link: slave address must be between 1 and 247")

// Validate rejects 0 and anything above 247.
func (a Address) Validate() error {
	if a < MinAddress || a > MaxAddress {
		return fmt.Errorf("%w (got %d)", ErrInvalidAddress, a)
	}
	return nil
}

// ParseAddress parses operator input. Empty or non-numeric input is rejected.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w (empty input)", ErrInvalidAddress)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w (%q is not a number)", ErrInvalidAddress, s)
	}
	if n < int(MinAddress) || n > int(MaxAddress) {
		return 0, fmt.Errorf("%w (got %d)", ErrInvalidAddress, n)
	}
	return Address(n), nil
}

// ---- BAUD ----

// BaudRate is a serial line speed in bits per second.
type BaudRate uint32

// BaudRates is the candidate table, most popular first.
var BaudRates = []BaudRate{
	9600,
	19200,
	38400,
	57600,
	115200,
	4800,
	2400,
	1200,
}

// ParseBaudRate accepts any positive integer. It does not require a table entry,
// operators may know a speed the table does not list.
func ParseBaudRate(s string) (BaudRate, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("link: invalid baud rate %q", s)
	}
	return BaudRate(n), nil
}

// ---- FRAMING ----

// Parity of a serial character frame.
type Parity byte

const (
	ParityNone Parity = 'N'
	ParityEven Parity = 'E'
	ParityOdd  Parity = 'O'
)

func (p Parity) name() string {
	switch p {
	case ParityNone:
		return "No"
	case ParityEven:
		return "Even"
	case ParityOdd:
		return "Odd"
	default:
		return "?"
	}
}

// Framing is data bits, parity and stop bits.
type Framing struct {
	DataBits int
	Parity   Parity
	StopBits int
}

var (
	Framing8N1 = Framing{DataBits: 8, Parity: ParityNone, StopBits: 1}
	Framing8E1 = Framing{DataBits: 8, Parity: ParityEven, StopBits: 1}
	Framing8O1 = Framing{DataBits: 8, Parity: ParityOdd, StopBits: 1}
	Framing8N2 = Framing{DataBits: 8, Parity: ParityNone, StopBits: 2}
	Framing7E1 = Framing{DataBits: 7, Parity: ParityEven, StopBits: 1}
	Framing7O1 = Framing{DataBits: 7, Parity: ParityOdd, StopBits: 1}
)

// Framings is the candidate table in probe order.
var Framings = []Framing{
	Framing8N1,
	Framing8E1,
	Framing8O1,
	Framing8N2,
	Framing7E1,
	Framing7O1,
}

// String returns the short form, e.g. "8E1".
func (f Framing) String() string {
	return fmt.Sprintf("%d%c%d", f.DataBits, f.Parity, f.StopBits)
}

// Describe returns the long form, e.g. "8E1 (8 data, Even parity, 1 stop)".
func (f Framing) Describe() string {
	return fmt.Sprintf("%s (%d data, %s parity, %d stop)", f, f.DataBits, f.Parity.name(), f.StopBits)
}

// Validate checks the combination is something a UART can be set to.
func (f Framing) Validate() error {
	if f.DataBits < 5 || f.DataBits > 8 {
		return fmt.Errorf("link: data bits %d out of range 5..8", f.DataBits)
	}
	switch f.Parity {
	case ParityNone, ParityEven, ParityOdd:
	default:
		return fmt.Errorf("link: unknown parity %q", byte(f.Parity))
	}
	if f.StopBits != 1 && f.StopBits != 2 {
		return fmt.Errorf("link: stop bits must be 1 or 2, got %d", f.StopBits)
	}
	return nil
}

// ParseFraming parses the short form ("8N1", "7e1").
func ParseFraming(s string) (Framing, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return Framing{}, fmt.Errorf("link: invalid framing %q", s)
	}
	f := Framing{
		DataBits: int(s[0] - '0'),
		Parity:   Parity(s[1]),
		StopBits: int(s[2] - '0'),
	}
	if err := f.Validate(); err != nil {
		return Framing{}, fmt.Errorf("link: invalid framing %q: %w", s, err)
	}
	return f, nil
}

// ---- LINK CONFIG ----

// Config is one baud + framing pairing.
type Config struct {
	Baud    BaudRate
	Framing Framing
}

// Default is the configuration probed first: 9600 8N1.
var Default = Config{Baud: 9600, Framing: Framing8N1}

func (c Config) String() string {
	return fmt.Sprintf("%d %s", c.Baud, c.Framing)
}
