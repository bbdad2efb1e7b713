// internal/discovery/summary.go
package discovery

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/tamzrod/modbus-discovery/internal/link"
	"github.com/tamzrod/modbus-discovery/internal/probe"
)

// Outcome of a detection session.
type Outcome uint8

const (
	OutcomeUnknown Outcome = iota
	OutcomeFound
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Register is one successfully read value.
type Register struct {
	Kind   probe.Kind
	Offset uint16
	Value  uint16
}

// DeviceDump holds the diagnostic registers of one device.
type DeviceDump struct {
	Address link.Address
	Holding []Register
	Input   []Register
}

// ScanResult is the outcome of a full address scan.
// Count may exceed len(Addresses) when more devices answer than the list holds.
type ScanResult struct {
	Count     int
	Addresses []link.Address
	Link      link.Config
}

// Summary is the outcome of DetectDevice.
type Summary struct {
	Session   uuid.UUID
	Outcome   Outcome
	Addresses []link.Address
	Link      link.Config

	BaudDetected    bool
	FramingDetected bool

	Devices []DeviceDump
}

// Found reports whether any device answered.
func (s Summary) Found() bool {
	return s.Outcome == OutcomeFound && len(s.Addresses) > 0
}

// WriteTo renders the operator-facing report.
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer
	b.WriteString(banner + "\n")
	if !s.Found() {
		b.WriteString("DETECTION FAILED: no device found\n")
		fmt.Fprintf(&b, "Session: %s\n", s.Session)
		b.WriteString(banner + "\n")
		n, err := w.Write(b.Bytes())
		return int64(n), err
	}

	b.WriteString("DETECTION COMPLETE!\n")
	fmt.Fprintf(&b, "Session: %s\n", s.Session)
	fmt.Fprintf(&b, "Link: %d baud, %s\n", s.Link.Baud, s.Link.Framing.Describe())
	fmt.Fprintf(&b, "Baud detected: %s, framing detected: %s\n", yesNo(s.BaudDetected), yesNo(s.FramingDetected))

	ids := make([]string, 0, len(s.Addresses))
	for _, a := range s.Addresses {
		ids = append(ids, fmt.Sprint(a))
	}
	fmt.Fprintf(&b, "Found %d device(s): %s\n", len(s.Addresses), strings.Join(ids, ", "))

	for _, d := range s.Devices {
		fmt.Fprintf(&b, "\n--- Device Information (Slave ID: %d) ---\n", d.Address)
		if len(d.Holding) == 0 && len(d.Input) == 0 {
			b.WriteString("  (no readable registers)\n")
		}
		for _, r := range d.Holding {
			fmt.Fprintf(&b, "  Holding Register %d: %d (0x%04X)\n", r.Offset, r.Value, r.Value)
		}
		for _, r := range d.Input {
			fmt.Fprintf(&b, "  Input Register %d: %d (0x%04X)\n", r.Offset, r.Value, r.Value)
		}
	}
	b.WriteString(banner + "\n")

	n, err := w.Write(b.Bytes())
	return int64(n), err
}

// String is WriteTo into a string.
func (s Summary) String() string {
	var b strings.Builder
	_, _ = s.WriteTo(&b)
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
