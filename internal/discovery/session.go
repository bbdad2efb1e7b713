// internal/discovery/session.go
package discovery

import (
	"time"

	"github.com/google/uuid"

	"github.com/tamzrod/modbus-discovery/internal/link"
)

// Phase of a detection session.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseQuickScan
	PhaseAdaptive
	PhaseFraming
	PhaseDump
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseQuickScan:
		return "quick-scan"
	case PhaseAdaptive:
		return "adaptive"
	case PhaseFraming:
		return "framing"
	case PhaseDump:
		return "dump"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// AddressList is an ordered, duplicate-free, capacity-bounded address set.
// Adding beyond capacity drops the address and reports false.
type AddressList struct {
	capacity int
	items    []link.Address
}

func NewAddressList(capacity int) *AddressList {
	if capacity < 0 {
		capacity = 0
	}
	return &AddressList{
		capacity: capacity,
		items:    make([]link.Address, 0, capacity),
	}
}

// Add appends a unless it is already present or the list is full.
func (l *AddressList) Add(a link.Address) bool {
	if l.Full() || l.Contains(a) {
		return false
	}
	l.items = append(l.items, a)
	return true
}

func (l *AddressList) Contains(a link.Address) bool {
	for _, v := range l.items {
		if v == a {
			return true
		}
	}
	return false
}

func (l *AddressList) Len() int   { return len(l.items) }
func (l *AddressList) Full() bool { return len(l.items) >= l.capacity }

// Items returns a copy in insertion order.
func (l *AddressList) Items() []link.Address {
	out := make([]link.Address, len(l.items))
	copy(out, l.items)
	return out
}

// Session is the transient state of one DetectDevice call.
type Session struct {
	ID        uuid.UUID
	Phase     Phase
	Link      link.Config
	Addresses *AddressList
	Started   time.Time
}

func newSession(capacity int) *Session {
	return &Session{
		ID:        uuid.New(),
		Phase:     PhaseIdle,
		Link:      link.Default,
		Addresses: NewAddressList(capacity),
		Started:   time.Now(),
	}
}
