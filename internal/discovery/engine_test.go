// internal/discovery/engine_test.go
package discovery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/tamzrod/modbus-discovery/internal/link"
	"github.com/tamzrod/modbus-discovery/internal/probe"
	"github.com/tamzrod/modbus-discovery/internal/status"
)

// ------------------------------------------------------------
// fakes
// ------------------------------------------------------------

type fakeDevice struct {
	link    link.Config
	answer  probe.Result
	holding map[uint16]uint16
	input   map[uint16]uint16
}

// fakeBus is both the probe.Client and the Configurator.
type fakeBus struct {
	current link.Config
	devices map[link.Address]fakeDevice
	failAt  map[link.BaudRate]bool

	configures []link.Config
	probes     []probeCall
}

type probeCall struct {
	kind  probe.Kind
	addr  link.Address
	start uint16
	link  link.Config
}

func newBus() *fakeBus {
	return &fakeBus{
		current: link.Default,
		devices: map[link.Address]fakeDevice{},
		failAt:  map[link.BaudRate]bool{},
	}
}

func (b *fakeBus) Configure(_ context.Context, lc link.Config) error {
	b.configures = append(b.configures, lc)
	if b.failAt[lc.Baud] {
		return errors.New("port vanished")
	}
	b.current = lc
	return nil
}

func (b *fakeBus) Probe(kind probe.Kind, addr link.Address, start, count uint16) (probe.Result, []uint16) {
	b.probes = append(b.probes, probeCall{kind: kind, addr: addr, start: start, link: b.current})

	d, ok := b.devices[addr]
	if !ok || d.link != b.current {
		return probe.ResponseTimedOut, nil
	}

	var table map[uint16]uint16
	switch kind {
	case probe.ReadHolding:
		table = d.holding
	case probe.ReadInput:
		table = d.input
	}
	if start == 0 && kind == probe.ReadHolding && d.answer != probe.Success {
		return d.answer, nil
	}
	v, ok := table[start]
	if !ok {
		return probe.IllegalDataAddress, nil
	}
	return probe.Success, []uint16{v}
}

func (b *fakeBus) Write(probe.WriteKind, link.Address, uint16, uint16) probe.Result {
	return probe.IllegalFunction
}

type fakeIndicator struct {
	states []status.State
}

func (f *fakeIndicator) Set(st status.State, _ bool) { f.states = append(f.states, st) }

func (f *fakeIndicator) last() status.State {
	if len(f.states) == 0 {
		return status.Off
	}
	return f.states[len(f.states)-1]
}

func noSleep(context.Context, time.Duration) error { return nil }

func build(bus *fakeBus) (*Engine, *fakeIndicator, *bytes.Buffer) {
	ind := &fakeIndicator{}
	out := &bytes.Buffer{}
	opts := DefaultOptions()
	opts.Out = out
	opts.Sleep = noSleep
	return New(bus, bus, ind, opts, nil), ind, out
}

func at(baud link.BaudRate, f link.Framing) link.Config {
	return link.Config{Baud: baud, Framing: f}
}

// ------------------------------------------------------------
// ScanAllAddresses
// ------------------------------------------------------------

func TestScanAllAddresses_FindsSingleDevice(t *testing.T) {
	bus := newBus()
	bus.devices[5] = fakeDevice{link: link.Default, holding: map[uint16]uint16{0: 42}}

	e, ind, out := build(bus)
	res, err := e.ScanAllAddresses(context.Background())

	assert.NilError(t, err)
	assert.DeepEqual(t, res.Addresses, []link.Address{5})
	assert.Equal(t, res.Count, 1)
	assert.Equal(t, len(bus.probes), 247)
	assert.Equal(t, ind.last(), status.Success)
	assert.Assert(t, is.Contains(out.String(), "Device found at ID: 5"))
	assert.Assert(t, is.Contains(out.String(), "Scanned up to ID 200..."))
}

func TestScanAllAddresses_OneProbePerAddressAscending(t *testing.T) {
	bus := newBus()
	e, _, _ := build(bus)

	_, err := e.ScanAllAddresses(context.Background())
	assert.NilError(t, err)

	for i, p := range bus.probes {
		assert.Equal(t, p.addr, link.Address(i+1))
		assert.Equal(t, p.kind, probe.ReadHolding)
		assert.Equal(t, p.start, uint16(0))
	}
}

func TestScanAllAddresses_IllegalDataAddressCountsAsPresent(t *testing.T) {
	bus := newBus()
	bus.devices[9] = fakeDevice{link: link.Default, answer: probe.IllegalDataAddress}

	e, _, _ := build(bus)
	res, err := e.ScanAllAddresses(context.Background())

	assert.NilError(t, err)
	assert.DeepEqual(t, res.Addresses, []link.Address{9})
}

func TestScanAllAddresses_ErrorReplyWarnsButIsNotCounted(t *testing.T) {
	bus := newBus()
	bus.devices[3] = fakeDevice{link: link.Default, answer: probe.SlaveDeviceFailure}

	e, ind, out := build(bus)
	res, err := e.ScanAllAddresses(context.Background())

	assert.NilError(t, err)
	assert.Equal(t, res.Count, 0)
	assert.Assert(t, is.Contains(out.String(), "Device at ID 3 responded with error"))
	assert.Assert(t, is.Contains(ind.states, status.Warning))
	assert.Equal(t, ind.last(), status.Warning)
	assert.Assert(t, is.Contains(out.String(), "Check:"))
}

func TestScanAllAddresses_CapacityDropsOverflow(t *testing.T) {
	bus := newBus()
	for a := link.Address(1); a <= 12; a++ {
		bus.devices[a] = fakeDevice{link: link.Default, holding: map[uint16]uint16{0: 1}}
	}

	e, _, _ := build(bus)
	res, err := e.ScanAllAddresses(context.Background())

	assert.NilError(t, err)
	assert.Equal(t, res.Count, 12)
	assert.Equal(t, len(res.Addresses), 10)
	assert.Equal(t, res.Addresses[9], link.Address(10))
}

func TestScanAllAddresses_Cancelled(t *testing.T) {
	bus := newBus()
	bus.devices[2] = fakeDevice{link: link.Default, holding: map[uint16]uint16{0: 1}}

	ctx, cancel := context.WithCancel(context.Background())
	e, ind, _ := build(bus)
	e.opts.Yield = func(context.Context) error {
		if len(bus.probes) == 20 {
			cancel()
		}
		return ctx.Err()
	}

	res, err := e.ScanAllAddresses(ctx)
	assert.Assert(t, errors.Is(err, context.Canceled))
	assert.DeepEqual(t, res.Addresses, []link.Address{2})
	assert.Equal(t, len(bus.probes), 20)
	assert.Equal(t, ind.last(), status.Warning)
}

func TestScanAllAddresses_Busy(t *testing.T) {
	e, _, _ := build(newBus())
	e.busy.Store(true)

	_, err := e.ScanAllAddresses(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
}

// ------------------------------------------------------------
// DetectBaudRate / DetectFraming
// ------------------------------------------------------------

func TestDetectBaudRate_SecondCandidate(t *testing.T) {
	bus := newBus()
	bus.devices[1] = fakeDevice{link: at(19200, link.Framing8N1), answer: probe.IllegalDataAddress}

	e, ind, out := build(bus)
	baud, ok, err := e.DetectBaudRate(context.Background(), 1)

	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, baud, link.BaudRate(19200))
	assert.Equal(t, len(bus.configures), 2)
	assert.Equal(t, len(bus.probes), 2)
	assert.Equal(t, ind.last(), status.Success)
	assert.Assert(t, is.Contains(out.String(), "register 0 doesn't exist"))
}

func TestDetectBaudRate_CyclesMatchTableIndex(t *testing.T) {
	for k, baud := range link.BaudRates {
		bus := newBus()
		bus.devices[7] = fakeDevice{link: at(baud, link.Framing8N1), holding: map[uint16]uint16{0: 1}}

		e, _, _ := build(bus)
		got, ok, err := e.DetectBaudRate(context.Background(), 7)

		assert.NilError(t, err)
		assert.Assert(t, ok, "baud %d", baud)
		assert.Equal(t, got, baud)
		assert.Equal(t, len(bus.configures), k+1, "baud %d", baud)
		assert.Equal(t, len(bus.probes), k+1, "baud %d", baud)
		for _, lc := range bus.configures {
			assert.Equal(t, lc.Framing, link.Framing8N1)
		}
	}
}

func TestDetectBaudRate_Exhausted(t *testing.T) {
	bus := newBus()
	e, ind, _ := build(bus)

	_, ok, err := e.DetectBaudRate(context.Background(), 4)
	assert.NilError(t, err)
	assert.Assert(t, !ok)
	assert.Equal(t, len(bus.configures), len(link.BaudRates))
	assert.Equal(t, ind.last(), status.Error)
}

func TestDetectBaudRate_InvalidAddressNoProbe(t *testing.T) {
	for _, a := range []link.Address{0, 248, 255} {
		bus := newBus()
		e, _, _ := build(bus)

		_, _, err := e.DetectBaudRate(context.Background(), a)
		assert.ErrorIs(t, err, link.ErrInvalidAddress)
		assert.Equal(t, len(bus.probes), 0)
		assert.Equal(t, len(bus.configures), 0)
	}
}

func TestDetectBaudRate_TransportFailureAborts(t *testing.T) {
	bus := newBus()
	bus.failAt[19200] = true
	bus.devices[1] = fakeDevice{link: at(38400, link.Framing8N1), holding: map[uint16]uint16{0: 1}}

	e, ind, _ := build(bus)
	_, ok, err := e.DetectBaudRate(context.Background(), 1)

	assert.ErrorIs(t, err, ErrTransport)
	assert.Assert(t, is.ErrorContains(err, "port vanished"))
	assert.Assert(t, !ok)
	assert.Equal(t, len(bus.configures), 2)
	assert.Equal(t, len(bus.probes), 1)
	assert.Equal(t, ind.last(), status.Error)
}

func TestDetectFraming_Found(t *testing.T) {
	bus := newBus()
	bus.devices[2] = fakeDevice{link: at(9600, link.Framing8O1), holding: map[uint16]uint16{0: 1}}

	e, ind, _ := build(bus)
	f, ok, err := e.DetectFraming(context.Background(), 2, 9600)

	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, f, link.Framing8O1)
	assert.Equal(t, bus.current, at(9600, link.Framing8O1))
	assert.Equal(t, ind.last(), status.Success)
}

func TestDetectFraming_ExhaustedRestores8N1(t *testing.T) {
	bus := newBus()
	e, _, _ := build(bus)

	f, ok, err := e.DetectFraming(context.Background(), 2, 57600)
	assert.NilError(t, err)
	assert.Assert(t, !ok)
	assert.Equal(t, f, link.Framing8N1)
	assert.Equal(t, len(bus.configures), len(link.Framings)+1)
	assert.Equal(t, bus.current, at(57600, link.Framing8N1))
	assert.Equal(t, e.Link(), at(57600, link.Framing8N1))
}

// ------------------------------------------------------------
// DetectDevice
// ------------------------------------------------------------

func TestDetectDevice_QuickScanAndDump(t *testing.T) {
	bus := newBus()
	bus.devices[3] = fakeDevice{
		link:    link.Default,
		holding: map[uint16]uint16{0: 42, 4: 7},
		input:   map[uint16]uint16{1: 0xBEEF},
	}

	e, ind, _ := build(bus)
	sum, err := e.DetectDevice(context.Background())

	assert.NilError(t, err)
	assert.Equal(t, sum.Outcome, OutcomeFound)
	assert.DeepEqual(t, sum.Addresses, []link.Address{3})
	assert.Equal(t, sum.Link, link.Default)
	assert.Assert(t, !sum.BaudDetected)
	assert.Equal(t, ind.last(), status.Success)
	assert.Assert(t, is.Contains(ind.states, status.Connecting))

	assert.Equal(t, len(sum.Devices), 1)
	d := sum.Devices[0]
	assert.DeepEqual(t, d.Holding, []Register{
		{Kind: probe.ReadHolding, Offset: 0, Value: 42},
		{Kind: probe.ReadHolding, Offset: 4, Value: 7},
	})
	assert.DeepEqual(t, d.Input, []Register{{Kind: probe.ReadInput, Offset: 1, Value: 0xBEEF}})

	// 10 quick probes, 10 holding + 5 input dump probes, one configure.
	assert.Equal(t, len(bus.probes), 25)
	assert.DeepEqual(t, bus.configures, []link.Config{link.Default})
}

func TestDetectDevice_AdaptiveFindsBaudAndFraming(t *testing.T) {
	bus := newBus()
	bus.devices[2] = fakeDevice{link: at(19200, link.Framing8N1), holding: map[uint16]uint16{0: 5}}

	e, _, out := build(bus)
	sum, err := e.DetectDevice(context.Background())

	assert.NilError(t, err)
	assert.Equal(t, sum.Outcome, OutcomeFound)
	assert.DeepEqual(t, sum.Addresses, []link.Address{2})
	assert.Assert(t, sum.BaudDetected)
	assert.Assert(t, sum.FramingDetected)
	assert.Equal(t, sum.Link, at(19200, link.Framing8N1))
	assert.Equal(t, bus.current, at(19200, link.Framing8N1))
	assert.Assert(t, is.Contains(out.String(), "Phase 3"))

	// Default, all bauds for address 1, two bauds for address 2, first framing.
	assert.Equal(t, len(bus.configures), 1+len(link.BaudRates)+2+1)

	assert.Equal(t, len(sum.Devices), 1)
	assert.DeepEqual(t, sum.Devices[0].Holding, []Register{{Kind: probe.ReadHolding, Offset: 0, Value: 5}})
}

func TestDetectDevice_AdaptiveBaudOnlyAt8N1(t *testing.T) {
	bus := newBus()
	bus.devices[247] = fakeDevice{link: at(4800, link.Framing8N1), answer: probe.IllegalDataAddress}

	e, _, _ := build(bus)
	sum, err := e.DetectDevice(context.Background())

	assert.NilError(t, err)
	assert.DeepEqual(t, sum.Addresses, []link.Address{247})
	assert.Equal(t, sum.Link, at(4800, link.Framing8N1))
	assert.Assert(t, sum.FramingDetected)
}

func TestDetectDevice_NothingFound(t *testing.T) {
	bus := newBus()
	e, ind, out := build(bus)

	sum, err := e.DetectDevice(context.Background())

	assert.NilError(t, err)
	assert.Equal(t, sum.Outcome, OutcomeNotFound)
	assert.Equal(t, len(sum.Addresses), 0)
	assert.Equal(t, ind.last(), status.Warning)
	assert.Assert(t, !strings.Contains(out.String(), "Phase 3"))
	assert.Assert(t, !strings.Contains(out.String(), "Phase 4"))

	// Default link plus every baud for each adaptive address, all at 8N1.
	assert.Equal(t, len(bus.configures), 1+4*len(link.BaudRates))
	for _, lc := range bus.configures {
		assert.Equal(t, lc.Framing, link.Framing8N1)
	}
	// No dump probes: every probe is a register 0 holding read.
	assert.Equal(t, len(bus.probes), 10+4*len(link.BaudRates))
	for _, p := range bus.probes {
		assert.Equal(t, p.kind, probe.ReadHolding)
		assert.Equal(t, p.start, uint16(0))
	}
	assert.Assert(t, is.Contains(sum.String(), "DETECTION FAILED"))
}

func TestDetectDevice_TransportFailure(t *testing.T) {
	bus := newBus()
	bus.failAt[9600] = true

	e, ind, _ := build(bus)
	_, err := e.DetectDevice(context.Background())

	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, len(bus.probes), 0)
	assert.Equal(t, ind.last(), status.Error)
}

func TestDetectDevice_QuickScanStopsAtCapacity(t *testing.T) {
	bus := newBus()
	for a := link.Address(1); a <= 10; a++ {
		bus.devices[a] = fakeDevice{link: link.Default, answer: probe.IllegalDataAddress}
	}

	ind := &fakeIndicator{}
	opts := DefaultOptions()
	opts.Sleep = noSleep
	opts.Capacity = 3
	opts.HoldingDump = 1
	opts.InputDump = 1
	e := New(bus, bus, ind, opts, nil)

	sum, err := e.DetectDevice(context.Background())
	assert.NilError(t, err)
	assert.DeepEqual(t, sum.Addresses, []link.Address{1, 2, 3})
	// 3 quick probes, then 2 dump probes per device.
	assert.Equal(t, len(bus.probes), 3+3*2)
}

func TestDetectDevice_Busy(t *testing.T) {
	e, _, _ := build(newBus())
	e.busy.Store(true)

	_, err := e.DetectDevice(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
}
