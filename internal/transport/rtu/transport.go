// internal/transport/rtu/transport.go
package rtu

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tamzrod/modbus-discovery/internal/link"
	"github.com/tamzrod/modbus-discovery/internal/probe"
)

// Transport is the single shared serial line.
// It implements probe.Client and the discovery engine's Configurator.
// All calls are serialized because the slave id is mutated per probe.
type Transport struct {
	mu sync.Mutex

	device   string
	timeout  time.Duration
	settle   time.Duration
	closeGap time.Duration

	open opener
	wait func(ctx context.Context, d time.Duration) error
	log  *zap.Logger

	ln      line
	current link.Config
}

// Config is the transport setup.
type Config struct {
	Device  string
	Link    link.Config
	Timeout time.Duration

	// Settle is the pause after every reconfiguration before the line is used.
	Settle time.Duration

	// Wait is used for the close gap and settle delay.
	// Nil means a plain timer.
	Wait func(ctx context.Context, d time.Duration) error
}

// closeGap is the pause between closing the port and reopening it.
const closeGap = 100 * time.Millisecond

// New opens the device at cfg.Link (fail fast at startup).
func New(cfg Config, log *zap.Logger) (*Transport, error) {
	return newTransport(cfg, openGoburrow, log)
}

func newTransport(cfg Config, open opener, log *zap.Logger) (*Transport, error) {
	if cfg.Device == "" {
		return nil, errors.New("rtu: device required")
	}
	if err := cfg.Link.Framing.Validate(); err != nil {
		return nil, errors.Wrap(err, "rtu: initial link")
	}
	if log == nil {
		log = zap.NewNop()
	}
	wait := cfg.Wait
	if wait == nil {
		wait = timerWait
	}

	ln, err := open(cfg.Device, cfg.Link, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return &Transport{
		device:   cfg.Device,
		timeout:  cfg.Timeout,
		settle:   cfg.Settle,
		closeGap: closeGap,
		open:     open,
		wait:     wait,
		log:      log,
		ln:       ln,
		current:  cfg.Link,
	}, nil
}

// Current returns the active link config.
func (t *Transport) Current() link.Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Device returns the serial device path.
func (t *Transport) Device() string {
	return t.device
}

// Configure closes the port, reopens it at lc and blocks for the settle delay.
// If reopening fails, the previous config is restored (best effort) and an error is returned.
func (t *Transport) Configure(ctx context.Context, lc link.Config) error {
	if err := lc.Framing.Validate(); err != nil {
		return errors.Wrap(err, "rtu: configure")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.current

	if t.ln != nil {
		if err := t.ln.Close(); err != nil {
			t.log.Warn("serial close failed", zap.String("device", t.device), zap.Error(err))
		}
		t.ln = nil
		if err := t.wait(ctx, t.closeGap); err != nil {
			return t.restore(ctx, prev, err)
		}
	}

	ln, err := t.open(t.device, lc, t.timeout)
	if err != nil {
		return t.restore(ctx, prev, err)
	}

	t.ln = ln
	t.current = lc

	t.log.Debug("serial reconfigured",
		zap.String("device", t.device),
		zap.Uint32("baud", uint32(lc.Baud)),
		zap.String("framing", lc.Framing.String()))

	return t.wait(ctx, t.settle)
}

// restore reopens prev after a failed reconfiguration. Caller holds mu.
func (t *Transport) restore(ctx context.Context, prev link.Config, cause error) error {
	ln, err := t.open(t.device, prev, t.timeout)
	if err != nil {
		t.log.Error("serial restore failed",
			zap.String("device", t.device),
			zap.String("link", prev.String()),
			zap.Error(err))
		return errors.Wrap(cause, "rtu: reconfigure failed, line closed")
	}

	t.ln = ln
	t.current = prev
	_ = t.wait(ctx, t.settle)

	t.log.Warn("serial restored to last good config",
		zap.String("device", t.device),
		zap.String("link", prev.String()))

	return errors.Wrapf(cause, "rtu: reconfigure failed, restored %s", prev)
}

// ---- probe.Client ----

// Probe issues one read request to addr.
func (t *Transport) Probe(kind probe.Kind, addr link.Address, start, count uint16) (probe.Result, []uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ln == nil {
		return probe.UnknownError, nil
	}
	t.ln.SetSlave(byte(addr))

	var (
		raw []byte
		err error
	)
	switch kind {
	case probe.ReadCoils:
		raw, err = t.ln.ReadCoils(start, count)
	case probe.ReadDiscrete:
		raw, err = t.ln.ReadDiscreteInputs(start, count)
	case probe.ReadHolding:
		raw, err = t.ln.ReadHoldingRegisters(start, count)
	case probe.ReadInput:
		raw, err = t.ln.ReadInputRegisters(start, count)
	default:
		return probe.InvalidFunction, nil
	}

	res := probe.Classify(err)
	if res != probe.Success {
		t.log.Debug("probe failed",
			zap.Uint8("slave", uint8(addr)),
			zap.Stringer("kind", kind),
			zap.Uint16("start", start),
			zap.Stringer("result", res),
			zap.Error(err))
		return res, nil
	}

	if kind.Bits() {
		return res, unpackBits(raw, int(count))
	}
	return res, unpackRegisters(raw)
}

// Write issues one single-coil or single-register write.
func (t *Transport) Write(kind probe.WriteKind, addr link.Address, offset, value uint16) probe.Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ln == nil {
		return probe.UnknownError
	}
	t.ln.SetSlave(byte(addr))

	var err error
	switch kind {
	case probe.WriteRegister:
		_, err = t.ln.WriteSingleRegister(offset, value)
	case probe.WriteCoil:
		v := uint16(0x0000)
		if value != 0 {
			v = 0xFF00
		}
		_, err = t.ln.WriteSingleCoil(offset, v)
	default:
		return probe.InvalidFunction
	}

	res := probe.Classify(err)
	if err != nil {
		t.log.Debug("write failed",
			zap.Uint8("slave", uint8(addr)),
			zap.Stringer("kind", kind),
			zap.Uint16("offset", offset),
			zap.Stringer("result", res),
			zap.Error(err))
	}
	return res
}

// Close releases the serial port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln == nil {
		return nil
	}
	err := t.ln.Close()
	t.ln = nil
	return err
}

func timerWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ---- helpers (pure geometry) ----

// unpackBits expands packed coil bytes into one value per bit.
func unpackBits(data []byte, count int) []uint16 {
	out := make([]uint16, count)
	for i := 0; i < count; i++ {
		byteIdx := i / 8
		if byteIdx >= len(data) {
			break
		}
		if data[byteIdx]&(1<<uint(i%8)) != 0 {
			out[i] = 1
		}
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
