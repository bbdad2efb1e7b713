// internal/discovery/engine.go
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-discovery/internal/link"
	"github.com/tamzrod/modbus-discovery/internal/probe"
	"github.com/tamzrod/modbus-discovery/internal/status"
)

var (
	// ErrTransport wraps every reconfiguration failure.
	ErrTransport = errors.New("discovery: transport reconfiguration failed")

	// ErrBusy is returned when an operation is started while another runs.
	ErrBusy = errors.New("discovery: operation already in progress")
)

// Configurator switches the shared line to a new link.
// Implementations own the settle delay.
type Configurator interface {
	Configure(ctx context.Context, lc link.Config) error
}

// Indicator receives logical state changes.
type Indicator interface {
	Set(state status.State, animate bool)
}

// Options tunes an Engine. Zero fields take DefaultOptions values.
type Options struct {
	QuickScanLast link.Address
	Capacity      int
	Adaptive      []link.Address

	ProbeDelay time.Duration
	FlashDelay time.Duration

	HoldingDump uint16
	InputDump   uint16

	// Out receives operator-facing progress text.
	Out io.Writer

	// Yield is called once per probe iteration (indicator tick, input poll).
	Yield func(ctx context.Context) error

	// Sleep implements every delay. Nil means a plain timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultOptions() Options {
	return Options{
		QuickScanLast: 10,
		Capacity:      10,
		Adaptive:      []link.Address{1, 2, 3, 247},
		ProbeDelay:    50 * time.Millisecond,
		FlashDelay:    100 * time.Millisecond,
		HoldingDump:   10,
		InputDump:     5,
		Out:           io.Discard,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.QuickScanLast == 0 {
		o.QuickScanLast = d.QuickScanLast
	}
	if o.QuickScanLast > link.MaxAddress {
		o.QuickScanLast = link.MaxAddress
	}
	if o.Capacity <= 0 {
		o.Capacity = d.Capacity
	}
	if len(o.Adaptive) == 0 {
		o.Adaptive = d.Adaptive
	}
	if o.ProbeDelay < 0 {
		o.ProbeDelay = 0
	}
	if o.FlashDelay < 0 {
		o.FlashDelay = 0
	}
	if o.HoldingDump == 0 {
		o.HoldingDump = d.HoldingDump
	}
	if o.InputDump == 0 {
		o.InputDump = d.InputDump
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
	return o
}

// Engine drives discovery over one client and one configurator.
// Operations are not reentrant.
type Engine struct {
	client probe.Client
	tr     Configurator
	ind    Indicator
	opts   Options
	log    *zap.Logger

	busy atomic.Bool
	link link.Config
}

func New(client probe.Client, tr Configurator, ind Indicator, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		client: client,
		tr:     tr,
		ind:    ind,
		opts:   opts.withDefaults(),
		log:    log,
		link:   link.Default,
	}
}

// Link is the last configuration the engine applied.
func (e *Engine) Link() link.Config { return e.link }

// ------------------------------------------------------------
// Full address scan
// ------------------------------------------------------------

// ScanAllAddresses probes 1..247 under the current link.
func (e *Engine) ScanAllAddresses(ctx context.Context) (ScanResult, error) {
	if !e.acquire() {
		return ScanResult{}, ErrBusy
	}
	defer e.release()

	found := NewAddressList(e.opts.Capacity)
	res := ScanResult{Link: e.link}

	e.announce(status.Scanning, "Scanning for Modbus devices...")
	e.printf("Scanning for Modbus devices (IDs %d-%d)...\n", link.MinAddress, link.MaxAddress)
	e.printf("This may take a while...\n\n")
	e.log.Info("full scan started", zap.Stringer("link", e.link))

	for id := link.MinAddress; id <= link.MaxAddress; id++ {
		addr := link.Address(id)
		if err := e.yield(ctx); err != nil {
			res.Addresses = found.Items()
			return res, e.cancelled(err)
		}

		r := e.probeFirst(addr)
		switch {
		case r.Present():
			res.Count++
			found.Add(addr)
			e.printf("Device found at ID: %d\n", addr)
			e.log.Info("device found", zap.Uint8("address", uint8(addr)), zap.Stringer("result", r))
			if err := e.flash(ctx, status.Success); err != nil {
				res.Addresses = found.Items()
				return res, e.cancelled(err)
			}
		case !r.Silent():
			e.printf("Device at ID %d responded with error: %s\n", addr, r.Explain())
			if err := e.flash(ctx, status.Warning); err != nil {
				res.Addresses = found.Items()
				return res, e.cancelled(err)
			}
		}

		if err := e.pause(ctx, e.opts.ProbeDelay); err != nil {
			res.Addresses = found.Items()
			return res, e.cancelled(err)
		}
		if id%50 == 0 {
			e.printf("Scanned up to ID %d...\n", addr)
		}
	}

	res.Addresses = found.Items()
	e.printf("\nScan complete! Found %d device(s)\n", res.Count)
	if res.Count > 0 {
		e.announce(status.Success, "Scan complete - devices found!")
	} else {
		e.announce(status.Warning, "Scan complete - no devices found")
		e.wiringTips()
	}
	e.log.Info("full scan finished", zap.Int("count", res.Count))
	return res, nil
}

// ------------------------------------------------------------
// Baud / framing detection
// ------------------------------------------------------------

// DetectBaudRate walks the baud table at 8N1 until addr answers.
func (e *Engine) DetectBaudRate(ctx context.Context, addr link.Address) (link.BaudRate, bool, error) {
	if err := addr.Validate(); err != nil {
		return 0, false, err
	}
	if !e.acquire() {
		return 0, false, ErrBusy
	}
	defer e.release()

	baud, ok, err := e.detectBaud(ctx, addr)
	return baud, ok, e.settle(err)
}

// DetectFraming walks the framing table at baud until addr answers.
// On exhaustion the line is left at baud 8N1.
func (e *Engine) DetectFraming(ctx context.Context, addr link.Address, baud link.BaudRate) (link.Framing, bool, error) {
	if err := addr.Validate(); err != nil {
		return link.Framing{}, false, err
	}
	if baud == 0 {
		return link.Framing{}, false, fmt.Errorf("discovery: baud rate required")
	}
	if !e.acquire() {
		return link.Framing{}, false, ErrBusy
	}
	defer e.release()

	f, ok, err := e.detectFraming(ctx, addr, baud)
	return f, ok, e.settle(err)
}

func (e *Engine) detectBaud(ctx context.Context, addr link.Address) (link.BaudRate, bool, error) {
	e.announce(status.Scanning, "Auto-detecting baud rate...")
	e.printf("\nAUTO-DETECTING BAUD RATE...\n")
	e.printf("Testing %d different baud rates with Slave ID %d\n\n", len(link.BaudRates), addr)

	for _, baud := range link.BaudRates {
		if err := e.yield(ctx); err != nil {
			return 0, false, err
		}

		e.printf("Testing %d baud... ", baud)
		if err := e.configure(ctx, link.Config{Baud: baud, Framing: link.Framing8N1}); err != nil {
			e.printf("\n")
			return 0, false, err
		}

		r := e.probeFirst(addr)
		if r.Present() {
			if r == probe.IllegalDataAddress {
				e.printf("FOUND! (but register 0 doesn't exist)\n")
			} else {
				e.printf("FOUND!\n")
			}
			e.log.Info("baud rate detected",
				zap.Uint8("address", uint8(addr)),
				zap.Uint32("baud", uint32(baud)),
			)
			e.announce(status.Success, "Baud rate detected!")
			return baud, true, nil
		}
		e.printf("No response (%s)\n", r)

		if err := e.pause(ctx, e.opts.ProbeDelay); err != nil {
			return 0, false, err
		}
	}

	e.printf("\nNo baud rate detected. Device may not be connected or uses non-standard settings.\n")
	e.announce(status.Error, "Baud rate detection failed")
	return 0, false, nil
}

func (e *Engine) detectFraming(ctx context.Context, addr link.Address, baud link.BaudRate) (link.Framing, bool, error) {
	e.announce(status.Scanning, "Auto-detecting serial configuration...")
	e.printf("\nAUTO-DETECTING SERIAL CONFIGURATION...\n")
	e.printf("Testing different configurations at %d baud with Slave ID %d\n\n", baud, addr)

	for _, f := range link.Framings {
		if err := e.yield(ctx); err != nil {
			return link.Framing{}, false, err
		}

		e.printf("Testing %s... ", f.Describe())
		if err := e.configure(ctx, link.Config{Baud: baud, Framing: f}); err != nil {
			e.printf("\n")
			return link.Framing{}, false, err
		}

		if e.probeFirst(addr).Present() {
			e.printf("WORKS!\n")
			e.printf("Detected configuration: %s\n", f.Describe())
			e.log.Info("framing detected",
				zap.Uint8("address", uint8(addr)),
				zap.Stringer("framing", f),
			)
			e.announce(status.Success, "Serial configuration detected!")
			return f, true, nil
		}
		e.printf("Failed\n")

		if err := e.pause(ctx, e.opts.ProbeDelay); err != nil {
			return link.Framing{}, false, err
		}
	}

	e.printf("\nNo configuration detected. Using default 8N1.\n")
	if err := e.configure(ctx, link.Config{Baud: baud, Framing: link.Framing8N1}); err != nil {
		return link.Framing{}, false, err
	}
	e.announce(status.Warning, "No serial configuration detected, using 8N1")
	return link.Framing8N1, false, nil
}

// ------------------------------------------------------------
// Comprehensive detection
// ------------------------------------------------------------

// DetectDevice runs quick scan, adaptive baud/framing detection and
// the register dump. Finding nothing is a normal outcome, not an error.
func (e *Engine) DetectDevice(ctx context.Context) (Summary, error) {
	if !e.acquire() {
		return Summary{}, ErrBusy
	}
	defer e.release()

	sess := newSession(e.opts.Capacity)
	log := e.log.With(zap.Stringer("session", sess.ID))
	sum := Summary{Session: sess.ID, Link: link.Default}

	e.announce(status.Scanning, "Starting comprehensive device detection...")
	e.printf("\n%s\n", banner)
	e.printf("COMPREHENSIVE DEVICE DETECTION\n")
	e.printf("%s\n", banner)
	log.Info("detection started")

	// Phase 1
	sess.Phase = PhaseQuickScan
	e.printf("\nPhase 1: Scanning for device IDs (using default %s)...\n", link.Default)
	if err := e.configure(ctx, link.Default); err != nil {
		return sum, e.settle(err)
	}
	sess.Link = link.Default

	for id := link.MinAddress; id <= e.opts.QuickScanLast && !sess.Addresses.Full(); id++ {
		addr := link.Address(id)
		if err := e.yield(ctx); err != nil {
			return e.partial(sum, sess), e.settle(err)
		}
		if r := e.probeFirst(addr); r.Present() {
			sess.Addresses.Add(addr)
			e.printf("Found device at ID: %d\n", addr)
			log.Info("device found", zap.Uint8("address", uint8(addr)), zap.Stringer("phase", sess.Phase))
			if err := e.flash(ctx, status.Success); err != nil {
				return e.partial(sum, sess), e.settle(err)
			}
		}
		if err := e.pause(ctx, e.opts.ProbeDelay); err != nil {
			return e.partial(sum, sess), e.settle(err)
		}
	}

	// Phase 2 and 3, only when the default link found nothing.
	if sess.Addresses.Len() == 0 {
		sess.Phase = PhaseAdaptive
		e.printf("No devices found with default settings. Trying auto-detection...\n")
		e.printf("\nPhase 2: Auto-detecting baud rate...\n")

		for _, addr := range e.opts.Adaptive {
			if err := addr.Validate(); err != nil {
				log.Warn("adaptive address skipped", zap.Uint8("address", uint8(addr)))
				continue
			}
			e.printf("\n--- Trying Slave ID %d ---\n", addr)

			baud, ok, err := e.detectBaud(ctx, addr)
			if err != nil {
				return e.partial(sum, sess), e.settle(err)
			}
			if !ok {
				continue
			}

			sess.Addresses.Add(addr)
			sum.BaudDetected = true
			sess.Link = link.Config{Baud: baud, Framing: link.Framing8N1}

			sess.Phase = PhaseFraming
			e.printf("\nPhase 3: Auto-detecting serial configuration...\n")
			f, fok, err := e.detectFraming(ctx, addr, baud)
			if err != nil {
				return e.partial(sum, sess), e.settle(err)
			}
			sum.FramingDetected = fok
			sess.Link = link.Config{Baud: baud, Framing: f}
			break
		}

		if sess.Addresses.Len() == 0 {
			sess.Phase = PhaseDone
			sum.Outcome = OutcomeNotFound
			sum.Link = e.link
			e.printf("\nNo devices detected.\n")
			e.announce(status.Warning, "Device detection failed")
			e.wiringTips()
			log.Info("detection finished", zap.Stringer("outcome", sum.Outcome))
			return sum, nil
		}
	}

	// Phase 4
	sess.Phase = PhaseDump
	e.announce(status.Connecting, "Reading device information...")
	e.printf("\nPhase 4: Reading device information...\n")

	for _, addr := range sess.Addresses.Items() {
		dump, err := e.dump(ctx, addr)
		sum.Devices = append(sum.Devices, dump)
		if err != nil {
			return e.partial(sum, sess), e.settle(err)
		}
	}

	sess.Phase = PhaseDone
	sum.Outcome = OutcomeFound
	sum.Addresses = sess.Addresses.Items()
	sum.Link = sess.Link
	e.announce(status.Success, "Device detection complete!")
	log.Info("detection finished",
		zap.Stringer("outcome", sum.Outcome),
		zap.Int("devices", len(sum.Addresses)),
		zap.Stringer("link", sum.Link),
		zap.Duration("took", time.Since(sess.Started)),
	)
	return sum, nil
}

func (e *Engine) dump(ctx context.Context, addr link.Address) (DeviceDump, error) {
	d := DeviceDump{Address: addr}
	e.printf("\n--- Device Information (Slave ID: %d) ---\n", addr)

	e.printf("Reading Holding Registers (0-%d):\n", e.opts.HoldingDump-1)
	regs, err := e.readEach(ctx, probe.ReadHolding, addr, e.opts.HoldingDump)
	d.Holding = regs
	if err != nil {
		return d, err
	}

	e.printf("Reading Input Registers (0-%d):\n", e.opts.InputDump-1)
	regs, err = e.readEach(ctx, probe.ReadInput, addr, e.opts.InputDump)
	d.Input = regs
	return d, err
}

// readEach reads offsets 0..n-1 one at a time and keeps only successful reads.
func (e *Engine) readEach(ctx context.Context, kind probe.Kind, addr link.Address, n uint16) ([]Register, error) {
	var out []Register
	for off := uint16(0); off < n; off++ {
		if err := e.yield(ctx); err != nil {
			return out, err
		}
		r, vals := e.client.Probe(kind, addr, off, 1)
		if r == probe.Success && len(vals) > 0 {
			out = append(out, Register{Kind: kind, Offset: off, Value: vals[0]})
			e.printf("  Register %d: %d (0x%04X)\n", off, vals[0], vals[0])
		}
		if err := e.pause(ctx, e.opts.ProbeDelay); err != nil {
			return out, err
		}
	}
	return out, nil
}

// ------------------------------------------------------------
// helpers
// ------------------------------------------------------------

const banner = "============================================================"

func (e *Engine) acquire() bool { return e.busy.CompareAndSwap(false, true) }
func (e *Engine) release()      { e.busy.Store(false) }

func (e *Engine) probeFirst(addr link.Address) probe.Result {
	r, _ := e.client.Probe(probe.ReadHolding, addr, 0, 1)
	return r
}

func (e *Engine) configure(ctx context.Context, lc link.Config) error {
	if err := e.tr.Configure(ctx, lc); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.log.Error("reconfiguration failed", zap.Stringer("link", lc), zap.Error(err))
		e.announce(status.Error, "Serial reconfiguration failed")
		return fmt.Errorf("%w: %s: %w", ErrTransport, lc, err)
	}
	e.link = lc
	return nil
}

func (e *Engine) announce(st status.State, msg string) {
	if e.ind != nil {
		e.ind.Set(st, true)
	}
	e.printf("%s %s\n", st.Badge(), msg)
}

// flash shows st briefly, then returns to the scanning animation.
func (e *Engine) flash(ctx context.Context, st status.State) error {
	if e.ind != nil {
		e.ind.Set(st, false)
	}
	if err := e.pause(ctx, e.opts.FlashDelay); err != nil {
		return err
	}
	if e.ind != nil {
		e.ind.Set(status.Scanning, true)
	}
	return nil
}

func (e *Engine) yield(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.opts.Yield != nil {
		return e.opts.Yield(ctx)
	}
	return nil
}

func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	if e.opts.Sleep != nil {
		return e.opts.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// settle maps cancellation to the Warning indicator.
func (e *Engine) settle(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return e.cancelled(err)
	}
	return err
}

func (e *Engine) cancelled(err error) error {
	e.log.Info("operation cancelled", zap.Error(err))
	e.announce(status.Warning, "Operation cancelled")
	return err
}

func (e *Engine) partial(sum Summary, sess *Session) Summary {
	sum.Addresses = sess.Addresses.Items()
	sum.Link = e.link
	return sum
}

func (e *Engine) wiringTips() {
	e.printf("Check:\n")
	e.printf("  - Wiring (A/B lines, common ground)\n")
	e.printf("  - Termination resistors on long runs\n")
	e.printf("  - Device power supply\n")
	e.printf("  - Baud rate and serial settings on the device\n")
}

func (e *Engine) printf(format string, args ...any) {
	fmt.Fprintf(e.opts.Out, format, args...)
}
