// internal/regio/writer.go
package regio

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-discovery/internal/link"
	"github.com/tamzrod/modbus-discovery/internal/probe"
	"github.com/tamzrod/modbus-discovery/internal/status"
)

// Writer performs single-register and single-coil writes.
type Writer struct {
	client probe.Client
	ind    Indicator
	out    io.Writer
	log    *zap.Logger
}

func NewWriter(client probe.Client, ind Indicator, out io.Writer, log *zap.Logger) *Writer {
	if out == nil {
		out = io.Discard
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{client: client, ind: ind, out: out, log: log}
}

// WriteRegister writes one holding register (FC 6).
func (w *Writer) WriteRegister(ctx context.Context, addr link.Address, reg, value uint16) (probe.Result, error) {
	if err := addr.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	w.set(status.Writing, "Writing to register...")
	fmt.Fprintf(w.out, "\n--- Writing value %d (0x%04X) to register %d (Slave ID: %d) ---\n", value, value, reg, addr)

	res := w.client.Write(probe.WriteRegister, addr, reg, value)
	w.finish(res, "Register written successfully!", "Failed to write register",
		zap.Uint8("address", uint8(addr)),
		zap.Uint16("register", reg),
	)
	return res, nil
}

// WriteCoil writes one coil (FC 5).
func (w *Writer) WriteCoil(ctx context.Context, addr link.Address, coil uint16, on bool) (probe.Result, error) {
	if err := addr.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	w.set(status.Writing, "Writing to coil...")
	fmt.Fprintf(w.out, "\n--- Writing %s to coil %d (Slave ID: %d) ---\n", onOff(boolValue(on)), coil, addr)

	res := w.client.Write(probe.WriteCoil, addr, coil, boolValue(on))
	w.finish(res, "Coil written successfully!", "Failed to write coil",
		zap.Uint8("address", uint8(addr)),
		zap.Uint16("coil", coil),
	)
	return res, nil
}

func (w *Writer) finish(res probe.Result, ok, failed string, fields ...zap.Field) {
	if res == probe.Success {
		w.set(status.Success, ok)
		return
	}
	w.log.Warn("write failed", append(fields, zap.Stringer("result", res))...)
	w.set(status.Error, failed)
	fmt.Fprintln(w.out, res.Explain())
}

func (w *Writer) set(st status.State, msg string) {
	if w.ind != nil {
		w.ind.Set(st, true)
	}
	fmt.Fprintf(w.out, "%s %s\n", st.Badge(), msg)
}

func boolValue(on bool) uint16 {
	if on {
		return 1
	}
	return 0
}
