// internal/regio/reader.go
package regio

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-discovery/internal/link"
	"github.com/tamzrod/modbus-discovery/internal/probe"
	"github.com/tamzrod/modbus-discovery/internal/status"
)

// Reader performs operator-requested reads on the shared line.
type Reader struct {
	client probe.Client
	ind    Indicator
	out    io.Writer
	log    *zap.Logger
}

func NewReader(client probe.Client, ind Indicator, out io.Writer, log *zap.Logger) *Reader {
	if out == nil {
		out = io.Discard
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{client: client, ind: ind, out: out, log: log}
}

// Read performs exactly one request for b.
// A device error is reported in the result, not as an error.
func (r *Reader) Read(ctx context.Context, addr link.Address, b Block) (BlockResult, error) {
	if err := addr.Validate(); err != nil {
		return BlockResult{}, err
	}
	if err := b.Validate(); err != nil {
		return BlockResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return BlockResult{}, err
	}

	r.set(status.Connecting, fmt.Sprintf("Reading %s...", b.Kind))
	fmt.Fprintf(r.out, "\n--- Reading %d %s from address %d (Slave ID: %d) ---\n", b.Quantity, b.Kind, b.Start, addr)

	res, vals := r.client.Probe(b.Kind, addr, b.Start, b.Quantity)
	out := BlockResult{
		Address: addr,
		Block:   b,
		Result:  res,
		At:      time.Now(),
	}

	if res != probe.Success {
		r.log.Warn("read failed",
			zap.Uint8("address", uint8(addr)),
			zap.Stringer("kind", b.Kind),
			zap.Uint16("start", b.Start),
			zap.Stringer("result", res),
		)
		r.set(status.Error, fmt.Sprintf("Failed to read %s", b.Kind))
		fmt.Fprintln(r.out, res.Explain())
		return out, nil
	}

	if len(vals) > int(b.Quantity) {
		vals = vals[:b.Quantity]
	}
	out.Values = vals

	r.set(status.Success, fmt.Sprintf("%s read successfully!", b.Kind))
	_, _ = out.WriteTo(r.out)
	return out, nil
}

// TestAddress reads holding register 0 and, when the device answers, the first five.
func (r *Reader) TestAddress(ctx context.Context, addr link.Address) (probe.Result, error) {
	if err := addr.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fmt.Fprintf(r.out, "Testing Slave ID %d...\n", addr)
	res, vals := r.client.Probe(probe.ReadHolding, addr, 0, 1)

	switch {
	case res == probe.Success:
		fmt.Fprintf(r.out, "SUCCESS! Device found at Slave ID %d\n", addr)
		if len(vals) > 0 {
			fmt.Fprintf(r.out, "   Register 0 value: %d (0x%04X)\n", vals[0], vals[0])
		}
	case res.Present():
		fmt.Fprintf(r.out, "Device found at Slave ID %d (register 0 doesn't exist)\n", addr)
	default:
		fmt.Fprintf(r.out, "No response from Slave ID %d\n", addr)
		fmt.Fprintln(r.out, res.Explain())
		r.set(status.Error, "Device test failed")
		return res, nil
	}

	fmt.Fprintln(r.out, "Reading first 5 holding registers:")
	if _, err := r.Read(ctx, addr, Block{Kind: probe.ReadHolding, Start: 0, Quantity: 5}); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Reader) set(st status.State, msg string) {
	if r.ind != nil {
		r.ind.Set(st, true)
	}
	fmt.Fprintf(r.out, "%s %s\n", st.Badge(), msg)
}
