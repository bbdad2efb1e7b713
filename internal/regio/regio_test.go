// internal/regio/regio_test.go
package regio

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tamzrod/modbus-discovery/internal/link"
	"github.com/tamzrod/modbus-discovery/internal/probe"
	"github.com/tamzrod/modbus-discovery/internal/status"
)

// ---- fakes ----

type probeCall struct {
	kind  probe.Kind
	addr  link.Address
	start uint16
	count uint16
}

type writeCall struct {
	kind   probe.WriteKind
	addr   link.Address
	offset uint16
	value  uint16
}

type fakeClient struct {
	result probe.Result
	values []uint16

	probes []probeCall
	writes []writeCall
}

func (f *fakeClient) Probe(kind probe.Kind, addr link.Address, start, count uint16) (probe.Result, []uint16) {
	f.probes = append(f.probes, probeCall{kind, addr, start, count})
	if f.result != probe.Success {
		return f.result, nil
	}
	if f.values != nil {
		return probe.Success, f.values
	}
	return probe.Success, make([]uint16, count)
}

func (f *fakeClient) Write(kind probe.WriteKind, addr link.Address, offset, value uint16) probe.Result {
	f.writes = append(f.writes, writeCall{kind, addr, offset, value})
	return f.result
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

// ---- Block ----

func TestBlockValidate_Limits(t *testing.T) {
	cases := []struct {
		b  Block
		ok bool
	}{
		{Block{Kind: probe.ReadHolding, Quantity: 1}, true},
		{Block{Kind: probe.ReadHolding, Quantity: 125}, true},
		{Block{Kind: probe.ReadHolding, Quantity: 126}, false},
		{Block{Kind: probe.ReadInput, Quantity: 0}, false},
		{Block{Kind: probe.ReadCoils, Quantity: 2000}, true},
		{Block{Kind: probe.ReadDiscrete, Quantity: 2001}, false},
		{Block{Kind: probe.ReadHolding, Start: 65535, Quantity: 1}, true},
		{Block{Kind: probe.ReadHolding, Start: 65535, Quantity: 2}, false},
	}

	for _, c := range cases {
		err := c.b.Validate()
		if c.ok && err != nil {
			t.Fatalf("%+v: unexpected err=%v", c.b, err)
		}
		if !c.ok && !errors.Is(err, ErrQuantity) {
			t.Fatalf("%+v: expected ErrQuantity, got %v", c.b, err)
		}
	}
}

func TestBlockValidate_UnknownKind(t *testing.T) {
	err := Block{Kind: 9, Quantity: 1}.Validate()
	if err == nil || errors.Is(err, ErrQuantity) {
		t.Fatalf("expected unsupported kind error, got %v", err)
	}
}

// ---- Reader ----

func TestRead_RegistersPrinted(t *testing.T) {
	cli := &fakeClient{values: []uint16{0, 42}}
	ind := &fakeIndicator{}
	var out bytes.Buffer

	r := NewReader(cli, ind, &out, nil)
	res, err := r.Read(context.Background(), 7, Block{Kind: probe.ReadHolding, Start: 2, Quantity: 2})
	if err != nil {
		t.Fatalf("Read err=%v", err)
	}
	if !res.OK() || len(res.Values) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(out.String(), "Register 3: 0x002A (42)") {
		t.Fatalf("missing register line in:\n%s", out.String())
	}
	if ind.states[0] != status.Connecting || ind.last() != status.Success {
		t.Fatalf("indicator states %v", ind.states)
	}
	if cli.probes[0] != (probeCall{probe.ReadHolding, 7, 2, 2}) {
		t.Fatalf("unexpected probe %+v", cli.probes[0])
	}
}

func TestRead_CoilsPrintedAsOnOff(t *testing.T) {
	cli := &fakeClient{values: []uint16{0, 1}}
	var out bytes.Buffer

	r := NewReader(cli, nil, &out, nil)
	if _, err := r.Read(context.Background(), 1, Block{Kind: probe.ReadCoils, Start: 0, Quantity: 2}); err != nil {
		t.Fatalf("Read err=%v", err)
	}
	if !strings.Contains(out.String(), "Coil 0: OFF") || !strings.Contains(out.String(), "Coil 1: ON") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestRead_DeviceErrorIsResultNotError(t *testing.T) {
	cli := &fakeClient{result: probe.IllegalDataAddress}
	ind := &fakeIndicator{}

	r := NewReader(cli, ind, nil, nil)
	res, err := r.Read(context.Background(), 1, Block{Kind: probe.ReadInput, Quantity: 4})
	if err != nil {
		t.Fatalf("Read err=%v", err)
	}
	if res.OK() || res.Result != probe.IllegalDataAddress || res.Values != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if ind.last() != status.Error {
		t.Fatalf("expected Error, got %s", ind.last())
	}
}

func TestRead_InvalidInputNoProbe(t *testing.T) {
	cli := &fakeClient{}
	r := NewReader(cli, nil, nil, nil)

	if _, err := r.Read(context.Background(), 0, Block{Kind: probe.ReadHolding, Quantity: 1}); !errors.Is(err, link.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := r.Read(context.Background(), 1, Block{Kind: probe.ReadHolding, Quantity: 200}); !errors.Is(err, ErrQuantity) {
		t.Fatalf("expected ErrQuantity, got %v", err)
	}
	if len(cli.probes) != 0 {
		t.Fatalf("expected no probes, got %d", len(cli.probes))
	}
}

func TestTestAddress_ReadsFirstFive(t *testing.T) {
	cli := &fakeClient{}
	var out bytes.Buffer

	r := NewReader(cli, nil, &out, nil)
	res, err := r.TestAddress(context.Background(), 12)
	if err != nil {
		t.Fatalf("TestAddress err=%v", err)
	}
	if res != probe.Success {
		t.Fatalf("expected Success, got %s", res)
	}
	if len(cli.probes) != 2 || cli.probes[1] != (probeCall{probe.ReadHolding, 12, 0, 5}) {
		t.Fatalf("unexpected probes %+v", cli.probes)
	}
}

func TestTestAddress_NoResponse(t *testing.T) {
	cli := &fakeClient{result: probe.ResponseTimedOut}
	ind := &fakeIndicator{}
	var out bytes.Buffer

	r := NewReader(cli, ind, &out, nil)
	res, err := r.TestAddress(context.Background(), 12)
	if err != nil {
		t.Fatalf("TestAddress err=%v", err)
	}
	if res != probe.ResponseTimedOut || len(cli.probes) != 1 {
		t.Fatalf("res=%s probes=%d", res, len(cli.probes))
	}
	if !strings.Contains(out.String(), "No response from Slave ID 12") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if ind.last() != status.Error {
		t.Fatalf("expected Error, got %s", ind.last())
	}
}

// ---- Writer ----

func TestWriteRegister_Success(t *testing.T) {
	cli := &fakeClient{}
	ind := &fakeIndicator{}

	w := NewWriter(cli, ind, nil, nil)
	res, err := w.WriteRegister(context.Background(), 3, 10, 0x1234)
	if err != nil || res != probe.Success {
		t.Fatalf("res=%s err=%v", res, err)
	}
	if cli.writes[0] != (writeCall{probe.WriteRegister, 3, 10, 0x1234}) {
		t.Fatalf("unexpected write %+v", cli.writes[0])
	}
	if ind.states[0] != status.Writing || ind.last() != status.Success {
		t.Fatalf("indicator states %v", ind.states)
	}
}

func TestWriteCoil_Failure(t *testing.T) {
	cli := &fakeClient{result: probe.IllegalFunction}
	ind := &fakeIndicator{}
	var out bytes.Buffer

	w := NewWriter(cli, ind, &out, nil)
	res, err := w.WriteCoil(context.Background(), 3, 1, true)
	if err != nil || res != probe.IllegalFunction {
		t.Fatalf("res=%s err=%v", res, err)
	}
	if cli.writes[0].value != 1 {
		t.Fatalf("coil value not forwarded: %+v", cli.writes[0])
	}
	if ind.last() != status.Error {
		t.Fatalf("expected Error, got %s", ind.last())
	}
	if !strings.Contains(out.String(), "Writing ON to coil 1") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestWrite_InvalidAddress(t *testing.T) {
	cli := &fakeClient{}
	w := NewWriter(cli, nil, nil, nil)

	if _, err := w.WriteRegister(context.Background(), 248, 0, 0); !errors.Is(err, link.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if len(cli.writes) != 0 {
		t.Fatalf("expected no writes")
	}
}
