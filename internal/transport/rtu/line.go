// internal/transport/rtu/line.go
package rtu

import (
	"time"

	"github.com/goburrow/modbus"
	"github.com/pkg/errors"

	"github.com/tamzrod/modbus-discovery/internal/link"
)

// line is one opened serial port at one link config.
// The subset of modbus.Client the transport needs, plus slave selection.
type line interface {
	ReadCoils(address, quantity uint16) ([]byte, error)
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)

	SetSlave(id byte)
	Close() error
}

// opener opens the device at lc. One attempt per call.
type opener func(device string, lc link.Config, timeout time.Duration) (line, error)

// goburrowLine binds a goburrow RTU handler to its client.
type goburrowLine struct {
	modbus.Client
	handler *modbus.RTUClientHandler
}

func (l *goburrowLine) SetSlave(id byte) {
	l.handler.SlaveId = id
}

func (l *goburrowLine) Close() error {
	return l.handler.Close()
}

func openGoburrow(device string, lc link.Config, timeout time.Duration) (line, error) {
	h := modbus.NewRTUClientHandler(device)
	h.BaudRate = int(lc.Baud)
	h.DataBits = lc.Framing.DataBits
	h.Parity = string(rune(lc.Framing.Parity))
	h.StopBits = lc.Framing.StopBits
	h.Timeout = timeout

	if err := h.Connect(); err != nil {
		return nil, errors.Wrapf(err, "rtu: open %s at %s", device, lc)
	}

	return &goburrowLine{
		Client:  modbus.NewClient(h),
		handler: h,
	}, nil
}
