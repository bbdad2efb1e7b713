// internal/console/app.go
package console

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-discovery/internal/config"
	"github.com/tamzrod/modbus-discovery/internal/discovery"
	"github.com/tamzrod/modbus-discovery/internal/link"
	"github.com/tamzrod/modbus-discovery/internal/probe"
	"github.com/tamzrod/modbus-discovery/internal/regio"
	"github.com/tamzrod/modbus-discovery/internal/status"
)

// Detector is the discovery surface used by the menu.
type Detector interface {
	DetectDevice(ctx context.Context) (discovery.Summary, error)
	ScanAllAddresses(ctx context.Context) (discovery.ScanResult, error)
	DetectBaudRate(ctx context.Context, addr link.Address) (link.BaudRate, bool, error)
}

type RegisterReader interface {
	Read(ctx context.Context, addr link.Address, b regio.Block) (regio.BlockResult, error)
	TestAddress(ctx context.Context, addr link.Address) (probe.Result, error)
}

type RegisterWriter interface {
	WriteRegister(ctx context.Context, addr link.Address, reg, value uint16) (probe.Result, error)
	WriteCoil(ctx context.Context, addr link.Address, coil uint16, on bool) (probe.Result, error)
}

// Line is the shared serial line as the menu sees it.
type Line interface {
	Configure(ctx context.Context, lc link.Config) error
	Current() link.Config
	Device() string
}

// Status is the indicator as the menu sees it.
type Status interface {
	Set(state status.State, animate bool)
	Snapshot() status.Snapshot
}

// App is the context handed to every command.
type App struct {
	Engine Detector
	Status Status
	Line   Line
	Reader RegisterReader
	Writer RegisterWriter
	Config *config.Config

	// SlaveID is the runtime default address; menu 8 changes it.
	SlaveID link.Address

	Out io.Writer
	Log *zap.Logger
}
