// cmd/discovery/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tamzrod/modbus-discovery/internal/config"
	"github.com/tamzrod/modbus-discovery/internal/console"
	"github.com/tamzrod/modbus-discovery/internal/discovery"
	"github.com/tamzrod/modbus-discovery/internal/link"
	"github.com/tamzrod/modbus-discovery/internal/regio"
	"github.com/tamzrod/modbus-discovery/internal/status"
	"github.com/tamzrod/modbus-discovery/internal/transport/rtu"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file (optional)")
	device := flag.String("device", "", "Serial device, overrides serial.device")
	flag.Parse()

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Indicator + input pump
	// --------------------

	renderers := status.Multi{status.LogRenderer{Log: logger.Named("indicator")}}
	if cfg.Indicator.Pixel != "" {
		px, err := os.OpenFile(cfg.Indicator.Pixel, os.O_WRONLY, 0)
		if err != nil {
			logger.Fatal("indicator open failed", zap.String("pixel", cfg.Indicator.Pixel), zap.Error(err))
		}
		defer px.Close()
		renderers = append(renderers, status.FrameRenderer{W: px, Log: logger.Named("indicator")})
	}
	sched := status.New(renderers, nil)
	pump := console.NewPump(sched, console.Lines(os.Stdin), cfg.Indicator.Tick(), os.Stdout)

	// --------------------
	// Transport (fail fast at startup)
	// --------------------

	tr, err := rtu.New(rtu.Config{
		Device:  cfg.Serial.Device,
		Link:    cfg.Serial.Link(),
		Timeout: cfg.Serial.Timeout(),
		Settle:  cfg.Serial.Settle(),
		Wait:    pump.Sleep,
	}, logger.Named("rtu"))
	if err != nil {
		sched.Set(status.Error, false)
		logger.Fatal("transport open failed", zap.String("device", cfg.Serial.Device), zap.Error(err))
	}
	defer tr.Close()

	// --------------------
	// Engine + register I/O
	// --------------------

	opts := discovery.DefaultOptions()
	opts.QuickScanLast = link.Address(cfg.Discovery.QuickScanLast)
	opts.Capacity = cfg.Discovery.Capacity
	opts.Adaptive = cfg.Discovery.Adaptive()
	opts.ProbeDelay = cfg.Discovery.ProbeDelay()
	opts.FlashDelay = cfg.Discovery.Flash()
	opts.Out = os.Stdout
	opts.Yield = pump.Yield
	opts.Sleep = pump.Sleep

	app := &console.App{
		Engine:  discovery.New(tr, tr, sched, opts, logger.Named("discovery")),
		Status:  sched,
		Line:    tr,
		Reader:  regio.NewReader(tr, sched, os.Stdout, logger.Named("regio")),
		Writer:  regio.NewWriter(tr, sched, os.Stdout, logger.Named("regio")),
		Config:  cfg,
		SlaveID: link.Address(cfg.Serial.SlaveID),
		Out:     os.Stdout,
		Log:     logger.Named("console"),
	}

	logger.Info("console started",
		zap.String("device", tr.Device()),
		zap.Stringer("link", tr.Current()),
	)

	if err := console.NewLoop(app, pump).Run(ctx); err != nil {
		logger.Error("console stopped", zap.Error(err))
	}

	sched.Set(status.Off, false)
	logger.Info("console stopped")
}

// newLogger builds a production or development zap logger at the configured level.
// Logs go to stderr so they do not interleave with the operator console on stdout.
func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
