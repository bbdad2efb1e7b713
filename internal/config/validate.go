// internal/config/validate.go
package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/tamzrod/modbus-discovery/internal/link"
)

// Validate checks configuration correctness.
// It performs declarative validation only; zero values are left for Normalize.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// SERIAL
	// ------------------------------------------------------------

	s := cfg.Serial
	if s.Framing != "" {
		if _, err := link.ParseFraming(s.Framing); err != nil {
			return fmt.Errorf("serial.framing: %w", err)
		}
	}
	if s.TimeoutMs < 0 {
		return fmt.Errorf("serial.timeout_ms must be >= 0 (got %d)", s.TimeoutMs)
	}
	if s.SettleMs < 0 {
		return fmt.Errorf("serial.settle_ms must be >= 0 (got %d)", s.SettleMs)
	}
	if s.SlaveID != 0 {
		if err := link.Address(s.SlaveID).Validate(); err != nil {
			return fmt.Errorf("serial.slave_id: %w", err)
		}
	}

	// ------------------------------------------------------------
	// DISCOVERY
	// ------------------------------------------------------------

	d := cfg.Discovery
	if d.QuickScanLast != 0 {
		if err := link.Address(d.QuickScanLast).Validate(); err != nil {
			return fmt.Errorf("discovery.quick_scan_last: %w", err)
		}
	}
	if d.Capacity < 0 {
		return fmt.Errorf("discovery.capacity must be >= 0 (got %d)", d.Capacity)
	}
	seen := make(map[uint8]int, len(d.AdaptiveAddresses))
	for i, a := range d.AdaptiveAddresses {
		if err := link.Address(a).Validate(); err != nil {
			return fmt.Errorf("discovery.adaptive_addresses[%d]: %w", i, err)
		}
		if prev, dup := seen[a]; dup {
			return fmt.Errorf("discovery.adaptive_addresses[%d]: address %d already listed at [%d]", i, a, prev)
		}
		seen[a] = i
	}
	if d.ProbeDelayMs < 0 {
		return fmt.Errorf("discovery.probe_delay_ms must be >= 0 (got %d)", d.ProbeDelayMs)
	}
	if d.FlashMs < 0 {
		return fmt.Errorf("discovery.flash_ms must be >= 0 (got %d)", d.FlashMs)
	}

	// ------------------------------------------------------------
	// INDICATOR / LOG
	// ------------------------------------------------------------

	if cfg.Indicator.TickMs < 0 {
		return fmt.Errorf("indicator.tick_ms must be >= 0 (got %d)", cfg.Indicator.TickMs)
	}
	if cfg.Log.Level != "" {
		if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}

	return nil
}
