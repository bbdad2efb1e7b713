// internal/config/config.go
package config

import (
	"time"

	"github.com/tamzrod/modbus-discovery/internal/link"
)

type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Log       LogConfig       `yaml:"log"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Device    string `yaml:"device"`
	BaudRate  uint32 `yaml:"baud_rate"`
	Framing   string `yaml:"framing"` // e.g. "8N1"
	TimeoutMs int    `yaml:"timeout_ms"`
	SettleMs  int    `yaml:"settle_ms"`

	// Default slave id for menu operations.
	SlaveID uint8 `yaml:"slave_id"`
}

// ---- DISCOVERY ----

type DiscoveryConfig struct {
	QuickScanLast     uint8   `yaml:"quick_scan_last"`
	Capacity          int     `yaml:"capacity"`
	AdaptiveAddresses []uint8 `yaml:"adaptive_addresses"`
	ProbeDelayMs      int     `yaml:"probe_delay_ms"`
	FlashMs           int     `yaml:"flash_ms"`
}

// ---- INDICATOR ----

type IndicatorConfig struct {
	TickMs int `yaml:"tick_ms"`

	// Optional device receiving one GRB frame per colour change.
	Pixel string `yaml:"pixel"`
}

// ---- LOG ----

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ---- DERIVED ----

// Link returns the configured startup link. Only valid after Validate.
func (s SerialConfig) Link() link.Config {
	f, err := link.ParseFraming(s.Framing)
	if err != nil {
		f = link.Framing8N1
	}
	return link.Config{Baud: link.BaudRate(s.BaudRate), Framing: f}
}

func (s SerialConfig) Timeout() time.Duration { return ms(s.TimeoutMs) }
func (s SerialConfig) Settle() time.Duration  { return ms(s.SettleMs) }

func (d DiscoveryConfig) ProbeDelay() time.Duration { return ms(d.ProbeDelayMs) }
func (d DiscoveryConfig) Flash() time.Duration      { return ms(d.FlashMs) }

// Adaptive returns the adaptive search order as addresses.
func (d DiscoveryConfig) Adaptive() []link.Address {
	out := make([]link.Address, 0, len(d.AdaptiveAddresses))
	for _, a := range d.AdaptiveAddresses {
		out = append(out, link.Address(a))
	}
	return out
}

func (i IndicatorConfig) Tick() time.Duration { return ms(i.TickMs) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
