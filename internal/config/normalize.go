// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultDevice        = "/dev/ttyUSB0"
	DefaultBaudRate      = 9600
	DefaultFraming       = "8N1"
	DefaultTimeoutMs     = 1000
	DefaultSettleMs      = 100
	DefaultSlaveID       = 1
	DefaultQuickScanLast = 10
	DefaultCapacity      = 10
	DefaultProbeDelayMs  = 50
	DefaultFlashMs       = 100
	DefaultTickMs        = 50
	DefaultLogLevel      = "info"
)

// DefaultAdaptiveAddresses is the adaptive search order.
var DefaultAdaptiveAddresses = []uint8{1, 2, 3, 247}

// Normalize fills unset fields with defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// SERIAL
	// ------------------------------------------------------------

	s := &cfg.Serial
	if s.Device == "" {
		s.Device = DefaultDevice
	}
	if s.BaudRate == 0 {
		s.BaudRate = DefaultBaudRate
	}
	if s.Framing == "" {
		s.Framing = DefaultFraming
	}
	if s.TimeoutMs == 0 {
		s.TimeoutMs = DefaultTimeoutMs
	}
	if s.SettleMs == 0 {
		s.SettleMs = DefaultSettleMs
	}
	if s.SlaveID == 0 {
		s.SlaveID = DefaultSlaveID
	}

	// ------------------------------------------------------------
	// DISCOVERY
	// ------------------------------------------------------------

	d := &cfg.Discovery
	if d.QuickScanLast == 0 {
		d.QuickScanLast = DefaultQuickScanLast
	}
	if d.Capacity == 0 {
		d.Capacity = DefaultCapacity
	}
	if len(d.AdaptiveAddresses) == 0 {
		d.AdaptiveAddresses = append([]uint8(nil), DefaultAdaptiveAddresses...)
	}
	if d.ProbeDelayMs == 0 {
		d.ProbeDelayMs = DefaultProbeDelayMs
	}
	if d.FlashMs == 0 {
		d.FlashMs = DefaultFlashMs
	}

	// ------------------------------------------------------------
	// INDICATOR / LOG
	// ------------------------------------------------------------

	if cfg.Indicator.TickMs == 0 {
		cfg.Indicator.TickMs = DefaultTickMs
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}
