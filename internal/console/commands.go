// internal/console/commands.go
package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tamzrod/modbus-discovery/internal/link"
	"github.com/tamzrod/modbus-discovery/internal/probe"
	"github.com/tamzrod/modbus-discovery/internal/regio"
)

func (l *Loop) dispatch(ctx context.Context, choice int) {
	switch choice {
	case 1:
		l.printf("\nStarting auto-detection...\n")
		l.run(ctx, "detect", l.detect)
		l.after()
	case 2:
		l.printf("\nStarting full device scan...\n")
		l.run(ctx, "scan", l.scan)
		l.after()
	case 3:
		l.start(ctx, l.testForm())
	case 4:
		l.start(ctx, l.baudForm())
	case 5:
		l.start(ctx, l.readForm())
	case 6:
		l.start(ctx, l.writeForm())
	case 7:
		l.showConfiguration()
		l.after()
	case 8:
		l.start(ctx, l.settingsForm())
	case 9:
		l.help()
		l.after()
	}
}

// ------------------------------------------------------------
// immediate commands
// ------------------------------------------------------------

func (l *Loop) detect(ctx context.Context) error {
	sum, err := l.app.Engine.DetectDevice(ctx)
	if err != nil {
		return err
	}
	l.printf("\n")
	_, _ = sum.WriteTo(l.out)
	return nil
}

func (l *Loop) scan(ctx context.Context) error {
	res, err := l.app.Engine.ScanAllAddresses(ctx)
	if err != nil {
		return err
	}
	if len(res.Addresses) > 0 {
		ids := make([]string, 0, len(res.Addresses))
		for _, a := range res.Addresses {
			ids = append(ids, strconv.Itoa(int(a)))
		}
		l.printf("Responding IDs: %s\n", strings.Join(ids, ", "))
	}
	if res.Count > len(res.Addresses) {
		l.printf("(%d more not listed)\n", res.Count-len(res.Addresses))
	}
	return nil
}

func (l *Loop) showConfiguration() {
	l.printf("\nCURRENT CONFIGURATION:\n")
	if l.app.Line != nil {
		lc := l.app.Line.Current()
		l.printf("   Device: %s\n", l.app.Line.Device())
		l.printf("   Baud Rate: %d\n", lc.Baud)
		l.printf("   Data Format: %s\n", lc.Framing.Describe())
	}
	l.printf("   Default Slave ID: %d\n", l.app.SlaveID)
	if c := l.app.Config; c != nil {
		l.printf("   Response Timeout: %s\n", c.Serial.Timeout())
		l.printf("   Settle Delay: %s\n", c.Serial.Settle())
		l.printf("   Quick Scan: IDs 1-%d\n", c.Discovery.QuickScanLast)
	}
	if l.app.Status != nil {
		snap := l.app.Status.Snapshot()
		l.printf("   Indicator: %s %s (%s)\n", snap.State.Badge(), snap.State, snap.Color)
	}
}

func (l *Loop) help() {
	l.printf("\nTROUBLESHOOTING HELP:\n")
	l.printf("\nCommon Wiring Issues:\n")
	l.printf("   - A and B lines swapped\n")
	l.printf("   - Missing ground connection\n")
	l.printf("   - Adapter without automatic direction control for RS485\n")
	l.printf("\nCommunication Settings:\n")
	l.printf("   - Wrong baud rate (try auto-detection)\n")
	l.printf("   - Wrong parity settings (most use 8N1)\n")
	l.printf("   - Wrong slave ID (try scanning)\n")
	l.printf("\nRS485 Specific:\n")
	l.printf("   - Missing 120 ohm termination resistors\n")
	l.printf("   - Cable length too long (>1200m)\n")
	l.printf("   - Poor quality cables (use twisted pair)\n")
	l.printf("\nTesting Steps:\n")
	l.printf("   1. Use option 1 (auto-detect) first\n")
	l.printf("   2. If that fails, try option 2 (full scan)\n")
	l.printf("   3. Check physical connections\n")
	l.printf("   4. Verify device documentation\n")
}

// ------------------------------------------------------------
// prompted commands
// ------------------------------------------------------------

func (l *Loop) testForm() *form {
	var addr link.Address
	return &form{
		title:  "Test specific slave ID",
		fields: []field{addressField("Enter Slave ID to test (1-247):", &addr)},
		run: func(ctx context.Context) {
			l.run(ctx, "test", func(ctx context.Context) error {
				_, err := l.app.Reader.TestAddress(ctx, addr)
				return err
			})
		},
	}
}

func (l *Loop) baudForm() *form {
	var addr link.Address
	return &form{
		title:  "Test different baud rates",
		fields: []field{addressField("Enter Slave ID to test (1-247):", &addr)},
		run: func(ctx context.Context) {
			l.run(ctx, "baud", func(ctx context.Context) error {
				baud, ok, err := l.app.Engine.DetectBaudRate(ctx, addr)
				if err != nil {
					return err
				}
				if ok {
					l.printf("✅ Device communicates at %d baud\n", baud)
				} else {
					l.printf("❌ Could not detect baud rate for this device.\n")
				}
				return nil
			})
		},
	}
}

func (l *Loop) readForm() *form {
	var (
		addr link.Address
		b    regio.Block
	)
	return &form{
		title: "Register Reading Setup:",
		fields: []field{
			addressField("Enter Slave ID (1-247):", &addr),
			{
				ask: "Enter register type (1=Holding, 2=Input, 3=Coils, 4=Discrete):",
				set: func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil {
						return fmt.Errorf("invalid register type %q", s)
					}
					k, ok := probe.ParseKind(n)
					if !ok {
						return fmt.Errorf("invalid register type %d", n)
					}
					b.Kind = k
					return nil
				},
			},
			uint16Field("Enter starting address:", &b.Start),
			uint16Field("Enter number of registers to read:", &b.Quantity),
		},
		run: func(ctx context.Context) {
			l.run(ctx, "read", func(ctx context.Context) error {
				_, err := l.app.Reader.Read(ctx, addr, b)
				return err
			})
		},
	}
}

func (l *Loop) writeForm() *form {
	var (
		addr   link.Address
		coil   bool
		offset uint16
		raw    string
	)
	return &form{
		title: "Register Writing Setup:",
		fields: []field{
			addressField("Enter Slave ID (1-247):", &addr),
			{
				ask: "Enter target (1=Holding register, 2=Coil) [1]:",
				set: func(s string) error {
					switch s {
					case "", "1":
						coil = false
					case "2":
						coil = true
					default:
						return fmt.Errorf("invalid target %q", s)
					}
					return nil
				},
			},
			uint16Field("Enter register address:", &offset),
			{
				ask: "Enter value to write (coils: 1/0 or on/off):",
				set: func(s string) error {
					raw = s
					return nil
				},
			},
		},
		run: func(ctx context.Context) {
			l.run(ctx, "write", func(ctx context.Context) error {
				if coil {
					on, err := parseOnOff(raw)
					if err != nil {
						return err
					}
					_, err = l.app.Writer.WriteCoil(ctx, addr, offset, on)
					return err
				}
				v, err := parseUint16(raw)
				if err != nil {
					return err
				}
				_, err = l.app.Writer.WriteRegister(ctx, addr, offset, v)
				return err
			})
		},
	}
}

func (l *Loop) settingsForm() *form {
	var (
		baud    link.BaudRate
		framing *link.Framing
		slave   link.Address
	)
	return &form{
		title: "CHANGE SETTINGS:\nNote: This only changes runtime settings, not the config file.",
		fields: []field{
			{
				ask: "Enter new baud rate (or press Enter to keep current):",
				set: func(s string) error {
					if s == "" {
						return nil
					}
					b, err := link.ParseBaudRate(s)
					if err != nil {
						return err
					}
					baud = b
					return nil
				},
			},
			{
				ask: "Enter new data format, e.g. 8E1 (or press Enter to keep current):",
				set: func(s string) error {
					if s == "" {
						return nil
					}
					f, err := link.ParseFraming(s)
					if err != nil {
						return err
					}
					framing = &f
					return nil
				},
			},
			{
				ask: "Enter new default Slave ID (or press Enter to keep current):",
				set: func(s string) error {
					if s == "" {
						return nil
					}
					a, err := link.ParseAddress(s)
					if err != nil {
						return err
					}
					slave = a
					return nil
				},
			},
		},
		run: func(ctx context.Context) {
			if slave != 0 {
				l.app.SlaveID = slave
			}
			if l.app.Line == nil || (baud == 0 && framing == nil) {
				l.printf("✅ Settings updated: Slave ID=%d\n", l.app.SlaveID)
				return
			}

			lc := l.app.Line.Current()
			if baud != 0 {
				lc.Baud = baud
			}
			if framing != nil {
				lc.Framing = *framing
			}
			l.printf("Changing Modbus settings: %s, Slave ID=%d\n", lc, l.app.SlaveID)
			l.run(ctx, "settings", func(ctx context.Context) error {
				if err := l.app.Line.Configure(ctx, lc); err != nil {
					return err
				}
				l.printf("✅ Settings updated successfully!\n")
				return nil
			})
		},
	}
}

// ------------------------------------------------------------
// field parsers
// ------------------------------------------------------------

func addressField(ask string, dst *link.Address) field {
	return field{
		ask: ask,
		set: func(s string) error {
			a, err := link.ParseAddress(s)
			if err != nil {
				return err
			}
			*dst = a
			return nil
		},
	}
}

func uint16Field(ask string, dst *uint16) field {
	return field{
		ask: ask,
		set: func(s string) error {
			v, err := parseUint16(s)
			if err != nil {
				return err
			}
			*dst = v
			return nil
		},
	}
}

// parseUint16 accepts decimal or 0x-prefixed hex.
func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q (0-65535)", s)
	}
	return uint16(v), nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "on", "true":
		return true, nil
	case "0", "off", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid coil value %q (use 1/0 or on/off)", s)
}

func (l *Loop) banner() {
	l.printf("%s\n", strings.Repeat("=", 60))
	l.printf("MODBUS RTU DISCOVERY CONSOLE\n")
	l.printf("%s\n", strings.Repeat("=", 60))
	if l.app.Line != nil {
		l.printf("Device: %s at %s\n", l.app.Line.Device(), l.app.Line.Current())
	}
	l.printf("Default Slave ID: %d\n", l.app.SlaveID)
}

func (l *Loop) menu() {
	l.printf("\nMAIN MENU - Choose an option:\n")
	l.printf("1. Auto-detect device (recommended)\n")
	l.printf("2. Manual device scan (all slave IDs)\n")
	l.printf("3. Test specific slave ID\n")
	l.printf("4. Test different baud rates\n")
	l.printf("5. Read specific registers\n")
	l.printf("6. Write to register\n")
	l.printf("7. Show current configuration\n")
	l.printf("8. Change settings\n")
	l.printf("9. Help/Troubleshooting\n")
	l.printf("\nType a number (1-9) and press Enter (q to quit):\n")
}
