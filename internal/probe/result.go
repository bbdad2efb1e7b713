// internal/probe/result.go
package probe

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/goburrow/modbus"
	"github.com/goburrow/serial"
)

// Result is the outcome of one request/response exchange.
// Codes match the classic ModbusMaster numbering so logs stay comparable
// with what operators see on other masters.
type Result uint8

const (
	Success            Result = 0x00
	IllegalFunction    Result = 0x01
	IllegalDataAddress Result = 0x02
	IllegalDataValue   Result = 0x03
	SlaveDeviceFailure Result = 0x04

	InvalidSlaveID   Result = 0xE0
	InvalidFunction  Result = 0xE1
	ResponseTimedOut Result = 0xE2
	InvalidCRC       Result = 0xE3
)

// Present reports whether the result proves a device is listening.
// A device rejecting register 0 still answered.
func (r Result) Present() bool {
	return r == Success || r == IllegalDataAddress
}

// Silent reports whether nothing usable answered.
func (r Result) Silent() bool {
	return r == ResponseTimedOut || r == InvalidSlaveID
}

// Known is false for UnknownError codes.
func (r Result) Known() bool {
	switch r {
	case Success, IllegalFunction, IllegalDataAddress, IllegalDataValue, SlaveDeviceFailure,
		InvalidSlaveID, InvalidFunction, ResponseTimedOut, InvalidCRC:
		return true
	}
	return false
}

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case IllegalFunction:
		return "illegal function"
	case IllegalDataAddress:
		return "illegal data address"
	case IllegalDataValue:
		return "illegal data value"
	case SlaveDeviceFailure:
		return "slave device failure"
	case InvalidSlaveID:
		return "invalid slave id"
	case InvalidFunction:
		return "invalid function"
	case ResponseTimedOut:
		return "response timed out"
	case InvalidCRC:
		return "invalid crc"
	default:
		return fmt.Sprintf("unknown error 0x%02X", uint8(r))
	}
}

// Explain is the operator-facing line for a failed exchange.
func (r Result) Explain() string {
	switch r {
	case Success:
		return "SUCCESS"
	case IllegalFunction:
		return "ERROR: Illegal Function (0x01) - The function code is not supported"
	case IllegalDataAddress:
		return "ERROR: Illegal Data Address (0x02) - The data address is not valid"
	case IllegalDataValue:
		return "ERROR: Illegal Data Value (0x03) - The data value is not valid"
	case SlaveDeviceFailure:
		return "ERROR: Slave Device Failure (0x04) - The slave device failed to perform"
	case InvalidSlaveID:
		return "ERROR: Invalid Slave ID - No response from slave device"
	case InvalidFunction:
		return "ERROR: Invalid Function - Function code not supported by library"
	case ResponseTimedOut:
		return "ERROR: Response Timed Out - Slave did not respond within timeout period"
	case InvalidCRC:
		return "ERROR: Invalid CRC - Data corruption detected"
	default:
		return fmt.Sprintf("ERROR: Unknown error code: 0x%02X", uint8(r))
	}
}

// UnknownError is reported when an error carries no code at all.
const UnknownError Result = 0xFF

// Classify maps an error returned by the goburrow client into a Result.
// nil is Success.
func Classify(err error) Result {
	if err == nil {
		return Success
	}

	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		switch mbErr.ExceptionCode {
		case modbus.ExceptionCodeIllegalFunction:
			return IllegalFunction
		case modbus.ExceptionCodeIllegalDataAddress:
			return IllegalDataAddress
		case modbus.ExceptionCodeIllegalDataValue:
			return IllegalDataValue
		case modbus.ExceptionCodeServerDeviceFailure:
			return SlaveDeviceFailure
		default:
			return Result(mbErr.ExceptionCode)
		}
	}

	if errors.Is(err, serial.ErrTimeout) {
		return ResponseTimedOut
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ResponseTimedOut
	}

	// goburrow reports framing mismatches as plain formatted errors.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "crc"):
		return InvalidCRC
	case strings.Contains(msg, "slave id"):
		return InvalidSlaveID
	case strings.Contains(msg, "function code"):
		return InvalidFunction
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return ResponseTimedOut
	}

	return UnknownError
}
