package core

import "errors"

// Setup and runtime errors reported by timer handles. They are plain
// sentinels so firmware builds stay free of fmt.
var (
	ErrZeroFrequency      = errors.New("timer: counter frequency is zero")
	ErrFrequencyTooHigh   = errors.New("timer: counter frequency above timer clock")
	ErrFrequencyTooLow    = errors.New("timer: counter frequency needs prescaler above 65535")
	ErrReloadOutOfRange   = errors.New("timer: reload value out of range")
	ErrInvalidChannel     = errors.New("timer: channel not present on this timer")
	ErrTimerRunning       = errors.New("timer: operation requires a stopped counter")
	ErrOnPeriodOutOfRange = errors.New("timer: on period exceeds pwm period")
	ErrUnsupportedMode    = errors.New("timer: mode not supported by this timer")
	ErrTimerBusy          = errors.New("timer: already claimed")
	ErrTimerClosed        = errors.New("timer: handle closed")
	ErrUnknownTimer       = errors.New("timer: no such timer")
	ErrUnknownOID         = errors.New("timer: oid not configured")
	ErrShutdown           = errors.New("timer: firmware is shut down")
)

// Error codes carried by timer_error responses. Values are part of the wire
// protocol and must not be renumbered.
const (
	ErrCodeNone uint8 = iota
	ErrCodeZeroFrequency
	ErrCodeFrequencyTooHigh
	ErrCodeFrequencyTooLow
	ErrCodeReloadOutOfRange
	ErrCodeInvalidChannel
	ErrCodeTimerRunning
	ErrCodeOnPeriodOutOfRange
	ErrCodeUnsupportedMode
	ErrCodeTimerBusy
	ErrCodeTimerClosed
	ErrCodeUnknownTimer
	ErrCodeUnknownOID
	ErrCodeShutdown
	ErrCodeOther uint8 = 0xFF
)

var errorCodes = []struct {
	err  error
	code uint8
}{
	{ErrZeroFrequency, ErrCodeZeroFrequency},
	{ErrFrequencyTooHigh, ErrCodeFrequencyTooHigh},
	{ErrFrequencyTooLow, ErrCodeFrequencyTooLow},
	{ErrReloadOutOfRange, ErrCodeReloadOutOfRange},
	{ErrInvalidChannel, ErrCodeInvalidChannel},
	{ErrTimerRunning, ErrCodeTimerRunning},
	{ErrOnPeriodOutOfRange, ErrCodeOnPeriodOutOfRange},
	{ErrUnsupportedMode, ErrCodeUnsupportedMode},
	{ErrTimerBusy, ErrCodeTimerBusy},
	{ErrTimerClosed, ErrCodeTimerClosed},
	{ErrUnknownTimer, ErrCodeUnknownTimer},
	{ErrUnknownOID, ErrCodeUnknownOID},
	{ErrShutdown, ErrCodeShutdown},
}

// ErrorCode maps an error to its wire code.
func ErrorCode(err error) uint8 {
	if err == nil {
		return ErrCodeNone
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ErrCodeOther
}

// CodeError maps a wire code back to its sentinel, or nil for ErrCodeNone.
func CodeError(code uint8) error {
	if code == ErrCodeNone {
		return nil
	}
	for _, e := range errorCodes {
		if e.code == code {
			return e.err
		}
	}
	return errors.New("timer: error code " + utoa(uint32(code)))
}
