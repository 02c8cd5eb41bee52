// Package config loads board files describing which timers the host
// configures on the MCU and in which mode.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"timhal/core"
	"timhal/host/serial"
)

// Timer modes accepted in a board file. They match the timer_mode
// enumeration published by the firmware.
const (
	ModeBasic        = "basic"
	ModeCounter      = "counter"
	ModePwmGenerator = "pwm_generator"
	ModePwmMeasure   = "pwm_measure"
	ModeEncoder      = "encoder"
)

// DefaultCounterFreq is used when a timer entry leaves counter_freq unset.
const DefaultCounterFreq = 1000000

// DefaultPeriod is the PWM period in counter ticks when none is given.
const DefaultPeriod = 1000

var (
	ErrNoTimers    = errors.New("config: board has no timers")
	ErrDuplicateID = errors.New("config: duplicate oid")
	ErrTimerReused = errors.New("config: timer used twice")
	ErrBadMode     = errors.New("config: unknown mode")
	ErrBadTimer    = errors.New("config: unknown timer")
	ErrBadChannel  = errors.New("config: bad channel")
)

// Board is the top level of a board file.
type Board struct {
	Device string        `json:"device"`
	Baud   int           `json:"baud"`
	Timers []TimerConfig `json:"timers"`
}

// TimerConfig configures one timer. Which fields apply depends on Mode.
type TimerConfig struct {
	OID         uint8           `json:"oid"`
	Timer       string          `json:"timer"`
	Mode        string          `json:"mode"`
	CounterFreq uint32          `json:"counter_freq"`
	Reload      uint32          `json:"reload"`
	Period      uint32          `json:"period"`
	SignalFreq  uint32          `json:"signal_freq"`
	EncoderMode string          `json:"encoder_mode"`
	InvertTI1   bool            `json:"invert_ti1"`
	InvertTI2   bool            `json:"invert_ti2"`
	Channels    []ChannelConfig `json:"channels"`
	Start       bool            `json:"start"`
}

// ChannelConfig is one PWM output. OnPeriod wins over Duty when both are set.
type ChannelConfig struct {
	Channel  uint8  `json:"channel"`
	Duty     uint8  `json:"duty"`
	OnPeriod uint32 `json:"on_period"`
}

// Clocks are the frequencies a board is validated against, as published in
// the MCU dictionary.
type Clocks struct {
	Core uint32
	APB1 uint32
	APB2 uint32
}

// TimerFreq returns the kernel clock of tim. Timers on a divided APB bus run
// at twice the bus clock.
func (c Clocks) TimerFreq(tim *core.TimerPeripheral) uint32 {
	apb := c.APB1
	if tim.Bus == core.APB2 {
		apb = c.APB2
	}
	if apb == c.Core {
		return apb
	}
	return apb * 2
}

// LoadFile reads and parses a board file and fills in defaults.
func LoadFile(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board file: %w", err)
	}
	return LoadConfig(data)
}

// LoadConfig decodes board JSON and fills in defaults.
func LoadConfig(jsonData []byte) (*Board, error) {
	b := &Board{}
	if err := json.Unmarshal(jsonData, b); err != nil {
		return nil, fmt.Errorf("parse board file: %w", err)
	}
	b.applyDefaults()
	return b, nil
}

func (b *Board) applyDefaults() {
	if b.Baud == 0 {
		b.Baud = serial.DefaultBaud
	}
	for i := range b.Timers {
		t := &b.Timers[i]
		switch t.Mode {
		case ModeEncoder:
			if t.EncoderMode == "" {
				t.EncoderMode = "both"
			}
		case ModePwmGenerator:
			if t.SignalFreq != 0 {
				continue
			}
			if t.Period == 0 {
				t.Period = DefaultPeriod
			}
			fallthrough
		default:
			if t.CounterFreq == 0 {
				t.CounterFreq = DefaultCounterFreq
			}
		}
	}
}

// Validate checks every timer entry against the chip and clocks. All
// problems are reported, joined.
func (b *Board) Validate(clk Clocks) error {
	if len(b.Timers) == 0 {
		return ErrNoTimers
	}
	var errs []error
	oids := make(map[uint8]bool)
	used := make(map[string]bool)
	for _, t := range b.Timers {
		if oids[t.OID] {
			errs = append(errs, fmt.Errorf("oid %d: %w", t.OID, ErrDuplicateID))
		}
		oids[t.OID] = true
		if used[t.Timer] {
			errs = append(errs, fmt.Errorf("%s: %w", t.Timer, ErrTimerReused))
		}
		used[t.Timer] = true
		if err := t.validate(clk); err != nil {
			errs = append(errs, fmt.Errorf("oid %d (%s): %w", t.OID, t.Timer, err))
		}
	}
	return errors.Join(errs...)
}

func (t *TimerConfig) validate(clk Clocks) error {
	tim := core.TimerByName(t.Timer)
	if tim == nil {
		return ErrBadTimer
	}
	switch t.Mode {
	case ModeBasic, ModeCounter:
		if err := checkFreq(tim, clk, t.CounterFreq); err != nil {
			return err
		}
		return checkReload(tim, t.Reload, true)
	case ModePwmGenerator:
		if tim.Channels == 0 {
			return core.ErrUnsupportedMode
		}
		if t.SignalFreq == 0 {
			if err := checkFreq(tim, clk, t.CounterFreq); err != nil {
				return err
			}
			if err := checkReload(tim, t.Period, false); err != nil {
				return err
			}
		}
		for _, ch := range t.Channels {
			if !tim.HasChannel(ch.Channel) {
				return fmt.Errorf("channel %d: %w", ch.Channel, ErrBadChannel)
			}
			if ch.Duty > 100 {
				return fmt.Errorf("channel %d duty %d: %w", ch.Channel, ch.Duty, ErrBadChannel)
			}
			if t.SignalFreq == 0 && ch.OnPeriod > t.Period {
				return fmt.Errorf("channel %d: %w", ch.Channel, core.ErrOnPeriodOutOfRange)
			}
		}
		return nil
	case ModePwmMeasure:
		if tim.Channels < 2 || !tim.SlaveMode {
			return core.ErrUnsupportedMode
		}
		return checkFreq(tim, clk, t.CounterFreq)
	case ModeEncoder:
		if !tim.Encoder {
			return core.ErrUnsupportedMode
		}
		if EncoderModeValue(t.EncoderMode) == 0 {
			return fmt.Errorf("encoder mode %q: %w", t.EncoderMode, ErrBadMode)
		}
		return checkReload(tim, t.Reload, true)
	}
	return fmt.Errorf("%q: %w", t.Mode, ErrBadMode)
}

// checkFreq applies the firmware prescaler rules so a bad board fails before
// anything is sent.
func checkFreq(tim *core.TimerPeripheral, clk Clocks, freq uint32) error {
	in := clk.TimerFreq(tim)
	switch {
	case freq == 0:
		return core.ErrZeroFrequency
	case freq > in:
		return core.ErrFrequencyTooHigh
	case in/freq-1 > 0xFFFF:
		return core.ErrFrequencyTooLow
	}
	return nil
}

// checkReload validates a reload or period. Zero selects the firmware default
// where allowZero is set.
func checkReload(tim *core.TimerPeripheral, v uint32, allowZero bool) error {
	if v == 0 && allowZero {
		return nil
	}
	if v == 0 || v > tim.MaxReload() {
		return core.ErrReloadOutOfRange
	}
	return nil
}

// EncoderModeValue maps an encoder mode name to its wire value, or 0.
func EncoderModeValue(name string) uint8 {
	switch name {
	case "ti1":
		return uint8(core.EncoderTI1)
	case "ti2":
		return uint8(core.EncoderTI2)
	case "both":
		return uint8(core.EncoderBoth)
	}
	return 0
}
