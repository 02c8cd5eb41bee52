package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"timhal/core"
)

// f407 runs HCLK at 168 MHz with APB1 at /4 and APB2 at /2.
var f407 = Clocks{Core: 168000000, APB1: 42000000, APB2: 84000000}

const sampleBoard = `{
	"device": "/dev/ttyUSB0",
	"timers": [
		{"oid": 1, "timer": "TIM3", "mode": "pwm_generator",
		 "channels": [{"channel": 1, "duty": 25}, {"channel": 2, "on_period": 300}], "start": true},
		{"oid": 2, "timer": "TIM2", "mode": "encoder"},
		{"oid": 3, "timer": "TIM4", "mode": "pwm_measure", "counter_freq": 2000000},
		{"oid": 4, "timer": "TIM1", "mode": "pwm_generator", "signal_freq": 50},
		{"oid": 5, "timer": "TIM6", "mode": "basic", "reload": 999}
	]
}`

func TestLoadConfigDefaults(t *testing.T) {
	b, err := LoadConfig([]byte(sampleBoard))
	if err != nil {
		t.Fatal(err)
	}
	if b.Baud != 250000 {
		t.Errorf("baud = %d", b.Baud)
	}
	pwm := b.Timers[0]
	if pwm.CounterFreq != DefaultCounterFreq || pwm.Period != DefaultPeriod {
		t.Errorf("pwm defaults: freq %d period %d", pwm.CounterFreq, pwm.Period)
	}
	if b.Timers[1].EncoderMode != "both" {
		t.Errorf("encoder mode = %q", b.Timers[1].EncoderMode)
	}
	if b.Timers[2].CounterFreq != 2000000 {
		t.Errorf("explicit counter_freq overwritten: %d", b.Timers[2].CounterFreq)
	}
	if freq := b.Timers[3]; freq.CounterFreq != 0 || freq.Period != 0 {
		t.Errorf("signal_freq entry got counter defaults: %+v", freq)
	}
	if err := b.Validate(f407); err != nil {
		t.Errorf("sample board invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	if err := os.WriteFile(path, []byte(sampleBoard), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if b.Device != "/dev/ttyUSB0" || len(b.Timers) != 5 {
		t.Errorf("loaded %+v", b)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := LoadConfig([]byte("{")); err == nil {
		t.Error("malformed JSON accepted")
	}
}

func TestTimerFreq(t *testing.T) {
	if got := f407.TimerFreq(core.TIM2); got != 84000000 {
		t.Errorf("TIM2 clock %d", got)
	}
	if got := f407.TimerFreq(core.TIM1); got != 168000000 {
		t.Errorf("TIM1 clock %d", got)
	}
	undivided := Clocks{Core: 16000000, APB1: 16000000, APB2: 16000000}
	if got := undivided.TimerFreq(core.TIM1); got != 16000000 {
		t.Errorf("undivided TIM1 clock %d", got)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		timer TimerConfig
		want  error
	}{
		{"unknown timer", TimerConfig{Timer: "TIM15", Mode: ModeBasic, CounterFreq: 1000}, ErrBadTimer},
		{"unknown mode", TimerConfig{Timer: "TIM3", Mode: "stepper"}, ErrBadMode},
		{"pwm on basic timer", TimerConfig{Timer: "TIM7", Mode: ModePwmGenerator, CounterFreq: 1000, Period: 10}, core.ErrUnsupportedMode},
		{"measure without slave", TimerConfig{Timer: "TIM13", Mode: ModePwmMeasure, CounterFreq: 1000}, core.ErrUnsupportedMode},
		{"encoder on TIM10", TimerConfig{Timer: "TIM10", Mode: ModeEncoder, EncoderMode: "both"}, core.ErrUnsupportedMode},
		{"bad encoder mode", TimerConfig{Timer: "TIM3", Mode: ModeEncoder, EncoderMode: "ti3"}, ErrBadMode},
		{"freq too high", TimerConfig{Timer: "TIM3", Mode: ModeCounter, CounterFreq: 100000000}, core.ErrFrequencyTooHigh},
		{"freq too low", TimerConfig{Timer: "TIM3", Mode: ModeCounter, CounterFreq: 1000}, core.ErrFrequencyTooLow},
		{"reload too wide", TimerConfig{Timer: "TIM3", Mode: ModeCounter, CounterFreq: 1000000, Reload: 0x10000}, core.ErrReloadOutOfRange},
		{"channel 5", TimerConfig{Timer: "TIM3", Mode: ModePwmGenerator, CounterFreq: 1000000, Period: 100,
			Channels: []ChannelConfig{{Channel: 5}}}, ErrBadChannel},
		{"channel 2 on TIM10", TimerConfig{Timer: "TIM10", Mode: ModePwmGenerator, CounterFreq: 1000000, Period: 100,
			Channels: []ChannelConfig{{Channel: 2}}}, ErrBadChannel},
		{"duty over 100", TimerConfig{Timer: "TIM3", Mode: ModePwmGenerator, CounterFreq: 1000000, Period: 100,
			Channels: []ChannelConfig{{Channel: 1, Duty: 101}}}, ErrBadChannel},
		{"on period beyond period", TimerConfig{Timer: "TIM3", Mode: ModePwmGenerator, CounterFreq: 1000000, Period: 100,
			Channels: []ChannelConfig{{Channel: 1, OnPeriod: 101}}}, core.ErrOnPeriodOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Board{Timers: []TimerConfig{tt.timer}}
			if err := b.Validate(f407); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	b := &Board{Timers: []TimerConfig{
		{OID: 1, Timer: "TIM3", Mode: ModeCounter, CounterFreq: 1000000},
		{OID: 1, Timer: "TIM3", Mode: ModeCounter, CounterFreq: 1000000},
		{OID: 2, Timer: "TIM99", Mode: ModeCounter},
	}}
	err := b.Validate(f407)
	for _, want := range []error{ErrDuplicateID, ErrTimerReused, ErrBadTimer} {
		if !errors.Is(err, want) {
			t.Errorf("missing %v in %v", want, err)
		}
	}
	if err := (&Board{}).Validate(f407); err != ErrNoTimers {
		t.Errorf("empty board: %v", err)
	}
}

func TestEncoderModeValue(t *testing.T) {
	for name, want := range map[string]uint8{"ti1": 1, "ti2": 2, "both": 3, "": 0, "x": 0} {
		if got := EncoderModeValue(name); got != want {
			t.Errorf("%q = %d", name, got)
		}
	}
}
