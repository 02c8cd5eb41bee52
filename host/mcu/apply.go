package mcu

import (
	"context"
	"fmt"
	"time"

	"timhal/host/config"
)

// settleTime bounds the wait for a timer_error after each board command.
const settleTime = 20 * time.Millisecond

// ApplyBoard validates b against the MCU clocks and sends the commands that
// configure every timer in it. The first rejected command stops the run.
func (m *MCU) ApplyBoard(ctx context.Context, b *config.Board) error {
	clk, err := m.Clocks()
	if err != nil {
		return err
	}
	if err := b.Validate(clk); err != nil {
		return err
	}
	for _, t := range b.Timers {
		if err := m.applyTimer(ctx, t); err != nil {
			return fmt.Errorf("%s (oid %d): %w", t.Timer, t.OID, err)
		}
		m.logf("configured %s as %s (oid %d)", t.Timer, t.Mode, t.OID)
	}
	return nil
}

func (m *MCU) applyTimer(ctx context.Context, t config.TimerConfig) error {
	timer, ok := m.dictionary.Enum("timer", t.Timer)
	if !ok {
		return fmt.Errorf("timer %s: %w", t.Timer, ErrUnknownName)
	}
	oid := uint32(t.OID)
	exec := func(name string, args ...uint32) error {
		return m.Exec(ctx, settleTime, name, args...)
	}

	var err error
	switch t.Mode {
	case config.ModeBasic:
		err = exec("config_basic_timer", oid, timer, t.CounterFreq, t.Reload)
	case config.ModeCounter:
		err = exec("config_counter", oid, timer, t.CounterFreq, t.Reload)
	case config.ModePwmMeasure:
		err = exec("config_pwm_measure", oid, timer, t.CounterFreq)
	case config.ModeEncoder:
		err = exec("config_encoder", oid, timer, t.Reload, uint32(config.EncoderModeValue(t.EncoderMode)))
		if err == nil && (t.InvertTI1 || t.InvertTI2) {
			err = exec("encoder_set_polarity", oid, boolArg(t.InvertTI1), boolArg(t.InvertTI2))
		}
	case config.ModePwmGenerator:
		if t.SignalFreq != 0 {
			err = exec("config_pwm_generator_freq", oid, timer, t.SignalFreq)
		} else {
			err = exec("config_pwm_generator", oid, timer, t.CounterFreq, t.Period)
		}
		for _, ch := range t.Channels {
			if err != nil {
				break
			}
			err = exec("pwm_channel_enable", oid, uint32(ch.Channel))
			if err != nil {
				break
			}
			if ch.OnPeriod != 0 {
				err = exec("pwm_set_on_period", oid, uint32(ch.Channel), ch.OnPeriod)
			} else {
				err = exec("pwm_set_duty", oid, uint32(ch.Channel), uint32(ch.Duty))
			}
		}
	default:
		return fmt.Errorf("mode %q: %w", t.Mode, config.ErrBadMode)
	}
	if err != nil || !t.Start {
		return err
	}
	return exec("timer_start", oid)
}

func boolArg(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
