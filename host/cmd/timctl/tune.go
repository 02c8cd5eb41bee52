package main

import (
	"context"
	"fmt"

	tty "github.com/mattn/go-tty"

	"timhal/host/mcu"
)

// tune puts the terminal in raw mode and maps keys to duty changes on one
// PWM channel: +/- step by 1%, ]/[ by 10%, 0 and 9 jump to the ends, s
// toggles the counter and q leaves.
func tune(m *mcu.MCU, oid, ch uint8) error {
	t, err := tty.Open()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer t.Close()
	restore := t.MustRaw()
	defer restore()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	state, err := m.Query(ctx, "timer_state", "query_timer", uint32(oid))
	cancel()
	if err != nil {
		return err
	}

	out := t.Output()
	duty, running := 50, state.Get("running") != 0
	if err := setDuty(m, oid, ch, duty); err != nil {
		return err
	}
	fmt.Fprintf(out, "tuning oid %d channel %d: +/- 1%%, ]/[ 10%%, s start/stop, q quit\r\n", oid, ch)
	for {
		fmt.Fprintf(out, "\rduty %3d%%  ", duty)
		r, err := t.ReadRune()
		if err != nil {
			return err
		}
		next := duty
		switch r {
		case 'q', 3: // ctrl-c arrives as a rune in raw mode
			fmt.Fprint(out, "\r\n")
			return nil
		case '+', '=':
			next++
		case '-':
			next--
		case ']':
			next += 10
		case '[':
			next -= 10
		case '0':
			next = 0
		case '9':
			next = 100
		case 's':
			cmd := "timer_stop"
			if !running {
				cmd = "timer_start"
			}
			if err := exec(m, cmd, uint32(oid)); err != nil {
				fmt.Fprintf(out, "\r\n%v\r\n", err)
				continue
			}
			running = !running
			continue
		default:
			continue
		}
		next = max(0, min(100, next))
		if next == duty {
			continue
		}
		if err := setDuty(m, oid, ch, next); err != nil {
			fmt.Fprintf(out, "\r\n%v\r\n", err)
			continue
		}
		duty = next
	}
}

func setDuty(m *mcu.MCU, oid, ch uint8, duty int) error {
	return exec(m, "pwm_set_duty", uint32(oid), uint32(ch), uint32(duty))
}

func exec(m *mcu.MCU, name string, args ...uint32) error {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return m.Exec(ctx, settle, name, args...)
}
