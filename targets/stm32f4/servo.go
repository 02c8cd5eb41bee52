//go:build stm32f4

package main

import (
	"machine"

	"tinygo.org/x/drivers/servo"

	"timhal/core"
	"timhal/protocol"
)

// servoTickFreq makes one counter tick one microsecond, so PWM values are
// pulse widths in microseconds.
const servoTickFreq = 1000000

// Pulse range mapped to 0..180 degrees.
const (
	servoMinUs = 1000
	servoMaxUs = 2000
)

// timerPWM adapts a core.PwmGenerator to the servo.PWM interface. The
// generator is created on Configure and registered under oid, so emergency
// stop and config_reset cover servo outputs too.
type timerPWM struct {
	oid uint8
	tim *core.TimerPeripheral
	gen *core.PwmGenerator
}

var _ servo.PWM = (*timerPWM)(nil)

func (p *timerPWM) Configure(cfg machine.PWMConfig) error {
	period := uint32(cfg.Period / 1000)
	if p.gen != nil {
		return p.gen.SetPeriod(period)
	}
	gen, err := core.AddPwmGenerator(p.oid, p.tim, servoTickFreq, period)
	if err != nil {
		return err
	}
	p.gen = gen
	return nil
}

// Channel routes pin to its channel and starts the output. The counter is
// stopped while the channel mode is changed.
func (p *timerPWM) Channel(pin machine.Pin) (uint8, error) {
	ch, err := channelForPin(p.tim, pin)
	if err != nil {
		return 0, err
	}
	if err := bindPin(p.tim, ch, pin); err != nil {
		return 0, err
	}
	p.gen.Stop()
	if err := p.gen.EnableChannel(ch); err != nil {
		return 0, err
	}
	return ch, p.gen.Start()
}

func (p *timerPWM) Top() uint32 { return p.gen.Period() }

func (p *timerPWM) Set(ch uint8, value uint32) {
	if err := p.gen.SetOnPeriod(ch, value); err != nil {
		core.DebugPrintln("[SERVO] oid=" + itoa(int(p.oid)) + " " + err.Error())
	}
}

func (p *timerPWM) SetPeriod(period uint64) error {
	return p.gen.SetPeriod(uint32(period / 1000))
}

type servoOutput struct {
	servo servo.Servo
	gen   *core.PwmGenerator
}

var servos = make(map[uint8]*servoOutput)

func initServoCommands() {
	core.RegisterCommand("config_servo", "oid=%c timer=%c pin=%c", handleConfigServo)
	core.RegisterCommand("servo_set_us", "oid=%c us=%u", handleServoSetUs)
	core.RegisterCommand("servo_set_angle", "oid=%c angle=%c", handleServoSetAngle)
}

func handleConfigServo(args *protocol.Reader) error {
	oid, err := args.Byte()
	if err != nil {
		return err
	}
	timer, err := args.Byte()
	if err != nil {
		return err
	}
	pin, err := args.Byte()
	if err != nil {
		return err
	}
	tim := core.TimerByNumber(timer)
	if tim == nil {
		return core.ReportError(oid, core.ErrUnknownTimer)
	}
	pwm := &timerPWM{oid: oid, tim: tim}
	s, err := servo.New(pwm, machine.Pin(pin))
	if err != nil {
		if pwm.gen != nil {
			core.ReleaseTimer(oid)
		}
		return core.ReportError(oid, err)
	}
	servos[oid] = &servoOutput{servo: s, gen: pwm.gen}
	return nil
}

// lookupServo returns the servo of oid if its generator is still the one
// configured under that oid. A released or reused oid drops the entry.
func lookupServo(oid uint8) (*servoOutput, error) {
	if core.IsShutdown() {
		return nil, core.ErrShutdown
	}
	s, ok := servos[oid]
	if !ok {
		return nil, core.ErrUnknownOID
	}
	if gen, err := core.PwmGeneratorByOID(oid); err != nil || gen != s.gen {
		delete(servos, oid)
		return nil, core.ErrUnknownOID
	}
	return s, nil
}

func handleServoSetUs(args *protocol.Reader) error {
	oid, err := args.Byte()
	if err != nil {
		return err
	}
	us, err := args.Uint()
	if err != nil {
		return err
	}
	s, err := lookupServo(oid)
	if err != nil {
		return core.ReportError(oid, err)
	}
	if us > uint32(s.gen.Period()) {
		return core.ReportError(oid, core.ErrOnPeriodOutOfRange)
	}
	s.servo.SetMicroseconds(int16(us))
	return nil
}

func handleServoSetAngle(args *protocol.Reader) error {
	oid, err := args.Byte()
	if err != nil {
		return err
	}
	angle, err := args.Byte()
	if err != nil {
		return err
	}
	s, err := lookupServo(oid)
	if err != nil {
		return core.ReportError(oid, err)
	}
	if angle > 180 {
		angle = 180
	}
	us := servoMinUs + int(angle)*(servoMaxUs-servoMinUs)/180
	s.servo.SetMicroseconds(int16(us))
	return nil
}
