package core

import (
	"sync"

	"timhal/protocol"
)

// timerHandle is what every mode configurator has in common.
type timerHandle interface {
	Start() error
	Stop()
	Running() bool
	Close() error
	Peripheral() *TimerPeripheral
	Mode() Mode
	TickFreq() uint32
	base() *Timer
}

var (
	timerObjectsMu sync.Mutex
	timerObjects   = make(map[uint8]timerHandle)
)

func initTimerCommands() {
	RegisterCommand("config_basic_timer", "oid=%c timer=%c counter_freq=%u reload=%u", handleConfigBasicTimer)
	RegisterCommand("config_counter", "oid=%c timer=%c counter_freq=%u reload=%u", handleConfigCounter)
	RegisterCommand("config_pwm_generator", "oid=%c timer=%c counter_freq=%u period=%u", handleConfigPwmGenerator)
	RegisterCommand("config_pwm_generator_freq", "oid=%c timer=%c signal_freq=%u", handleConfigPwmGeneratorFreq)
	RegisterCommand("config_pwm_measure", "oid=%c timer=%c counter_freq=%u", handleConfigPwmMeasure)
	RegisterCommand("config_encoder", "oid=%c timer=%c reload=%u mode=%c", handleConfigEncoder)

	RegisterCommand("timer_start", "oid=%c", handleTimerStart)
	RegisterCommand("timer_stop", "oid=%c", handleTimerStop)
	RegisterCommand("timer_clear", "oid=%c", handleTimerClear)
	RegisterCommand("timer_release", "oid=%c", handleTimerRelease)

	RegisterCommand("pwm_channel_enable", "oid=%c channel=%c", handlePwmChannelEnable)
	RegisterCommand("pwm_channel_disable", "oid=%c channel=%c", handlePwmChannelDisable)
	RegisterCommand("pwm_set_on_period", "oid=%c channel=%c ticks=%u", handlePwmSetOnPeriod)
	RegisterCommand("pwm_set_duty", "oid=%c channel=%c percent=%c", handlePwmSetDuty)
	RegisterCommand("encoder_set_polarity", "oid=%c invert_ti1=%c invert_ti2=%c", handleEncoderSetPolarity)

	RegisterCommand("query_timer", "oid=%c", handleQueryTimer)
	RegisterCommand("query_counter_reached", "oid=%c threshold=%u", handleQueryCounterReached)
	RegisterCommand("query_pwm_measure", "oid=%c", handleQueryPwmMeasure)
	RegisterCommand("query_encoder", "oid=%c", handleQueryEncoder)

	RegisterResponse("timer_state", "oid=%c timer=%c mode=%c running=%c value=%u tick_freq=%u reload_event=%c")
	RegisterResponse("counter_reached", "oid=%c reached=%c value=%u")
	RegisterResponse("pwm_measure_state", "oid=%c period=%u width=%u period_event=%c width_event=%c freq=%u duty=%c")
	RegisterResponse("encoder_state", "oid=%c value=%u down=%c")
	RegisterResponse("timer_error", "oid=%c code=%c")

	all := Timers()
	names := make([]string, len(all)+1)
	for _, t := range all {
		names[t.Number] = t.Name
	}
	RegisterEnumeration("timer", names)
	RegisterEnumeration("encoder_mode", []string{"", "ti1", "ti2", "both"})
	RegisterEnumeration("timer_mode", []string{"", "basic", "counter", "pwm_generator", "pwm_measure", "encoder"})
}

// argReader decodes a fixed argument list, keeping the first error.
type argReader struct {
	r   *protocol.Reader
	err error
}

func (a *argReader) u32() uint32 {
	if a.err != nil {
		return 0
	}
	v, err := a.r.Uint()
	a.err = err
	return v
}

func (a *argReader) u8() uint8 {
	return uint8(a.u32())
}

// ReportError sends timer_error for oid and returns nil: a rejected timer
// operation must not abort the rest of the frame.
func ReportError(oid uint8, err error) error {
	code := ErrorCode(err)
	RecordEvent(EvtError, oid, 0, uint32(code))
	DebugPrintln("[TIMER] oid=" + utoa(uint32(oid)) + " error: " + err.Error())
	return SendResponse("timer_error", func(b []byte) []byte {
		b = protocol.AppendUint(b, uint32(oid))
		return protocol.AppendUint(b, uint32(code))
	})
}

func asHandle[T timerHandle](h T, err error) (timerHandle, error) {
	if err != nil {
		return nil, err
	}
	return h, nil
}

// addTimer builds a handle and stores it under oid.
func addTimer(oid uint8, build func() (timerHandle, error)) (timerHandle, error) {
	if IsShutdown() {
		return nil, ErrShutdown
	}
	timerObjectsMu.Lock()
	_, exists := timerObjects[oid]
	timerObjectsMu.Unlock()
	if exists {
		return nil, ErrTimerBusy
	}
	h, err := build()
	if err != nil {
		return nil, err
	}
	timerObjectsMu.Lock()
	timerObjects[oid] = h
	timerObjectsMu.Unlock()

	tim := h.Peripheral()
	RecordEvent(EvtConfig, oid, tim.Number, uint32(h.Mode()))
	DebugPrintln("[TIMER] oid=" + utoa(uint32(oid)) + " " + tim.Name + " " + h.Mode().String() +
		" tick=" + utoa(h.TickFreq()))
	return h, nil
}

func configTimer(oid uint8, build func() (timerHandle, error)) error {
	if _, err := addTimer(oid, build); err != nil {
		return ReportError(oid, err)
	}
	return nil
}

// AddPwmGenerator configures a PWM generator under oid for platform code
// that drives it directly, such as servo outputs. The handle takes part in
// emergency stop and config_reset like any other.
func AddPwmGenerator(oid uint8, tim *TimerPeripheral, counterFreq, period uint32) (*PwmGenerator, error) {
	h, err := addTimer(oid, func() (timerHandle, error) {
		return asHandle[*PwmGenerator](NewPwmGenerator(tim, counterFreq, period))
	})
	if err != nil {
		return nil, err
	}
	return h.(*PwmGenerator), nil
}

// PwmGeneratorByOID returns the PWM generator configured under oid.
func PwmGeneratorByOID(oid uint8) (*PwmGenerator, error) {
	return lookupAs[*PwmGenerator](oid)
}

func handleConfigBasicTimer(args *protocol.Reader) error {
	a := argReader{r: args}
	oid, timer, freq, reload := a.u8(), a.u8(), a.u32(), a.u32()
	if a.err != nil {
		return a.err
	}
	if reload == 0 {
		reload = DefaultReload
	}
	return configTimer(oid, func() (timerHandle, error) {
		return asHandle[*BasicTimer](NewBasicTimer(TimerByNumber(timer), freq, reload))
	})
}

func handleConfigCounter(args *protocol.Reader) error {
	a := argReader{r: args}
	oid, timer, freq, reload := a.u8(), a.u8(), a.u32(), a.u32()
	if a.err != nil {
		return a.err
	}
	if reload == 0 {
		reload = DefaultReload
	}
	return configTimer(oid, func() (timerHandle, error) {
		return asHandle[*Counter](NewCounter(TimerByNumber(timer), freq, reload))
	})
}

func handleConfigPwmGenerator(args *protocol.Reader) error {
	a := argReader{r: args}
	oid, timer, freq, period := a.u8(), a.u8(), a.u32(), a.u32()
	if a.err != nil {
		return a.err
	}
	return configTimer(oid, func() (timerHandle, error) {
		return asHandle[*PwmGenerator](NewPwmGenerator(TimerByNumber(timer), freq, period))
	})
}

func handleConfigPwmGeneratorFreq(args *protocol.Reader) error {
	a := argReader{r: args}
	oid, timer, signal := a.u8(), a.u8(), a.u32()
	if a.err != nil {
		return a.err
	}
	return configTimer(oid, func() (timerHandle, error) {
		return asHandle[*PwmGenerator](NewPwmGeneratorFreq(TimerByNumber(timer), signal))
	})
}

func handleConfigPwmMeasure(args *protocol.Reader) error {
	a := argReader{r: args}
	oid, timer, freq := a.u8(), a.u8(), a.u32()
	if a.err != nil {
		return a.err
	}
	return configTimer(oid, func() (timerHandle, error) {
		return asHandle[*PwmMeasure](NewPwmMeasure(TimerByNumber(timer), freq))
	})
}

func handleConfigEncoder(args *protocol.Reader) error {
	a := argReader{r: args}
	oid, timer, reload, mode := a.u8(), a.u8(), a.u32(), a.u8()
	if a.err != nil {
		return a.err
	}
	if reload == 0 {
		reload = DefaultReload
	}
	return configTimer(oid, func() (timerHandle, error) {
		return asHandle[*EncoderCounter](NewEncoderCounter(TimerByNumber(timer), reload, EncoderMode(mode)))
	})
}

func lookupTimer(oid uint8) (timerHandle, error) {
	timerObjectsMu.Lock()
	defer timerObjectsMu.Unlock()
	h, ok := timerObjects[oid]
	if !ok {
		return nil, ErrUnknownOID
	}
	return h, nil
}

// lookupAs returns the handle of oid when it was configured in a mode that
// provides T.
func lookupAs[T timerHandle](oid uint8) (T, error) {
	var zero T
	h, err := lookupTimer(oid)
	if err != nil {
		return zero, err
	}
	v, ok := h.(T)
	if !ok {
		return zero, ErrUnsupportedMode
	}
	return v, nil
}

// withOID decodes a leading oid, runs fn on its handle and reports errors.
func withOID(args *protocol.Reader, fn func(oid uint8, h timerHandle) error) error {
	oid, err := args.Byte()
	if err != nil {
		return err
	}
	h, err := lookupTimer(oid)
	if err == nil {
		err = fn(oid, h)
	}
	if err != nil {
		return ReportError(oid, err)
	}
	return nil
}

func handleTimerStart(args *protocol.Reader) error {
	return withOID(args, func(oid uint8, h timerHandle) error {
		if IsShutdown() {
			return ErrShutdown
		}
		if err := h.Start(); err != nil {
			return err
		}
		RecordEvent(EvtStart, oid, h.Peripheral().Number, 0)
		return nil
	})
}

func handleTimerStop(args *protocol.Reader) error {
	return withOID(args, func(oid uint8, h timerHandle) error {
		h.Stop()
		RecordEvent(EvtStop, oid, h.Peripheral().Number, h.base().value())
		return nil
	})
}

func handleTimerClear(args *protocol.Reader) error {
	return withOID(args, func(oid uint8, h timerHandle) error {
		c, ok := h.(interface{ Clear() })
		if !ok {
			return ErrUnsupportedMode
		}
		c.Clear()
		return nil
	})
}

func handleTimerRelease(args *protocol.Reader) error {
	return withOID(args, func(oid uint8, h timerHandle) error {
		releaseTimer(oid, h)
		return nil
	})
}

// ReleaseTimer closes the handle of oid and forgets it.
func ReleaseTimer(oid uint8) error {
	h, err := lookupTimer(oid)
	if err != nil {
		return err
	}
	releaseTimer(oid, h)
	return nil
}

func releaseTimer(oid uint8, h timerHandle) {
	h.Close()
	timerObjectsMu.Lock()
	delete(timerObjects, oid)
	timerObjectsMu.Unlock()
	RecordEvent(EvtRelease, oid, h.Peripheral().Number, 0)
}

// pwmCommand decodes "oid channel" plus an optional value and runs fn on
// the PWM generator of oid. All arguments are consumed before the lookup so
// a failed command leaves the rest of the frame aligned.
func pwmCommand(args *protocol.Reader, withValue bool, fn func(p *PwmGenerator, ch uint8, v uint32) error) error {
	a := argReader{r: args}
	oid, ch := a.u8(), a.u8()
	var v uint32
	if withValue {
		v = a.u32()
	}
	if a.err != nil {
		return a.err
	}
	p, err := lookupAs[*PwmGenerator](oid)
	if err == nil {
		err = fn(p, ch, v)
	}
	if err != nil {
		return ReportError(oid, err)
	}
	return nil
}

func handlePwmChannelEnable(args *protocol.Reader) error {
	return pwmCommand(args, false, func(p *PwmGenerator, ch uint8, _ uint32) error {
		return p.EnableChannel(ch)
	})
}

func handlePwmChannelDisable(args *protocol.Reader) error {
	return pwmCommand(args, false, func(p *PwmGenerator, ch uint8, _ uint32) error {
		return p.DisableChannel(ch)
	})
}

func handlePwmSetOnPeriod(args *protocol.Reader) error {
	return pwmCommand(args, true, func(p *PwmGenerator, ch uint8, ticks uint32) error {
		return p.SetOnPeriod(ch, ticks)
	})
}

func handlePwmSetDuty(args *protocol.Reader) error {
	return pwmCommand(args, true, func(p *PwmGenerator, ch uint8, pct uint32) error {
		return p.SetDutyPercent(ch, uint8(clamp(pct, 0, 100)))
	})
}

func handleEncoderSetPolarity(args *protocol.Reader) error {
	a := argReader{r: args}
	oid, inv1, inv2 := a.u8(), a.u8(), a.u8()
	if a.err != nil {
		return a.err
	}
	e, err := lookupAs[*EncoderCounter](oid)
	if err == nil {
		err = e.SetPolarity(inv1 != 0, inv2 != 0)
	}
	if err != nil {
		return ReportError(oid, err)
	}
	return nil
}

func handleQueryTimer(args *protocol.Reader) error {
	return withOID(args, func(oid uint8, h timerHandle) error {
		var reload bool
		if b, ok := h.(*BasicTimer); ok {
			reload = b.CheckReloadEvent()
		}
		return SendResponse("timer_state", func(b []byte) []byte {
			b = protocol.AppendUint(b, uint32(oid))
			b = protocol.AppendUint(b, uint32(h.Peripheral().Number))
			b = protocol.AppendUint(b, uint32(h.Mode()))
			b = protocol.AppendUint(b, boolArg(h.Running()))
			b = protocol.AppendUint(b, h.base().value())
			b = protocol.AppendUint(b, h.TickFreq())
			return protocol.AppendUint(b, boolArg(reload))
		})
	})
}

type thresholdCounter interface {
	timerHandle
	Value() uint32
	HasReached(threshold uint32) bool
}

func handleQueryCounterReached(args *protocol.Reader) error {
	a := argReader{r: args}
	oid, threshold := a.u8(), a.u32()
	if a.err != nil {
		return a.err
	}
	c, err := lookupAs[thresholdCounter](oid)
	if err != nil {
		return ReportError(oid, err)
	}
	reached := c.HasReached(threshold)
	value := c.Value()
	return SendResponse("counter_reached", func(b []byte) []byte {
		b = protocol.AppendUint(b, uint32(oid))
		b = protocol.AppendUint(b, boolArg(reached))
		return protocol.AppendUint(b, value)
	})
}

func handleQueryPwmMeasure(args *protocol.Reader) error {
	oid, err := args.Byte()
	if err != nil {
		return err
	}
	m, err := lookupAs[*PwmMeasure](oid)
	if err != nil {
		return ReportError(oid, err)
	}
	periodEvt := m.PeriodEvent()
	widthEvt := m.WidthEvent()
	period, width := m.Period(), m.PulseWidth()
	if periodEvt {
		RecordEvent(EvtCapture, oid, m.Peripheral().Number, period)
	}
	return SendResponse("pwm_measure_state", func(b []byte) []byte {
		b = protocol.AppendUint(b, uint32(oid))
		b = protocol.AppendUint(b, period)
		b = protocol.AppendUint(b, width)
		b = protocol.AppendUint(b, boolArg(periodEvt))
		b = protocol.AppendUint(b, boolArg(widthEvt))
		b = protocol.AppendUint(b, m.Frequency())
		return protocol.AppendUint(b, uint32(m.DutyPercent()))
	})
}

func handleQueryEncoder(args *protocol.Reader) error {
	oid, err := args.Byte()
	if err != nil {
		return err
	}
	e, err := lookupAs[*EncoderCounter](oid)
	if err != nil {
		return ReportError(oid, err)
	}
	value, down := e.Value(), e.CountingDown()
	return SendResponse("encoder_state", func(b []byte) []byte {
		b = protocol.AppendUint(b, uint32(oid))
		b = protocol.AppendUint(b, value)
		return protocol.AppendUint(b, boolArg(down))
	})
}

// ShutdownAllTimers idles every PWM output and stops every counter. Handles
// stay configured so their state can still be queried.
func ShutdownAllTimers() {
	timerObjectsMu.Lock()
	defer timerObjectsMu.Unlock()
	for oid, h := range timerObjects {
		if p, ok := h.(*PwmGenerator); ok {
			p.DisableOutputs()
		}
		h.Stop()
		RecordEvent(EvtStop, oid, h.Peripheral().Number, 0)
	}
}

// ReleaseAllTimers closes every configured handle.
func ReleaseAllTimers() {
	timerObjectsMu.Lock()
	objs := timerObjects
	timerObjects = make(map[uint8]timerHandle)
	timerObjectsMu.Unlock()
	for oid, h := range objs {
		h.Close()
		RecordEvent(EvtRelease, oid, h.Peripheral().Number, 0)
	}
}

// TimerObjectCount returns the number of configured oids.
func TimerObjectCount() int {
	timerObjectsMu.Lock()
	defer timerObjectsMu.Unlock()
	return len(timerObjects)
}
