package core

// Mode identifies what a timer handle was configured for.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeBasic
	ModeCounter
	ModePwmGenerator
	ModePwmMeasure
	ModeEncoder
)

func (m Mode) String() string {
	switch m {
	case ModeBasic:
		return "basic"
	case ModeCounter:
		return "counter"
	case ModePwmGenerator:
		return "pwm_generator"
	case ModePwmMeasure:
		return "pwm_measure"
	case ModeEncoder:
		return "encoder"
	}
	return "none"
}

// DefaultReload is the auto-reload value used when a caller has no
// preference: the full range of a 16-bit counter.
const DefaultReload = 0xFFFF

// claimed[n-1] is set while a handle owns TIMn.
var claimed [len(timers)]bool

func claim(tim *TimerPeripheral) error {
	state := enterCritical()
	defer exitCritical(state)
	if claimed[tim.Number-1] {
		return ErrTimerBusy
	}
	claimed[tim.Number-1] = true
	return nil
}

func unclaim(tim *TimerPeripheral) {
	state := enterCritical()
	claimed[tim.Number-1] = false
	exitCritical(state)
}

// ReserveTimer keeps tim away from every constructor for the life of the
// program. Platforms use it for timers the runtime owns.
func ReserveTimer(tim *TimerPeripheral) error {
	if tim == nil {
		return ErrUnknownTimer
	}
	return claim(tim)
}

// prescalerFor returns the PSC value dividing the timer kernel clock down to
// counterFreq.
func prescalerFor(tim *TimerPeripheral, counterFreq uint32) (uint32, error) {
	if counterFreq == 0 {
		return 0, ErrZeroFrequency
	}
	in := tim.Bus.TimerFreq()
	if counterFreq > in {
		return 0, ErrFrequencyTooHigh
	}
	psc := in/counterFreq - 1
	if psc > 0xFFFF {
		return 0, ErrFrequencyTooLow
	}
	return psc, nil
}

func checkReload(tim *TimerPeripheral, reload uint32) error {
	if reload == 0 || reload > tim.MaxReload() {
		return ErrReloadOutOfRange
	}
	return nil
}

// Timer is the part shared by every mode: ownership of one timer, its clock
// gate and the counter enable bit. A Timer is not safe for concurrent use.
type Timer struct {
	tim     *TimerPeripheral
	regs    Window
	mode    Mode
	running bool
	closed  bool
}

// openTimer claims tim, powers it on and pulses its reset line, so every
// mode starts from reset values whatever the previous owner left behind.
// Callers validate their arguments first so a rejected configuration leaves
// the hardware untouched.
func openTimer(tim *TimerPeripheral, mode Mode) (*Timer, error) {
	if tim == nil {
		return nil, ErrUnknownTimer
	}
	if err := claim(tim); err != nil {
		return nil, err
	}
	tim.Enable()
	tim.ResetPulse()
	return &Timer{tim: tim, regs: tim.Window(), mode: mode}, nil
}

func (t *Timer) reg(offset uintptr) Register {
	return t.regs.Reg(offset)
}

// Peripheral returns the timer this handle owns.
func (t *Timer) Peripheral() *TimerPeripheral { return t.tim }

// Mode returns the role the timer was configured for.
func (t *Timer) Mode() Mode { return t.mode }

// Start enables the counter.
func (t *Timer) Start() error {
	if t.closed {
		return ErrTimerClosed
	}
	t.reg(timCR1).SetBits(TIM_CR1_CEN)
	t.running = true
	return nil
}

// Stop disables the counter. The count is kept.
func (t *Timer) Stop() {
	if t.closed {
		return
	}
	t.reg(timCR1).ClearBits(TIM_CR1_CEN)
	t.running = false
}

// Running reports whether Start was called without a later Stop.
func (t *Timer) Running() bool { return t.running }

// Close stops the counter, gates the peripheral clock and releases the timer
// for another handle. Further calls do nothing.
func (t *Timer) Close() error {
	if t.closed {
		return nil
	}
	t.Stop()
	t.tim.Disable()
	unclaim(t.tim)
	t.closed = true
	return nil
}

// InputFreq returns the timer kernel clock in Hz.
func (t *Timer) InputFreq() uint32 {
	return t.tim.Bus.TimerFreq()
}

// TickFreq returns the counter frequency resulting from the current prescaler.
func (t *Timer) TickFreq() uint32 {
	return t.InputFreq() / (t.reg(timPSC).Get() + 1)
}

// setTimeBase writes PSC and ARR and zeroes the counter.
func (t *Timer) setTimeBase(psc, reload uint32) {
	t.reg(timPSC).Set(psc)
	t.reg(timARR).Set(reload)
	t.reg(timCNT).Set(0)
}

// clear, value and testAndClear do nothing on a closed handle: the timer
// may already belong to another one.
func (t *Timer) clear() {
	if t.closed {
		return
	}
	t.reg(timCNT).Set(0)
}

func (t *Timer) value() uint32 {
	if t.closed {
		return 0
	}
	return t.reg(timCNT).Get()
}

// testAndClear reports whether flag is set in SR and clears it. SR bits are
// write-0-to-clear, so writing the complement leaves other pending flags
// alone.
func (t *Timer) testAndClear(flag uint32) bool {
	if t.closed {
		return false
	}
	sr := t.reg(timSR)
	if sr.Get()&flag == 0 {
		return false
	}
	sr.Set(^flag)
	return true
}

func (t *Timer) base() *Timer { return t }
