package core

// DebugWriter writes one line of debug output.
type DebugWriter func(string)

// TimerEvent is one entry of the post-mortem event ring.
type TimerEvent struct {
	Kind  uint8
	OID   uint8
	Timer uint8
	Value uint32
}

// Event kinds
const (
	EvtConfig  = 1 // timer configured, Value = mode
	EvtStart   = 2
	EvtStop    = 3
	EvtRelease = 4
	EvtError   = 5 // Value = error code
	EvtCapture = 6 // Value = captured period
)

const EventRingSize = 32

var (
	debugPrintln DebugWriter = func(s string) {}
	debugEnabled bool

	eventRing     [EventRingSize]TimerEvent
	eventRingHead uint8
)

// SetDebugWriter routes debug output to a platform writer (UART, USB, println).
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled turns debug output on or off. Off by default.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes msg if debug output is enabled.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent appends to the event ring, overwriting the oldest entry.
func RecordEvent(kind, oid, timer uint8, value uint32) {
	state := enterCritical()
	eventRing[eventRingHead] = TimerEvent{Kind: kind, OID: oid, Timer: timer, Value: value}
	eventRingHead = (eventRingHead + 1) % EventRingSize
	exitCritical(state)
}

// Events returns the ring contents from oldest to newest.
func Events() []TimerEvent {
	state := enterCritical()
	defer exitCritical(state)
	out := make([]TimerEvent, 0, EventRingSize)
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(eventRingHead+i)%EventRingSize]
		if evt.Kind != 0 {
			out = append(out, evt)
		}
	}
	return out
}

func eventName(kind uint8) string {
	switch kind {
	case EvtConfig:
		return "CONFIG"
	case EvtStart:
		return "START"
	case EvtStop:
		return "STOP"
	case EvtRelease:
		return "RELEASE"
	case EvtError:
		return "ERROR"
	case EvtCapture:
		return "CAPTURE"
	}
	return "UNKNOWN"
}

// DumpEvents writes the event ring through the debug writer regardless of
// the debug enable flag. Called on emergency stop.
func DumpEvents() {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[EVENTS] === timer event dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENTS] " + eventName(evt.Kind) +
			" oid=" + utoa(uint32(evt.OID)) +
			" tim=" + utoa(uint32(evt.Timer)) +
			" v=" + utoa(evt.Value))
	}
	debugPrintln("[EVENTS] === end ===")
}

// ClearEvents empties the event ring.
func ClearEvents() {
	state := enterCritical()
	eventRing = [EventRingSize]TimerEvent{}
	eventRingHead = 0
	exitCritical(state)
}
