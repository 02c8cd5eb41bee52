package core

import (
	"sync"
	"sync/atomic"

	"timhal/protocol"
)

// firmwareState is the configuration handshake state reported by get_config.
type firmwareState struct {
	configCRC  uint32 // atomic
	isShutdown uint32 // atomic bool
}

var globalState firmwareState

var initCommandsOnce sync.Once

// InitCoreCommands registers the protocol and timer command sets. The host
// relies on identify_response and identify holding IDs 0 and 1, so this must
// run before anything else registers commands.
func InitCoreCommands() {
	initCommandsOnce.Do(func() {
		RegisterResponse("identify_response", "offset=%u data=%.*s") // ID 0
		RegisterCommand("identify", "offset=%u count=%c", handleIdentify) // ID 1

		RegisterCommand("get_config", "", handleGetConfig)
		RegisterCommand("finalize_config", "crc=%u", handleFinalizeConfig)
		RegisterCommand("config_reset", "", handleConfigReset)
		RegisterCommand("emergency_stop", "", handleEmergencyStop)
		RegisterResponse("config", "is_config=%c crc=%u is_shutdown=%c timers=%c")

		initTimerCommands()

		RegisterConstant("MCU", "stm32f4")
		RefreshClockConstants()
	})
}

// RefreshClockConstants republishes the bus frequencies after the target
// changed the clock tree.
func RefreshClockConstants() {
	RegisterConstant("SYSTEM_CORE_CLOCK", SystemCoreClock())
	RegisterConstant("APB1_FREQ", APB1.Freq())
	RegisterConstant("APB2_FREQ", APB2.Freq())
}

func handleIdentify(args *protocol.Reader) error {
	offset, err := args.Uint()
	if err != nil {
		return err
	}
	count, err := args.Byte()
	if err != nil {
		return err
	}
	chunk := GetGlobalDictionary().GetChunk(offset, count)
	return SendResponse("identify_response", func(b []byte) []byte {
		b = protocol.AppendUint(b, offset)
		return protocol.AppendBytes(b, chunk)
	})
}

func handleGetConfig(args *protocol.Reader) error {
	crc := atomic.LoadUint32(&globalState.configCRC)
	return SendResponse("config", func(b []byte) []byte {
		b = protocol.AppendUint(b, boolArg(crc != 0))
		b = protocol.AppendUint(b, crc)
		b = protocol.AppendUint(b, boolArg(IsShutdown()))
		return protocol.AppendUint(b, uint32(TimerObjectCount()))
	})
}

func handleFinalizeConfig(args *protocol.Reader) error {
	crc, err := args.Uint()
	if err != nil {
		return err
	}
	atomic.StoreUint32(&globalState.configCRC, crc)
	return nil
}

// handleConfigReset releases every configured timer and clears shutdown, so
// the host can start over without a power cycle.
func handleConfigReset(args *protocol.Reader) error {
	ReleaseAllTimers()
	ResetFirmwareState()
	return nil
}

func handleEmergencyStop(args *protocol.Reader) error {
	TryShutdown("emergency stop")
	return nil
}

// TryShutdown stops every timer output and refuses further configuration
// until config_reset.
func TryShutdown(reason string) {
	atomic.StoreUint32(&globalState.isShutdown, 1)
	ShutdownAllTimers()
	DebugPrintln("[SHUTDOWN] " + reason)
	DumpEvents()
}

func IsShutdown() bool {
	return atomic.LoadUint32(&globalState.isShutdown) != 0
}

// ResetFirmwareState clears the configuration handshake and shutdown flag.
func ResetFirmwareState() {
	atomic.StoreUint32(&globalState.configCRC, 0)
	atomic.StoreUint32(&globalState.isShutdown, 0)
}

func boolArg(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
