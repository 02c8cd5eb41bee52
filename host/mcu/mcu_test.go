package mcu

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"timhal/core"
	"timhal/host/config"
	"timhal/protocol"
)

// Register offsets used to inspect the simulated chip.
const (
	offCR1  = 0x00
	offCCR1 = 0x34
	offSMCR = 0x08
)

// startFirmware runs the real command set on the far end of a pipe, backed
// by the simulated register file.
func startFirmware(t *testing.T) *MCU {
	t.Helper()
	core.ReleaseAllTimers()
	core.ResetFirmwareState()
	core.Sim().Reset()
	core.SetSystemCoreClock(16000000)
	core.InitCoreCommands()
	core.RefreshClockConstants()

	hostEnd, mcuEnd := net.Pipe()
	session := protocol.NewSession(mcuEnd, core.DispatchCommand)
	core.SetResponseSender(session)
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := mcuEnd.Read(buf)
			if err != nil {
				return
			}
			session.Receive(buf[:n])
		}
	}()

	m := New(hostEnd)
	t.Cleanup(func() {
		m.Close()
		mcuEnd.Close()
		core.SetResponseSender(nil)
		core.ReleaseAllTimers()
	})
	return m
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func connected(t *testing.T) (*MCU, context.Context) {
	m := startFirmware(t)
	ctx := testContext(t)
	if err := m.RetrieveDictionary(ctx); err != nil {
		t.Fatalf("retrieve dictionary: %v", err)
	}
	return m, ctx
}

func TestRetrieveDictionary(t *testing.T) {
	m, _ := connected(t)
	d := m.Dictionary()
	if string(m.DictionaryRaw()) != string(core.GetGlobalDictionary().Generate()) {
		t.Error("retrieved dictionary differs from the firmware copy")
	}
	f, ok := d.Lookup("config_pwm_generator")
	if !ok {
		t.Fatal("config_pwm_generator missing")
	}
	want, _ := core.GetGlobalRegistry().GetCommandByName("config_pwm_generator")
	if f.ID != int(want.ID) || len(f.Params) != 4 || f.Params[3].Name != "period" {
		t.Errorf("format %+v", f)
	}
	idr, _ := d.Lookup("identify_response")
	if idr.ID != 0 || !idr.Response || idr.Params[1].Kind != ParamBytes {
		t.Errorf("identify_response %+v", idr)
	}
	if d.ConfigString("MCU") != "stm32f4" {
		t.Errorf("MCU = %q", d.ConfigString("MCU"))
	}
	clk, err := m.Clocks()
	if err != nil || clk != (config.Clocks{Core: 16000000, APB1: 16000000, APB2: 16000000}) {
		t.Errorf("clocks %+v, %v", clk, err)
	}
	if v, ok := d.Enum("timer", "TIM8"); !ok || v != 8 {
		t.Errorf("TIM8 enum %d %v", v, ok)
	}

	var sb strings.Builder
	d.WriteSummary(&sb)
	if !strings.Contains(sb.String(), "query_encoder oid=%c") {
		t.Error("summary lacks commands")
	}
}

func TestEncodeChecksArguments(t *testing.T) {
	m, _ := connected(t)
	if _, err := m.Encode("timer_start"); !errors.Is(err, ErrArgumentCount) {
		t.Errorf("missing argument: %v", err)
	}
	if _, err := m.Encode("timer_state", 1); !errors.Is(err, ErrUnknownName) {
		t.Errorf("encoding a response: %v", err)
	}
	if _, err := m.Encode("no_such_command"); !errors.Is(err, ErrUnknownName) {
		t.Errorf("unknown command: %v", err)
	}
	if _, err := (&MCU{}).Encode("timer_start", 1); err != ErrNoDictionary {
		t.Errorf("no dictionary: %v", err)
	}
}

func TestQueryAndTimerErrors(t *testing.T) {
	m, ctx := connected(t)
	if err := m.Exec(ctx, 50*time.Millisecond, "config_counter", 1, 2, 1000000, 0); err != nil {
		t.Fatal(err)
	}
	err := m.Exec(ctx, 50*time.Millisecond, "config_counter", 2, 2, 1000000, 0)
	var te *TimerError
	if !errors.As(err, &te) || te.OID != 2 || !errors.Is(err, core.ErrTimerBusy) {
		t.Errorf("second claim of TIM2: %v", err)
	}

	resp, err := m.Query(ctx, "timer_state", "query_timer", 1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Get("timer") != 2 || resp.Get("mode") != uint32(core.ModeCounter) || resp.Get("tick_freq") != 1000000 {
		t.Errorf("timer_state %+v", resp.Values)
	}

	if _, err := m.Query(ctx, "timer_state", "query_timer", 42); !errors.Is(err, core.ErrUnknownOID) {
		t.Errorf("query of unknown oid: %v", err)
	}
}

func TestApplyBoard(t *testing.T) {
	m, ctx := connected(t)
	board, err := config.LoadConfig([]byte(`{"timers": [
		{"oid": 1, "timer": "TIM3", "mode": "pwm_generator", "channels": [{"channel": 1, "duty": 50}], "start": true},
		{"oid": 2, "timer": "TIM2", "mode": "encoder", "invert_ti1": true}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ApplyBoard(ctx, board); err != nil {
		t.Fatal(err)
	}
	if got := core.Sim().Peek(core.TIM3.Base + offCCR1); got != 500 {
		t.Errorf("TIM3 CCR1 = %d", got)
	}
	if core.Sim().Peek(core.TIM3.Base+offCR1)&1 == 0 {
		t.Error("TIM3 not started")
	}
	if core.Sim().Peek(core.TIM2.Base+offSMCR)&7 != 3 {
		t.Error("TIM2 not in encoder mode 3")
	}

	resp, err := m.Query(ctx, "encoder_state", "query_encoder", 2)
	if err != nil || resp.Get("oid") != 2 {
		t.Errorf("encoder_state %+v %v", resp, err)
	}

	// the oids are taken now, so a second apply is refused by the firmware
	if err := m.ApplyBoard(ctx, board); !errors.Is(err, core.ErrTimerBusy) {
		t.Errorf("re-apply: %v", err)
	}
}

func TestApplyBoardValidatesFirst(t *testing.T) {
	m, ctx := connected(t)
	board := &config.Board{Timers: []config.TimerConfig{
		{OID: 1, Timer: "TIM3", Mode: config.ModeCounter, CounterFreq: 100},
	}}
	if err := m.ApplyBoard(ctx, board); !errors.Is(err, core.ErrFrequencyTooLow) {
		t.Errorf("got %v", err)
	}
	if core.TimerObjectCount() != 0 {
		t.Error("invalid board reached the firmware")
	}
}
