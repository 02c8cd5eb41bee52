//go:build !tinygo

package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"timhal/protocol"
)

type response struct {
	name string
	args []uint32
}

type captureSender struct {
	msgs [][]byte
}

func (c *captureSender) Send(payload []byte) error {
	c.msgs = append(c.msgs, append([]byte(nil), payload...))
	return nil
}

// decode parses message i as a response whose arguments are all integers.
func (c *captureSender) decode(t *testing.T, i int) response {
	t.Helper()
	r := protocol.NewReader(c.msgs[i])
	id, err := r.Uint()
	if err != nil {
		t.Fatal(err)
	}
	cmd, ok := GetGlobalRegistry().GetCommand(uint16(id))
	if !ok {
		t.Fatalf("response id %d not registered", id)
	}
	resp := response{name: cmd.Name}
	for r.Len() > 0 {
		v, err := r.Uint()
		if err != nil {
			t.Fatal(err)
		}
		resp.args = append(resp.args, v)
	}
	return resp
}

func (c *captureSender) last(t *testing.T) response {
	t.Helper()
	if len(c.msgs) == 0 {
		t.Fatal("no response sent")
	}
	return c.decode(t, len(c.msgs)-1)
}

func setupCommands(t *testing.T) *captureSender {
	t.Helper()
	resetHardware(t)
	InitCoreCommands()
	s := &captureSender{}
	SetResponseSender(s)
	return s
}

func call(t *testing.T, name string, args ...uint32) {
	t.Helper()
	cmd, ok := GetGlobalRegistry().GetCommandByName(name)
	if !ok {
		t.Fatalf("command %s not registered", name)
	}
	var payload []byte
	for _, a := range args {
		payload = protocol.AppendUint(payload, a)
	}
	r := protocol.NewReader(payload)
	if err := GetGlobalRegistry().Dispatch(cmd.ID, r); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if r.Len() != 0 {
		t.Fatalf("%s left %d argument bytes unread", name, r.Len())
	}
}

func TestBootstrapIDs(t *testing.T) {
	setupCommands(t)
	if cmd, _ := GetGlobalRegistry().GetCommand(0); cmd.Name != "identify_response" {
		t.Errorf("ID 0 = %s", cmd.Name)
	}
	if cmd, _ := GetGlobalRegistry().GetCommand(1); cmd.Name != "identify" {
		t.Errorf("ID 1 = %s", cmd.Name)
	}
}

func TestRegistrySequentialIDs(t *testing.T) {
	r := NewCommandRegistry()
	noop := func(*protocol.Reader) error { return nil }
	a := r.Register("a", "", noop)
	b := r.Register("b", "x=%u", noop)
	if a != 0 || b != 1 {
		t.Errorf("ids %d %d", a, b)
	}
	if again := r.Register("a", "", noop); again != 0 {
		t.Errorf("re-register returned %d", again)
	}
	if err := r.Dispatch(7, protocol.NewReader(nil)); err != ErrUnknownCommand {
		t.Errorf("unknown id: %v", err)
	}
	resp := r.Register("resp", "v=%u", nil)
	if err := r.Dispatch(resp, protocol.NewReader(nil)); err != ErrUnknownCommand {
		t.Errorf("dispatching a response: %v", err)
	}
	if r.Count() != 3 {
		t.Errorf("count %d", r.Count())
	}
}

type dictionaryJSON struct {
	Version      string                    `json:"version"`
	Config       map[string]interface{}    `json:"config"`
	Commands     map[string]int            `json:"commands"`
	Responses    map[string]int            `json:"responses"`
	Enumerations map[string]map[string]int `json:"enumerations"`
}

func TestDictionaryListsEveryTimerCommand(t *testing.T) {
	setupCommands(t)
	var d dictionaryJSON
	if err := json.Unmarshal(GetGlobalDictionary().Generate(), &d); err != nil {
		t.Fatalf("dictionary is not valid JSON: %v", err)
	}
	commands := []string{
		"identify offset=%u count=%c",
		"get_config",
		"emergency_stop",
		"config_basic_timer oid=%c timer=%c counter_freq=%u reload=%u",
		"config_counter oid=%c timer=%c counter_freq=%u reload=%u",
		"config_pwm_generator oid=%c timer=%c counter_freq=%u period=%u",
		"config_pwm_generator_freq oid=%c timer=%c signal_freq=%u",
		"config_pwm_measure oid=%c timer=%c counter_freq=%u",
		"config_encoder oid=%c timer=%c reload=%u mode=%c",
		"timer_start oid=%c",
		"timer_stop oid=%c",
		"timer_clear oid=%c",
		"timer_release oid=%c",
		"pwm_channel_enable oid=%c channel=%c",
		"pwm_channel_disable oid=%c channel=%c",
		"pwm_set_on_period oid=%c channel=%c ticks=%u",
		"pwm_set_duty oid=%c channel=%c percent=%c",
		"encoder_set_polarity oid=%c invert_ti1=%c invert_ti2=%c",
		"query_timer oid=%c",
		"query_counter_reached oid=%c threshold=%u",
		"query_pwm_measure oid=%c",
		"query_encoder oid=%c",
	}
	for _, c := range commands {
		if _, ok := d.Commands[c]; !ok {
			t.Errorf("dictionary lacks command %q", c)
		}
	}
	for _, r := range []string{"identify_response", "config", "timer_state", "counter_reached",
		"pwm_measure_state", "encoder_state", "timer_error"} {
		found := false
		for k := range d.Responses {
			if k == r || strings.HasPrefix(k, r+" ") {
				found = true
			}
		}
		if !found {
			t.Errorf("dictionary lacks response %s", r)
		}
	}
	for _, k := range []string{"MCU", "SYSTEM_CORE_CLOCK", "APB1_FREQ", "APB2_FREQ"} {
		if _, ok := d.Config[k]; !ok {
			t.Errorf("dictionary lacks constant %s", k)
		}
	}
	if d.Enumerations["timer"]["TIM14"] != 14 {
		t.Errorf("timer enumeration = %v", d.Enumerations["timer"])
	}
}

func TestIdentifyChunks(t *testing.T) {
	s := setupCommands(t)
	var got []byte
	for offset := uint32(0); ; {
		call(t, "identify", offset, 40)
		r := protocol.NewReader(s.msgs[len(s.msgs)-1])
		r.Uint() // response id
		off, _ := r.Uint()
		data, err := r.Bytes()
		if err != nil {
			t.Fatal(err)
		}
		if off != offset {
			t.Fatalf("chunk offset %d, asked %d", off, offset)
		}
		if len(data) == 0 {
			break
		}
		got = append(got, data...)
		offset += uint32(len(data))
	}
	if !bytes.Equal(got, GetGlobalDictionary().Compressed()) {
		t.Fatal("reassembled dictionary differs")
	}
	zr, err := zlib.NewReader(bytes.NewReader(got))
	if err != nil {
		t.Fatal(err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain, GetGlobalDictionary().Generate()) {
		t.Error("inflated dictionary differs from the JSON")
	}
}

func TestPwmCommandFlow(t *testing.T) {
	s := setupCommands(t)
	call(t, "config_pwm_generator", 1, 3, 1000000, 1000)
	call(t, "pwm_channel_enable", 1, 2)
	call(t, "pwm_set_duty", 1, 2, 40)
	call(t, "timer_start", 1)
	if len(s.msgs) != 0 {
		t.Fatalf("unexpected response %+v", s.last(t))
	}
	if timReg(TIM3, timCCR2) != 400 {
		t.Errorf("CCR2 = %d", timReg(TIM3, timCCR2))
	}
	call(t, "pwm_set_on_period", 1, 2, 1001)
	if r := s.last(t); r.name != "timer_error" || r.args[1] != uint32(ErrCodeOnPeriodOutOfRange) {
		t.Errorf("out of range on period: %+v", r)
	}
	call(t, "query_timer", 1)
	r := s.last(t)
	want := []uint32{1, 3, uint32(ModePwmGenerator), 1, 0, 1000000, 0}
	if r.name != "timer_state" || fmt.Sprint(r.args) != fmt.Sprint(want) {
		t.Errorf("timer_state %+v, want %v", r, want)
	}
}

func TestTimerErrorCodes(t *testing.T) {
	s := setupCommands(t)
	call(t, "timer_start", 9)
	if r := s.last(t); r.name != "timer_error" || r.args[0] != 9 || r.args[1] != uint32(ErrCodeUnknownOID) {
		t.Errorf("unknown oid: %+v", r)
	}
	call(t, "config_counter", 2, 4, 1000000, 0)
	call(t, "config_counter", 2, 5, 1000000, 0)
	if r := s.last(t); r.args[1] != uint32(ErrCodeTimerBusy) {
		t.Errorf("oid reuse: %+v", r)
	}
	call(t, "config_counter", 3, 4, 1000000, 0)
	if r := s.last(t); r.args[1] != uint32(ErrCodeTimerBusy) {
		t.Errorf("timer reuse: %+v", r)
	}
	call(t, "config_encoder", 4, 10, 0, 3)
	if r := s.last(t); r.args[1] != uint32(ErrCodeUnsupportedMode) {
		t.Errorf("encoder on TIM10: %+v", r)
	}
	call(t, "config_basic_timer", 5, 15, 1000, 0)
	if r := s.last(t); r.args[1] != uint32(ErrCodeUnknownTimer) {
		t.Errorf("TIM15: %+v", r)
	}
	call(t, "pwm_set_duty", 2, 1, 50)
	if r := s.last(t); r.args[1] != uint32(ErrCodeUnsupportedMode) {
		t.Errorf("pwm command on a counter: %+v", r)
	}
}

func TestFailedPwmLookupConsumesArguments(t *testing.T) {
	setupCommands(t)
	// call fails the test if arguments are left unread
	call(t, "pwm_set_on_period", 42, 1, 500)
}

func TestCounterQueries(t *testing.T) {
	s := setupCommands(t)
	call(t, "config_counter", 1, 2, 1000000, 0)
	pokeTim(TIM2, timCNT, 700)
	call(t, "query_counter_reached", 1, 500)
	if r := s.last(t); r.name != "counter_reached" || r.args[1] != 1 || r.args[2] != 700 {
		t.Errorf("counter_reached %+v", r)
	}
	call(t, "timer_clear", 1)
	call(t, "query_counter_reached", 1, 500)
	if r := s.last(t); r.args[1] != 0 {
		t.Errorf("after clear %+v", r)
	}
}

func TestMeasureAndEncoderQueries(t *testing.T) {
	s := setupCommands(t)
	call(t, "config_pwm_measure", 1, 4, 1000000)
	pokeTim(TIM4, timCCR1, 2000)
	pokeTim(TIM4, timCCR2, 500)
	pokeTim(TIM4, timSR, TIM_SR_CC1IF)
	call(t, "query_pwm_measure", 1)
	want := []uint32{1, 2000, 500, 1, 0, 500, 25}
	if r := s.last(t); r.name != "pwm_measure_state" || fmt.Sprint(r.args) != fmt.Sprint(want) {
		t.Errorf("pwm_measure_state %+v, want %v", r, want)
	}

	call(t, "config_encoder", 2, 3, 0, 3)
	call(t, "encoder_set_polarity", 2, 1, 0)
	if timReg(TIM3, timCCER)&TIM_CCER_CC1P == 0 {
		t.Error("polarity command not applied")
	}
	pokeTim(TIM3, timCNT, 77)
	call(t, "query_encoder", 2)
	if r := s.last(t); r.name != "encoder_state" || r.args[1] != 77 {
		t.Errorf("encoder_state %+v", r)
	}
}

func TestEmergencyStop(t *testing.T) {
	s := setupCommands(t)
	call(t, "config_pwm_generator", 1, 1, 1000000, 1000)
	call(t, "pwm_channel_enable", 1, 1)
	call(t, "timer_start", 1)
	call(t, "emergency_stop")

	if timReg(TIM1, timCR1)&TIM_CR1_CEN != 0 {
		t.Error("counter still enabled after emergency stop")
	}
	if timReg(TIM1, timCCER) != 0 || timReg(TIM1, timBDTR)&TIM_BDTR_MOE != 0 {
		t.Error("outputs still enabled after emergency stop")
	}
	call(t, "timer_start", 1)
	if r := s.last(t); r.args[1] != uint32(ErrCodeShutdown) {
		t.Errorf("start after shutdown: %+v", r)
	}
	call(t, "get_config")
	if r := s.last(t); r.name != "config" || r.args[2] != 1 || r.args[3] != 1 {
		t.Errorf("config %+v", r)
	}

	call(t, "config_reset")
	if IsShutdown() || TimerObjectCount() != 0 || isClaimed(TIM1) {
		t.Error("config_reset did not clear state")
	}
	call(t, "config_pwm_generator", 1, 1, 1000000, 1000)
	if TimerObjectCount() != 1 {
		t.Error("configuration refused after reset")
	}
}

func TestTimerRelease(t *testing.T) {
	setupCommands(t)
	call(t, "config_basic_timer", 1, 6, 1000000, 0)
	if timReg(TIM6, timARR) != DefaultReload {
		t.Errorf("reload 0 must select DefaultReload, ARR = %d", timReg(TIM6, timARR))
	}
	call(t, "timer_release", 1)
	if isClaimed(TIM6) || PeriphTIM6.IsEnabled() {
		t.Error("release left TIM6 claimed or powered")
	}
	kinds := []uint8{}
	for _, e := range Events() {
		kinds = append(kinds, e.Kind)
	}
	if fmt.Sprint(kinds) != fmt.Sprint([]uint8{EvtConfig, EvtRelease}) {
		t.Errorf("events %v", kinds)
	}
}

func TestErrorCodeMapping(t *testing.T) {
	wrapped := fmt.Errorf("config: %w", ErrFrequencyTooLow)
	if ErrorCode(wrapped) != ErrCodeFrequencyTooLow {
		t.Errorf("wrapped error code %d", ErrorCode(wrapped))
	}
	if ErrorCode(nil) != ErrCodeNone || CodeError(ErrCodeNone) != nil {
		t.Error("nil mapping")
	}
	if ErrorCode(errors.New("other")) != ErrCodeOther {
		t.Error("unknown error code")
	}
	for code := ErrCodeZeroFrequency; code <= ErrCodeShutdown; code++ {
		if ErrorCode(CodeError(code)) != code {
			t.Errorf("code %d does not round trip", code)
		}
	}
}

func TestEventRingKeepsNewest(t *testing.T) {
	ClearEvents()
	for i := 0; i < EventRingSize+8; i++ {
		RecordEvent(EvtStart, uint8(i), 1, uint32(i))
	}
	evts := Events()
	if len(evts) != EventRingSize {
		t.Fatalf("len %d", len(evts))
	}
	if evts[0].Value != 8 || evts[len(evts)-1].Value != EventRingSize+7 {
		t.Errorf("oldest %d newest %d", evts[0].Value, evts[len(evts)-1].Value)
	}
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})
	DumpEvents()
	if len(lines) != EventRingSize+2 {
		t.Errorf("dump wrote %d lines", len(lines))
	}
	ClearEvents()
}

func TestAddPwmGenerator(t *testing.T) {
	s := setupCommands(t)
	p, err := AddPwmGenerator(7, TIM4, 1000000, 20000)
	if err != nil {
		t.Fatal(err)
	}
	if got, err := PwmGeneratorByOID(7); err != nil || got != p {
		t.Errorf("lookup: %v", err)
	}
	if _, err := AddPwmGenerator(7, TIM5, 1000000, 20000); err != ErrTimerBusy {
		t.Errorf("oid reuse: %v", err)
	}
	if len(s.msgs) != 0 {
		t.Error("platform configuration must not send timer_error")
	}
	call(t, "pwm_channel_enable", 7, 1)
	call(t, "emergency_stop")
	if timReg(TIM4, timCCER) != 0 {
		t.Error("emergency stop left the output enabled")
	}
	if _, err := AddPwmGenerator(8, TIM5, 1000000, 20000); err != ErrShutdown {
		t.Errorf("after shutdown: %v", err)
	}
	if err := ReleaseTimer(7); err != nil || isClaimed(TIM4) {
		t.Errorf("release: %v", err)
	}
	if err := ReleaseTimer(7); err != ErrUnknownOID {
		t.Errorf("second release: %v", err)
	}
}

func TestReleasedTimerReconfigures(t *testing.T) {
	s := setupCommands(t)
	call(t, "config_pwm_measure", 1, 4, 1000000)
	call(t, "timer_release", 1)
	call(t, "config_encoder", 2, 4, 0, 3)
	if len(s.msgs) != 0 {
		t.Fatalf("unexpected response %+v", s.last(t))
	}
	if got := timReg(TIM4, timSMCR); got != 3 {
		t.Errorf("SMCR = 0x%X, want encoder mode 3 only", got)
	}
	if got := timReg(TIM4, timCCER); got&TIM_CCER_CC2P != 0 {
		t.Errorf("CCER = 0x%X, falling edge polarity survived the release", got)
	}
}
