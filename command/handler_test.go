package command

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/heater"
	"github.com/mattyIce83/frontier-uhc/msg"
	"github.com/mattyIce83/frontier-uhc/state"
)

type fakeSwitch struct{ on bool }

func (f *fakeSwitch) Set(on bool) error { f.on = on; return nil }

type fakeFans struct {
	on [2]bool
}

func (f *fakeFans) Set(i int, on bool) { f.on[i] = on }

func testHandler() (*Handler, *heater.Bank, *state.System, *fakeFans) {
	var pins [heater.Count]heater.Switch
	for i := range pins {
		pins[i] = &fakeSwitch{}
	}
	bank := heater.NewBank(pins, 150, 215)
	sys := state.NewSystem()
	fans := &fakeFans{}
	h := &Handler{
		Bank: bank, Sys: sys, Fans: fans,
		Queue: eventlog.NewQueue(), Log: zerolog.Nop(),
		ControllerIP:     "192.168.1.200",
		ShutdownSentinel: "/tmp/softShutdown-test",
	}
	return h, bank, sys, fans
}

func apply(h *Handler, c msg.SystemCommand) msg.SystemCommandResponse {
	return h.Apply(1, c)
}

func TestEstablishLink(t *testing.T) {
	h, _, sys, _ := testHandler()
	resp := apply(h, msg.SystemCommand{Command: msg.CommandEstablishLink})
	if resp.Response != msg.ResponseLinkEstablished {
		t.Fatalf("got %v, want LINK_ESTABLISHED", resp.Response)
	}
	if g1, _ := sys.GUILiveness(); g1 != 0 {
		t.Error("command receipt did not clear GUI liveness counter")
	}
}

func TestStartupEnablesAllHeaters(t *testing.T) {
	h, bank, sys, _ := testHandler()
	resp := apply(h, msg.SystemCommand{Command: msg.CommandStartup})
	if resp.Response != msg.ResponseOK {
		t.Fatalf("got %v, want OK", resp.Response)
	}
	for _, hs := range bank.Snapshots() {
		if !hs.Enabled {
			t.Fatalf("heater %d not enabled after STARTUP", hs.Index)
		}
	}
	if sys.Status() != msg.SystemStatusStartup {
		t.Errorf("status = %v, want STARTUP", sys.Status())
	}
	if !sys.StartupReceived() {
		t.Error("startup receipt not recorded")
	}
}

func TestEmergencyStopKillsHeat(t *testing.T) {
	h, bank, _, _ := testHandler()
	apply(h, msg.SystemCommand{Command: msg.CommandStartup})
	resp := apply(h, msg.SystemCommand{Command: msg.CommandEmergencyStop})
	if resp.Response != msg.ResponseOK {
		t.Fatalf("got %v, want OK", resp.Response)
	}
	for _, hs := range bank.Snapshots() {
		if hs.Enabled || hs.On {
			t.Fatalf("heater %d live after EMERGENCY_STOP", hs.Index)
		}
	}
}

func TestCleaningModeBlocksSetpointChange(t *testing.T) {
	h, bank, _, _ := testHandler()
	if r := apply(h, msg.SystemCommand{Command: msg.CommandCleaningModeOn}); r.Response != msg.ResponseOK {
		t.Fatalf("cleaning on: %v", r.Response)
	}
	resp := apply(h, msg.SystemCommand{
		Command:     msg.CommandUpdateSlotTempSetpoint,
		SlotNumber:  3,
		Temperature: 180,
	})
	if resp.Response != msg.ResponseFailure {
		t.Fatalf("got %v, want FAILURE", resp.Response)
	}
	snaps := bank.Snapshots()
	for _, i := range []int{4, 5} {
		if snaps[i].Setpoint != heater.CleaningSetpoint {
			t.Errorf("heater %d setpoint = %d, want cleaning %d", i, snaps[i].Setpoint, heater.CleaningSetpoint)
		}
		if snaps[i].SavedSetpoint != heater.DefaultSetpoint {
			t.Errorf("heater %d saved = %d, want %d", i, snaps[i].SavedSetpoint, heater.DefaultSetpoint)
		}
	}
	// The safety rejection leaves an error record behind.
	found := false
	for {
		rec, ok := h.Queue.Get(time.Now())
		if !ok {
			break
		}
		if rec.Kind == eventlog.KindError && strings.Contains(rec.Description, "Safety") {
			found = true
		}
	}
	if !found {
		t.Error("no safety error record queued")
	}
}

func TestCleaningModeRejections(t *testing.T) {
	h, _, _, _ := testHandler()
	apply(h, msg.SystemCommand{Command: msg.CommandCleaningModeOn})
	rejected := []msg.SystemCommands{
		msg.CommandStartup,
		msg.CommandHeaterOn,
		msg.CommandUpdateSlotTempSetpoint,
		msg.CommandSetHeaterTempSetpoint,
		msg.CommandSetEcoModeTemp,
		msg.CommandEcoModeOn,
	}
	for _, c := range rejected {
		resp := apply(h, msg.SystemCommand{Command: c, SlotNumber: 1, Temperature: 170,
			UpperSetpointTemperature: 170, LowerSetpointTemperature: 170})
		if resp.Response == msg.ResponseOK {
			t.Errorf("%v accepted in cleaning mode", c)
		}
	}
	// ECO off and heater off stay available during cleaning.
	if r := apply(h, msg.SystemCommand{Command: msg.CommandEcoModeOff, SlotNumber: 1}); r.Response != msg.ResponseOK {
		t.Errorf("ECO_MODE_OFF rejected in cleaning mode: %v", r.Response)
	}
	if r := apply(h, msg.SystemCommand{Command: msg.CommandHeaterOff, HeaterIndex: 0}); r.Response != msg.ResponseOK {
		t.Errorf("HEATER_OFF rejected in cleaning mode: %v", r.Response)
	}
}

func TestSetpointClamp(t *testing.T) {
	h, bank, _, _ := testHandler()
	resp := apply(h, msg.SystemCommand{
		Command:     msg.CommandUpdateSlotTempSetpoint,
		SlotNumber:  1,
		Temperature: 220,
	})
	if resp.Response != msg.ResponseBadParameter {
		t.Fatalf("got %v, want BAD_PARAMETER", resp.Response)
	}
	snaps := bank.Snapshots()
	if snaps[0].Setpoint != heater.DefaultSetpoint || snaps[1].Setpoint != heater.DefaultSetpoint {
		t.Error("rejected setpoint leaked into heater state")
	}

	resp = apply(h, msg.SystemCommand{
		Command:     msg.CommandUpdateSlotTempSetpoint,
		SlotNumber:  1,
		Temperature: 200,
	})
	if resp.Response != msg.ResponseOK {
		t.Fatalf("got %v, want OK", resp.Response)
	}
	snaps = bank.Snapshots()
	if snaps[0].Setpoint != 200 || snaps[1].Setpoint != 200 {
		t.Errorf("setpoints = %d/%d, want 200", snaps[0].Setpoint, snaps[1].Setpoint)
	}
}

func TestSetHeaterTempSetpointIndependent(t *testing.T) {
	h, bank, _, _ := testHandler()
	resp := apply(h, msg.SystemCommand{
		Command:                  msg.CommandSetHeaterTempSetpoint,
		SlotNumber:               2,
		UpperSetpointTemperature: 190,
		LowerSetpointTemperature: 170,
	})
	if resp.Response != msg.ResponseOK {
		t.Fatalf("got %v, want OK", resp.Response)
	}
	snaps := bank.Snapshots()
	if snaps[2].Setpoint != 190 || snaps[3].Setpoint != 170 {
		t.Errorf("setpoints = %d/%d, want 190/170", snaps[2].Setpoint, snaps[3].Setpoint)
	}
}

func TestHeaterOffIdempotent(t *testing.T) {
	h, _, _, _ := testHandler()
	resp := apply(h, msg.SystemCommand{Command: msg.CommandHeaterOff, HeaterIndex: 5})
	if resp.Response != msg.ResponseOK {
		t.Fatalf("first off: got %v, want OK", resp.Response)
	}
	resp = apply(h, msg.SystemCommand{Command: msg.CommandHeaterOff, HeaterIndex: 5})
	if resp.Response != msg.ResponseOK {
		t.Fatalf("second off: got %v, want OK", resp.Response)
	}
}

func TestHeaterIndexValidation(t *testing.T) {
	h, _, _, _ := testHandler()
	for _, idx := range []int32{-1, 12} {
		resp := apply(h, msg.SystemCommand{Command: msg.CommandHeaterOn, HeaterIndex: idx})
		if resp.Response != msg.ResponseBadParameter {
			t.Errorf("index %d: got %v, want BAD_PARAMETER", idx, resp.Response)
		}
	}
}

func TestEcoOnIdempotent(t *testing.T) {
	h, bank, _, _ := testHandler()
	apply(h, msg.SystemCommand{Command: msg.CommandEcoModeOn, SlotNumber: 4})
	saved := bank.Snapshots()[6].SavedSetpoint
	resp := apply(h, msg.SystemCommand{Command: msg.CommandEcoModeOn, SlotNumber: 4})
	if resp.Response != msg.ResponseOK {
		t.Fatalf("repeat ECO-ON: got %v, want OK", resp.Response)
	}
	if got := bank.Snapshots()[6].SavedSetpoint; got != saved {
		t.Errorf("saved setpoint disturbed: %d != %d", got, saved)
	}
}

func TestFanCommands(t *testing.T) {
	h, _, _, fans := testHandler()
	apply(h, msg.SystemCommand{Command: msg.CommandFanOn, FanNumber: msg.FanNumber2})
	if fans.on[0] || !fans.on[1] {
		t.Errorf("fan states = %v, want only fan 2 on", fans.on)
	}
	apply(h, msg.SystemCommand{Command: msg.CommandFanOn, FanNumber: msg.FanNumberBoth})
	if !fans.on[0] || !fans.on[1] {
		t.Errorf("fan states = %v, want both on", fans.on)
	}
	apply(h, msg.SystemCommand{Command: msg.CommandFanOff, FanNumber: msg.FanNumberBoth})
	if fans.on[0] || fans.on[1] {
		t.Errorf("fan states = %v, want both off", fans.on)
	}
}

func TestShutdownGatesLaterCommands(t *testing.T) {
	h, bank, sys, _ := testHandler()
	resp := apply(h, msg.SystemCommand{Command: msg.CommandShutdownRequested})
	if resp.Response != msg.ResponseOK {
		t.Fatalf("shutdown: got %v, want OK", resp.Response)
	}
	if !sys.ShutdownRequested() {
		t.Fatal("shutdown not latched")
	}
	for _, hs := range bank.Snapshots() {
		if hs.Enabled || hs.On {
			t.Fatalf("heater %d live after shutdown", hs.Index)
		}
	}
	resp = apply(h, msg.SystemCommand{Command: msg.CommandStartup})
	if resp.Response != msg.ResponseShutdownPending {
		t.Fatalf("post-shutdown startup: got %v, want SHUTDOWN_PENDING", resp.Response)
	}
}

func TestConfigureLogging(t *testing.T) {
	h, _, sys, _ := testHandler()
	apply(h, msg.SystemCommand{Command: msg.CommandConfigureLogging, LoggingIsEventDriven: true, LoggingPeriodSeconds: 10})
	ed, period := sys.Logging()
	if !ed || period != 10 {
		t.Fatalf("logging = %v/%d, want true/10", ed, period)
	}
	// Period zero falls back to the default.
	apply(h, msg.SystemCommand{Command: msg.CommandConfigureLogging, LoggingPeriodSeconds: 0})
	_, period = sys.Logging()
	if period != 3 {
		t.Fatalf("period = %d, want default 3", period)
	}
}

func TestUnknownCommand(t *testing.T) {
	h, _, _, _ := testHandler()
	resp := apply(h, msg.SystemCommand{Command: msg.SystemCommands(99)})
	if resp.Response != msg.ResponseUnknown {
		t.Fatalf("got %v, want UNKNOWN", resp.Response)
	}
}
