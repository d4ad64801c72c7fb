package heater

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/msg"
	"github.com/mattyIce83/frontier-uhc/state"
)

// fakeSwitch records the last commanded level.
type fakeSwitch struct {
	on bool
}

func (f *fakeSwitch) Set(on bool) error {
	f.on = on
	return nil
}

func testBank() (*Bank, [Count]*fakeSwitch) {
	var pins [Count]Switch
	var fakes [Count]*fakeSwitch
	for i := range fakes {
		fakes[i] = &fakeSwitch{}
		pins[i] = fakes[i]
	}
	return NewBank(pins, 150, 215), fakes
}

func testSupervisor() (*Supervisor, *Bank, *state.System) {
	bank, _ := testBank()
	sys := state.NewSystem()
	sup := &Supervisor{Bank: bank, Sys: sys, Queue: eventlog.NewQueue(), Log: zerolog.Nop()}
	return sup, bank, sys
}

func allEnabled(b *Bank, temp, setpoint int) {
	for i := 0; i < Count; i++ {
		b.Enable(i, 0, 0)
		b.SetReading(i, 2000, temp)
		b.heaters[i].Setpoint = setpoint
	}
}

func TestBudgetTable(t *testing.T) {
	cases := []struct {
		volts float64
		maxOn int
		skip  int
	}{
		{200.0, 10, 2},
		{201.0, 10, 2},
		{215.0, 9, 3},
		{221.0, 9, 3},
		{230.0, 8, 4},
		{0.0, 8, 4},
	}
	for _, c := range cases {
		b := BudgetForVoltage(c.volts)
		if b.MaxOn != c.maxOn || b.RankingSkip != c.skip {
			t.Errorf("%.1fV: got {%d %d}, want {%d %d}", c.volts, b.MaxOn, b.RankingSkip, c.maxOn, c.skip)
		}
		if b.MaxOn+b.RankingSkip != Count {
			t.Errorf("%.1fV: MaxOn+RankingSkip = %d, want %d", c.volts, b.MaxOn+b.RankingSkip, Count)
		}
	}
}

func TestPowerCapTracksLineVoltage(t *testing.T) {
	sup, bank, sys := testSupervisor()
	sys.MarkStartupReceived()
	sys.MarkStartupComplete()
	allEnabled(bank, 70, 170)

	sys.SetLinePower(200.0, 0)
	sup.Tick()
	if n := bank.OnCount(); n != 10 {
		t.Fatalf("at 200V got %d heaters on, want 10", n)
	}

	sys.SetLinePower(215.0, 0)
	sup.Tick()
	if n := bank.OnCount(); n != 9 {
		t.Fatalf("at 215V got %d heaters on, want 9", n)
	}

	sys.SetLinePower(230.0, 0)
	sup.Tick()
	if n := bank.OnCount(); n != 8 {
		t.Fatalf("at 230V got %d heaters on, want 8", n)
	}
}

func TestDisabledHeaterNeverOn(t *testing.T) {
	sup, bank, sys := testSupervisor()
	sys.MarkStartupReceived()
	sys.MarkStartupComplete()
	sys.SetLinePower(200.0, 0)
	allEnabled(bank, 70, 170)
	bank.Disable(3)
	bank.Disable(7)

	sup.Tick()
	snaps := bank.Snapshots()
	for _, h := range snaps {
		if !h.Enabled && h.On {
			t.Errorf("heater %d is on while disabled", h.Index)
		}
	}
	if snaps[3].On || snaps[7].On {
		t.Error("disabled heaters energized")
	}
}

func TestSelectionSkipsSatisfiedHeaters(t *testing.T) {
	sup, bank, sys := testSupervisor()
	sys.MarkStartupReceived()
	sys.MarkStartupComplete()
	sys.SetLinePower(230.0, 0)
	allEnabled(bank, 70, 170)
	// Heaters 0-3 are at or above setpoint; they must not be picked
	// even with budget to spare.
	for i := 0; i < 4; i++ {
		bank.SetReading(i, 2000, 175)
	}
	sup.Tick()
	snaps := bank.Snapshots()
	for i := 0; i < 4; i++ {
		if snaps[i].On {
			t.Errorf("heater %d on with no demand", i)
		}
	}
	if n := bank.OnCount(); n != 8 {
		t.Fatalf("got %d on, want 8", n)
	}
}

func TestSelectionEqualDemandsBothSelected(t *testing.T) {
	sup, bank, sys := testSupervisor()
	sys.MarkStartupReceived()
	sys.MarkStartupComplete()
	sys.SetLinePower(230.0, 0)
	// Only two heaters demand heat, identically.
	for i := 0; i < Count; i++ {
		bank.Enable(i, 0, 0)
		bank.SetReading(i, 2000, 170)
		bank.heaters[i].Setpoint = 170
	}
	bank.SetReading(4, 2000, 150)
	bank.SetReading(9, 2000, 150)

	sup.Tick()
	snaps := bank.Snapshots()
	if !snaps[4].On || !snaps[9].On {
		t.Fatal("heaters with demand not selected")
	}
	if n := bank.OnCount(); n != 2 {
		t.Fatalf("got %d on, want 2", n)
	}
}

func TestStartupWalkOrderAndBudget(t *testing.T) {
	sup, bank, sys := testSupervisor()
	sys.SetLinePower(230.0, 0) // budget 8
	allEnabled(bank, 70, 170)
	sys.MarkStartupReceived()

	sup.Tick()
	snaps := bank.Snapshots()
	// The first eight of the preference walk: six lowers, then the
	// uppers of slots 6 and 1.
	wantOn := []int{1, 3, 5, 7, 9, 11, 10, 0}
	for _, i := range wantOn {
		if !snaps[i].On {
			t.Errorf("heater %d should be on in startup walk", i)
		}
	}
	if n := bank.OnCount(); n != 8 {
		t.Fatalf("got %d on, want 8", n)
	}
}

func TestStartupCompletesOnThresholdNotSetpoint(t *testing.T) {
	sup, bank, sys := testSupervisor()
	sys.SetLinePower(200.0, 0)
	allEnabled(bank, 70, 170)
	sys.MarkStartupReceived()
	sys.SetStatus(msg.SystemStatusStartup)

	sup.Tick()
	if _, complete := sys.StartupState(); complete {
		t.Fatal("startup complete while cold")
	}

	// Uppers reach setpoint-10, lowers reach setpoint.
	for i := 0; i < Count; i++ {
		if i%2 == 0 {
			bank.SetReading(i, 2000, 160)
		} else {
			bank.SetReading(i, 2000, 170)
		}
	}
	sup.Tick()
	if _, complete := sys.StartupState(); !complete {
		t.Fatal("startup did not complete at threshold")
	}
	if got := sys.Status(); got != msg.SystemStatusStartupComplete {
		t.Fatalf("status = %v, want STARTUP_COMPLETE", got)
	}
	rec, ok := sup.Queue.Get(time.Now())
	if !ok || rec.Event != "STARTUP_COMPLETE_T" {
		t.Fatalf("expected STARTUP_COMPLETE_T event, got %+v ok=%v", rec, ok)
	}
}

func TestStartupBudgetExceededRaisesAlarm(t *testing.T) {
	sup, bank, sys := testSupervisor()
	sys.SetLinePower(200.0, 0)
	allEnabled(bank, 70, 170)
	sys.MarkStartupReceived()

	for i := 0; i < StartupBudgetSeconds; i++ {
		sup.Tick()
	}
	if _, complete := sys.StartupState(); !complete {
		t.Fatal("startup mode did not exit after budget")
	}
	if got := sys.Alarm(); got != msg.AlarmStartupTimeExceeded {
		t.Fatalf("alarm = %v, want STARTUP_TIME_EXCEEDED", got)
	}
}

func TestOverTempLatchesAfterSustainedExcursion(t *testing.T) {
	sup, bank, sys := testSupervisor()
	sys.MarkStartupReceived()
	sys.MarkStartupComplete()
	sys.SetLinePower(200.0, 0)
	allEnabled(bank, 170, 170)
	// Slot 2's upper heater runs hot.
	bank.SetReading(2, 2000, 182)

	for i := 0; i <= overTempSeconds; i++ {
		sup.Tick()
	}
	snaps := bank.Snapshots()
	if !snaps[2].OverTemp {
		t.Fatal("over-temp did not latch")
	}
	if snaps[2].Enabled || snaps[3].Enabled {
		t.Error("slot pair should be disabled after over-temp latch")
	}
	if snaps[2].On || snaps[3].On {
		t.Error("slot pair should be off after over-temp latch")
	}
	if got := sys.Alarm(); got != msg.AlarmSlotOverTemp {
		t.Fatalf("alarm = %v, want SLOT_OVER_TEMP", got)
	}
}

func TestSetpointChangeGuardSuppressesLatching(t *testing.T) {
	sup, bank, sys := testSupervisor()
	sys.MarkStartupReceived()
	sys.MarkStartupComplete()
	sys.SetLinePower(200.0, 0)
	allEnabled(bank, 170, 170)

	// A fresh setpoint leaves the heater far under; the guard must
	// keep the under-temp counter at zero until it settles.
	bank.SetSlotSetpoint(1, 200)
	for i := 0; i < 50; i++ {
		sup.Tick()
	}
	snaps := bank.Snapshots()
	if snaps[0].UnderTemp || snaps[1].UnderTemp {
		t.Fatal("under-temp latched while setpoint-changed guard up")
	}

	// Settle within the window; the guard clears and counting starts.
	bank.SetReading(0, 2000, 198)
	sup.Tick()
	bank.SetReading(0, 2000, 150)
	for i := 0; i <= underTempSeconds; i++ {
		sup.Tick()
	}
	if !bank.Snapshots()[0].UnderTemp {
		t.Fatal("under-temp did not latch after guard cleared")
	}
}

func TestEcoModeIdempotentAndRestores(t *testing.T) {
	_, bank, _ := testSupervisor()
	allEnabled(bank, 160, 180)

	bank.EcoOn(2)
	snaps := bank.Snapshots()
	if snaps[2].Setpoint != DefaultEcoSetpoint || snaps[3].Setpoint != DefaultEcoSetpoint {
		t.Fatalf("eco setpoints = %d/%d, want %d", snaps[2].Setpoint, snaps[3].Setpoint, DefaultEcoSetpoint)
	}
	if snaps[2].SavedSetpoint != 180 {
		t.Fatalf("saved setpoint = %d, want 180", snaps[2].SavedSetpoint)
	}

	// Second ECO-ON must not clobber the saved setpoint.
	bank.EcoOn(2)
	if got := bank.Snapshots()[2].SavedSetpoint; got != 180 {
		t.Fatalf("saved setpoint disturbed by repeat ECO-ON: %d", got)
	}

	bank.EcoOff(2)
	if got := bank.Snapshots()[2].Setpoint; got != 180 {
		t.Fatalf("setpoint after ECO-OFF = %d, want 180", got)
	}
	if bank.EcoActive(2) {
		t.Error("slot still marked ECO after ECO-OFF")
	}
}

func TestCleaningModeSavesAndRestores(t *testing.T) {
	_, bank, _ := testSupervisor()
	allEnabled(bank, 160, 165)

	bank.CleaningOn()
	for _, h := range bank.Snapshots() {
		if h.Setpoint != CleaningSetpoint {
			t.Fatalf("heater %d setpoint = %d in cleaning, want %d", h.Index, h.Setpoint, CleaningSetpoint)
		}
		if h.SavedSetpoint != 165 {
			t.Fatalf("heater %d saved = %d, want 165", h.Index, h.SavedSetpoint)
		}
	}
	bank.CleaningOff()
	for _, h := range bank.Snapshots() {
		if h.Setpoint != 165 {
			t.Fatalf("heater %d setpoint = %d after cleaning, want 165", h.Index, h.Setpoint)
		}
	}
}

func TestHourlyStatsClearOnTimeCounters(t *testing.T) {
	sup, bank, sys := testSupervisor()
	sys.MarkStartupReceived()
	sys.MarkStartupComplete()
	sys.SetLinePower(200.0, 0)
	allEnabled(bank, 70, 170)

	for i := 0; i < 3600; i++ {
		sup.Tick()
	}
	for _, h := range bank.Snapshots() {
		if h.SecondsOnThisHour != 0 {
			t.Fatalf("heater %d seconds-on not cleared: %d", h.Index, h.SecondsOnThisHour)
		}
	}
}
