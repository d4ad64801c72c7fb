package monitor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/heater"
	"github.com/mattyIce83/frontier-uhc/msg"
	"github.com/mattyIce83/frontier-uhc/state"
)

type nilSwitch struct{}

func (nilSwitch) Set(bool) error { return nil }

func testLiveness(t *testing.T) (*Liveness, *heater.Bank, *state.System) {
	t.Helper()
	var pins [heater.Count]heater.Switch
	for i := range pins {
		pins[i] = nilSwitch{}
	}
	bank := heater.NewBank(pins, 150, 215)
	sys := state.NewSystem()
	l := &Liveness{
		Sys: sys, Bank: bank, Queue: eventlog.NewQueue(), Log: zerolog.Nop(),
		Interface: "eth0",
	}
	return l, bank, sys
}

func withLink(t *testing.T, up bool) {
	t.Helper()
	orig := linkUp
	linkUp = func(string) bool { return up }
	t.Cleanup(func() { linkUp = orig })
}

func TestSingleGUILossIsOneShot(t *testing.T) {
	withLink(t, true)
	l, bank, sys := testLiveness(t)
	bank.EnableAll()

	for i := 0; i <= GUINoCommunicationTimeLimit; i++ {
		sys.GUIHeard(2) // display 2 stays alive
		l.Tick()
	}
	if sys.Alarm() != msg.AlarmGUIFailure {
		t.Fatalf("alarm = %v, want GUI_FAILURE", sys.Alarm())
	}
	// A single loss does not shed heat.
	for _, h := range bank.Snapshots() {
		if !h.Enabled {
			t.Fatal("heaters disabled on single display loss")
		}
	}
	n := 0
	for {
		rec, ok := l.Queue.Get(time.Now())
		if !ok {
			break
		}
		if rec.Code == "E-60A" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("got %d single-loss records, want 1 (one-shot)", n)
	}

	// Hearing from the display clears the one-shot; a second loss
	// reports again.
	sys.GUIHeard(1)
	for i := 0; i <= GUINoCommunicationTimeLimit; i++ {
		sys.GUIHeard(2)
		l.Tick()
	}
	if rec, ok := l.Queue.Get(time.Now()); !ok || rec.Code != "E-60A" {
		t.Fatal("loss not re-reported after recovery")
	}
}

func TestDualGUILossShedsHeat(t *testing.T) {
	withLink(t, true)
	l, bank, sys := testLiveness(t)
	bank.EnableAll()

	for i := 0; i <= GUINoCommunicationTimeLimit; i++ {
		l.Tick()
	}
	if sys.Alarm() != msg.AlarmGUIFailure {
		t.Fatalf("alarm = %v, want GUI_FAILURE", sys.Alarm())
	}
	for _, h := range bank.Snapshots() {
		if h.Enabled || h.On {
			t.Fatalf("heater %d live after dual display loss", h.Index)
		}
	}
	var single, dual int
	for {
		rec, ok := l.Queue.Get(time.Now())
		if !ok {
			break
		}
		switch rec.Code {
		case "E-60A":
			single++
		case "E-220":
			dual++
		}
	}
	if single != 2 {
		t.Errorf("got %d per-display records, want 2", single)
	}
	if dual != 1 {
		t.Errorf("got %d dual-loss records, want 1", dual)
	}
}

func TestEthernetDownShedsHeatAfterLimit(t *testing.T) {
	withLink(t, false)
	l, bank, sys := testLiveness(t)
	bank.EnableAll()

	for i := 0; i <= EthernetNoCommunicationTimeLimit; i++ {
		// Keep the displays alive so only the link is at fault.
		sys.GUIHeard(1)
		sys.GUIHeard(2)
		l.Tick()
	}
	if sys.Alarm() != msg.AlarmEthernetDown {
		t.Fatalf("alarm = %v, want ETHERNET_DOWN", sys.Alarm())
	}
	for _, h := range bank.Snapshots() {
		if h.Enabled {
			t.Fatal("heaters enabled after ethernet loss")
		}
	}

	// Link restoration is logged but nothing re-enables.
	withLink(t, true)
	sys.GUIHeard(1)
	sys.GUIHeard(2)
	l.Tick()
	if !sys.EthernetUp() {
		t.Error("link restoration not recorded")
	}
	for _, h := range bank.Snapshots() {
		if h.Enabled {
			t.Fatal("heaters re-enabled themselves on link restore")
		}
	}
}
