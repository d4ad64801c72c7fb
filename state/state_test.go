package state

import (
	"testing"

	"github.com/mattyIce83/frontier-uhc/msg"
)

func TestErrorCodeCountsDown(t *testing.T) {
	s := NewSystem()
	s.RaiseAlarm(msg.AlarmHeatsinkOverTemp, "E-4B")
	for i := 0; i < ReportErrorCount; i++ {
		if got := s.ConsumeErrorCode(); got != "E-4B" {
			t.Fatalf("report %d: got %q", i, got)
		}
	}
	if got := s.ConsumeErrorCode(); got != "" {
		t.Fatalf("got %q after count exhausted", got)
	}
}

func TestGUIHeardClearsCounterAndOneShot(t *testing.T) {
	s := NewSystem()
	for i := 0; i < 200; i++ {
		s.TickGUILiveness()
	}
	if !s.ReportGUILoss(1) {
		t.Fatal("first loss report suppressed")
	}
	if s.ReportGUILoss(1) {
		t.Fatal("loss reported twice without recovery")
	}
	s.GUIHeard(1)
	g1, g2 := s.GUILiveness()
	if g1 != 0 {
		t.Fatalf("gui1 counter = %d after message", g1)
	}
	if g2 != 200 {
		t.Fatalf("gui2 counter = %d, want 200", g2)
	}
	if !s.ReportGUILoss(1) {
		t.Fatal("one-shot not rearmed by message receipt")
	}
}

func TestStartupBudgetOnlyAdvancesAfterCommand(t *testing.T) {
	s := NewSystem()
	if got := s.TickStartupBudget(); got != 0 {
		t.Fatalf("budget advanced before startup command: %d", got)
	}
	s.MarkStartupReceived()
	s.TickStartupBudget()
	s.TickStartupBudget()
	if got := s.TickStartupBudget(); got != 3 {
		t.Fatalf("budget = %d, want 3", got)
	}
	elapsed := s.MarkStartupComplete()
	if elapsed != 3 {
		t.Fatalf("elapsed = %d, want 3", elapsed)
	}
	if got := s.TickStartupBudget(); got != 3 {
		t.Fatalf("budget advanced after completion: %d", got)
	}
	if s.Status() != msg.SystemStatusStartupComplete {
		t.Fatalf("status = %v", s.Status())
	}
}

func TestHeatsinkLatchIsMonotonic(t *testing.T) {
	s := NewSystem()
	if !s.LatchHeatsinkOverTemp() {
		t.Fatal("first latch not reported as new")
	}
	if s.LatchHeatsinkOverTemp() {
		t.Fatal("second latch reported as new")
	}
	if !s.HeatsinkOverTemp() {
		t.Fatal("latch not set")
	}
	s.ResetHeatsinkOverTemp()
	if s.HeatsinkOverTemp() {
		t.Fatal("latch survived explicit reset")
	}
}
