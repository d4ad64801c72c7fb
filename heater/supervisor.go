package heater

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/config"
	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/msg"
	"github.com/mattyIce83/frontier-uhc/state"
)

// StartupBudgetSeconds bounds initial startup; relaxed to 50 minutes
// for the alpha cabinets.
const StartupBudgetSeconds = 3000

// minimumSleep is the floor applied when a tick overruns its second.
const minimumSleep = 10 * time.Millisecond

// startupOrder is the fixed preference walk for initial startup: all
// six lower elements top slot first, then the upper elements of slots
// 6, 1, 5, 2, 3, 4.
var startupOrder = [Count]int{1, 3, 5, 7, 9, 11, 10, 0, 8, 2, 4, 6}

// Supervisor runs the once-per-second heater selection policy.
type Supervisor struct {
	Bank  *Bank
	Sys   *state.System
	Queue *eventlog.Queue
	Log   zerolog.Logger

	ticks int
	csv   heaterCSV
}

// Run executes the supervisor loop until the context is cancelled.  The
// cadence is a self-correcting 1 Hz: the loop measures its own elapsed
// time and sleeps the remainder, with a floor when it overruns.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		start := time.Now()
		s.Tick()
		remain := time.Second - time.Since(start)
		if remain < minimumSleep {
			remain = minimumSleep
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(remain):
		}
	}
}

// Tick runs one supervisor second: budget, selection, thermal latching,
// hourly statistics.
func (s *Supervisor) Tick() {
	volts, _ := s.Sys.LinePower()
	budget := BudgetForVoltage(volts)

	inInitial, complete := s.Sys.StartupState()
	if inInitial {
		s.startupTick(budget)
	} else {
		s.selectTick(budget)
	}
	if complete {
		s.latchTick()
	}

	s.ticks++
	if s.ticks%3600 == 0 {
		s.hourlyStats(volts)
	}
	if config.DebugEnabled(config.DebugHeatersFile) {
		s.Log.Debug().
			Float64("line_voltage", volts).
			Int("max_on", budget.MaxOn).
			Int("on", s.Bank.OnCount()).
			Msg("supervisor tick")
	}
	s.csv.maybeWrite(s.Bank, volts)
}

// startupTick is the initial-startup policy: break the budget by
// turning everything off, then walk the preference order turning on
// cold enabled elements until the budget is spent.
func (s *Supervisor) startupTick(budget Budget) {
	b := s.Bank
	b.mu.Lock()
	for _, h := range b.heaters {
		h.WasOn = h.On
		b.setOn(h, false)
	}
	on := 0
	for _, idx := range startupOrder {
		if on >= budget.MaxOn {
			break
		}
		h := b.heaters[idx]
		if h.Enabled && !h.SensorOpen && !h.SensorShorted && h.CurrentTemp < h.Setpoint {
			b.setOn(h, true)
			on++
		}
	}
	allAtTemp := true
	anyEnabled := false
	for _, h := range b.heaters {
		if !h.Enabled {
			continue
		}
		anyEnabled = true
		if !h.atTemp() {
			allAtTemp = false
		}
	}
	b.mu.Unlock()

	if !s.Sys.StartupReceived() {
		return
	}
	elapsed := s.Sys.TickStartupBudget()
	if anyEnabled && allAtTemp {
		s.Sys.MarkStartupComplete()
		s.Queue.Put(eventlog.Internal("STARTUP_COMPLETE_T",
			"startup complete after "+(time.Duration(elapsed)*time.Second).String()))
		s.Log.Info().Int("seconds", elapsed).Msg("startup complete")
		return
	}
	if elapsed >= StartupBudgetSeconds {
		s.Sys.MarkStartupComplete()
		s.Sys.RaiseAlarm(msg.AlarmStartupTimeExceeded, "E-215")
		s.Queue.Put(eventlog.Error("E-215", "Cabinet", "startup did not reach setpoint in time"))
		s.Log.Warn().Int("seconds", elapsed).Msg("startup time exceeded")
	}
}

// selectTick is the normal policy: rank by setpoint deficit and select
// the hottest demands the budget allows.
func (s *Supervisor) selectTick(budget Budget) {
	b := s.Bank
	b.mu.Lock()
	defer b.mu.Unlock()

	var work [Count]int
	for i, h := range b.heaters {
		// A heater with a faulted thermistor has no trustworthy delta;
		// it sorts behind every real demand alongside the disabled.
		if h.Enabled && !h.SensorOpen && !h.SensorShorted {
			work[i] = h.Setpoint - h.CurrentTemp
		} else {
			work[i] = maxNegativeDelta
		}
	}
	ranked := make([]int, Count)
	copy(ranked, work[:])
	sort.Ints(ranked)

	var selected [Count]bool
	for pos := budget.RankingSkip; pos < Count; pos++ {
		d := ranked[pos]
		if d <= 0 {
			continue
		}
		// Ties resolve to the lowest unclaimed heater index; zeroing
		// the matched slot makes the next equal delta claim the next
		// index up.
		for i := 0; i < Count; i++ {
			if work[i] == d && !selected[i] {
				selected[i] = true
				work[i] = 0
				break
			}
		}
	}

	// Two passes so the budget is never exceeded mid-tick: shed first,
	// then add.
	for _, h := range b.heaters {
		h.WasOn = h.On
	}
	for i, h := range b.heaters {
		if h.On && !selected[i] {
			b.setOn(h, false)
		}
	}
	for i, h := range b.heaters {
		if selected[i] {
			b.setOn(h, true)
		}
	}
}

// latchTick runs the per-heater over/under-temperature latches.  It
// only runs after startup completes, and a heater sits out while its
// setpoint-changed guard is up.
func (s *Supervisor) latchTick() {
	type trip struct {
		h    *Heater
		over bool
	}
	var trips []trip

	b := s.Bank
	b.mu.Lock()
	for _, h := range b.heaters {
		if !h.Enabled {
			h.SecondsOver = 0
			h.SecondsUnder = 0
			continue
		}
		delta := h.CurrentTemp - h.Setpoint
		if h.SetpointChanged {
			if delta >= -setpointSettledF && delta <= setpointSettledF {
				h.SetpointChanged = false
			}
			continue
		}
		if delta > overTempDeltaF {
			h.SecondsOver++
		} else {
			h.SecondsOver = 0
		}
		if delta < -underTempDeltaF {
			h.SecondsUnder++
		} else {
			h.SecondsUnder = 0
		}
		if h.SecondsOver > overTempSeconds && !h.OverTemp {
			h.OverTemp = true
			if !h.overReported {
				h.overReported = true
				trips = append(trips, trip{h: h, over: true})
			}
		}
		if h.SecondsUnder > underTempSeconds && !h.UnderTemp {
			h.UnderTemp = true
			if !h.underReported {
				h.underReported = true
				trips = append(trips, trip{h: h, over: false})
			}
		}
	}
	// A tripped heater takes its whole slot down.
	for _, t := range trips {
		for _, h := range b.slotPair(t.h.Slot()) {
			h.Enabled = false
			b.setOn(h, false)
		}
	}
	b.mu.Unlock()

	for _, t := range trips {
		if t.over {
			s.Sys.RaiseAlarm(msg.AlarmSlotOverTemp, "E-5")
			s.Queue.Put(eventlog.Error("E-5", t.h.Label(), "slot over temperature"))
			s.Log.Error().Int("heater", t.h.Index).Msg("slot over temperature")
		} else {
			s.Sys.RaiseAlarm(msg.AlarmSlotUnderTemp, "E-216")
			s.Queue.Put(eventlog.Error("E-216", t.h.Label(), "slot under temperature"))
			s.Log.Error().Int("heater", t.h.Index).Msg("slot under temperature")
		}
	}
}

// hourlyStats emits one line per heater and clears the on-time
// counters.
func (s *Supervisor) hourlyStats(volts float64) {
	snaps := s.Bank.Snapshots()
	for _, h := range snaps {
		tag := ""
		switch {
		case h.SensorOpen:
			tag = "open"
		case h.SensorShorted:
			tag = "shorted"
		case h.OverTemp:
			tag = "overtemp"
		case h.UnderTemp:
			tag = "undertemp"
		}
		s.Log.Info().
			Float64("line_voltage", volts).
			Int("heater", h.Index+1).
			Int("raw_counts", h.RawCounts).
			Int("temp_f", h.CurrentTemp).
			Int("seconds_on", h.SecondsOnThisHour).
			Bool("enabled", h.Enabled).
			Str("fault", tag).
			Msg("hourly heater statistics")
	}
	s.Bank.locked(func() {
		for _, h := range s.Bank.heaters {
			h.SecondsOnThisHour = 0
		}
	})
}
