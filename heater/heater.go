/*Package heater owns the twelve heating elements: their commanded and
measured state, the once-per-second selection policy that decides which
elements may energize, and the thermal fault latches.

Heaters are numbered from the top of the cabinet: index 0 is the top
slot's upper element, index 1 its lower element, down to index 11.  A
slot is the pair at indices 2n and 2n+1.
*/
package heater

import (
	"fmt"
	"sync"
)

// Count is the number of heating elements.
const Count = 12

// Slots is the number of holding positions.
const Slots = 6

// Factory setpoint values, degrees Fahrenheit.
const (
	DefaultSetpoint         = 165
	CleaningSetpoint        = 120
	DefaultEcoSetpoint      = 100
	CleaningSetpointCeiling = 125
)

// maxNegativeDelta sorts disabled heaters behind every real demand.
const maxNegativeDelta = -350

// Thermal latch thresholds.
const (
	overTempDeltaF    = 11
	underTempDeltaF   = 11
	overTempSeconds   = 900
	underTempSeconds  = 900
	setpointSettledF  = 5
	upperAtTempDeltaF = 10
)

// Switch drives one heater output.  *gpio.Output satisfies it.
type Switch interface {
	Set(on bool) error
}

// Heater is the full per-element record.  All access goes through the
// owning Bank's lock.
type Heater struct {
	Index int

	Setpoint         int
	SavedSetpoint    int
	EcoSetpoint      int
	CleaningSetpoint int
	CurrentTemp      int
	RawCounts        int

	Enabled bool
	On      bool
	WasOn   bool

	EcoActive       bool
	SetpointChanged bool

	OverTemp     bool
	UnderTemp    bool
	overReported bool
	underReported bool
	SecondsOver  int
	SecondsUnder int

	SensorOpen    bool
	SensorShorted bool

	SecondsOnThisHour int
	StartTime         int64
	EndTime           int64

	pin Switch
}

// Upper reports whether the heater is a slot's upper element.
func (h *Heater) Upper() bool { return h.Index%2 == 0 }

// Slot returns the 1-based holding slot the heater belongs to.
func (h *Heater) Slot() int { return h.Index/2 + 1 }

// Label names the heater the way the schematic does, for log records.
func (h *Heater) Label() string {
	pos := "Bottom"
	if h.Upper() {
		pos = "Top"
	}
	return fmt.Sprintf("Heater %d Slot %d %s", h.Index+1, h.Slot(), pos)
}

// atTemp reports whether the heater has reached its startup target:
// uppers within upperAtTempDeltaF below setpoint, lowers at setpoint.
func (h *Heater) atTemp() bool {
	if h.Upper() {
		return h.CurrentTemp >= h.Setpoint-upperAtTempDeltaF
	}
	return h.CurrentTemp >= h.Setpoint
}

// Bank is the set of twelve heaters plus the setpoint limits read from
// the identity files.
type Bank struct {
	mu sync.Mutex

	heaters [Count]*Heater

	LowLimit  int
	HighLimit int
}

// NewBank builds the bank over the provided output pins.
func NewBank(pins [Count]Switch, lowLimit, highLimit int) *Bank {
	b := &Bank{LowLimit: lowLimit, HighLimit: highLimit}
	for i := 0; i < Count; i++ {
		b.heaters[i] = &Heater{
			Index:            i,
			Setpoint:         DefaultSetpoint,
			EcoSetpoint:      DefaultEcoSetpoint,
			CleaningSetpoint: CleaningSetpoint,
			CurrentTemp:      72,
			pin:              pins[i],
		}
	}
	return b
}

// locked runs f with the bank lock held.
func (b *Bank) locked(f func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f()
}

// setOn drives the pin and mirrors the commanded state.  Callers hold
// the lock.
func (b *Bank) setOn(h *Heater, on bool) {
	if on {
		h.SecondsOnThisHour++
	}
	if h.On == on {
		return
	}
	h.On = on
	if h.pin != nil {
		h.pin.Set(on)
	}
}

// SetReading stores one scanner sample for heater i.
func (b *Bank) SetReading(i, rawCounts, tempF int) {
	b.locked(func() {
		h := b.heaters[i]
		h.RawCounts = rawCounts
		h.CurrentTemp = tempF
	})
}

// SetSensorFault mirrors the channel fault latches onto the heater for
// the CSS snapshot.
func (b *Bank) SetSensorFault(i int, open, shorted bool) {
	b.locked(func() {
		b.heaters[i].SensorOpen = open
		b.heaters[i].SensorShorted = shorted
	})
}

// Enable enables heater i and clears its fault latches; enabling is the
// operator's explicit fault reset.
func (b *Bank) Enable(i int, startTime, endTime int64) {
	b.locked(func() {
		h := b.heaters[i]
		h.Enabled = true
		h.OverTemp = false
		h.UnderTemp = false
		h.overReported = false
		h.underReported = false
		h.SecondsOver = 0
		h.SecondsUnder = 0
		h.StartTime = startTime
		h.EndTime = endTime
	})
}

// Disable disables heater i and forces it off.
func (b *Bank) Disable(i int) {
	b.locked(func() {
		h := b.heaters[i]
		h.Enabled = false
		h.StartTime = 0
		h.EndTime = 0
		b.setOn(h, false)
	})
}

// DisableAllOff disables every heater and forces every element off.
// The heatsink trip, dual-GUI loss, and shutdown paths use this.
func (b *Bank) DisableAllOff() {
	b.locked(func() {
		for _, h := range b.heaters {
			h.Enabled = false
			b.setOn(h, false)
		}
	})
}

// EnableAll enables every heater; the Startup command path.
func (b *Bank) EnableAll() {
	b.locked(func() {
		for _, h := range b.heaters {
			h.Enabled = true
		}
	})
}

// ForceAllOff turns every element off without touching enables; the
// shutdown join-deadline path.
func (b *Bank) ForceAllOff() {
	b.locked(func() {
		for _, h := range b.heaters {
			b.setOn(h, false)
		}
	})
}

// InLimits reports whether a requested setpoint is inside the cabinet's
// clamp range.
func (b *Bank) InLimits(temp int) bool {
	return temp >= b.LowLimit && temp <= b.HighLimit
}

// SetSlotSetpoint sets both heaters of slot (1-6) to temp.  The caller
// has already validated the clamp.
func (b *Bank) SetSlotSetpoint(slot, temp int) {
	b.locked(func() {
		for _, h := range b.slotPair(slot) {
			h.Setpoint = temp
			h.SetpointChanged = true
		}
	})
}

// SetHeaterSetpoints sets independent upper and lower setpoints for
// slot.
func (b *Bank) SetHeaterSetpoints(slot, upper, lower int) {
	b.locked(func() {
		pair := b.slotPair(slot)
		pair[0].Setpoint = upper
		pair[0].SetpointChanged = true
		pair[1].Setpoint = lower
		pair[1].SetpointChanged = true
	})
}

// SetEcoTemp updates the ECO setpoint for all heaters.  Requests below
// the table floor or above a heater's current setpoint fall back to the
// default ECO setpoint for that heater.
func (b *Bank) SetEcoTemp(temp, tableMin int) {
	b.locked(func() {
		for _, h := range b.heaters {
			if temp >= tableMin && temp <= h.Setpoint {
				h.EcoSetpoint = temp
			} else {
				h.EcoSetpoint = DefaultEcoSetpoint
			}
		}
	})
}

// EcoOn puts slot into ECO.  Already-ECO slots are a no-op; saved
// setpoints are not disturbed.
func (b *Bank) EcoOn(slot int) {
	b.locked(func() {
		for _, h := range b.slotPair(slot) {
			if h.EcoActive {
				continue
			}
			h.SavedSetpoint = h.Setpoint
			h.Setpoint = h.EcoSetpoint
			h.EcoActive = true
			h.SetpointChanged = true
		}
	})
}

// EcoOff restores slot from ECO.  Idempotent.
func (b *Bank) EcoOff(slot int) {
	b.locked(func() {
		for _, h := range b.slotPair(slot) {
			if !h.EcoActive {
				continue
			}
			h.Setpoint = h.SavedSetpoint
			h.EcoActive = false
			h.SetpointChanged = true
		}
	})
}

// CleaningOn drops every heater to the cleaning ceiling, saving the
// working setpoints.
func (b *Bank) CleaningOn() {
	b.locked(func() {
		for _, h := range b.heaters {
			h.SavedSetpoint = h.Setpoint
			h.Setpoint = h.CleaningSetpoint
			h.SetpointChanged = true
		}
	})
}

// CleaningOff restores the setpoints saved by CleaningOn.
func (b *Bank) CleaningOff() {
	b.locked(func() {
		for _, h := range b.heaters {
			h.Setpoint = h.SavedSetpoint
			h.SetpointChanged = true
		}
	})
}

// EcoActive reports whether slot is currently in ECO.
func (b *Bank) EcoActive(slot int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	pair := b.slotPair(slot)
	return pair[0].EcoActive && pair[1].EcoActive
}

// slotPair returns the upper and lower heater of a 1-based slot.
// Callers hold the lock.
func (b *Bank) slotPair(slot int) [2]*Heater {
	i := (slot - 1) * 2
	return [2]*Heater{b.heaters[i], b.heaters[i+1]}
}

// Snapshot is a copy of one heater for publication.
type Snapshot struct {
	Index             int
	Setpoint          int
	SavedSetpoint     int
	EcoSetpoint       int
	CurrentTemp       int
	RawCounts         int
	Enabled           bool
	On                bool
	EcoActive         bool
	OverTemp          bool
	UnderTemp         bool
	SensorOpen        bool
	SensorShorted     bool
	SecondsOnThisHour int
	StartTime         int64
	EndTime           int64
}

// Snapshots copies all twelve heaters under one lock acquisition.
func (b *Bank) Snapshots() [Count]Snapshot {
	var out [Count]Snapshot
	b.mu.Lock()
	for i, h := range b.heaters {
		out[i] = Snapshot{
			Index:             h.Index,
			Setpoint:          h.Setpoint,
			SavedSetpoint:     h.SavedSetpoint,
			EcoSetpoint:       h.EcoSetpoint,
			CurrentTemp:       h.CurrentTemp,
			RawCounts:         h.RawCounts,
			Enabled:           h.Enabled,
			On:                h.On,
			EcoActive:         h.EcoActive,
			OverTemp:          h.OverTemp,
			UnderTemp:         h.UnderTemp,
			SensorOpen:        h.SensorOpen,
			SensorShorted:     h.SensorShorted,
			SecondsOnThisHour: h.SecondsOnThisHour,
			StartTime:         h.StartTime,
			EndTime:           h.EndTime,
		}
	}
	b.mu.Unlock()
	return out
}

// OnCount returns how many elements are currently energized.
func (b *Bank) OnCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, h := range b.heaters {
		if h.On {
			n++
		}
	}
	return n
}

// EcoTemp returns the configured ECO setpoint (uniform across heaters).
func (b *Bank) EcoTemp() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.heaters[0].EcoSetpoint
}
