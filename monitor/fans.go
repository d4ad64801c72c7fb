/*Package monitor watches the things that fail quietly: display-unit
liveness, the cooling fans, and the ethernet link.  Its checks ride the
state publisher's once-per-second tick.
*/
package monitor

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/gpio"
)

// Fan supervision limits.
const (
	// FanTachConsecutiveFailures is how many ticks the tach may read
	// zero while commanded on before the fan is cycled.
	FanTachConsecutiveFailures = 5

	// FanOvercurrentDelayCount debounces the over-current bit.
	FanOvercurrentDelayCount = 5

	// FanOvercurrentAutoCorrectLimit bounds cycle-and-retry attempts
	// before the fault latches.
	FanOvercurrentAutoCorrectLimit = 3
)

// FanCount is the number of cooling fans.
const FanCount = 2

// fan is one fan's pins and supervision state.
type fan struct {
	on   *gpio.Output
	tach *gpio.Input
	oc   *gpio.Input // nil on boards without the over-current bit

	commandedOn  bool
	lastTach     bool
	zeroTachs    int
	tachReported bool

	ocDelay    int
	ocRetries  int
	ocLatched  bool
	ocReported bool
}

// Fans is the cooling fan pair.
type Fans struct {
	mu    sync.Mutex
	fans  [FanCount]*fan
	Queue *eventlog.Queue
	Log   zerolog.Logger
}

// NewFans wires the pair.  Over-current inputs may be nil when the
// hardware lacks them.
func NewFans(on [FanCount]*gpio.Output, tach [FanCount]*gpio.Input, oc [FanCount]*gpio.Input,
	queue *eventlog.Queue, log zerolog.Logger) *Fans {
	f := &Fans{Queue: queue, Log: log}
	for i := 0; i < FanCount; i++ {
		f.fans[i] = &fan{on: on[i], tach: tach[i], oc: oc[i]}
	}
	return f
}

// Set commands fan i (0-based) on or off and resets its supervision
// counters; a fresh command always gets a fresh debounce.
func (f *Fans) Set(i int, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set(f.fans[i], on)
}

func (f *Fans) set(fn *fan, on bool) {
	fn.commandedOn = on
	fn.zeroTachs = 0
	fn.tachReported = false
	fn.ocDelay = 0
	fn.ocRetries = 0
	fn.ocLatched = false
	fn.ocReported = false
	if fn.on != nil {
		fn.on.Set(on)
	}
}

// AllOff forces both fans off; the sag path.
func (f *Fans) AllOff() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fn := range f.fans {
		fn.commandedOn = false
		if fn.on != nil {
			fn.on.Set(false)
		}
	}
}

// Tick samples each fan's tach (and over-current bit when present) and
// runs the cycle/retry policy.  Called once per publisher tick.
func (f *Fans) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, fn := range f.fans {
		f.tickTach(i, fn)
		f.tickOvercurrent(i, fn)
	}
}

func (f *Fans) tickTach(i int, fn *fan) {
	if fn.tach == nil || !fn.commandedOn {
		fn.zeroTachs = 0
		return
	}
	spinning, err := fn.tach.Read()
	if err != nil {
		f.Log.Error().Err(err).Int("fan", i+1).Msg("fan tach read")
		return
	}
	fn.lastTach = spinning
	if spinning {
		fn.zeroTachs = 0
		fn.tachReported = false
		return
	}
	fn.zeroTachs++
	if fn.zeroTachs < FanTachConsecutiveFailures {
		return
	}
	// Cycle the fan: off, then back on.
	fn.on.Set(false)
	fn.on.Set(true)
	fn.zeroTachs = 0
	if !fn.tachReported {
		fn.tachReported = true
		f.Queue.Put(eventlog.Error("E-210", fanLabel(i), "fan tach zero while commanded on"))
		f.Log.Error().Int("fan", i+1).Msg("fan not spinning, cycled")
	}
}

func (f *Fans) tickOvercurrent(i int, fn *fan) {
	if fn.oc == nil || !fn.commandedOn || fn.ocLatched {
		return
	}
	tripped, err := fn.oc.Read()
	if err != nil {
		return
	}
	if !tripped {
		fn.ocDelay = 0
		return
	}
	fn.ocDelay++
	if fn.ocDelay < FanOvercurrentDelayCount {
		return
	}
	fn.ocDelay = 0
	if fn.ocRetries < FanOvercurrentAutoCorrectLimit {
		fn.ocRetries++
		fn.on.Set(false)
		fn.on.Set(true)
		f.Log.Warn().Int("fan", i+1).Int("retry", fn.ocRetries).Msg("fan over-current, cycled")
		return
	}
	fn.ocLatched = true
	fn.commandedOn = false
	fn.on.Set(false)
	if !fn.ocReported {
		fn.ocReported = true
		f.Queue.Put(eventlog.Error("E-210", fanLabel(i), "fan over-current, retries exhausted"))
		f.Log.Error().Int("fan", i+1).Msg("fan over-current latched")
	}
}

// States reports the commanded state of both fans.
func (f *Fans) States() (fan1On, fan2On bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fans[0].commandedOn, f.fans[1].commandedOn
}

func fanLabel(i int) string {
	if i == 0 {
		return "Fan 1"
	}
	return "Fan 2"
}
