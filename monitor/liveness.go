package monitor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/heater"
	"github.com/mattyIce83/frontier-uhc/msg"
	"github.com/mattyIce83/frontier-uhc/state"
)

// Communication limits, seconds.
const (
	GUINoCommunicationTimeLimit      = 180
	EthernetNoCommunicationTimeLimit = 180
)

// Liveness tracks the display units and the ethernet link.  Tick is
// called once per publisher tick.
type Liveness struct {
	Sys   *state.System
	Bank  *heater.Bank
	Queue *eventlog.Queue
	Log   zerolog.Logger

	// Interface is the watched link, e.g. "eth0".
	Interface string

	ethDownSeconds int
	ethReported    bool
	bothReported   bool
}

// Tick advances the liveness counters and runs the loss policies.
func (l *Liveness) Tick() {
	gui1, gui2 := l.Sys.TickGUILiveness()

	lost1 := gui1 > GUINoCommunicationTimeLimit
	lost2 := gui2 > GUINoCommunicationTimeLimit
	if lost1 && l.Sys.ReportGUILoss(1) {
		l.Sys.RaiseAlarm(msg.AlarmGUIFailure, "E-60A")
		l.Queue.Put(eventlog.Error("E-60A", "GUI 1", "no communication from display 1"))
		l.Log.Error().Msg("display 1 not communicating")
	}
	if lost2 && l.Sys.ReportGUILoss(2) {
		l.Sys.RaiseAlarm(msg.AlarmGUIFailure, "E-60A")
		l.Queue.Put(eventlog.Error("E-60A", "GUI 2", "no communication from display 2"))
		l.Log.Error().Msg("display 2 not communicating")
	}
	if lost1 && lost2 {
		// Nobody can see or stop the cabinet; shed the heat.
		if !l.bothReported {
			l.bothReported = true
			l.Bank.DisableAllOff()
			l.Sys.SetStatus(msg.SystemStatusError)
			l.Sys.RaiseAlarm(msg.AlarmGUIFailure, "E-220")
			l.Queue.Put(eventlog.Error("E-220", "GUI", "both displays lost, heaters disabled"))
			l.Log.Error().Msg("both displays lost, heaters disabled")
		}
	} else {
		l.bothReported = false
	}

	l.tickEthernet()
}

func (l *Liveness) tickEthernet() {
	up := linkUp(l.Interface)
	was := l.Sys.EthernetUp()
	l.Sys.SetEthernetUp(up)
	if up {
		if !was {
			// Restoration is logged but heaters stay disabled until
			// the operator re-enables them.
			l.Queue.Put(eventlog.Internal("ETHERNET_RESTORED", "link "+l.Interface+" back up"))
			l.Log.Info().Str("iface", l.Interface).Msg("ethernet restored")
		}
		l.ethDownSeconds = 0
		l.ethReported = false
		return
	}
	l.ethDownSeconds++
	if l.ethDownSeconds > EthernetNoCommunicationTimeLimit && !l.ethReported {
		l.ethReported = true
		l.Bank.DisableAllOff()
		l.Sys.RaiseAlarm(msg.AlarmEthernetDown, "E-220A")
		l.Queue.Put(eventlog.Error("E-220A", "Ethernet", "link down, heaters disabled"))
		l.Log.Error().Str("iface", l.Interface).Msg("ethernet down, heaters disabled")
	}
}

// linkUp reads the kernel's operstate for the interface; a var so
// tests can substitute link state.
var linkUp = func(iface string) bool {
	b, err := os.ReadFile(filepath.Join("/sys/class/net", iface, "operstate"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(b)) == "up"
}
