package power

import (
	"context"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/gpio"
)

// stopKernelLogCmd halts syslog before the rails drop so the journal
// isn't torn mid-write.
var stopKernelLogCmd = []string{"systemctl", "stop", "syslog-ng"}

// sagPollMillis is the warn-out poll timeout; short enough that
// cancellation is responsive.
const sagPollMillis = 250

// Shedder turns loads off when line power is about to fail.  The
// supervisor's heater bank and the fan pair satisfy the two fields.
type Shedder struct {
	Relay220 *gpio.Output
	Heaters  interface{ ForceAllOff() }
	Fans     interface{ AllOff() }
}

// SagWatcher waits on the power meter's warn-out edge.  A rising edge
// means input power is failing; the watcher sheds every load, stops the
// loggers, and asks the process to exit.  There is no recovery path —
// the cabinet will cycle power.
type SagWatcher struct {
	WarnOut *gpio.Input
	Shed    Shedder
	Queue   *eventlog.Queue
	Log     zerolog.Logger

	// OnSag is called after shedding; main wires process shutdown
	// here.
	OnSag func()
}

// Run blocks on the warn-out edge until it fires or the context is
// cancelled.
func (w *SagWatcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fired, err := w.WarnOut.WaitRisingEdge(sagPollMillis)
		if err != nil {
			w.Log.Error().Err(err).Msg("warn-out poll failed")
			continue
		}
		if !fired {
			continue
		}
		w.handleSag()
		return nil
	}
}

func (w *SagWatcher) handleSag() {
	w.Log.Error().Msg("line sag detected, shedding load")
	if w.Shed.Relay220 != nil {
		w.Shed.Relay220.Set(false)
	}
	if w.Shed.Fans != nil {
		w.Shed.Fans.AllOff()
	}
	if w.Shed.Heaters != nil {
		w.Shed.Heaters.ForceAllOff()
	}
	if err := exec.Command(stopKernelLogCmd[0], stopKernelLogCmd[1:]...).Run(); err != nil {
		w.Log.Warn().Err(err).Msg("stop kernel logger")
	}
	// Shove the stop sentinel to the front so the consumer drains what
	// it has and halts before the rails drop; the sag record rides
	// behind it.
	w.Queue.ShoveFront(eventlog.Stop())
	w.Queue.Put(eventlog.Error("E-200", "Power", "line sag detected"))
	if w.OnSag != nil {
		w.OnSag()
	}
}
