/*Package publish assembles and emits the controller's periodic
snapshots: the Current System State on the CSS topic and the raw
thermistor data on the RTD topic.

Publishing is fire-and-forget; a display that is not listening costs
nothing and never blocks the supervisor.  The liveness and fan checks
ride this loop's tick.
*/
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/bus"
	"github.com/mattyIce83/frontier-uhc/config"
	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/heater"
	"github.com/mattyIce83/frontier-uhc/msg"
	"github.com/mattyIce83/frontier-uhc/state"
)

// minimumSleep is the floor applied when a tick overruns its second.
const minimumSleep = 10 * time.Millisecond

// RawSnapshotter supplies the RTD channel copies; *rtd.Scanner
// satisfies it.
type RawSnapshotter interface {
	RawSnapshot() []msg.RTDChannelData
}

// FanStates reports the commanded fan states; *monitor.Fans satisfies
// it.
type FanStates interface {
	States() (fan1On, fan2On bool)
}

// Ticker is a per-second check that rides the publish loop.
type Ticker interface {
	Tick()
}

// Publisher emits the snapshots once per second.
type Publisher struct {
	CSS *bus.Publisher
	RTD *bus.Publisher

	Bank    *heater.Bank
	Sys     *state.System
	Scanner RawSnapshotter
	Fans    FanStates

	// Tickers run first on every loop pass (liveness, fan
	// supervision).
	Tickers []Ticker

	// Queue receives the periodic status records when logging is not
	// event-driven.
	Queue *eventlog.Queue

	Identity     config.Identity
	ControllerIP string
	GUI1IP       string
	GUI2IP       string

	Log zerolog.Logger

	seq         uint32
	rtdSeq      uint32
	statusTicks uint32
}

// Run publishes until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		start := time.Now()
		p.TickOnce()
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

// TickOnce runs the riders and publishes one snapshot pair.
func (p *Publisher) TickOnce() {
	for _, t := range p.Tickers {
		t.Tick()
	}

	css := p.Assemble()
	if config.DebugEnabled(config.DebugCSSFile) {
		p.Log.Debug().Interface("css", css).Msg("publishing CSS")
	}
	if err := p.CSS.Publish(msg.TopicCurrentSystemState, css); err != nil {
		p.Log.Error().Err(err).Msg("publish CSS")
	}

	p.maybeLogStatus(css)

	if p.Scanner != nil && p.RTD != nil {
		rtdMsg := msg.RTDData{
			Topic:          msg.TopicRTDData,
			SequenceNumber: p.rtdSeq,
			Channels:       p.Scanner.RawSnapshot(),
		}
		p.rtdSeq++
		if err := p.RTD.Publish(msg.TopicRTDData, rtdMsg); err != nil {
			p.Log.Error().Err(err).Msg("publish RTD")
		}
	}
}

// maybeLogStatus writes one status record per logging period to the
// daily log; event-driven mode suppresses it.
func (p *Publisher) maybeLogStatus(css msg.CurrentSystemState) {
	if p.Queue == nil {
		return
	}
	eventDriven, period := p.Sys.Logging()
	p.statusTicks++
	if eventDriven || period == 0 || p.statusTicks%period != 0 {
		return
	}
	sd := css.SystemData
	p.Queue.Put(eventlog.Internal("STATUS", fmt.Sprintf(
		"status=%s alarm=%d heatsink=%dF ambient=%dF volts=%.1f amps=%.1f",
		sd.SystemStatus, sd.AlarmCode, sd.HeatsinkTemp, sd.AmbientTemp,
		sd.LineVoltage, sd.CurrentPowerConsumption)))
}

// Assemble builds the CSS record from the shared state.
func (p *Publisher) Assemble() msg.CurrentSystemState {
	snaps := p.Bank.Snapshots()
	slots := make([]msg.SlotData, heater.Slots)
	for s := 0; s < heater.Slots; s++ {
		slots[s] = msg.SlotData{
			SlotNumber:          int32(s + 1),
			HeaterLocationUpper: heaterData(snaps[s*2], msg.HeaterLocationUpper),
			HeaterLocationLower: heaterData(snaps[s*2+1], msg.HeaterLocationLower),
		}
	}

	heatsink, ambient := p.Sys.Temps()
	volts, amps := p.Sys.LinePower()
	gui1, gui2 := p.Sys.GUILiveness()
	fan1, fan2 := false, false
	if p.Fans != nil {
		fan1, fan2 = p.Fans.States()
	}
	cleaning, nso, demo := p.Sys.Modes()
	eventDriven, period := p.Sys.Logging()

	css := msg.CurrentSystemState{
		Topic:          msg.TopicCurrentSystemState,
		SequenceNumber: p.seq,
		SystemData: msg.SystemData{
			CurrentTime:             time.Now().Unix(),
			SystemUpTime:            int64(p.Sys.Uptime().Seconds()),
			HeatsinkTemp:            int32(heatsink),
			AmbientTemp:             int32(ambient),
			ControllerIPAddress:     p.ControllerIP,
			GUI1IPAddress:           p.GUI1IP,
			GUI2IPAddress:           p.GUI2IP,
			SecondsSinceGUI1:        gui1,
			SecondsSinceGUI2:        gui2,
			Fan1On:                  fan1,
			Fan2On:                  fan2,
			LineVoltage:             volts,
			CurrentPowerConsumption: amps,
			SystemStatus:            p.Sys.Status(),
			AlarmCode:               p.Sys.Alarm(),
			ErrorCode:               p.Sys.ConsumeErrorCode(),
			ConfiguredEcoModeTemp:   int32(p.Bank.EcoTemp()),
			ShutdownRequested:       p.Sys.ShutdownRequested(),
			LastCommandReceived:     p.Sys.LastCommand(),
			InCleaningMode:          cleaning,
			NSOMode:                 nso,
			DemoMode:                demo,
			HardwareRevision:        int32(p.Sys.BoardRevision()),
			LoggingIsEventDriven:    eventDriven,
			LoggingPeriodSeconds:    period,
			SDCardPresent:           p.Sys.SDCardPresent(),
			EthernetUp:              p.Sys.EthernetUp(),
		},
		SlotData:        slots,
		SerialNumber:    p.Identity.SerialNumber,
		ModelNumber:     p.Identity.ModelNumber,
		FirmwareVersion: config.FirmwareVersion,
	}
	p.seq++
	return css
}

func heaterData(h heater.Snapshot, loc msg.HeaterLocation) msg.HeaterData {
	return msg.HeaterData{
		State:          h.On,
		Location:       loc,
		ThermistorTemp: int32(h.CurrentTemp),
		SetpointTemp:   int32(h.Setpoint),
		IsOpen:         h.SensorOpen,
		IsShorted:      h.SensorShorted,
		IsOvertemp:     h.OverTemp,
		IsUndertemp:    h.UnderTemp,
		IsEnabled:      h.Enabled,
		StartTime:      h.StartTime,
		EndTime:        h.EndTime,
	}
}
