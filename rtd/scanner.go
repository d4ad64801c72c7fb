/*Package rtd is the sensor acquisition pipeline: it sequences the two
daisy-chained PGA117 analog muxes, samples the fourteen thermistor
channels through the shared ADC, classifies each reading, and maintains
the per-channel fault state the rest of the controller consumes.

The scanner owns the mux SPI bus and the ADC files outright; it is the
sole writer of raw counts, temperatures, and channel fault latches.  Its
once-per-second pass is the clock the supervisor's notion of "one
second" is built on.
*/
package rtd

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/config"
	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/heater"
	"github.com/mattyIce83/frontier-uhc/msg"
	"github.com/mattyIce83/frontier-uhc/state"
)

// RMSReader reports line voltage and current; *power.Meter satisfies
// it.
type RMSReader interface {
	ReadRMS() (volts, amps float64, err error)
}

// Heatsink and ambient protection thresholds.
const (
	heatsinkMaxTempF        = 176 // triac maximum operational junction temp
	heatsinkOverTempSeconds = 11
	ambientMaxTempF         = 158
	ambientOverTempSeconds  = 900
)

// settleDelay is the wait between programming the muxes and reading the
// ADC.
const settleDelay = 10 * time.Millisecond

// minimumSleep is the floor applied when a pass overruns its second.
const minimumSleep = 10 * time.Millisecond

// Scanner drives the acquisition pass.
type Scanner struct {
	SPI   SPIBus
	ADC   ADC
	Meter RMSReader

	Bank  *heater.Bank
	Sys   *state.System
	Queue *eventlog.Queue
	Log   zerolog.Logger

	Channels [NumChannels]*Channel

	heatsinkOverSeconds int
	ambientOverSeconds  int
	ambientReported     bool

	// Settle is the inter-step delay, replaceable in tests.
	Settle func(time.Duration)
}

// NewScanner wires a scanner over real devices.
func NewScanner(spi SPIBus, adc ADC, meter RMSReader, bank *heater.Bank,
	sys *state.System, queue *eventlog.Queue, calibrationDir string, log zerolog.Logger) *Scanner {
	return &Scanner{
		SPI:      spi,
		ADC:      adc,
		Meter:    meter,
		Bank:     bank,
		Sys:      sys,
		Queue:    queue,
		Log:      log,
		Channels: NewChannels(calibrationDir, log),
		Settle:   time.Sleep,
	}
}

// Run executes scan passes at the self-correcting 1 Hz cadence until
// the context is cancelled.
func (s *Scanner) Run(ctx context.Context) error {
	for {
		start := time.Now()
		s.ScanOnce()
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

// ScanOnce runs one full pass: all fourteen channels in order, then the
// power meter.
func (s *Scanner) ScanOnce() {
	debug := config.DebugEnabled(config.DebugFile)
	for _, ch := range s.Channels {
		s.scanChannel(ch, debug)
	}
	s.publishTemps()
	s.protectionPass()
	s.powerMeterPass()
}

// scanChannel samples one channel, classifies the reading, and runs the
// debounce.
func (s *Scanner) scanChannel(ch *Channel, debug bool) {
	raw, err := s.readChannel(ch)
	if err != nil {
		s.Log.Error().Err(err).Int("channel", ch.Index).Msg("channel read failed")
		return
	}
	ch.RawCounts = raw
	if debug {
		s.Log.Debug().Int("channel", ch.Index).Int("raw", raw).Msg("rtd sample")
	}

	switch {
	case raw > ch.Table.OpenThreshold():
		ch.SecondsOpen++
		ch.SecondsShorted = 0
		if ch.SecondsOpen >= maxConsecutiveSecondsError && !ch.IsOpen {
			ch.IsOpen = true
			s.faultLatched(ch, true)
		}
	case raw < ch.Table.ShortThreshold():
		ch.SecondsShorted++
		ch.SecondsOpen = 0
		if ch.SecondsShorted >= maxConsecutiveSecondsError && !ch.IsShorted {
			ch.IsShorted = true
			s.faultLatched(ch, false)
		}
	default:
		// In range clears immediately.
		ch.SecondsOpen = 0
		ch.SecondsShorted = 0
		ch.IsOpen = false
		ch.IsShorted = false
		ch.openOneShot = false
		ch.shortedOneShot = false
		ch.TempF = ch.Table.LookupTemp(raw)
	}
	if ch.Index < heater.Count {
		s.Bank.SetSensorFault(ch.Index, ch.IsOpen, ch.IsShorted)
	}
}

// readChannel programs the muxes and reads the ADC, retrying a bounded
// number of times while the counts sit outside the table.
func (s *Scanner) readChannel(ch *Channel) (int, error) {
	var raw int
	for attempt := 0; ; attempt++ {
		cmd := muxCommands(ch.MuxNumber, ch.MuxInput, ch.Gain)
		if err := s.SPI.Write(cmd[:]); err != nil {
			return -1, err
		}
		s.Settle(settleDelay)
		var err error
		raw, err = s.ADC.Read(ch.AINBus)
		if err != nil {
			return -1, err
		}
		if raw >= ch.Table.ShortThreshold() && raw <= ch.Table.OpenThreshold() {
			return raw, nil
		}
		if attempt >= maxReadRetries {
			return raw, nil
		}
	}
}

// faultLatched handles a newly latched open or short.
func (s *Scanner) faultLatched(ch *Channel, open bool) {
	code := "E-6B"
	kind := "shorted"
	if open {
		code = "E-6A"
		kind = "open"
	}
	oneShot := &ch.shortedOneShot
	if open {
		oneShot = &ch.openOneShot
	}
	if *oneShot {
		return
	}
	*oneShot = true

	switch {
	case ch.Index < heater.Count:
		// Only the offending heater is disabled, not the whole shelf.
		s.Bank.Disable(ch.Index)
		s.Sys.RaiseAlarm(msg.AlarmHardwareFailure, code)
	case ch.Index == HeatsinkIndex:
		// Losing the heatsink sensor blinds the triac protection;
		// everything shuts down.
		s.Bank.DisableAllOff()
		s.Sys.SetStatus(msg.SystemStatusError)
		s.Sys.RaiseAlarm(msg.AlarmHardwareFailure, code)
	case ch.Index == AmbientIndex:
		if s.Sys.BoardRevision() < 1 {
			return
		}
		s.Sys.RaiseAlarm(msg.AlarmHardwareFailure, code)
	}
	s.Queue.Put(eventlog.Error(code, ch.Label(), "thermistor "+kind))
	s.Log.Error().Int("channel", ch.Index).Str("kind", kind).Msg("thermistor fault latched")
}

// publishTemps pushes the pass's temperatures into the shared state.
func (s *Scanner) publishTemps() {
	for i := 0; i < heater.Count; i++ {
		ch := s.Channels[i]
		if !ch.IsOpen && !ch.IsShorted && ch.TempF != TempOutOfRange {
			s.Bank.SetReading(i, ch.RawCounts, ch.TempF)
		}
	}
	heatsink := s.Channels[HeatsinkIndex].TempF
	ambient := s.Channels[AmbientIndex].TempF
	if s.Sys.BoardRevision() < 1 {
		// Early boards have no ambient sensor; substitute the
		// heatsink reading.
		ambient = heatsink
	}
	s.Sys.SetTemps(heatsink, ambient)
}

// protectionPass runs the heatsink and ambient over-temperature
// debounce.
func (s *Scanner) protectionPass() {
	heatsink, ambient := s.Sys.Temps()

	if heatsink >= heatsinkMaxTempF {
		s.heatsinkOverSeconds++
	} else {
		s.heatsinkOverSeconds = 0
	}
	if s.heatsinkOverSeconds >= heatsinkOverTempSeconds {
		if s.Sys.LatchHeatsinkOverTemp() {
			s.Sys.RaiseAlarm(msg.AlarmHeatsinkOverTemp, "E-4B")
			s.Bank.DisableAllOff()
			s.Queue.Put(eventlog.Error("E-4B", "Heat sink", "heatsink over temperature"))
			s.Log.Error().Int("temp_f", heatsink).Msg("heatsink over temperature")
		}
	}

	if s.Sys.BoardRevision() >= 1 {
		if ambient >= ambientMaxTempF {
			s.ambientOverSeconds++
		} else {
			s.ambientOverSeconds = 0
			s.ambientReported = false
		}
		// Warn only; the heaters stay as they are.
		if s.ambientOverSeconds >= ambientOverTempSeconds && !s.ambientReported {
			s.ambientReported = true
			s.Sys.LatchAmbientOverTemp()
			s.Sys.RaiseAlarm(msg.AlarmAmbientOverTemp, "E-4A")
			s.Queue.Put(eventlog.Error("E-4A", "Ambient", "ambient over temperature"))
			s.Log.Warn().Int("temp_f", ambient).Msg("ambient over temperature")
		}
	}
}

// powerMeterPass polls the meter for RMS voltage and current.
func (s *Scanner) powerMeterPass() {
	if s.Meter == nil {
		return
	}
	volts, amps, err := s.Meter.ReadRMS()
	if err != nil {
		if !s.Sys.PowerMonitorBad() {
			s.Sys.LatchPowerMonitorBad()
			s.Sys.RaiseAlarm(msg.AlarmHardwareFailure, "E-225")
			s.Queue.Put(eventlog.Error("E-225", "Power meter", "power meter not answering"))
			s.Log.Error().Err(err).Msg("power meter read failed")
		}
		return
	}
	s.Sys.SetLinePower(volts, amps)
}

// RawSnapshot copies the channel set for the RTD publisher.
func (s *Scanner) RawSnapshot() []msg.RTDChannelData {
	out := make([]msg.RTDChannelData, NumChannels)
	for i, ch := range s.Channels {
		out[i] = msg.RTDChannelData{
			RTDNumber: int32(ch.RTDNumber),
			RawCounts: int32(ch.RawCounts),
			TempF:     int32(ch.TempF),
			IsOpen:    ch.IsOpen,
			IsShorted: ch.IsShorted,
		}
	}
	return out
}
