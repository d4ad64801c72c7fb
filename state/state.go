/*Package state holds the shared controller state.

One System value is created by main and handed to every subsystem.
Fault latches are monotonic: any producer may set them, and only the
explicit reset paths (operator re-enable, command handlers) clear them,
so readers never need a read-modify-write cycle.  Scalar telemetry
(temperatures, line voltage) is guarded by the mutex but readers
tolerate one-tick staleness by design.
*/
package state

import (
	"sync"
	"time"

	"github.com/mattyIce83/frontier-uhc/msg"
)

// ReportErrorCount is how many CSS publications carry an error code
// before it is auto-cleared.
const ReportErrorCount = 3

// System is the process-wide shared state.
type System struct {
	mu sync.Mutex

	status    msg.SystemStatus
	alarm     msg.AlarmCode
	errorCode string
	errorLeft int

	heatsinkTempF int
	ambientTempF  int
	lineVoltage   float64
	lineCurrent   float64

	inCleaningMode  bool
	nsoMode         bool
	demoMode        bool
	inInitialStart  bool
	startupComplete bool
	startupReceived bool
	startupSeconds  int

	shutdownRequested bool
	powerMonitorBad   bool
	heatsinkOverTemp  bool
	ambientOverTemp   bool

	secondsSinceGUI [2]uint32
	guiLossReported [2]bool

	ethernetUp    bool
	sdCardPresent bool
	boardRevision int

	loggingEventDriven bool
	loggingPeriod      uint32

	lastCommand msg.SystemCommands
	started     time.Time
}

// NewSystem returns a System in the power-on state.
func NewSystem() *System {
	return &System{
		status:         msg.SystemStatusUnknown,
		inInitialStart: true,
		ethernetUp:     true,
		loggingPeriod:  3,
		started:        time.Now(),
	}
}

// Status returns the coarse system status.
func (s *System) Status() msg.SystemStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus updates the coarse system status.
func (s *System) SetStatus(v msg.SystemStatus) {
	s.mu.Lock()
	s.status = v
	s.mu.Unlock()
}

// Alarm returns the active alarm code.
func (s *System) Alarm() msg.AlarmCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alarm
}

// RaiseAlarm latches an alarm together with its operator-facing error
// code.  The error code rides the next ReportErrorCount publications.
func (s *System) RaiseAlarm(a msg.AlarmCode, errorCode string) {
	s.mu.Lock()
	s.alarm = a
	s.errorCode = errorCode
	s.errorLeft = ReportErrorCount
	s.mu.Unlock()
}

// ClearAlarm drops the alarm back to none.
func (s *System) ClearAlarm() {
	s.mu.Lock()
	s.alarm = msg.AlarmNone
	s.mu.Unlock()
}

// ConsumeErrorCode returns the error code for one publication and
// counts it down, clearing the string after the last report.
func (s *System) ConsumeErrorCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errorLeft == 0 {
		return ""
	}
	code := s.errorCode
	s.errorLeft--
	if s.errorLeft == 0 {
		s.errorCode = ""
	}
	return code
}

// SetTemps stores the heatsink and ambient temperatures.
func (s *System) SetTemps(heatsinkF, ambientF int) {
	s.mu.Lock()
	s.heatsinkTempF = heatsinkF
	s.ambientTempF = ambientF
	s.mu.Unlock()
}

// Temps returns the heatsink and ambient temperatures.
func (s *System) Temps() (heatsinkF, ambientF int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heatsinkTempF, s.ambientTempF
}

// SetLinePower stores the measured RMS line voltage and current.
func (s *System) SetLinePower(volts, amps float64) {
	s.mu.Lock()
	s.lineVoltage = volts
	s.lineCurrent = amps
	s.mu.Unlock()
}

// LinePower returns the last measured RMS line voltage and current.
func (s *System) LinePower() (volts, amps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lineVoltage, s.lineCurrent
}

// SetCleaningMode flips the cleaning-mode flag.
func (s *System) SetCleaningMode(on bool) {
	s.mu.Lock()
	s.inCleaningMode = on
	s.mu.Unlock()
}

// InCleaningMode reports whether cleaning mode is active.
func (s *System) InCleaningMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inCleaningMode
}

// SetNSOMode flips the NSO flag.
func (s *System) SetNSOMode(on bool) {
	s.mu.Lock()
	s.nsoMode = on
	s.mu.Unlock()
}

// SetDemoMode flips the demo flag.
func (s *System) SetDemoMode(on bool) {
	s.mu.Lock()
	s.demoMode = on
	s.mu.Unlock()
}

// Modes returns the cleaning/NSO/demo flags together.
func (s *System) Modes() (cleaning, nso, demo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inCleaningMode, s.nsoMode, s.demoMode
}

// MarkStartupReceived records the operator's Startup command and
// restarts the startup budget.
func (s *System) MarkStartupReceived() {
	s.mu.Lock()
	s.startupReceived = true
	s.startupSeconds = 0
	s.mu.Unlock()
}

// StartupReceived reports whether a Startup command has arrived.
func (s *System) StartupReceived() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startupReceived
}

// TickStartupBudget advances the startup budget by one second and
// returns the new value.  It only advances after the Startup command.
func (s *System) TickStartupBudget() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.startupReceived || s.startupComplete {
		return s.startupSeconds
	}
	s.startupSeconds++
	return s.startupSeconds
}

// MarkStartupComplete leaves initial-startup mode.
func (s *System) MarkStartupComplete() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startupComplete = true
	s.inInitialStart = false
	s.status = msg.SystemStatusStartupComplete
	return s.startupSeconds
}

// StartupState returns the initial-startup flags.
func (s *System) StartupState() (inInitial, complete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inInitialStart, s.startupComplete
}

// RequestShutdown latches the shutdown-requested flag.
func (s *System) RequestShutdown() {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
}

// ShutdownRequested reports the shutdown-requested latch.
func (s *System) ShutdownRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdownRequested
}

// LatchPowerMonitorBad records that the power meter stopped answering.
func (s *System) LatchPowerMonitorBad() {
	s.mu.Lock()
	s.powerMonitorBad = true
	s.mu.Unlock()
}

// PowerMonitorBad reports the power-meter latch.
func (s *System) PowerMonitorBad() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powerMonitorBad
}

// LatchHeatsinkOverTemp sets the heatsink over-temperature latch.  It
// reports whether the latch was newly set.
func (s *System) LatchHeatsinkOverTemp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.heatsinkOverTemp {
		return false
	}
	s.heatsinkOverTemp = true
	s.status = msg.SystemStatusError
	return true
}

// HeatsinkOverTemp reports the heatsink latch.
func (s *System) HeatsinkOverTemp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heatsinkOverTemp
}

// ResetHeatsinkOverTemp clears the heatsink latch; only the operator
// re-enable path calls this.
func (s *System) ResetHeatsinkOverTemp() {
	s.mu.Lock()
	s.heatsinkOverTemp = false
	s.mu.Unlock()
}

// LatchAmbientOverTemp sets the warn-only ambient latch, reporting
// whether it was newly set.
func (s *System) LatchAmbientOverTemp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ambientOverTemp {
		return false
	}
	s.ambientOverTemp = true
	return true
}

// GUIHeard clears the liveness counter and loss one-shot for gui
// (1 or 2).
func (s *System) GUIHeard(gui int) {
	if gui != 1 && gui != 2 {
		return
	}
	s.mu.Lock()
	s.secondsSinceGUI[gui-1] = 0
	s.guiLossReported[gui-1] = false
	s.mu.Unlock()
}

// TickGUILiveness advances both liveness counters and returns them.
func (s *System) TickGUILiveness() (gui1, gui2 uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secondsSinceGUI[0]++
	s.secondsSinceGUI[1]++
	return s.secondsSinceGUI[0], s.secondsSinceGUI[1]
}

// GUILiveness returns the liveness counters without advancing them.
func (s *System) GUILiveness() (gui1, gui2 uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secondsSinceGUI[0], s.secondsSinceGUI[1]
}

// ReportGUILoss marks the per-GUI loss one-shot, reporting whether it
// was newly set.
func (s *System) ReportGUILoss(gui int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guiLossReported[gui-1] {
		return false
	}
	s.guiLossReported[gui-1] = true
	return true
}

// SetEthernetUp records the link state.
func (s *System) SetEthernetUp(up bool) {
	s.mu.Lock()
	s.ethernetUp = up
	s.mu.Unlock()
}

// EthernetUp reports the last observed link state.
func (s *System) EthernetUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ethernetUp
}

// SetSDCardPresent records the log-card probe result.
func (s *System) SetSDCardPresent(present bool) {
	s.mu.Lock()
	s.sdCardPresent = present
	s.mu.Unlock()
}

// SDCardPresent reports the log-card probe result.
func (s *System) SDCardPresent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sdCardPresent
}

// SetBoardRevision stores the ID-strap revision.
func (s *System) SetBoardRevision(rev int) {
	s.mu.Lock()
	s.boardRevision = rev
	s.mu.Unlock()
}

// BoardRevision returns the ID-strap revision.
func (s *System) BoardRevision() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boardRevision
}

// SetLogging stores the logging configuration pushed by a display.
func (s *System) SetLogging(eventDriven bool, periodSeconds uint32) {
	s.mu.Lock()
	if periodSeconds == 0 {
		periodSeconds = 3
	}
	s.loggingEventDriven = eventDriven
	s.loggingPeriod = periodSeconds
	s.mu.Unlock()
}

// Logging returns the logging configuration.
func (s *System) Logging() (eventDriven bool, periodSeconds uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggingEventDriven, s.loggingPeriod
}

// SetLastCommand records the most recent command for the CSS.
func (s *System) SetLastCommand(c msg.SystemCommands) {
	s.mu.Lock()
	s.lastCommand = c
	s.mu.Unlock()
}

// LastCommand returns the most recent command.
func (s *System) LastCommand() msg.SystemCommands {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommand
}

// Uptime returns how long the process has been running.
func (s *System) Uptime() time.Duration {
	return time.Since(s.started)
}
