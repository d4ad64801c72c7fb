/*Package command processes the command streams from the two display
units and mutates the shared cabinet state.

Each display gets its own listener goroutine and its own response
publisher; the dispatch logic itself is synchronous and lock-ordered so
the two streams interleave safely.  Any received command counts as
proof of life for its display.
*/
package command

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/config"
	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/heater"
	"github.com/mattyIce83/frontier-uhc/msg"
	"github.com/mattyIce83/frontier-uhc/rtd"
	"github.com/mattyIce83/frontier-uhc/state"
)

// FanSetter commands the cooling fans; *monitor.Fans satisfies it.
type FanSetter interface {
	Set(i int, on bool)
}

// Handler applies one command to the cabinet and produces the
// response.
type Handler struct {
	Bank  *heater.Bank
	Sys   *state.System
	Fans  FanSetter
	Queue *eventlog.Queue
	Log   zerolog.Logger

	// ControllerIP stamps responses.
	ControllerIP string

	// ShutdownSentinel overrides the soft-shutdown sentinel path;
	// empty means the /etc default.
	ShutdownSentinel string
}

func (h *Handler) sentinel() string {
	if h.ShutdownSentinel != "" {
		return h.ShutdownSentinel
	}
	return config.SoftShutdownFile
}

// Apply executes c on behalf of display gui (1 or 2) and returns the
// response record (without its sequence number, which the listener
// owns).
func (h *Handler) Apply(gui int, c msg.SystemCommand) msg.SystemCommandResponse {
	h.Sys.GUIHeard(gui)
	h.Sys.SetLastCommand(c.Command)

	resp := h.dispatch(c)

	h.Queue.Put(eventlog.Command(gui, c.Command.String(), resp.String()))
	h.Log.Info().Int("gui", gui).Stringer("command", c.Command).Stringer("response", resp).Msg("command")

	return msg.SystemCommandResponse{
		Topic:              msg.TopicCommandResponse,
		RequesterIPAddress: h.ControllerIP,
		Command:            c.Command,
		Response:           resp,
		SlotNumber:         c.SlotNumber,
	}
}

// cleaningRejected is the set of commands refused while the cabinet is
// in cleaning mode.
func cleaningRejected(c msg.SystemCommands) bool {
	switch c {
	case msg.CommandStartup, msg.CommandHeaterOn,
		msg.CommandUpdateSlotTempSetpoint, msg.CommandSetHeaterTempSetpoint,
		msg.CommandSetEcoModeTemp, msg.CommandEcoModeOn:
		return true
	}
	return false
}

func (h *Handler) dispatch(c msg.SystemCommand) msg.SystemCommandResponses {
	if h.Sys.ShutdownRequested() && c.Command != msg.CommandEstablishLink {
		return msg.ResponseShutdownPending
	}
	if h.Sys.InCleaningMode() && cleaningRejected(c.Command) {
		h.Queue.Put(eventlog.Error("", "Command", "Safety: "+c.Command.String()+" rejected in cleaning mode"))
		return msg.ResponseFailure
	}

	switch c.Command {
	case msg.CommandEstablishLink:
		return msg.ResponseLinkEstablished

	case msg.CommandStartup:
		h.Sys.MarkStartupReceived()
		h.Bank.EnableAll()
		h.Sys.SetStatus(msg.SystemStatusStartup)
		return msg.ResponseOK

	case msg.CommandShutdownRequested:
		h.Bank.DisableAllOff()
		h.Sys.RequestShutdown()
		touch(h.sentinel())
		return msg.ResponseOK

	case msg.CommandEmergencyStop:
		h.Bank.DisableAllOff()
		return msg.ResponseOK

	case msg.CommandIdle:
		h.Sys.SetStatus(msg.SystemStatusNormal)
		return msg.ResponseOK

	case msg.CommandHeaterOn:
		if c.HeaterIndex < 0 || c.HeaterIndex >= heater.Count {
			return msg.ResponseBadParameter
		}
		// An explicit enable is also the manual reset for the
		// heatsink latch.
		h.Sys.ResetHeatsinkOverTemp()
		h.Bank.Enable(int(c.HeaterIndex), c.StartTime, c.EndTime)
		return msg.ResponseOK

	case msg.CommandHeaterOff:
		if c.HeaterIndex < 0 || c.HeaterIndex >= heater.Count {
			return msg.ResponseBadParameter
		}
		h.Bank.Disable(int(c.HeaterIndex))
		return msg.ResponseOK

	case msg.CommandUpdateSlotTempSetpoint:
		if !validSlot(c.SlotNumber) {
			return msg.ResponseBadParameter
		}
		if !h.Bank.InLimits(int(c.Temperature)) {
			return msg.ResponseBadParameter
		}
		h.Bank.SetSlotSetpoint(int(c.SlotNumber), int(c.Temperature))
		return msg.ResponseOK

	case msg.CommandSetHeaterTempSetpoint:
		if !validSlot(c.SlotNumber) {
			return msg.ResponseBadParameter
		}
		if !h.Bank.InLimits(int(c.UpperSetpointTemperature)) || !h.Bank.InLimits(int(c.LowerSetpointTemperature)) {
			return msg.ResponseBadParameter
		}
		h.Bank.SetHeaterSetpoints(int(c.SlotNumber), int(c.UpperSetpointTemperature), int(c.LowerSetpointTemperature))
		return msg.ResponseOK

	case msg.CommandSetEcoModeTemp:
		h.Bank.SetEcoTemp(int(c.Temperature), rtd.TableFirstDegF)
		return msg.ResponseOK

	case msg.CommandEcoModeOn:
		if !validSlot(c.SlotNumber) {
			return msg.ResponseBadParameter
		}
		h.Bank.EcoOn(int(c.SlotNumber))
		return msg.ResponseOK

	case msg.CommandEcoModeOff:
		if !validSlot(c.SlotNumber) {
			return msg.ResponseBadParameter
		}
		h.Bank.EcoOff(int(c.SlotNumber))
		return msg.ResponseOK

	case msg.CommandFanOn, msg.CommandFanOff:
		on := c.Command == msg.CommandFanOn
		switch c.FanNumber {
		case msg.FanNumber1:
			h.Fans.Set(0, on)
		case msg.FanNumber2:
			h.Fans.Set(1, on)
		case msg.FanNumberBoth, msg.FanNumberUnknown:
			h.Fans.Set(0, on)
			h.Fans.Set(1, on)
		}
		return msg.ResponseOK

	case msg.CommandCleaningModeOn:
		h.Bank.CleaningOn()
		h.Sys.SetCleaningMode(true)
		return msg.ResponseOK

	case msg.CommandCleaningModeOff:
		h.Bank.CleaningOff()
		h.Sys.SetCleaningMode(false)
		return msg.ResponseOK

	case msg.CommandNSOModeOn:
		h.Sys.SetNSOMode(true)
		return msg.ResponseOK

	case msg.CommandDemoModeOn:
		h.Sys.SetDemoMode(true)
		return msg.ResponseOK

	case msg.CommandDemoModeOff:
		h.Sys.SetDemoMode(false)
		return msg.ResponseOK

	case msg.CommandConfigureLogging:
		h.Sys.SetLogging(c.LoggingIsEventDriven, c.LoggingPeriodSeconds)
		return msg.ResponseOK

	default:
		return msg.ResponseUnknown
	}
}

func validSlot(slot int32) bool {
	return slot >= 1 && slot <= heater.Slots
}

func touch(path string) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	f.Close()
}
