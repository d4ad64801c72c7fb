package command

import (
	"context"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/mattyIce83/frontier-uhc/bus"
	"github.com/mattyIce83/frontier-uhc/msg"
	"github.com/mattyIce83/frontier-uhc/state"
)

// TimeSyncListener accepts pushed wall-clock time from a display unit.
// The cabinet has no battery clock; the front display is the time
// authority.
type TimeSyncListener struct {
	GUI int
	Sub *bus.Subscriber
	Sys *state.System
	Log zerolog.Logger

	// setTime and setZone are the OS hooks, replaceable in tests.
	setTime func(int64) error
	setZone func(string) error
}

// Run receives time syncs until the context is cancelled.
func (t *TimeSyncListener) Run(ctx context.Context) error {
	if t.setTime == nil {
		t.setTime = settimeofday
	}
	if t.setZone == nil {
		t.setZone = setTimezone
	}
	for {
		body, err := t.Sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.Log.Error().Err(err).Int("gui", t.GUI).Msg("time sync receive")
			continue
		}
		var ts msg.TimeSync
		if err := msg.Unmarshal(body, &ts); err != nil {
			continue
		}
		t.Sys.GUIHeard(t.GUI)
		if !ts.IsMaster {
			continue
		}
		offset := time.Until(time.Unix(ts.CurrentTime, 0))
		t.Log.Info().Int("gui", t.GUI).Dur("offset", offset).Msg("time sync")
		if err := t.setTime(ts.CurrentTime); err != nil {
			t.Log.Warn().Err(err).Msg("set wall clock")
		}
		if ts.TimeZone != "" {
			if err := t.setZone(ts.TimeZone); err != nil {
				t.Log.Warn().Err(err).Msg("set timezone")
			}
		}
	}
}

func settimeofday(unixSeconds int64) error {
	tv := unix.NsecToTimeval(unixSeconds * int64(time.Second))
	return unix.Settimeofday(&tv)
}

func setTimezone(zone string) error {
	return exec.Command("timedatectl", "set-timezone", zone).Run()
}
