package command

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/bus"
	"github.com/mattyIce83/frontier-uhc/eventlog"
	"github.com/mattyIce83/frontier-uhc/msg"
)

// Installer performs the actual package fetch and install.  The
// implementation lives outside this process's core; the listener only
// owns the request/result plumbing.
type Installer interface {
	Install(update msg.FirmwareUpdate) (resultText string, err error)
}

// InstallerFunc adapts a function to the Installer interface.
type InstallerFunc func(msg.FirmwareUpdate) (string, error)

// Install implements Installer.
func (f InstallerFunc) Install(u msg.FirmwareUpdate) (string, error) { return f(u) }

// FirmwareListener receives update requests from the front display and
// publishes the install result.
type FirmwareListener struct {
	Sub       *bus.Subscriber
	Result    *bus.Publisher
	Installer Installer
	Queue     *eventlog.Queue
	Log       zerolog.Logger

	// ControllerIP stamps results.
	ControllerIP string

	seq uint32
}

// Run receives firmware updates until the context is cancelled.
func (f *FirmwareListener) Run(ctx context.Context) error {
	for {
		body, err := f.Sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.Log.Error().Err(err).Msg("firmware update receive")
			continue
		}
		var u msg.FirmwareUpdate
		if err := msg.Unmarshal(body, &u); err != nil {
			continue
		}
		f.Log.Info().Str("file", u.FilePath).Msg("firmware update requested")
		f.Queue.Put(eventlog.Internal("FIRMWARE_UPDATE", "requested "+u.FilePath))

		text := "no installer configured"
		if f.Installer != nil {
			text, err = f.Installer.Install(u)
			if err != nil {
				text = "install failed: " + err.Error()
				f.Log.Error().Err(err).Msg("firmware install")
			}
		}
		result := msg.FirmwareResult{
			Topic:               msg.TopicFirmwareResult,
			ControllerIPAddress: f.ControllerIP,
			SequenceNumber:      f.seq,
			ResultText:          text,
		}
		f.seq++
		if err := f.Result.Publish(msg.TopicFirmwareResult, result); err != nil {
			f.Log.Error().Err(err).Msg("firmware result publish")
		}
	}
}
