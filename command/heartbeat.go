package command

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/bus"
	"github.com/mattyIce83/frontier-uhc/msg"
	"github.com/mattyIce83/frontier-uhc/state"
)

// HeartbeatListener clears one display's liveness counter on every
// heartbeat.
type HeartbeatListener struct {
	GUI int
	Sub *bus.Subscriber
	Sys *state.System
	Log zerolog.Logger
}

// Run receives heartbeats until the context is cancelled.
func (h *HeartbeatListener) Run(ctx context.Context) error {
	for {
		body, err := h.Sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.Log.Error().Err(err).Int("gui", h.GUI).Msg("heartbeat receive")
			continue
		}
		var hb msg.Heartbeat
		if err := msg.Unmarshal(body, &hb); err != nil {
			continue
		}
		h.Sys.GUIHeard(h.GUI)
	}
}
