package command

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mattyIce83/frontier-uhc/bus"
	"github.com/mattyIce83/frontier-uhc/msg"
)

// Listener is one display unit's command loop: receive, apply, reply.
type Listener struct {
	GUI     int
	Sub     *bus.Subscriber
	Resp    *bus.Publisher
	Handler *Handler
	Log     zerolog.Logger

	seq uint32
}

// Run receives commands until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	for {
		body, err := l.Sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Log.Error().Err(err).Int("gui", l.GUI).Msg("command receive")
			continue
		}
		var c msg.SystemCommand
		if err := msg.Unmarshal(body, &c); err != nil {
			l.Log.Error().Err(err).Int("gui", l.GUI).Msg("command decode")
			continue
		}
		resp := l.Handler.Apply(l.GUI, c)
		resp.SequenceNumber = l.seq
		l.seq++
		if err := l.Resp.Publish(msg.TopicCommandResponse, resp); err != nil {
			l.Log.Error().Err(err).Int("gui", l.GUI).Msg("response publish")
		}
	}
}
