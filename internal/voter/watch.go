package voter

import (
	"context"
	"time"

	"github.com/dyluth/roost/pkg/board"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is how often Watch re-reads the session when no
// notification arrives. Pub/Sub is at-most-once, so polling stays on.
const DefaultPollInterval = time.Second

// Watch follows the session until ctx is cancelled, calling render with a
// fresh View after every notification and every poll. It returns ctx.Err().
func (v *Voter) Watch(ctx context.Context, interval time.Duration, render func(View)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var events <-chan *board.SessionEvent
	var errs <-chan error

	sub, err := v.store.SubscribeSessionEvents(ctx, v.pres.ID)
	if err != nil {
		log.Warn().Err(err).Str("presentation_id", v.pres.ID).Msg("session notifications unavailable, polling only")
	} else {
		defer sub.Close()
		events = sub.Events()
		errs = sub.Errors()
	}

	if err := v.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("presentation_id", v.pres.ID).Msg("initial session read failed")
	}
	render(v.View())

	ticker := v.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			var s *board.ActiveSession
			if event.Kind == board.SessionEventUpdated {
				s = event.Session
			}
			if err := v.Apply(ctx, s); err != nil {
				log.Warn().Err(err).Str("presentation_id", v.pres.ID).Msg("failed to apply session event")
			}
			render(v.View())

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn().Err(err).Str("presentation_id", v.pres.ID).Msg("session subscription error")

		case <-ticker.Chan():
			if err := v.Refresh(ctx); err != nil {
				log.Warn().Err(err).Str("presentation_id", v.pres.ID).Msg("session poll failed")
			}
			render(v.View())
		}
	}
}
