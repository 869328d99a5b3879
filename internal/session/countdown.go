package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// countdown is the one scheduled activity in the system: a per-poll ticker
// goroutine that posts ticks back into the actor. It is keyed to its poll
// ID, so a tick that outlives its poll is recognized as stale inside the
// run loop, and it is cancellable the instant the poll ends by any path.
type countdown struct {
	pollID uuid.UUID
	cancel context.CancelFunc
}

type tickCmd struct{ pollID uuid.UUID }

// startCountdown begins ticking for pollID. At most one countdown runs at
// a time; any previous one is cancelled first.
func (co *Coordinator) startCountdown(ctx context.Context, pollID uuid.UUID) {
	co.stopCountdown()

	tickCtx, cancel := context.WithCancel(ctx)
	co.countdown = &countdown{pollID: pollID, cancel: cancel}
	go co.runCountdown(tickCtx, pollID)

	log.Debug().
		Str("poll_id", pollID.String()).
		Dur("tick", co.cfg.TickInterval).
		Msg("countdown started")
}

func (co *Coordinator) runCountdown(ctx context.Context, pollID uuid.UUID) {
	ticker := co.clock.NewTicker(co.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("poll_id", pollID.String()).Msg("countdown cancelled")
			return
		case <-ticker.Chan():
			co.enqueue(tickCmd{pollID: pollID})
		}
	}
}

func (co *Coordinator) stopCountdown() {
	if co.countdown != nil {
		co.countdown.cancel()
		co.countdown = nil
	}
}

func (co *Coordinator) stopCountdownFor(pollID uuid.UUID) {
	if co.countdown != nil && co.countdown.pollID == pollID {
		co.countdown.cancel()
		co.countdown = nil
	}
}
