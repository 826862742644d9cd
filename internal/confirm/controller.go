package confirm

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/courtside/courtside/internal/domain"
)

// DefaultTimeout is how long both sides have to confirm a final score before
// the controller confirms on behalf of whoever has not responded.
const DefaultTimeout = 60 * time.Second

// MatchView exposes the canonical match so the controller can check, at the
// moment of expiry, which sides still need confirming. The manual confirm
// path may have resolved between the last tick and expiry.
type MatchView interface {
	Current() (domain.Match, bool)
}

// Submitter delivers the auto-confirm intent for one side.
type Submitter func(ctx context.Context, matchID, teamID string) error

// Controller owns the per-match confirmation countdown. One countdown exists
// at a time (single court); arming for the same match id restarts from full
// rather than stacking a second timer. Cancel stops ticking without firing.
// Auto-confirm fires exactly once per armed countdown.
type Controller struct {
	clock   clockwork.Clock
	timeout time.Duration
	view    MatchView
	submit  Submitter

	// onTick publishes the whole-second display counter; may be nil.
	onTick func(matchID string, remaining int)

	mu        sync.Mutex
	active    *countdown
	remaining int
}

type countdown struct {
	matchID string
	stop    chan struct{}
}

// New returns a controller. view and submit are required; onTick may be nil.
func New(clock clockwork.Clock, timeout time.Duration, view MatchView, submit Submitter, onTick func(string, int)) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Controller{
		clock:   clock,
		timeout: timeout,
		view:    view,
		submit:  submit,
		onTick:  onTick,
	}
}

// Arm starts (or restarts) the countdown for a match entering confirming.
func (c *Controller) Arm(m domain.Match) {
	c.mu.Lock()
	if c.active != nil {
		close(c.active.stop)
	}
	cd := &countdown{matchID: m.ID, stop: make(chan struct{})}
	c.active = cd
	c.remaining = int(c.timeout / time.Second)
	c.mu.Unlock()

	log.Info().
		Str("match_id", m.ID).
		Dur("timeout", c.timeout).
		Msg("confirmation countdown armed")

	go c.run(cd)
}

// Cancel stops the countdown for the given match id, if it is the one
// running. No auto-confirm fires after Cancel returns.
func (c *Controller) Cancel(matchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.matchID != matchID {
		return
	}
	close(c.active.stop)
	c.active = nil
	c.remaining = 0
	log.Debug().Str("match_id", matchID).Msg("confirmation countdown cancelled")
}

// Close cancels whatever countdown is running. Used on teardown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		close(c.active.stop)
		c.active = nil
		c.remaining = 0
	}
}

// Remaining reports the display counter for the running countdown.
func (c *Controller) Remaining() (matchID string, seconds int, running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return "", 0, false
	}
	return c.active.matchID, c.remaining, true
}

// run ticks whole seconds on a chain of one-shot timers so a fake clock can
// drive tests deterministically.
func (c *Controller) run(cd *countdown) {
	remaining := int(c.timeout / time.Second)
	for remaining > 0 {
		t := c.clock.NewTimer(time.Second)
		select {
		case <-t.Chan():
			remaining--
			c.publishTick(cd, remaining)
		case <-cd.stop:
			stopAndDrainTimer(t)
			return
		}
	}
	c.fire(cd)
}

// publishTick updates the display counter if this countdown is still live.
func (c *Controller) publishTick(cd *countdown, remaining int) {
	c.mu.Lock()
	live := c.active == cd
	if live {
		c.remaining = remaining
	}
	c.mu.Unlock()
	if live && c.onTick != nil {
		c.onTick(cd.matchID, remaining)
	}
}

// fire submits auto-confirm for each side that has not responded. The
// re-check against the canonical match immediately before submitting keeps
// auto-confirm and a racing manual confirm mutually exclusive.
func (c *Controller) fire(cd *countdown) {
	c.mu.Lock()
	if c.active != cd {
		c.mu.Unlock()
		return
	}
	c.active = nil
	c.remaining = 0
	c.mu.Unlock()

	m, ok := c.view.Current()
	if !ok || m.ID != cd.matchID || m.Status != domain.MatchStatusConfirming {
		log.Debug().
			Str("match_id", cd.matchID).
			Msg("countdown expired but match already resolved; skipping auto-confirm")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !m.Confirmed.Team1 {
		c.autoConfirm(ctx, m.ID, m.Team1.ID)
	}
	if !m.Confirmed.Team2 {
		c.autoConfirm(ctx, m.ID, m.Team2.ID)
	}
}

func (c *Controller) autoConfirm(ctx context.Context, matchID, teamID string) {
	log.Info().
		Str("match_id", matchID).
		Str("team_id", teamID).
		Msg("confirmation timeout expired; auto-confirming")
	if err := c.submit(ctx, matchID, teamID); err != nil {
		log.Error().
			Err(err).
			Str("match_id", matchID).
			Str("team_id", teamID).
			Msg("auto-confirm submission failed")
	}
}

// stopAndDrainTimer stops a timer and drains its channel so an already-fired
// timer cannot leak a tick into a later select.
func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
