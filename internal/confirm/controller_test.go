package confirm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/courtside/internal/domain"
)

type fakeView struct {
	mu    sync.Mutex
	match *domain.Match
}

func (v *fakeView) set(m domain.Match) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.match = &m
}

func (v *fakeView) Current() (domain.Match, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.match == nil {
		return domain.Match{}, false
	}
	return *v.match, true
}

type submitRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *submitRecorder) submit(_ context.Context, matchID, teamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, matchID+"/"+teamID)
	return nil
}

func (r *submitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *submitRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func confirmingMatch() domain.Match {
	return domain.Match{
		ID:     "m1",
		Team1:  domain.Team{ID: "t1", Name: "Alpha"},
		Team2:  domain.Team{ID: "t2", Name: "Beta"},
		Status: domain.MatchStatusConfirming,
		Score1: 21,
		Score2: 18,
	}
}

// advance drives exactly n whole-second ticks through the running countdown.
func advance(fc *clockwork.FakeClock, n int) {
	for i := 0; i < n; i++ {
		fc.BlockUntil(1)
		fc.Advance(time.Second)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestController_AutoConfirmsUnconfirmedSidesOnExpiry(t *testing.T) {
	fc := clockwork.NewFakeClock()
	view := &fakeView{}
	rec := &submitRecorder{}

	m := confirmingMatch()
	m.Confirmed = domain.Confirmations{Team1: true}
	view.set(m)

	c := New(fc, 5*time.Second, view, rec.submit, nil)
	c.Arm(m)

	advance(fc, 5)

	require.Eventually(t, func() bool { return rec.count() > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"m1/t2"}, rec.snapshot(), "only the unresponsive side is auto-confirmed")

	_, _, running := c.Remaining()
	assert.False(t, running)
}

func TestController_AutoConfirmsBothSidesWhenNeitherResponded(t *testing.T) {
	fc := clockwork.NewFakeClock()
	view := &fakeView{}
	rec := &submitRecorder{}

	m := confirmingMatch()
	view.set(m)

	c := New(fc, 3*time.Second, view, rec.submit, nil)
	c.Arm(m)

	advance(fc, 3)

	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"m1/t1", "m1/t2"}, rec.snapshot())
}

func TestController_CancelPreventsFire(t *testing.T) {
	fc := clockwork.NewFakeClock()
	view := &fakeView{}
	rec := &submitRecorder{}

	m := confirmingMatch()
	view.set(m)

	c := New(fc, 5*time.Second, view, rec.submit, nil)
	c.Arm(m)

	advance(fc, 2)
	c.Cancel("m1")

	require.Eventually(t, func() bool {
		_, _, running := c.Remaining()
		return !running
	}, 2*time.Second, 10*time.Millisecond)

	// Plenty of fake time after cancel; nothing may fire.
	fc.Advance(time.Minute)
	assert.Zero(t, rec.count())
}

func TestController_SkipsWhenMatchResolvedBeforeExpiry(t *testing.T) {
	fc := clockwork.NewFakeClock()
	view := &fakeView{}
	rec := &submitRecorder{}

	m := confirmingMatch()
	view.set(m)

	c := New(fc, 3*time.Second, view, rec.submit, nil)
	c.Arm(m)

	advance(fc, 2)

	// Both sides confirm through the push channel just before expiry.
	resolved := m
	resolved.Status = domain.MatchStatusCompleted
	view.set(resolved)

	advance(fc, 1)

	require.Eventually(t, func() bool {
		_, _, running := c.Remaining()
		return !running
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, rec.count(), "auto-confirm must not race a completed match")
}

func TestController_ReArmRestartsFromFull(t *testing.T) {
	fc := clockwork.NewFakeClock()
	view := &fakeView{}
	rec := &submitRecorder{}

	m := confirmingMatch()
	view.set(m)

	c := New(fc, 5*time.Second, view, rec.submit, nil)
	c.Arm(m)
	advance(fc, 2)

	_, seconds, running := c.Remaining()
	require.True(t, running)
	require.Equal(t, 3, seconds)

	c.Arm(m)

	_, seconds, running = c.Remaining()
	require.True(t, running)
	assert.Equal(t, 5, seconds, "re-arming restarts the countdown from full")

	// The superseded countdown's timer may absorb one advance while it winds
	// down, so drive until the fresh one expires.
	for i := 0; i < 7 && rec.count() == 0; i++ {
		waitCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		_ = fc.BlockUntilContext(waitCtx, 1)
		cancel()
		fc.Advance(time.Second)
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return rec.count() >= 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, rec.count(), "exactly one expiry despite the re-arm")
}

func TestController_PublishesWholeSecondTicks(t *testing.T) {
	fc := clockwork.NewFakeClock()
	view := &fakeView{}
	rec := &submitRecorder{}

	var mu sync.Mutex
	var ticks []int
	onTick := func(matchID string, remaining int) {
		mu.Lock()
		defer mu.Unlock()
		ticks = append(ticks, remaining)
	}

	m := confirmingMatch()
	view.set(m)

	c := New(fc, 3*time.Second, view, rec.submit, onTick)
	c.Arm(m)

	advance(fc, 3)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 1, 0}, ticks)
}

func TestController_DefaultTimeoutApplied(t *testing.T) {
	c := New(clockwork.NewFakeClock(), 0, &fakeView{}, (&submitRecorder{}).submit, nil)
	assert.Equal(t, DefaultTimeout, c.timeout)
}
