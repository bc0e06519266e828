package quota

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"meridian-hq/saturn/pkg/config"
)

// Ledger tracks per-subject point balances against the upstream
// advertising API's throttling model.
//
// Each call charges points (reads cheaper than writes). The balance
// decays linearly to zero over the tier's decay window when the subject
// is idle; exceeding the ceiling triggers a block window during which
// all calls are refused. Decay is computed lazily at access time rather
// than by a background timer, so state stays correct no matter how long
// a subject sits idle.
//
// # Thread Safety
//
// Ledger is safe for concurrent use. Each subject's state carries its
// own mutex; an Admit/Record pair for one subject never contends with
// unrelated subjects. Callers sharing one subject must still treat
// Admit followed by Record as optimistic: two goroutines can both be
// admitted near the ceiling and jointly overshoot by at most one call
// cost before the block window engages.
type Ledger struct {
	tier config.TierConfig

	// states maps Subject.Key() to per-subject state, created lazily
	// on first access.
	states map[string]*state
	mu     sync.Mutex

	// now is the clock, injectable for tests.
	now func() time.Time

	logger *slog.Logger
}

// state is the mutable quota state for one subject.
type state struct {
	mu sync.Mutex

	// points is the balance as of lastCallTime, before decay.
	points float64

	// lastCallTime is when points was last brought current.
	lastCallTime time.Time

	// blockedUntil refuses all admissions while in the future.
	blockedUntil time.Time
}

// NewLedger creates a quota ledger for the given tier.
func NewLedger(tier config.TierConfig) *Ledger {
	return &Ledger{
		tier:   tier,
		states: make(map[string]*state),
		now:    time.Now,
		logger: slog.Default().With("component", "quota.ledger"),
	}
}

// SetClock replaces the ledger's clock. This is for tests that need
// deterministic decay without sleeping.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// stateFor returns the state for a subject, creating it lazily.
// Creation happens under the ledger mutex so concurrent first accesses
// cannot produce duplicate entries.
func (l *Ledger) stateFor(subject Subject) *state {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := subject.Key()
	st, ok := l.states[key]
	if !ok {
		st = &state{lastCallTime: l.now()}
		l.states[key] = st
	}
	return st
}

// decayedPoints returns the balance after applying linear decay from
// lastCallTime to now. Caller must hold st.mu.
func (l *Ledger) decayedPoints(st *state, now time.Time) float64 {
	elapsed := now.Sub(st.lastCallTime)
	if elapsed <= 0 {
		return st.points
	}

	factor := float64(elapsed) / float64(l.tier.DecayWindow)
	if factor > 1 {
		factor = 1
	}
	points := st.points * (1 - factor)
	if points < 0 {
		points = 0
	}
	return points
}

// cost returns the point cost for a call kind.
func (l *Ledger) cost(isWrite bool) float64 {
	if isWrite {
		return l.tier.WriteCost
	}
	return l.tier.ReadCost
}

// Admit decides whether the subject may make a call right now.
// It does not charge points; callers that proceed must call Record.
func (l *Ledger) Admit(subject Subject, isWrite bool) AdmitResult {
	st := l.stateFor(subject)

	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.now()

	if st.blockedUntil.After(now) {
		return AdmitResult{
			Allowed:       false,
			Wait:          st.blockedUntil.Sub(now),
			CurrentPoints: st.points,
			Reason:        "currently blocked due to rate limit violation",
		}
	}

	current := l.decayedPoints(st, now)
	projected := current + l.cost(isWrite)

	if projected > l.tier.MaxPoints {
		// Wait long enough for the excess to decay. This is a local
		// heuristic, not an upstream guarantee.
		excess := projected - l.tier.MaxPoints
		wait := time.Duration(excess / l.tier.MaxPoints * float64(l.tier.DecayWindow))

		return AdmitResult{
			Allowed:       false,
			Wait:          wait,
			CurrentPoints: current,
			Reason:        fmt.Sprintf("call would exceed rate limit (%.1f/%.0f points)", projected, l.tier.MaxPoints),
		}
	}

	return AdmitResult{
		Allowed:       true,
		CurrentPoints: current,
	}
}

// Record charges the subject for a call. Charging is optimistic: it
// happens before the network call completes, because the quota models
// attempted call rate, not confirmed success. If the resulting balance
// exceeds the ceiling, the block window engages.
func (l *Ledger) Record(subject Subject, isWrite bool) {
	st := l.stateFor(subject)

	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.now()

	st.points = l.decayedPoints(st, now) + l.cost(isWrite)
	st.lastCallTime = now

	if st.points > l.tier.MaxPoints {
		st.blockedUntil = now.Add(l.tier.BlockDuration)
		l.logger.Warn("quota ceiling exceeded, subject blocked",
			"user_id", subject.UserID,
			"account_id", subject.AccountID,
			"points", st.points,
			"max_points", l.tier.MaxPoints,
			"blocked_for", l.tier.BlockDuration,
		)
	}
}

// ApplyThrottleFeedback applies the upstream platform's own throttle
// estimate. The upstream's view of time-to-regain-access overrides the
// local estimate, but only ever extends the block window; feedback
// shorter than the current block is ignored.
func (l *Ledger) ApplyThrottleFeedback(subject Subject, info ThrottleInfo) {
	if !info.Throttled() {
		return
	}

	st := l.stateFor(subject)

	st.mu.Lock()
	defer st.mu.Unlock()

	until := l.now().Add(time.Duration(info.EstimatedSecondsToRegainAccess * float64(time.Second)))
	if until.After(st.blockedUntil) {
		st.blockedUntil = until
		l.logger.Warn("upstream throttle feedback applied",
			"user_id", subject.UserID,
			"account_id", subject.AccountID,
			"app_util_pct", info.AppUtilizationPercent,
			"account_util_pct", info.AccountUtilizationPercent,
			"blocked_until", until,
		)
	}
}

// Status returns a read-only snapshot of the subject's quota state.
// It never mutates the stored balance.
func (l *Ledger) Status(subject Subject) Status {
	st := l.stateFor(subject)

	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.now()
	current := l.decayedPoints(st, now)
	blocked := st.blockedUntil.After(now)

	var blockedFor time.Duration
	if blocked {
		blockedFor = st.blockedUntil.Sub(now)
	}

	return Status{
		CurrentPoints:      current,
		MaxPoints:          l.tier.MaxPoints,
		UtilizationPercent: current / l.tier.MaxPoints * 100,
		IsBlocked:          blocked,
		BlockedFor:         blockedFor,
		CanRead:            !blocked && current+l.tier.ReadCost <= l.tier.MaxPoints,
		CanWrite:           !blocked && current+l.tier.WriteCost <= l.tier.MaxPoints,
	}
}

// Tier returns the tier parameters the ledger enforces.
func (l *Ledger) Tier() config.TierConfig {
	return l.tier
}

// SubjectCount returns the number of subjects with ledger state.
func (l *Ledger) SubjectCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.states)
}

// Evict drops state for subjects idle longer than the given duration.
// A fully decayed, unblocked subject's state is indistinguishable from
// a fresh one, so eviction never changes admission decisions as long as
// idleFor is at least the decay window plus the block duration.
func (l *Ledger) Evict(idleFor time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	evicted := 0
	for key, st := range l.states {
		st.mu.Lock()
		idle := now.Sub(st.lastCallTime) >= idleFor && !st.blockedUntil.After(now)
		st.mu.Unlock()
		if idle {
			delete(l.states, key)
			evicted++
		}
	}
	return evicted
}

// Reset clears all subject state. This is primarily for testing.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = make(map[string]*state)
}
