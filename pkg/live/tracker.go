package live

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/firsatradar/engine/pkg/livealert"
	"github.com/firsatradar/engine/pkg/metrics"
	"github.com/firsatradar/engine/pkg/prediction"
)

// Tick is one live score update for a match. Providers that do not
// share our match ids send team names instead; the daemon resolves
// those to a match id before the tick reaches the tracker.
type Tick struct {
	MatchID    string            `json:"match_id,omitempty"`
	HomeTeam   string            `json:"home_team,omitempty"`
	AwayTeam   string            `json:"away_team,omitempty"`
	StatusCode string            `json:"status"`
	Elapsed    int               `json:"elapsed"`
	Score      prediction.Score  `json:"score"`
	HalfTime   *prediction.Score `json:"half_time,omitempty"`
}

// AlertEvent is the data payload of an alert broadcast.
type AlertEvent struct {
	MatchID    string           `json:"match_id"`
	Prediction string           `json:"prediction"`
	State      *livealert.State `json:"state"`
}

// ResultEvent is the data payload of a settled prediction broadcast.
type ResultEvent struct {
	MatchID    string            `json:"match_id"`
	Prediction string            `json:"prediction"`
	Outcome    string            `json:"outcome"`
	Score      prediction.Score  `json:"score"`
	HalfTime   *prediction.Score `json:"half_time,omitempty"`
}

// StatusEvent is the data payload of a phase-change broadcast.
type StatusEvent struct {
	MatchID string `json:"match_id"`
	Phase   Phase  `json:"phase"`
	Elapsed int    `json:"elapsed"`
}

// Broadcaster receives the tracker's output events. *Hub satisfies it.
type Broadcaster interface {
	BroadcastAlert(alert interface{})
	BroadcastResult(result interface{})
	BroadcastStatus(status interface{})
}

// Tracker recomputes alert states for registered predictions on every
// score tick and settles them when the match finishes. It keeps no
// prediction state of its own: every alert is derived fresh from the
// tick, so a restarted tracker picks up exactly where it left off.
type Tracker struct {
	mu      sync.Mutex
	tracked map[string][]string
	phases  map[string]Phase

	out     Broadcaster
	limiter *rate.Limiter
	log     zerolog.Logger
	metrics *metrics.EngineMetrics
}

// NewTracker builds a tracker broadcasting into out. recomputeRate
// bounds how often alert recomputation runs across all matches; phase
// changes and final results are never rate limited.
func NewTracker(out Broadcaster, recomputeRate rate.Limit, log zerolog.Logger) *Tracker {
	if recomputeRate <= 0 {
		recomputeRate = rate.Limit(10)
	}
	burst := int(recomputeRate)
	if burst < 1 {
		burst = 1
	}
	return &Tracker{
		tracked: make(map[string][]string),
		phases:  make(map[string]Phase),
		out:     out,
		limiter: rate.NewLimiter(recomputeRate, burst),
		log:     log,
	}
}

// SetMetrics attaches a metrics collector.
func (t *Tracker) SetMetrics(m *metrics.EngineMetrics) { t.metrics = m }

// Track registers predictions to follow for a match. Registering the
// same match again replaces its prediction set.
func (t *Tracker) Track(matchID string, predictions ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked[matchID] = append([]string(nil), predictions...)
	t.updateGauge()
	t.log.Info().Str("match_id", matchID).Int("predictions", len(predictions)).Msg("tracking match")
}

// Untrack stops following a match.
func (t *Tracker) Untrack(matchID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tracked, matchID)
	delete(t.phases, matchID)
	t.updateGauge()
}

// updateGauge must be called with t.mu held.
func (t *Tracker) updateGauge() {
	if t.metrics == nil {
		return
	}
	n := 0
	for _, preds := range t.tracked {
		n += len(preds)
	}
	t.metrics.TrackedPairs.Set(float64(n))
}

// Run consumes ticks until ctx is done or the channel closes.
func (t *Tracker) Run(ctx context.Context, ticks <-chan Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			t.handleTick(tick)
		}
	}
}

func (t *Tracker) handleTick(tick Tick) {
	t.mu.Lock()
	predictions, tracked := t.tracked[tick.MatchID]
	lastPhase, seen := t.phases[tick.MatchID]
	t.mu.Unlock()

	if !tracked {
		return
	}

	phase := PhaseOf(tick.StatusCode)
	if !seen || phase != lastPhase {
		t.mu.Lock()
		t.phases[tick.MatchID] = phase
		t.mu.Unlock()
		t.out.BroadcastStatus(StatusEvent{MatchID: tick.MatchID, Phase: phase, Elapsed: tick.Elapsed})
	}

	switch {
	case phase.IsFinished():
		t.settle(tick, predictions)
		t.Untrack(tick.MatchID)

	case phase.IsLive() || phase == PhaseHalftime:
		// Rate-bound the recompute; a dropped tick only delays an
		// alert until the next tick lands.
		if !t.limiter.Allow() {
			return
		}
		t.recompute(tick, predictions)
	}
}

func (t *Tracker) recompute(tick Tick, predictions []string) {
	for _, raw := range predictions {
		st := livealert.Compute(raw, &tick.Score, tick.Elapsed, tick.HalfTime)
		if st == nil {
			continue
		}
		t.out.BroadcastAlert(AlertEvent{MatchID: tick.MatchID, Prediction: raw, State: st})
		if t.metrics != nil {
			t.metrics.RecordAlert(string(st.AlertLevel))
		}
		t.log.Debug().
			Str("match_id", tick.MatchID).
			Str("prediction", raw).
			Str("level", string(st.AlertLevel)).
			Int("goals_needed", st.GoalsNeeded).
			Msg("alert")
	}
}

// settle evaluates every tracked prediction against the final score.
func (t *Tracker) settle(tick Tick, predictions []string) {
	for _, raw := range predictions {
		outcome := prediction.Evaluate(raw, tick.Score, tick.HalfTime)
		t.out.BroadcastResult(ResultEvent{
			MatchID:    tick.MatchID,
			Prediction: raw,
			Outcome:    outcome.String(),
			Score:      tick.Score,
			HalfTime:   tick.HalfTime,
		})
		if t.metrics != nil {
			t.metrics.RecordResult(outcome.String())
		}
		t.log.Info().
			Str("match_id", tick.MatchID).
			Str("prediction", raw).
			Str("outcome", outcome.String()).
			Msg("prediction settled")
	}
}
