// Package engine runs the full opportunity pipeline: normalize a
// match's bookmaker odds, match them against the rule table, and turn
// matched rules into ranked betting opportunities.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/firsatradar/engine/pkg/metrics"
	"github.com/firsatradar/engine/pkg/odds"
	"github.com/firsatradar/engine/pkg/rules"
)

// Match is one fixture with its raw bookmaker odds payload.
type Match struct {
	ID         string           `json:"id"`
	HomeTeam   string           `json:"home_team"`
	AwayTeam   string           `json:"away_team"`
	League     string           `json:"league"`
	KickOff    time.Time        `json:"kick_off"`
	Bookmakers []odds.Bookmaker `json:"bookmakers"`
}

// Candidate is one prediction from a matched rule with its derived
// confidence.
type Candidate struct {
	Bet        string `json:"bet"`
	Confidence int    `json:"confidence"`
	RuleID     int    `json:"rule_id"`
	RuleName   string `json:"rule_name"`
}

// RuleRef identifies a matched rule inside an opportunity.
type RuleRef struct {
	RuleID   int    `json:"rule_id"`
	RuleName string `json:"rule_name"`
}

// Opportunity is the engine's verdict on one match: the best bet, the
// ranked alternatives, and the rules that produced them.
type Opportunity struct {
	MatchID      string         `json:"match_id"`
	HomeTeam     string         `json:"home_team"`
	AwayTeam     string         `json:"away_team"`
	League       string         `json:"league"`
	KickOff      time.Time      `json:"kick_off"`
	Prediction   string         `json:"prediction"`
	Confidence   int            `json:"confidence"`
	Alternatives []Candidate    `json:"alternative_predictions"`
	MatchedRules []RuleRef      `json:"matched_rules"`
	Canonical    odds.Canonical `json:"canonical_odds"`
}

// RunReport summarizes one batch run over a set of matches.
type RunReport struct {
	RunID         string        `json:"run_id"`
	Started       time.Time     `json:"started"`
	Duration      time.Duration `json:"duration"`
	Matches       int           `json:"matches"`
	RulesMatched  int           `json:"rules_matched"`
	Opportunities []Opportunity `json:"opportunities"`
}

// Engine evaluates matches against a fixed rule table.
type Engine struct {
	table         []rules.Rule
	matcher       *rules.Matcher
	oddsCfg       *odds.Config
	minConfidence int
	log           zerolog.Logger
	metrics       *metrics.EngineMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithMatcher overrides the default-tolerance matcher.
func WithMatcher(m *rules.Matcher) Option {
	return func(e *Engine) { e.matcher = m }
}

// WithOddsConfig overrides the bookmaker preference and market ids
// used for normalization.
func WithOddsConfig(cfg *odds.Config) Option {
	return func(e *Engine) { e.oddsCfg = cfg }
}

// WithMinConfidence sets the confidence floor below which a match
// yields no opportunity.
func WithMinConfidence(min int) Option {
	return func(e *Engine) { e.minConfidence = min }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// DefaultMinConfidence is the confidence floor used when none is
// configured.
const DefaultMinConfidence = 85

// New builds an engine over the given rule table.
func New(table []rules.Rule, opts ...Option) *Engine {
	e := &Engine{
		table:         table,
		matcher:       rules.NewMatcher(rules.DefaultTolerance),
		minConfidence: DefaultMinConfidence,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateMatch runs one match through the pipeline. The opportunity
// is nil when no rule matched or the best candidate falls below the
// confidence floor; the matched slice is returned either way.
func (e *Engine) EvaluateMatch(m Match) (*Opportunity, []rules.Matched) {
	start := time.Now()
	record := odds.Normalize(m.Bookmakers, e.oddsCfg)
	matched := e.matcher.Match(record, e.table)
	if e.metrics != nil {
		e.metrics.RecordEvaluation(len(matched), time.Since(start).Seconds())
	}
	if len(matched) == 0 {
		return nil, matched
	}

	candidates := e.rank(matched)
	best := candidates[0]
	if best.Confidence < e.minConfidence {
		if e.metrics != nil {
			e.metrics.RecordOpportunity("below_threshold")
		}
		e.log.Debug().
			Str("match_id", m.ID).
			Str("bet", best.Bet).
			Int("confidence", best.Confidence).
			Int("min", e.minConfidence).
			Msg("best candidate below confidence floor")
		return nil, matched
	}

	refs := make([]RuleRef, 0, len(matched))
	for _, mr := range matched {
		refs = append(refs, RuleRef{RuleID: mr.RuleID, RuleName: mr.Name})
	}

	opp := &Opportunity{
		MatchID:      m.ID,
		HomeTeam:     m.HomeTeam,
		AwayTeam:     m.AwayTeam,
		League:       m.League,
		KickOff:      m.KickOff,
		Prediction:   best.Bet,
		Confidence:   best.Confidence,
		Alternatives: candidates[1:],
		MatchedRules: refs,
		Canonical:    record,
	}
	if e.metrics != nil {
		e.metrics.RecordOpportunity("found")
	}
	e.log.Info().
		Str("match_id", m.ID).
		Str("bet", best.Bet).
		Int("confidence", best.Confidence).
		Int("rules", len(matched)).
		Msg("opportunity found")
	return opp, matched
}

// rank expands every matched rule into its predictions with derived
// confidence, sorted best first. matched is already ordered by
// confidence_base so the stable expansion keeps rule priority on ties.
func (e *Engine) rank(matched []rules.Matched) []Candidate {
	var out []Candidate
	for _, mr := range matched {
		for _, pred := range mr.Predictions {
			out = append(out, Candidate{
				Bet:        pred,
				Confidence: Confidence(mr, pred),
				RuleID:     mr.RuleID,
				RuleName:   mr.Name,
			})
		}
	}
	sortCandidates(out)
	return out
}

// Run evaluates a batch of matches and produces a run report. ctx
// cancellation stops the batch early; the report covers what was
// processed.
func (e *Engine) Run(ctx context.Context, matches []Match) RunReport {
	report := RunReport{
		RunID:   uuid.New().String(),
		Started: time.Now(),
	}
	e.log.Info().Str("run_id", report.RunID).Int("matches", len(matches)).Msg("run started")

	for _, m := range matches {
		if ctx.Err() != nil {
			e.log.Warn().Str("run_id", report.RunID).Msg("run cancelled")
			break
		}
		opp, matched := e.EvaluateMatch(m)
		report.Matches++
		report.RulesMatched += len(matched)
		if opp != nil {
			report.Opportunities = append(report.Opportunities, *opp)
		}
	}

	report.Duration = time.Since(report.Started)
	e.log.Info().
		Str("run_id", report.RunID).
		Int("matches", report.Matches).
		Int("opportunities", len(report.Opportunities)).
		Dur("duration", report.Duration).
		Msg("run finished")
	return report
}
