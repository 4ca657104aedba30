// Package sandbox replays historical matches through the rule matcher
// and result evaluator to grade a rule table before it goes live. The
// replay is strictly read-only: rules are never mutated, nothing is
// persisted.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/firsatradar/engine/pkg/odds"
	"github.com/firsatradar/engine/pkg/prediction"
	"github.com/firsatradar/engine/pkg/rules"
)

// HistoricalMatch is one finished match with its odds payload and
// known scores.
type HistoricalMatch struct {
	ID         string            `json:"id"`
	HomeTeam   string            `json:"home_team"`
	AwayTeam   string            `json:"away_team"`
	League     string            `json:"league"`
	PlayedAt   time.Time         `json:"played_at"`
	Bookmakers []odds.Bookmaker  `json:"bookmakers"`
	FullTime   prediction.Score  `json:"full_time"`
	HalfTime   *prediction.Score `json:"half_time,omitempty"`
}

// RuleStats are the replay results for one rule.
type RuleStats struct {
	RuleID       int     `json:"rule_id"`
	RuleName     string  `json:"rule_name"`
	Matches      int     `json:"matches"`
	Predictions  int     `json:"predictions"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Undetermined int     `json:"undetermined"`
	WinRate      float64 `json:"win_rate"`
}

// Recommendation is the sandbox verdict on a rule.
type Recommendation string

const (
	RecommendPromote      Recommendation = "promote"
	RecommendReject       Recommendation = "reject"
	RecommendInconclusive Recommendation = "inconclusive"
)

// Verdict pairs a rule's stats with the sandbox recommendation.
type Verdict struct {
	RuleStats
	Recommendation Recommendation `json:"recommendation"`
	Reason         string         `json:"reason"`
}

// Report is the outcome of one full replay.
type Report struct {
	RunID        string    `json:"run_id"`
	Started      time.Time `json:"started"`
	Matches      int       `json:"matches"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Undetermined int       `json:"undetermined"`
	WinRate      float64   `json:"win_rate"`
	Verdicts     []Verdict `json:"verdicts"`
}

// Config tunes the replay thresholds.
type Config struct {
	// MinSampleSize is the decided-prediction count below which a rule
	// gets no verdict beyond inconclusive.
	MinSampleSize int

	// PromoteWinRate is the win-rate floor (percent, decided
	// predictions only) for a promote recommendation.
	PromoteWinRate float64
}

// DefaultConfig returns the production replay thresholds.
func DefaultConfig() *Config {
	return &Config{
		MinSampleSize:  30,
		PromoteWinRate: 75,
	}
}

// Evaluator replays historical matches against a rule table.
type Evaluator struct {
	cfg     *Config
	matcher *rules.Matcher
	oddsCfg *odds.Config
}

// New builds an evaluator; nil config means defaults.
func New(cfg *Config) *Evaluator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Evaluator{
		cfg:     cfg,
		matcher: rules.NewMatcher(rules.DefaultTolerance),
	}
}

// SetOddsConfig overrides the normalization config used in the replay.
func (e *Evaluator) SetOddsConfig(cfg *odds.Config) { e.oddsCfg = cfg }

// LoadMatches reads a historical match set from a JSON file.
func LoadMatches(filename string) ([]HistoricalMatch, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var matches []HistoricalMatch
	if err := json.NewDecoder(file).Decode(&matches); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return matches, nil
}

// Run replays every match through the matcher, evaluates each matched
// rule's predictions against the known scores, and grades the rules.
func (e *Evaluator) Run(ctx context.Context, matches []HistoricalMatch, table []rules.Rule) (*Report, error) {
	report := &Report{
		RunID:   uuid.New().String(),
		Started: time.Now(),
	}
	perRule := make(map[int]*RuleStats)

	for _, m := range matches {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record := odds.Normalize(m.Bookmakers, e.oddsCfg)
		matched := e.matcher.Match(record, table)
		report.Matches++

		for _, mr := range matched {
			stats, ok := perRule[mr.RuleID]
			if !ok {
				stats = &RuleStats{RuleID: mr.RuleID, RuleName: mr.Name}
				perRule[mr.RuleID] = stats
			}
			stats.Matches++

			for _, pred := range mr.Predictions {
				stats.Predictions++
				switch prediction.Evaluate(pred, m.FullTime, m.HalfTime) {
				case prediction.Won:
					stats.Wins++
					report.Wins++
				case prediction.Lost:
					stats.Losses++
					report.Losses++
				default:
					stats.Undetermined++
					report.Undetermined++
				}
			}
		}
	}

	report.WinRate = winRate(report.Wins, report.Losses)
	for _, stats := range perRule {
		stats.WinRate = winRate(stats.Wins, stats.Losses)
		report.Verdicts = append(report.Verdicts, e.verdict(*stats))
	}
	sort.Slice(report.Verdicts, func(i, j int) bool {
		if report.Verdicts[i].WinRate != report.Verdicts[j].WinRate {
			return report.Verdicts[i].WinRate > report.Verdicts[j].WinRate
		}
		return report.Verdicts[i].RuleID < report.Verdicts[j].RuleID
	})
	return report, nil
}

// winRate is the percentage of wins among decided predictions.
// Undetermined outcomes carry no information and are left out.
func winRate(wins, losses int) float64 {
	decided := wins + losses
	if decided == 0 {
		return 0
	}
	return float64(wins) / float64(decided) * 100
}

func (e *Evaluator) verdict(stats RuleStats) Verdict {
	v := Verdict{RuleStats: stats}
	decided := stats.Wins + stats.Losses

	switch {
	case decided < e.cfg.MinSampleSize:
		v.Recommendation = RecommendInconclusive
		v.Reason = fmt.Sprintf("only %d decided predictions, need %d+", decided, e.cfg.MinSampleSize)
	case stats.WinRate >= e.cfg.PromoteWinRate:
		v.Recommendation = RecommendPromote
		v.Reason = fmt.Sprintf("%.1f%% win rate over %d decided predictions", stats.WinRate, decided)
	default:
		v.Recommendation = RecommendReject
		v.Reason = fmt.Sprintf("%.1f%% win rate below the %.0f%% floor", stats.WinRate, e.cfg.PromoteWinRate)
	}
	return v
}
