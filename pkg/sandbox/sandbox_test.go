package sandbox

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/firsatradar/engine/pkg/odds"
	"github.com/firsatradar/engine/pkg/prediction"
	"github.com/firsatradar/engine/pkg/rules"
)

func replayRule() rules.Rule {
	return rules.Rule{
		ID:   1,
		Name: "4-5 gol bandı",
		PrimaryOdds: map[odds.Key]decimal.Decimal{
			odds.KeyGoals45: decimal.RequireFromString("2.50"),
		},
		Predictions:    []string{"MS 2.5 ÜST"},
		ConfidenceBase: 88,
		Active:         true,
	}
}

func replayMatch(id string, home, away int) HistoricalMatch {
	return HistoricalMatch{
		ID: id,
		Bookmakers: []odds.Bookmaker{
			{
				ID: 8,
				Bets: []odds.Market{
					{
						ID: 38,
						Values: []odds.OutcomeValue{
							{Value: "4", Odd: "2.5"},
							{Value: "5", Odd: "2.5"},
						},
					},
				},
			},
		},
		FullTime: prediction.Score{Home: home, Away: away},
	}
}

func TestRunCountsOutcomes(t *testing.T) {
	e := New(nil)
	matches := []HistoricalMatch{
		replayMatch("m1", 3, 1), // 4 goals, over 2.5 won
		replayMatch("m2", 1, 0), // lost
		replayMatch("m3", 2, 2), // won
	}

	report, err := e.Run(context.Background(), matches, []rules.Rule{replayRule()})
	if err != nil {
		t.Fatal(err)
	}
	if report.RunID == "" {
		t.Error("run id must be set")
	}
	if report.Matches != 3 || report.Wins != 2 || report.Losses != 1 || report.Undetermined != 0 {
		t.Errorf("report = %+v, want 3 matches, 2 wins, 1 loss", report)
	}
	if report.WinRate < 66.6 || report.WinRate > 66.7 {
		t.Errorf("win rate = %.2f, want ~66.67", report.WinRate)
	}
}

func TestUndeterminedExcludedFromWinRate(t *testing.T) {
	rule := replayRule()
	rule.Predictions = []string{"İY 0.5 ÜST"} // needs a half-time score

	e := New(nil)
	matches := []HistoricalMatch{
		replayMatch("m1", 2, 1), // no half-time score recorded
		func() HistoricalMatch {
			m := replayMatch("m2", 2, 1)
			m.HalfTime = &prediction.Score{Home: 1, Away: 0}
			return m
		}(),
	}

	report, err := e.Run(context.Background(), matches, []rules.Rule{rule})
	if err != nil {
		t.Fatal(err)
	}
	if report.Wins != 1 || report.Undetermined != 1 {
		t.Errorf("report = %+v, want 1 win 1 undetermined", report)
	}
	if report.WinRate != 100 {
		t.Errorf("win rate = %.2f, undetermined must not dilute it", report.WinRate)
	}
}

func TestVerdictThresholds(t *testing.T) {
	e := New(&Config{MinSampleSize: 2, PromoteWinRate: 75})

	tests := []struct {
		name  string
		stats RuleStats
		want  Recommendation
	}{
		{"promote", RuleStats{Wins: 3, Losses: 1, WinRate: 75}, RecommendPromote},
		{"reject", RuleStats{Wins: 1, Losses: 3, WinRate: 25}, RecommendReject},
		{"inconclusive", RuleStats{Wins: 1, Losses: 0, WinRate: 100}, RecommendInconclusive},
		{"undetermined ignored", RuleStats{Wins: 1, Undetermined: 50, WinRate: 100}, RecommendInconclusive},
	}
	for _, tt := range tests {
		if v := e.verdict(tt.stats); v.Recommendation != tt.want {
			t.Errorf("%s: recommendation = %s, want %s (%s)", tt.name, v.Recommendation, tt.want, v.Reason)
		}
	}
}

func TestVerdictsSortedByWinRate(t *testing.T) {
	good := replayRule()
	bad := replayRule()
	bad.ID = 2
	bad.Name = "alt kuralı"
	bad.Predictions = []string{"MS 3.5 ÜST"}

	e := New(&Config{MinSampleSize: 1, PromoteWinRate: 75})
	matches := []HistoricalMatch{
		replayMatch("m1", 2, 1), // 3 goals: over 2.5 won, over 3.5 lost
		replayMatch("m2", 3, 1), // 4 goals: both won
	}

	report, err := e.Run(context.Background(), matches, []rules.Rule{bad, good})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Verdicts) != 2 {
		t.Fatalf("verdicts = %+v", report.Verdicts)
	}
	if report.Verdicts[0].RuleID != 1 || report.Verdicts[1].RuleID != 2 {
		t.Errorf("order = %d, %d, want rule 1 first", report.Verdicts[0].RuleID, report.Verdicts[1].RuleID)
	}
	if report.Verdicts[0].Recommendation != RecommendPromote {
		t.Errorf("r1 = %s, want promote", report.Verdicts[0].Recommendation)
	}
	if report.Verdicts[1].Recommendation != RecommendReject {
		t.Errorf("r2 = %s, want reject", report.Verdicts[1].Recommendation)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Run(ctx, []HistoricalMatch{replayMatch("m1", 1, 0)}, []rules.Rule{replayRule()})
	if err == nil {
		t.Fatal("cancelled replay must fail")
	}
}

func TestLoadMatches(t *testing.T) {
	matches := []HistoricalMatch{replayMatch("m1", 2, 0)}
	data, err := json.Marshal(matches)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "matches.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadMatches(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].ID != "m1" || loaded[0].FullTime.Home != 2 {
		t.Errorf("loaded = %+v", loaded)
	}

	if _, err := LoadMatches(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file must fail")
	}
}
