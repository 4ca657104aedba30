package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/firsatradar/engine/pkg/odds"
	"github.com/firsatradar/engine/pkg/rules"
)

func testRule() rules.Rule {
	return rules.Rule{
		ID:   1,
		Name: "4-5 gol bandı",
		PrimaryOdds: map[odds.Key]decimal.Decimal{
			odds.KeyGoals45: decimal.RequireFromString("2.50"),
		},
		Predictions:    []string{"MS 2.5 ÜST", "KG VAR"},
		ConfidenceBase: 85,
		Importance:     "önemli",
		Active:         true,
	}
}

// exact-goals quotes of 2.5 on both legs give a harmonic mean of
// exactly 2.5, matching the test rule's primary criterion spot on.
func testMatch() Match {
	return Match{
		ID:       "m1",
		HomeTeam: "Galatasaray",
		AwayTeam: "Fenerbahçe",
		League:   "Süper Lig",
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
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name       string
		base       int
		importance string
		preds      []string
		pick       string
		want       int
	}{
		{"first of two, onemli", 85, "önemli", []string{"A", "B"}, "A", 90},
		{"second of two, onemli", 85, "önemli", []string{"A", "B"}, "B", 89},
		{"cok onemli", 85, "çok_önemli", []string{"A", "B"}, "A", 91},
		{"ozel", 85, "özel", []string{"A", "B"}, "A", 89},
		{"folded importance", 85, "COK_ONEMLI", []string{"A", "B"}, "A", 91},
		{"unknown importance", 85, "normal", []string{"A", "B"}, "A", 88},
		{"three predictions", 85, "normal", []string{"A", "B", "C"}, "A", 87},
		{"five predictions no count bonus", 85, "normal", []string{"A", "B", "C", "D", "E"}, "A", 86},
		{"capped at 100", 98, "çok_önemli", []string{"A"}, "A", 100},
	}
	for _, tt := range tests {
		mr := rules.Matched{
			RuleID:         1,
			Predictions:    tt.preds,
			ConfidenceBase: tt.base,
			Importance:     tt.importance,
		}
		if got := Confidence(mr, tt.pick); got != tt.want {
			t.Errorf("%s: Confidence = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestEvaluateMatchFindsOpportunity(t *testing.T) {
	e := New([]rules.Rule{testRule()})

	opp, matched := e.EvaluateMatch(testMatch())
	if len(matched) != 1 {
		t.Fatalf("matched %d rules, want 1", len(matched))
	}
	if opp == nil {
		t.Fatal("want an opportunity")
	}
	if opp.Prediction != "MS 2.5 ÜST" || opp.Confidence != 90 {
		t.Errorf("best = %q @ %d, want MS 2.5 ÜST @ 90", opp.Prediction, opp.Confidence)
	}
	if len(opp.Alternatives) != 1 || opp.Alternatives[0].Bet != "KG VAR" || opp.Alternatives[0].Confidence != 89 {
		t.Errorf("alternatives = %+v, want single KG VAR @ 89", opp.Alternatives)
	}
	if len(opp.MatchedRules) != 1 || opp.MatchedRules[0].RuleID != 1 {
		t.Errorf("matched rules = %+v", opp.MatchedRules)
	}
	if _, ok := opp.Canonical.Value(odds.KeyGoals45); !ok {
		t.Error("opportunity should carry the canonical record")
	}
}

func TestEvaluateMatchBelowConfidenceFloor(t *testing.T) {
	e := New([]rules.Rule{testRule()}, WithMinConfidence(95))

	opp, matched := e.EvaluateMatch(testMatch())
	if opp != nil {
		t.Fatalf("confidence 90 under floor 95 still produced %+v", opp)
	}
	if len(matched) != 1 {
		t.Errorf("matched rules must still be reported, got %d", len(matched))
	}
}

func TestEvaluateMatchWithoutPrimaryOdds(t *testing.T) {
	e := New([]rules.Rule{testRule()})

	opp, matched := e.EvaluateMatch(Match{ID: "empty"})
	if opp != nil {
		t.Fatalf("no odds still produced %+v", opp)
	}
	if matched == nil || len(matched) != 0 {
		t.Errorf("matched = %v, want empty non-nil", matched)
	}
}

func TestRunReport(t *testing.T) {
	e := New([]rules.Rule{testRule()})

	report := e.Run(context.Background(), []Match{testMatch(), {ID: "empty"}})
	if report.RunID == "" {
		t.Error("run id must be set")
	}
	if report.Matches != 2 || report.RulesMatched != 1 {
		t.Errorf("matches=%d rulesMatched=%d, want 2 and 1", report.Matches, report.RulesMatched)
	}
	if len(report.Opportunities) != 1 || report.Opportunities[0].MatchID != "m1" {
		t.Errorf("opportunities = %+v, want one for m1", report.Opportunities)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	e := New([]rules.Rule{testRule()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := e.Run(ctx, []Match{testMatch(), testMatch()})
	if report.Matches != 0 {
		t.Errorf("cancelled run processed %d matches", report.Matches)
	}
}
