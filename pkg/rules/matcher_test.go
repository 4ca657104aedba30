package rules

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/firsatradar/engine/pkg/odds"
)

// record builds a canonical odds record through the normalizer, the
// only way one is constructed in production.
func record(t *testing.T, values map[string]string) odds.Canonical {
	t.Helper()

	wire := map[string]json.RawMessage{}
	for _, k := range odds.Keys() {
		wire[string(k)] = json.RawMessage("null")
	}
	for k, v := range values {
		wire[k] = json.RawMessage(v)
	}
	data, err := json.Marshal(wire)
	if err != nil {
		t.Fatal(err)
	}

	var c odds.Canonical
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatal(err)
	}
	return c
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func activeRule(id int, confidence int) Rule {
	return Rule{
		ID:             id,
		Name:           "test rule",
		PrimaryOdds:    map[odds.Key]decimal.Decimal{odds.KeyGoals45: dec("2.50")},
		Predictions:    []string{"İY 0.5 ÜST"},
		ConfidenceBase: confidence,
		Importance:     "normal",
		Active:         true,
	}
}

func TestToleranceBoundaryInclusive(t *testing.T) {
	m := NewMatcher(decimal.Decimal{})
	rule := activeRule(1, 90)

	// diff = 0.04 exactly: inside the window.
	got := m.Match(record(t, map[string]string{"4-5": "2.54"}), []Rule{rule})
	if len(got) != 1 {
		t.Fatalf("diff 0.04 should match, got %d results", len(got))
	}
	// Quality at the edge of the window: 100 - (0.04/0.04)*50 = 50.
	if got[0].MatchQuality != 50 {
		t.Errorf("edge quality = %d, want 50", got[0].MatchQuality)
	}

	// diff = 0.05: outside.
	got = m.Match(record(t, map[string]string{"4-5": "2.55"}), []Rule{rule})
	if len(got) != 0 {
		t.Fatalf("diff 0.05 should not match, got %d results", len(got))
	}

	// Exact match: full quality.
	got = m.Match(record(t, map[string]string{"4-5": "2.50"}), []Rule{rule})
	if len(got) != 1 || got[0].MatchQuality != 100 {
		t.Fatalf("exact match quality = %+v, want one result at 100", got)
	}
}

func TestNoPrimaryOddsShortCircuits(t *testing.T) {
	m := NewMatcher(decimal.Decimal{})
	got := m.Match(record(t, map[string]string{"2,5 Ü": "1.45"}), []Rule{activeRule(1, 90)})
	if got == nil {
		t.Fatal("want empty non-nil slice")
	}
	if len(got) != 0 {
		t.Fatalf("matched %d rules without primary odds", len(got))
	}
}

func TestSecondaryAllOrNothingAndWorstKeyDominates(t *testing.T) {
	m := NewMatcher(decimal.Decimal{})

	rule := activeRule(1, 90)
	rule.SecondaryOdds = map[odds.Key]decimal.Decimal{
		odds.KeyOver25:  dec("1.45"), // diff 0.00 -> quality 100
		odds.KeyUnder35: dec("1.40"), // diff 0.04 -> quality 50
	}

	rec := record(t, map[string]string{"4-5": "2.50", "2,5 Ü": "1.45", "3,5 A": "1.44"})
	got := m.Match(rec, []Rule{rule})
	if len(got) != 1 {
		t.Fatalf("want 1 match, got %d", len(got))
	}
	// primary quality 100, worst secondary 50 -> round((100+50)/2) = 75.
	if got[0].MatchQuality != 75 {
		t.Errorf("quality = %d, want 75", got[0].MatchQuality)
	}

	// One failing secondary key rejects the whole rule.
	rec = record(t, map[string]string{"4-5": "2.50", "2,5 Ü": "1.45", "3,5 A": "1.50"})
	if got := m.Match(rec, []Rule{rule}); len(got) != 0 {
		t.Fatalf("rule matched despite failing secondary key")
	}

	// A missing secondary value also rejects.
	rec = record(t, map[string]string{"4-5": "2.50", "2,5 Ü": "1.45"})
	if got := m.Match(rec, []Rule{rule}); len(got) != 0 {
		t.Fatalf("rule matched despite absent secondary value")
	}
}

func TestExclusionVeto(t *testing.T) {
	m := NewMatcher(decimal.Decimal{})

	rule := activeRule(9, 88)
	rule.ExcludeOdds = map[odds.Key]decimal.Decimal{odds.KeyBTTS: dec("1.50")}

	// BTTS inside the exclusion window: veto despite primary matching.
	rec := record(t, map[string]string{"4-5": "2.50", "VAR": "1.52"})
	if got := m.Match(rec, []Rule{rule}); len(got) != 0 {
		t.Fatal("rule matched despite exclusion hit")
	}

	// BTTS outside the window: rule stands.
	rec = record(t, map[string]string{"4-5": "2.50", "VAR": "1.60"})
	if got := m.Match(rec, []Rule{rule}); len(got) != 1 {
		t.Fatal("rule rejected although exclusion did not hit")
	}

	// Absent exclusion value never vetoes.
	rec = record(t, map[string]string{"4-5": "2.50"})
	if got := m.Match(rec, []Rule{rule}); len(got) != 1 {
		t.Fatal("rule rejected although exclusion value absent")
	}
}

func TestRankingConfidenceDominatesQuality(t *testing.T) {
	m := NewMatcher(decimal.Decimal{})

	strong := activeRule(1, 90)
	strong.PrimaryOdds = map[odds.Key]decimal.Decimal{odds.KeyGoals45: dec("2.53")} // poorer quality

	weak := activeRule(2, 88)
	weak.PrimaryOdds = map[odds.Key]decimal.Decimal{odds.KeyGoals45: dec("2.50")} // perfect quality

	got := m.Match(record(t, map[string]string{"4-5": "2.50"}), []Rule{weak, strong})
	if len(got) != 2 {
		t.Fatalf("want 2 matches, got %d", len(got))
	}
	if got[0].RuleID != 1 {
		t.Errorf("confidence 90 must rank above 88 regardless of quality, got rule %d first", got[0].RuleID)
	}

	// Equal confidence: quality breaks the tie.
	strong.ConfidenceBase = 88
	got = m.Match(record(t, map[string]string{"4-5": "2.50"}), []Rule{strong, weak})
	if got[0].RuleID != 2 {
		t.Errorf("equal confidence: higher quality must rank first, got rule %d", got[0].RuleID)
	}
}

func TestInactiveAndMalformedRulesSkipped(t *testing.T) {
	m := NewMatcher(decimal.Decimal{})

	inactive := activeRule(1, 90)
	inactive.Active = false

	malformed := activeRule(2, 90)
	malformed.PrimaryOdds = nil

	twoPrimaries := activeRule(3, 90)
	twoPrimaries.PrimaryOdds = map[odds.Key]decimal.Decimal{
		odds.KeyGoals45: dec("2.50"),
		odds.KeyGoals23: dec("1.90"),
	}

	ok := activeRule(4, 85)

	got := m.Match(record(t, map[string]string{"4-5": "2.50", "2-3": "1.90"}),
		[]Rule{inactive, malformed, twoPrimaries, ok})
	if len(got) != 1 || got[0].RuleID != 4 {
		t.Fatalf("want only rule 4 matched, got %+v", got)
	}
}

func TestRuleJSONShape(t *testing.T) {
	data := []byte(`{
		"rule_id": 9,
		"name": "4-5 gol 3.15 (KG VAR 1.50 HARİÇ)",
		"primary_odds": {"4-5": 3.15},
		"exclude_odds": {"VAR": 1.50},
		"predictions": ["İY 0.5 ÜST", "MS 2.5 ÜST", "MS 3.5 ÜST"],
		"confidence_base": 88,
		"importance": "önemli",
		"is_active": true
	}`)

	var rule Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		t.Fatalf("unmarshal rule: %v", err)
	}
	if rule.ID != 9 || !rule.Active || len(rule.Predictions) != 3 {
		t.Errorf("rule decoded incorrectly: %+v", rule)
	}
	if !rule.PrimaryOdds[odds.KeyGoals45].Equal(dec("3.15")) {
		t.Errorf("primary target = %s, want 3.15", rule.PrimaryOdds[odds.KeyGoals45])
	}
	if !rule.ExcludeOdds[odds.KeyBTTS].Equal(dec("1.5")) {
		t.Errorf("exclude target = %s, want 1.5", rule.ExcludeOdds[odds.KeyBTTS])
	}
}
