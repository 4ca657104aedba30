package rules

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/firsatradar/engine/pkg/odds"
)

// DefaultTolerance is the matching window: a canonical value matches a
// target when their absolute difference is at most this, inclusive.
var DefaultTolerance = decimal.NewFromFloat(0.04)

var (
	fifty   = decimal.NewFromInt(50)
	hundred = decimal.NewFromInt(100)
	twoDec  = decimal.NewFromInt(2)
)

// Matcher compares canonical odds records against a rule table.
type Matcher struct {
	tolerance decimal.Decimal
}

// NewMatcher creates a matcher with the given tolerance; a nil-like
// zero tolerance falls back to DefaultTolerance.
func NewMatcher(tolerance decimal.Decimal) *Matcher {
	if tolerance.IsZero() {
		tolerance = DefaultTolerance
	}
	return &Matcher{tolerance: tolerance}
}

// Match evaluates every active rule against the canonical record and
// returns the matches ordered by confidence (descending), with match
// quality as the tie-break. With no usable primary odds it returns an
// empty list immediately: no rule can match without them. Malformed
// rules are skipped, never fatal.
func (m *Matcher) Match(record odds.Canonical, table []Rule) []Matched {
	matched := []Matched{}
	if !record.HasPrimary() {
		return matched
	}

	for _, rule := range table {
		if out, ok := m.matchRule(record, rule); ok {
			matched = append(matched, out)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].ConfidenceBase != matched[j].ConfidenceBase {
			return matched[i].ConfidenceBase > matched[j].ConfidenceBase
		}
		return matched[i].MatchQuality > matched[j].MatchQuality
	})
	return matched
}

func (m *Matcher) matchRule(record odds.Canonical, rule Rule) (Matched, bool) {
	if !rule.Active {
		return Matched{}, false
	}
	if len(rule.PrimaryOdds) != 1 {
		// Missing or ambiguous primary criterion: malformed, skip.
		return Matched{}, false
	}

	var primaryQuality decimal.Decimal
	for key, target := range rule.PrimaryOdds {
		value, ok := record.Value(key)
		if !ok {
			return Matched{}, false
		}
		diff := value.Sub(target).Abs()
		if diff.GreaterThan(m.tolerance) {
			return Matched{}, false
		}
		primaryQuality = m.quality(diff)
	}

	// Secondary criteria: all-or-nothing, worst key dominates.
	worstSecondary := decimal.Decimal{}
	haveSecondary := false
	for key, target := range rule.SecondaryOdds {
		value, ok := record.Value(key)
		if !ok {
			return Matched{}, false
		}
		diff := value.Sub(target).Abs()
		if diff.GreaterThan(m.tolerance) {
			return Matched{}, false
		}
		q := m.quality(diff)
		if !haveSecondary || q.LessThan(worstSecondary) {
			worstSecondary = q
			haveSecondary = true
		}
	}

	// Exclusion criteria: a canonical value inside the tolerance window
	// of an exclusion target vetoes the whole rule. Absent values never
	// veto.
	for key, target := range rule.ExcludeOdds {
		value, ok := record.Value(key)
		if !ok {
			continue
		}
		if value.Sub(target).Abs().LessThanOrEqual(m.tolerance) {
			return Matched{}, false
		}
	}

	overall := primaryQuality
	if haveSecondary {
		overall = primaryQuality.Add(worstSecondary).Div(twoDec).Round(0)
	}

	return Matched{
		RuleID:         rule.ID,
		Name:           rule.Name,
		Predictions:    rule.Predictions,
		ConfidenceBase: rule.ConfidenceBase,
		Importance:     rule.Importance,
		MatchQuality:   int(overall.IntPart()),
	}, true
}

// quality maps a within-tolerance difference to a 50-100 score:
// round(100 - (diff/tolerance)*50).
func (m *Matcher) quality(diff decimal.Decimal) decimal.Decimal {
	return hundred.Sub(diff.Div(m.tolerance).Mul(fifty)).Round(0)
}
