// Package rules matches canonical odds records against a table of
// golden rules: authored heuristics that map narrow bands of pre-match
// odds to expected outcomes with a base confidence.
package rules

import (
	"github.com/shopspring/decimal"

	"github.com/firsatradar/engine/pkg/odds"
)

// Rule is one golden rule. Rules are authored and maintained outside
// the engine; the matcher never mutates them.
type Rule struct {
	ID   int    `json:"rule_id"`
	Name string `json:"name"`

	// PrimaryOdds is the mandatory criterion: a single market key with
	// its target value. Rules without exactly one primary entry are
	// skipped as malformed.
	PrimaryOdds map[odds.Key]decimal.Decimal `json:"primary_odds"`

	// SecondaryOdds must all match (all-or-nothing) when present.
	SecondaryOdds map[odds.Key]decimal.Decimal `json:"secondary_odds,omitempty"`

	// ExcludeOdds veto the rule when any of them matches.
	ExcludeOdds map[odds.Key]decimal.Decimal `json:"exclude_odds,omitempty"`

	Predictions    []string `json:"predictions"`
	ConfidenceBase int      `json:"confidence_base"`
	Importance     string   `json:"importance"`
	Active         bool     `json:"is_active"`
}

// Matched is the matcher's per-rule output.
type Matched struct {
	RuleID         int      `json:"rule_id"`
	Name           string   `json:"name"`
	Predictions    []string `json:"predictions"`
	ConfidenceBase int      `json:"confidence_base"`
	Importance     string   `json:"importance"`

	// MatchQuality is 0-100: how numerically close the canonical odds
	// were to the rule's targets.
	MatchQuality int `json:"matchQuality"`
}
