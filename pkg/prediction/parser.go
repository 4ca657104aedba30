// Package prediction implements the shorthand prediction grammar
// shared by the result evaluator and the live alert calculator. Both
// consume the same parsed form, so the two can never drift apart on
// what a prediction string means.
package prediction

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Scope says which portion of the match a prediction is about.
type Scope int

const (
	FullTime Scope = iota
	HalfTime
)

func (s Scope) String() string {
	if s == HalfTime {
		return "halftime"
	}
	return "fulltime"
}

// Side says whose goals a threshold prediction counts.
type Side int

const (
	TotalGoals Side = iota
	HomeGoals
	AwayGoals
)

func (s Side) String() string {
	switch s {
	case HomeGoals:
		return "home"
	case AwayGoals:
		return "away"
	default:
		return "total"
	}
}

// Kind is the comparator family of a prediction.
type Kind int

const (
	// Over and Under compare the relevant goal count against Threshold
	// with strict > / <.
	Over Kind = iota
	Under
	// MatchResult is the 1/X/2 exact-outcome family.
	MatchResult
	// BothScore is the KG VAR / KG YOK family.
	BothScore
)

func (k Kind) String() string {
	switch k {
	case Over:
		return "over"
	case Under:
		return "under"
	case MatchResult:
		return "match_result"
	default:
		return "both_teams_score"
	}
}

// Result is the 1X2 outcome of a MatchResult prediction.
type Result int

const (
	HomeWin Result = iota
	Draw
	AwayWin
)

// Prediction is the tagged form of one shorthand string.
type Prediction struct {
	Raw   string
	Scope Scope
	Side  Side
	Kind  Kind

	// Threshold is set for Over/Under kinds.
	Threshold decimal.Decimal

	// Result is set for MatchResult kind.
	Result Result

	// BothYes is true for KG VAR, false for KG YOK.
	BothYes bool
}

// Parse recognizes one shorthand prediction string. The boolean is
// false for anything outside the grammar; callers must treat that as
// "undetermined", never as an error.
func Parse(raw string) (Prediction, bool) {
	p := Prediction{Raw: raw, Scope: FullTime, Side: TotalGoals}

	tokens := strings.Fields(Fold(raw))
	if len(tokens) == 0 {
		return Prediction{}, false
	}

	// Scope prefix: IY marks half time, MS full time (also the default).
	// "IY MS 1" keeps the half-time scope with an MS result marker.
	iySeen, msSeen := false, false
	if tokens[0] == "IY" {
		p.Scope = HalfTime
		iySeen = true
		tokens = tokens[1:]
	}
	if len(tokens) > 0 && tokens[0] == "MS" {
		msSeen = true
		tokens = tokens[1:]
	}

	switch {
	case len(tokens) == 2 && tokens[0] == "KG":
		p.Kind = BothScore
		switch tokens[1] {
		case "VAR":
			p.BothYes = true
		case "YOK":
			p.BothYes = false
		default:
			return Prediction{}, false
		}
		// The half-time variant of KG YOK is not part of the grammar.
		if iySeen && !p.BothYes {
			return Prediction{}, false
		}
		return p, true

	case len(tokens) == 1 && msSeen && isResultToken(tokens[0]):
		// 1/X/2 needs the MS (or IY MS) marker; a bare "1" is not a
		// prediction string.
		p.Kind = MatchResult
		switch tokens[0] {
		case "1":
			p.Result = HomeWin
		case "X":
			p.Result = Draw
		case "2":
			p.Result = AwayWin
		}
		return p, true
	}

	// Threshold forms: [EV|DEP] <N> UST|ALT
	if len(tokens) > 0 {
		switch tokens[0] {
		case "EV":
			p.Side = HomeGoals
			tokens = tokens[1:]
		case "DEP":
			p.Side = AwayGoals
			tokens = tokens[1:]
		}
	}
	if len(tokens) != 2 {
		return Prediction{}, false
	}

	threshold, err := decimal.NewFromString(tokens[0])
	if err != nil || threshold.IsNegative() {
		return Prediction{}, false
	}
	p.Threshold = threshold

	switch tokens[1] {
	case "UST":
		p.Kind = Over
	case "ALT":
		p.Kind = Under
	default:
		return Prediction{}, false
	}
	return p, true
}

func isResultToken(tok string) bool {
	return tok == "1" || tok == "2" || tok == "X"
}
