package prediction

import "github.com/shopspring/decimal"

// Score is a goal count pair.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Total returns home plus away goals.
func (s Score) Total() int { return s.Home + s.Away }

// Outcome is the ternary result of evaluating a prediction.
type Outcome int

const (
	// Undetermined covers unrecognized strings and half-time-scoped
	// predictions with no half-time score available.
	Undetermined Outcome = iota
	Won
	Lost
)

func (o Outcome) String() string {
	switch o {
	case Won:
		return "won"
	case Lost:
		return "lost"
	default:
		return "undetermined"
	}
}

// Evaluate checks a prediction string against the final score and the
// optional half-time score. Pure: the same inputs always yield the
// same outcome.
func Evaluate(raw string, fullTime Score, halfTime *Score) Outcome {
	p, ok := Parse(raw)
	if !ok {
		return Undetermined
	}
	return p.Evaluate(fullTime, halfTime)
}

// Evaluate checks a parsed prediction against the final score and the
// optional half-time score.
func (p Prediction) Evaluate(fullTime Score, halfTime *Score) Outcome {
	score := fullTime
	if p.Scope == HalfTime {
		if halfTime == nil {
			return Undetermined
		}
		score = *halfTime
	}

	switch p.Kind {
	case Over, Under:
		goals := decimal.NewFromInt(int64(p.relevantGoals(score)))
		// Strict comparison: "over 2.5" needs 3+, "over 2" needs 3 as well.
		if p.Kind == Over {
			return verdict(goals.GreaterThan(p.Threshold))
		}
		return verdict(goals.LessThan(p.Threshold))

	case MatchResult:
		switch p.Result {
		case HomeWin:
			return verdict(score.Home > score.Away)
		case Draw:
			return verdict(score.Home == score.Away)
		default:
			return verdict(score.Away > score.Home)
		}

	case BothScore:
		both := score.Home > 0 && score.Away > 0
		if p.BothYes {
			return verdict(both)
		}
		return verdict(!both)
	}
	return Undetermined
}

// relevantGoals picks the goal count a threshold prediction counts.
func (p Prediction) relevantGoals(score Score) int {
	switch p.Side {
	case HomeGoals:
		return score.Home
	case AwayGoals:
		return score.Away
	default:
		return score.Total()
	}
}

func verdict(won bool) Outcome {
	if won {
		return Won
	}
	return Lost
}
