package engine

import (
	"sort"

	"github.com/firsatradar/engine/pkg/prediction"
	"github.com/firsatradar/engine/pkg/rules"
)

// Confidence derives the confidence score for one prediction of a
// matched rule: the rule's base, an importance bonus, a bonus for
// rules with few predictions, and one extra point for the rule's first
// prediction. Capped at 100.
func Confidence(mr rules.Matched, pred string) int {
	score := mr.ConfidenceBase
	score += importanceBonus(mr.Importance)

	// A rule with few predictions commits harder to each of them.
	switch n := len(mr.Predictions); {
	case n <= 2:
		score += 2
	case n <= 4:
		score += 1
	}

	if len(mr.Predictions) > 0 && pred == mr.Predictions[0] {
		score++
	}

	if score > 100 {
		score = 100
	}
	return score
}

// importanceBonus maps the rule's importance tag to its bonus. Tags
// are folded before comparison so "çok_önemli" and "COK_ONEMLI" score
// the same; unknown tags score zero.
func importanceBonus(importance string) int {
	switch prediction.Fold(importance) {
	case "COK_ONEMLI":
		return 3
	case "ONEMLI":
		return 2
	case "OZEL":
		return 1
	default:
		return 0
	}
}

func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].Confidence > cs[j].Confidence
	})
}
