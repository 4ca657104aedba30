// Package livealert estimates, on every live-score tick, how close a
// standing prediction is to resolving true or false.
package livealert

import (
	"fmt"

	"github.com/firsatradar/engine/pkg/prediction"
)

// Level is the urgency tier of an alert.
type Level string

const (
	LevelHot  Level = "hot"
	LevelWarm Level = "warm"
	LevelCold Level = "cold"
)

// State is the freshly computed alert for one (prediction, score,
// elapsed-time) triple. It is never persisted; every tick recomputes
// it from scratch.
type State struct {
	PredictionType    string           `json:"predictionType"`
	GoalsNeeded       int              `json:"goalsNeeded"`
	CurrentScore      prediction.Score `json:"currentScore"`
	TargetDescription string           `json:"targetDescription"`
	IsFirstHalf       bool             `json:"isFirstHalf"`
	MinutesElapsed    int              `json:"minutesElapsed"`
	AlertLevel        Level            `json:"alertLevel"`
	Message           string           `json:"message"`
	IsAlreadyHit      bool             `json:"isAlreadyHit"`
}

// Compute derives the alert state for one prediction given the current
// score and elapsed minutes. It returns nil when no meaningful alert
// exists: a nil current score, an unrecognized prediction, a half-time
// prediction after the first half, an under-threshold bet that is not
// yet one goal from busting, or a KG YOK bet that has not failed.
//
// KG YOK stays silent while still mathematically alive even when one
// team has already scored; the under-threshold "one goal from busting"
// rule deliberately does not apply to it. Product-confirmed behavior,
// do not harmonize the two.
func Compute(raw string, current *prediction.Score, elapsed int, halfTime *prediction.Score) *State {
	if current == nil {
		return nil
	}
	p, ok := prediction.Parse(raw)
	if !ok {
		return nil
	}

	// Half-time predictions are meaningless after the first half;
	// returning stale data would be worse than silence.
	if p.Scope == prediction.HalfTime && elapsed > 45 {
		return nil
	}

	st := &State{
		PredictionType: p.Kind.String(),
		CurrentScore:   *current,
		IsFirstHalf:    elapsed <= 45,
		MinutesElapsed: elapsed,
	}

	// While the first half is running the current score IS the relevant
	// half-time score; an explicitly recorded half-time score (at the
	// break) takes precedence.
	score := *current
	if p.Scope == prediction.HalfTime && halfTime != nil {
		score = *halfTime
	}

	switch p.Kind {
	case prediction.Over:
		return overState(st, p, score)
	case prediction.Under:
		return underState(st, p, score)
	case prediction.MatchResult:
		return resultState(st, p, score)
	default:
		return bothScoreState(st, p, score)
	}
}

// levelFor is the uniform urgency tiering: one goal out is hot, two is
// warm, anything further is cold.
func levelFor(needed int) Level {
	switch {
	case needed <= 1:
		return LevelHot
	case needed <= 2:
		return LevelWarm
	default:
		return LevelCold
	}
}

// winningGoals is the lowest goal count strictly greater than the
// threshold: 3 for both 2.5 and 2.
func winningGoals(p prediction.Prediction) int {
	return int(p.Threshold.Floor().IntPart()) + 1
}

// bustLine is the lowest goal count at which an under bet is lost:
// the result check uses strict <, so the threshold itself busts a
// whole-number line while a half line survives until the next integer.
// 3 for 2.5, but 2 for 2.
func bustLine(p prediction.Prediction) int {
	return int(p.Threshold.Ceil().IntPart())
}

func sideLabel(p prediction.Prediction) string {
	switch p.Side {
	case prediction.HomeGoals:
		return "home"
	case prediction.AwayGoals:
		return "away"
	default:
		return "total"
	}
}

func relevantGoals(p prediction.Prediction, s prediction.Score) int {
	switch p.Side {
	case prediction.HomeGoals:
		return s.Home
	case prediction.AwayGoals:
		return s.Away
	default:
		return s.Total()
	}
}

func overState(st *State, p prediction.Prediction, score prediction.Score) *State {
	target := winningGoals(p)
	needed := target - relevantGoals(p, score)
	st.TargetDescription = fmt.Sprintf("%d+ %s goals", target, sideLabel(p))

	if needed <= 0 {
		st.GoalsNeeded = 0
		st.IsAlreadyHit = true
		st.AlertLevel = LevelHot
		st.Message = fmt.Sprintf("%s already hit", p.Raw)
		return st
	}
	st.GoalsNeeded = needed
	st.AlertLevel = levelFor(needed)
	st.Message = fmt.Sprintf("%s needs %d more", p.Raw, needed)
	return st
}

// underState implements the deliberate under-bet policy: silent until
// the match is exactly one goal from busting the threshold, an
// already-failed state at or past it.
func underState(st *State, p prediction.Prediction, score prediction.Score) *State {
	bustAt := bustLine(p)
	goals := relevantGoals(p, score)
	st.TargetDescription = fmt.Sprintf("under %s %s goals", p.Threshold, sideLabel(p))

	switch {
	case goals >= bustAt:
		st.GoalsNeeded = 0
		st.AlertLevel = LevelHot
		st.Message = fmt.Sprintf("%s busted at %d goals", p.Raw, goals)
		return st
	case goals == bustAt-1:
		st.GoalsNeeded = 1
		st.AlertLevel = LevelHot
		st.Message = fmt.Sprintf("%s busts with one more goal", p.Raw)
		return st
	default:
		return nil
	}
}

func resultState(st *State, p prediction.Prediction, score prediction.Score) *State {
	var needed int
	switch p.Result {
	case prediction.HomeWin:
		st.TargetDescription = "home win"
		if score.Home <= score.Away {
			needed = score.Away - score.Home + 1
		}
	case prediction.Draw:
		st.TargetDescription = "draw"
		if score.Home > score.Away {
			needed = score.Home - score.Away
		} else {
			needed = score.Away - score.Home
		}
	default:
		st.TargetDescription = "away win"
		if score.Away <= score.Home {
			needed = score.Home - score.Away + 1
		}
	}

	if needed == 0 {
		st.IsAlreadyHit = true
		st.AlertLevel = LevelHot
		st.Message = fmt.Sprintf("%s currently holding", p.Raw)
		return st
	}
	st.GoalsNeeded = needed
	st.AlertLevel = levelFor(needed)
	st.Message = fmt.Sprintf("%s needs %d more goal(s)", p.Raw, needed)
	return st
}

func bothScoreState(st *State, p prediction.Prediction, score prediction.Score) *State {
	if !p.BothYes {
		// KG YOK fails the moment both teams have scored; until then it
		// emits nothing.
		if score.Home > 0 && score.Away > 0 {
			st.TargetDescription = "no goal from at least one team"
			st.GoalsNeeded = 0
			st.AlertLevel = LevelHot
			st.Message = fmt.Sprintf("%s failed, both teams scored", p.Raw)
			return st
		}
		return nil
	}

	st.TargetDescription = "both teams score"
	switch {
	case score.Home > 0 && score.Away > 0:
		st.GoalsNeeded = 0
		st.IsAlreadyHit = true
		st.AlertLevel = LevelHot
		st.Message = fmt.Sprintf("%s already hit", p.Raw)
	case score.Home == 0 && score.Away == 0:
		st.GoalsNeeded = 2
		st.AlertLevel = LevelWarm
		st.Message = fmt.Sprintf("%s needs a goal from both teams", p.Raw)
	case score.Home == 0:
		st.GoalsNeeded = 1
		st.AlertLevel = LevelHot
		st.Message = fmt.Sprintf("%s needs a home goal", p.Raw)
	default:
		st.GoalsNeeded = 1
		st.AlertLevel = LevelHot
		st.Message = fmt.Sprintf("%s needs an away goal", p.Raw)
	}
	return st
}
