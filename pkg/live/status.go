package live

// Phase is the coarse match phase derived from the provider's short
// status codes.
type Phase string

const (
	PhaseNotStarted  Phase = "not_started"
	PhaseLive        Phase = "live"
	PhaseHalftime    Phase = "halftime"
	PhaseFinished    Phase = "finished"
	PhaseSuspended   Phase = "suspended"
	PhaseInterrupted Phase = "interrupted"
	PhasePostponed   Phase = "postponed"
	PhaseCancelled   Phase = "cancelled"
	PhaseAbandoned   Phase = "abandoned"
	PhaseAwarded     Phase = "awarded"
	PhaseWalkover    Phase = "walkover"
	PhaseUnknown     Phase = "unknown"
)

// phaseByShortCode maps the provider's fixture status codes.
var phaseByShortCode = map[string]Phase{
	"TBD":  PhaseNotStarted, // time to be defined
	"NS":   PhaseNotStarted,
	"1H":   PhaseLive,
	"HT":   PhaseHalftime,
	"2H":   PhaseLive,
	"ET":   PhaseLive, // extra time
	"P":    PhaseLive, // penalties in progress
	"LIVE": PhaseLive,
	"FT":   PhaseFinished,
	"AET":  PhaseFinished,
	"PEN":  PhaseFinished,
	"BT":   PhaseFinished,
	"SUSP": PhaseSuspended,
	"INT":  PhaseInterrupted,
	"PST":  PhasePostponed,
	"CANC": PhaseCancelled,
	"ABD":  PhaseAbandoned,
	"AWD":  PhaseAwarded, // technical loss
	"WO":   PhaseWalkover,
}

// PhaseOf maps a provider short code to its phase; codes outside the
// provider's taxonomy map to PhaseUnknown.
func PhaseOf(shortCode string) Phase {
	if p, ok := phaseByShortCode[shortCode]; ok {
		return p
	}
	return PhaseUnknown
}

// IsLive reports whether the ball is rolling. The half-time break is
// not live; it has its own phase.
func (p Phase) IsLive() bool {
	return p == PhaseLive
}

// IsFinished reports whether the match has a final result.
func (p Phase) IsFinished() bool {
	return p == PhaseFinished
}
