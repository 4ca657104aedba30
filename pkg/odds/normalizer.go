package odds

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Bookmaker payload shapes, mirroring the provider's odds feed.

// OutcomeValue is a single (outcome label, decimal odds) quote.
type OutcomeValue struct {
	Value string `json:"value"`
	Odd   string `json:"odd"`
}

// Market is one bet type offered by a bookmaker.
type Market struct {
	ID     int            `json:"id"`
	Values []OutcomeValue `json:"values"`
}

// Bookmaker is one bookmaker's full set of market offerings.
type Bookmaker struct {
	ID   int      `json:"id"`
	Bets []Market `json:"bets"`
}

// Config controls bookmaker preference and market-type ids. It is
// injected rather than hard-coded so deployments can retune the
// preference list without touching the fold itself.
type Config struct {
	// Preference lists bookmaker ids from most to least preferred.
	// Bookmakers not listed sort after all listed ones, keeping their
	// relative payload order.
	Preference []int

	// Provider market-type ids for the three markets the engine reads.
	ExactGoalsMarketID int
	OverUnderMarketID  int
	BTTSMarketID       int
}

// DefaultConfig returns the production preference order and the
// provider's market taxonomy ids.
func DefaultConfig() *Config {
	return &Config{
		Preference:         []int{8, 11, 6, 18, 5},
		ExactGoalsMarketID: 38,
		OverUnderMarketID:  5,
		BTTSMarketID:       8,
	}
}

// outcome labels in the totals over/under market.
const (
	labelOver25  = "Over 2.5"
	labelUnder25 = "Under 2.5"
	labelOver35  = "Over 3.5"
	labelUnder35 = "Under 3.5"
	labelYes     = "Yes"
)

var two = decimal.NewFromInt(2)

// Normalize folds a bookmaker payload into a Canonical record. The
// fold walks bookmakers in preference order, fills each canonical key
// first-write-wins, and stops as soon as the primary key is filled.
// Missing markets, missing outcome legs, and non-numeric odds simply
// leave keys unfilled; Normalize never fails.
func Normalize(bookmakers []Bookmaker, cfg *Config) Canonical {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	c := Canonical{values: make(map[Key]decimal.Decimal, len(allKeys))}
	if len(bookmakers) == 0 {
		return c
	}

	for _, bm := range orderByPreference(bookmakers, cfg.Preference) {
		for k, v := range contribution(bm, cfg) {
			c.fill(k, v)
		}
		if c.HasPrimary() {
			break
		}
	}
	return c
}

// orderByPreference returns a copy of bookmakers sorted by the
// preference list; unknown ids keep their relative order after all
// known ones.
func orderByPreference(bookmakers []Bookmaker, preference []int) []Bookmaker {
	rank := make(map[int]int, len(preference))
	for i, id := range preference {
		rank[id] = i
	}
	unknown := len(preference)

	out := make([]Bookmaker, len(bookmakers))
	copy(out, bookmakers)
	sort.SliceStable(out, func(i, j int) bool {
		ri, ok := rank[out[i].ID]
		if !ok {
			ri = unknown
		}
		rj, ok := rank[out[j].ID]
		if !ok {
			rj = unknown
		}
		return ri < rj
	})
	return out
}

// contribution extracts every canonical value a single bookmaker can
// provide. Pure per-bookmaker step of the fold.
func contribution(bm Bookmaker, cfg *Config) map[Key]decimal.Decimal {
	out := make(map[Key]decimal.Decimal)

	for _, bet := range bm.Bets {
		switch bet.ID {
		case cfg.ExactGoalsMarketID:
			exact := outcomeOdds(bet.Values)
			if v, ok := harmonicPair(exact, "4", "5"); ok {
				out[KeyGoals45] = v
			}
			if v, ok := harmonicPair(exact, "2", "3"); ok {
				out[KeyGoals23] = v
			}

		case cfg.OverUnderMarketID:
			totals := outcomeOdds(bet.Values)
			for label, key := range map[string]Key{
				labelOver25:  KeyOver25,
				labelUnder25: KeyUnder25,
				labelOver35:  KeyOver35,
				labelUnder35: KeyUnder35,
			} {
				if v, ok := totals[label]; ok {
					out[key] = v
				}
			}

		case cfg.BTTSMarketID:
			if v, ok := outcomeOdds(bet.Values)[labelYes]; ok {
				out[KeyBTTS] = v
			}
		}
	}
	return out
}

// outcomeOdds parses a market's quotes into label -> odds, dropping
// non-numeric and non-positive entries.
func outcomeOdds(values []OutcomeValue) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(values))
	for _, v := range values {
		d, err := decimal.NewFromString(v.Odd)
		if err != nil || !d.IsPositive() {
			continue
		}
		if _, dup := out[v.Value]; dup {
			continue
		}
		out[v.Value] = d
	}
	return out
}

// harmonicPair combines two paired outcomes via the harmonic mean
// 2ab/(a+b), rounded to 2 decimals. Both legs are required: a pair
// with either side missing is never partially combined.
func harmonicPair(quotes map[string]decimal.Decimal, first, second string) (decimal.Decimal, bool) {
	a, okA := quotes[first]
	b, okB := quotes[second]
	if !okA || !okB {
		return decimal.Decimal{}, false
	}
	return two.Mul(a).Mul(b).Div(a.Add(b)).Round(2), true
}
