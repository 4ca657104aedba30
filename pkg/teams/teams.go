// Package teams matches provider team names to stored ones. Provider
// feeds and the rule pipeline rarely agree on spelling ("Fenerbahçe
// SK" vs "Fenerbahce"), so fixtures are joined by fuzzy name scoring
// rather than ids.
package teams

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// suffixes stripped from normalized names; they carry no identity.
var suffixes = []string{" fc", " cf", " sc", " ac", " sk", " club", " united", " city", " f."}

// stopWords excluded from key-word extraction.
var stopWords = map[string]bool{
	"the": true,
	"fc":  true,
	"cf":  true,
	"sc":  true,
	"ac":  true,
	"sk":  true,
	"f":   true,
}

// Normalize reduces a team name to a compact comparable form:
// lowercase, Turkish and other diacritics folded to ASCII, common
// suffixes dropped, all separators removed.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name, _, _ = transform.String(asciiFold, name)
	// Dotless ı decomposes to itself; map it by hand.
	name = strings.ReplaceAll(name, "ı", "i")

	for _, s := range suffixes {
		name = strings.ReplaceAll(name, s, "")
	}

	name = strings.NewReplacer("-", "", ".", "", " ", "").Replace(name)
	return name
}

// KeyWords extracts the identity-carrying words of a team name:
// folded, split on separators, short words and stop words dropped.
func KeyWords(name string) map[string]bool {
	name = strings.ToLower(strings.TrimSpace(name))
	name, _, _ = transform.String(asciiFold, name)
	name = strings.ReplaceAll(name, "ı", "i")
	name = strings.NewReplacer("-", " ", ".", " ").Replace(name)

	out := make(map[string]bool)
	for _, w := range strings.Fields(name) {
		if len(w) <= 2 || stopWords[w] {
			continue
		}
		out[w] = true
	}
	return out
}

// Fixture is one provider fixture's team pair, keyed back to the
// provider record by ID.
type Fixture struct {
	ID       string
	HomeTeam string
	AwayTeam string
}

// MatchFixture finds the fixture whose team pair best matches the
// given names. An exact normalized match on both sides wins outright;
// otherwise fixtures are scored per side (substantial substring
// containment +2, plus key-word overlap) and both sides must score at
// least 1. Returns nil when nothing clears that bar.
func MatchFixture(fixtures []Fixture, homeTeam, awayTeam string) *Fixture {
	homeNorm := Normalize(homeTeam)
	awayNorm := Normalize(awayTeam)
	homeWords := KeyWords(homeTeam)
	awayWords := KeyWords(awayTeam)

	var best *Fixture
	bestScore := 0

	for i := range fixtures {
		f := &fixtures[i]
		fixtureHome := Normalize(f.HomeTeam)
		fixtureAway := Normalize(f.AwayTeam)

		if homeNorm == fixtureHome && awayNorm == fixtureAway {
			return f
		}

		homeScore := sideScore(homeNorm, fixtureHome, homeWords, KeyWords(f.HomeTeam))
		awayScore := sideScore(awayNorm, fixtureAway, awayWords, KeyWords(f.AwayTeam))

		// Both sides must contribute, or unrelated teams that share
		// one word would pair up.
		if homeScore < 1 || awayScore < 1 {
			continue
		}
		if total := homeScore + awayScore; total > bestScore {
			bestScore = total
			best = f
		}
	}
	return best
}

func sideScore(name, fixtureName string, words, fixtureWords map[string]bool) int {
	score := 0

	// Substring containment only counts when the name is substantial;
	// "ac" is inside half the league.
	if len(name) >= 4 && (strings.Contains(fixtureName, name) || strings.Contains(name, fixtureName)) {
		score += 2
	}

	for w := range words {
		if fixtureWords[w] {
			score++
		}
	}
	return score
}
