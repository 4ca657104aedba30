// ruleeval runs one match through the rule pipeline and prints the
// canonical odds, matched rules, and derived opportunity as JSON.
// Diagnostic tool for checking why a rule does or does not fire.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/firsatradar/engine/pkg/engine"
	"github.com/firsatradar/engine/pkg/odds"
	"github.com/firsatradar/engine/pkg/rules"
)

var (
	rulesPath     = flag.String("rules", "rules.json", "Path to the rule table JSON")
	matchPath     = flag.String("match", "", "Path to the match JSON (required)")
	minConfidence = flag.Int("min-confidence", engine.DefaultMinConfidence, "Confidence floor for the opportunity")
	tolerance     = flag.String("tolerance", "", "Matcher tolerance override, e.g. 0.04")
	verbose       = flag.Bool("verbose", false, "Verbose logging")
)

type output struct {
	Canonical   odds.Canonical      `json:"canonical_odds"`
	Matched     []rules.Matched     `json:"matched_rules"`
	Opportunity *engine.Opportunity `json:"opportunity"`
}

func main() {
	flag.Parse()
	if *matchPath == "" {
		fmt.Fprintln(os.Stderr, "ruleeval: -match is required")
		flag.Usage()
		os.Exit(2)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	table, err := rules.Load(*rulesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load rules")
	}

	match, err := loadMatch(*matchPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load match")
	}

	opts := []engine.Option{
		engine.WithMinConfidence(*minConfidence),
		engine.WithLogger(log),
	}
	if *tolerance != "" {
		tol, err := decimal.NewFromString(*tolerance)
		if err != nil {
			log.Fatal().Err(err).Str("tolerance", *tolerance).Msg("bad tolerance")
		}
		opts = append(opts, engine.WithMatcher(rules.NewMatcher(tol)))
	}

	e := engine.New(table, opts...)
	opp, matched := e.EvaluateMatch(match)

	out := output{
		Canonical:   odds.Normalize(match.Bookmakers, nil),
		Matched:     matched,
		Opportunity: opp,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("failed to encode output")
	}
}

func loadMatch(filename string) (engine.Match, error) {
	var match engine.Match
	file, err := os.Open(filename)
	if err != nil {
		return match, fmt.Errorf("failed to open match file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&match); err != nil {
		return match, fmt.Errorf("failed to decode match: %w", err)
	}
	return match, nil
}
