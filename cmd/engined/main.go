// engined is the live rule engine daemon. It loads a rule table,
// optionally runs a batch of matches through the opportunity engine,
// consumes live score ticks as JSON lines on stdin, and streams alert,
// result and status events to websocket clients.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/firsatradar/engine/pkg/engine"
	"github.com/firsatradar/engine/pkg/live"
	"github.com/firsatradar/engine/pkg/metrics"
	"github.com/firsatradar/engine/pkg/rules"
	"github.com/firsatradar/engine/pkg/teams"
)

var (
	rulesPath     = flag.String("rules", "rules.json", "Path to the rule table JSON")
	matchesPath   = flag.String("matches", "", "Optional matches JSON; tracks only found opportunities")
	httpAddr      = flag.String("http", ":8080", "HTTP server address")
	tickRate      = flag.Float64("tick-rate", 10, "Max alert recomputations per second")
	minConfidence = flag.Int("min-confidence", engine.DefaultMinConfidence, "Confidence floor for opportunities")
	verbose       = flag.Bool("verbose", false, "Verbose logging")
)

func main() {
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	level := zerolog.InfoLevel
	if *verbose || os.Getenv("ENGINE_DEBUG") == "1" {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	if env := os.Getenv("ENGINE_HTTP_ADDR"); env != "" && *httpAddr == ":8080" {
		*httpAddr = env
	}
	if env := os.Getenv("ENGINE_TICK_RATE"); env != "" {
		if v, err := strconv.ParseFloat(env, 64); err == nil && v > 0 {
			*tickRate = v
		}
	}

	table, err := rules.Load(*rulesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *rulesPath).Msg("failed to load rules")
	}
	log.Info().Int("rules", len(table)).Str("path", *rulesPath).Msg("rule table loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	em := metrics.NewEngineMetrics()

	hub := live.NewHub(log.With().Str("component", "hub").Logger())
	hub.SetMetrics(em)
	done := make(chan struct{})
	go hub.Run(done)

	tracker := live.NewTracker(hub, rate.Limit(*tickRate), log.With().Str("component", "tracker").Logger())
	tracker.SetMetrics(em)

	reg := newRegistrar(table, tracker, log)
	if *matchesPath != "" {
		if err := reg.loadOpportunities(ctx, *matchesPath, *minConfidence, em); err != nil {
			log.Fatal().Err(err).Str("path", *matchesPath).Msg("failed to evaluate matches")
		}
	}

	ticks := make(chan live.Tick, 64)
	go func() {
		defer close(ticks)
		readTicks(ctx, os.Stdin, ticks, reg, log)
	}()
	go tracker.Run(ctx, ticks)

	srv := &http.Server{Addr: *httpAddr, Handler: newMux(hub, em)}
	go func() {
		log.Info().Str("addr", *httpAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	cancel()
	close(done)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
}

func newMux(hub *live.Hub, em *metrics.EngineMetrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("/metrics", em.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"clients": hub.ClientCount(),
		})
	})
	return mux
}

// registrar decides which predictions to track for a match. With a
// matches file it tracks only engine-found opportunities and can
// resolve ticks by team names; without one it tracks every active
// rule's predictions for any match that ticks.
type registrar struct {
	table       []rules.Rule
	tracker     *live.Tracker
	log         zerolog.Logger
	fallback    []string
	fixtures    []teams.Fixture
	byMatch     map[string][]string
	lazyTracked map[string]bool
}

func newRegistrar(table []rules.Rule, tracker *live.Tracker, log zerolog.Logger) *registrar {
	return &registrar{
		table:       table,
		tracker:     tracker,
		log:         log,
		fallback:    activePredictions(table),
		byMatch:     make(map[string][]string),
		lazyTracked: make(map[string]bool),
	}
}

// loadOpportunities runs the opportunity engine over a matches file
// and registers only the predictions it surfaces.
func (r *registrar) loadOpportunities(ctx context.Context, path string, minConfidence int, em *metrics.EngineMetrics) error {
	matches, err := loadMatches(path)
	if err != nil {
		return err
	}

	e := engine.New(r.table,
		engine.WithMinConfidence(minConfidence),
		engine.WithLogger(r.log.With().Str("component", "engine").Logger()),
		engine.WithMetrics(em),
	)
	report := e.Run(ctx, matches)

	for _, opp := range report.Opportunities {
		preds := []string{opp.Prediction}
		for _, alt := range opp.Alternatives {
			preds = append(preds, alt.Bet)
		}
		r.byMatch[opp.MatchID] = dedupe(preds)
		r.tracker.Track(opp.MatchID, r.byMatch[opp.MatchID]...)
	}
	for _, m := range matches {
		r.fixtures = append(r.fixtures, teams.Fixture{ID: m.ID, HomeTeam: m.HomeTeam, AwayTeam: m.AwayTeam})
	}

	r.log.Info().
		Str("run_id", report.RunID).
		Int("matches", report.Matches).
		Int("opportunities", len(report.Opportunities)).
		Msg("opportunity run complete")
	return nil
}

// resolve fills in the tick's match id, using team names when the
// provider did not send one. Reports false when the tick cannot be
// attributed to any match.
func (r *registrar) resolve(tick *live.Tick) bool {
	if tick.MatchID == "" {
		if tick.HomeTeam == "" || tick.AwayTeam == "" {
			return false
		}
		f := teams.MatchFixture(r.fixtures, tick.HomeTeam, tick.AwayTeam)
		if f == nil {
			r.log.Debug().
				Str("home", tick.HomeTeam).
				Str("away", tick.AwayTeam).
				Msg("tick matched no known fixture")
			return false
		}
		tick.MatchID = f.ID
	}

	// Opportunity mode tracks up front; lazy mode registers on first
	// sight.
	if len(r.byMatch) == 0 && !r.lazyTracked[tick.MatchID] {
		r.lazyTracked[tick.MatchID] = true
		r.tracker.Track(tick.MatchID, r.fallback...)
	}
	return true
}

// activePredictions collects the distinct prediction strings of every
// active rule.
func activePredictions(table []rules.Rule) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range table {
		if !r.Active {
			continue
		}
		for _, p := range r.Predictions {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func loadMatches(filename string) ([]engine.Match, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open matches file: %w", err)
	}
	defer file.Close()

	var matches []engine.Match
	if err := json.NewDecoder(file).Decode(&matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}
	return matches, nil
}

// readTicks decodes JSON-line ticks from r until EOF or cancellation.
func readTicks(ctx context.Context, r *os.File, ticks chan<- live.Tick, reg *registrar, log zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var tick live.Tick
		if err := json.Unmarshal(line, &tick); err != nil {
			log.Warn().Err(err).Msg("bad tick line")
			continue
		}
		if !reg.resolve(&tick) {
			continue
		}

		select {
		case ticks <- tick:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("tick stream read failed")
	}
}
