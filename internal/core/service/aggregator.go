package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hive-corporation/iocagg/internal/core/domain"
	"github.com/hive-corporation/iocagg/internal/core/pipeline"
	"github.com/hive-corporation/iocagg/internal/core/ports"
	"github.com/hive-corporation/iocagg/internal/metrics"
)

// DefaultFetchCap is what every provider is asked for. The user facing limit
// only applies after dedup and filtering.
const DefaultFetchCap = 10_000

// Query describes one aggregation run.
type Query struct {
	Sources  map[string]bool
	MinScore int
	Country  string
	Type     domain.IOCType
	Limit    int
}

// SourceOutcome is the per-feed result of a run. Err is set when the feed
// contributed nothing because it could not be fetched.
type SourceOutcome struct {
	Source   string
	Count    int
	Err      error
	Duration time.Duration
}

func (o SourceOutcome) OK() bool { return o.Err == nil }

type StageCounts struct {
	Fetched  int
	Deduped  int
	Filtered int
	Limited  int
}

type Result struct {
	RunID    uuid.UUID
	IOCs     []domain.IOC
	Outcomes []SourceOutcome
	Counts   StageCounts
}

type Aggregator struct {
	providers  []ports.ThreatProvider
	normalizer *pipeline.Normalizer
	fetchCap   int
	logger     *zap.Logger
}

// NewAggregator keeps providers in the order given; that order decides which
// duplicate survives.
func NewAggregator(providers []ports.ThreatProvider, table domain.TypeTable, fetchCap int, logger *zap.Logger) *Aggregator {
	if fetchCap <= 0 {
		fetchCap = DefaultFetchCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		providers:  providers,
		normalizer: pipeline.NewNormalizer(table),
		fetchCap:   fetchCap,
		logger:     logger,
	}
}

// Keys lists the selectable sources in fetch order.
func (a *Aggregator) Keys() []string {
	keys := make([]string, 0, len(a.providers))
	for _, p := range a.providers {
		keys = append(keys, p.Key())
	}
	return keys
}

// Run fetches every requested source in order, then normalizes, dedupes,
// filters and limits. It never fails as a whole: unreachable sources are
// reported in Result.Outcomes.
func (a *Aggregator) Run(ctx context.Context, q Query) Result {
	runID := uuid.New()
	log := a.logger.With(zap.String("run_id", runID.String()))

	for _, key := range unknownSources(q.Sources, a.Keys()) {
		log.Warn("ignoring unknown source", zap.String("source", key), zap.Error(domain.ErrUnknownSource))
	}

	raws, outcomes := a.fetch(ctx, log, q)

	iocs := a.normalizer.NormalizeAll(raws)
	counts := StageCounts{Fetched: len(iocs)}

	iocs = pipeline.Dedupe(iocs)
	counts.Deduped = len(iocs)

	iocs = pipeline.Filter(iocs, pipeline.Criteria{Type: q.Type, Country: q.Country})
	counts.Filtered = len(iocs)

	iocs = pipeline.Limit(iocs, q.Limit)
	counts.Limited = len(iocs)

	metrics.RecordStage("fetched", counts.Fetched)
	metrics.RecordStage("deduped", counts.Deduped)
	metrics.RecordStage("filtered", counts.Filtered)
	metrics.RecordStage("limited", counts.Limited)

	log.Info("aggregation finished",
		zap.Int("fetched", counts.Fetched),
		zap.Int("deduped", counts.Deduped),
		zap.Int("filtered", counts.Filtered),
		zap.Int("returned", counts.Limited),
	)

	return Result{
		RunID:    runID,
		IOCs:     iocs,
		Outcomes: outcomes,
		Counts:   counts,
	}
}

func (a *Aggregator) fetch(ctx context.Context, log *zap.Logger, q Query) ([]domain.RawIOC, []SourceOutcome) {
	opts := ports.FetchOptions{
		MinScore: q.MinScore,
		Country:  q.Country,
		Limit:    a.fetchCap,
	}

	var all []domain.RawIOC
	var outcomes []SourceOutcome

	for _, p := range a.providers {
		if !q.Sources[p.Key()] {
			continue
		}

		log.Debug("downloading feed", zap.String("source", p.Name()))
		start := time.Now()
		iocs, err := p.FetchIOCs(ctx, opts)
		elapsed := time.Since(start)

		outcome := SourceOutcome{Source: p.Name(), Duration: elapsed}
		if err != nil {
			outcome.Err = err
			metrics.RecordSourceFetch(p.Name(), "error", 0, elapsed)
			log.Warn("feed unavailable, continuing without it",
				zap.String("source", p.Name()),
				zap.Error(err),
			)
		} else {
			outcome.Count = len(iocs)
			all = append(all, iocs...)
			metrics.RecordSourceFetch(p.Name(), "success", len(iocs), elapsed)
			log.Info("feed downloaded",
				zap.String("source", p.Name()),
				zap.Int("count", len(iocs)),
				zap.Duration("duration", elapsed),
			)
		}
		outcomes = append(outcomes, outcome)
	}

	return all, outcomes
}

// ParseSources turns "abuseipdb, OTX" into a lower-cased set.
func ParseSources(raw string) map[string]bool {
	set := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			set[s] = true
		}
	}
	return set
}

func unknownSources(requested map[string]bool, known []string) []string {
	valid := make(map[string]bool, len(known))
	for _, k := range known {
		valid[k] = true
	}
	var unknown []string
	for s := range requested {
		if !valid[s] {
			unknown = append(unknown, s)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func (r Result) Failed() []SourceOutcome {
	var failed []SourceOutcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

func (o SourceOutcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: unavailable (%v)", o.Source, o.Err)
	}
	return fmt.Sprintf("%s: %d IOCs", o.Source, o.Count)
}
