// Package pipeline implements the Pipeline Orchestrator (C7): it runs the
// per-record pass (parse, detect, normalize, anonymize) over a streamed
// sequence of log entries, then a whole-dataset batch pass that groups
// records by file-similarity, feeds the dual template miners, and runs a
// template re-coherence check.
//
// Construction order mirrors the teacher's cmd/proxy/main.go wiring: config
// is loaded first, the pattern registry is built from it, and every other
// component (anonymizer, detector, parser, miners, telemetry) is constructed
// from the registry and config before the orchestrator itself is assembled.
package pipeline

import (
	"time"

	"logpipe/internal/anonymize"
	"logpipe/internal/config"
	"logpipe/internal/detect"
	"logpipe/internal/logger"
	"logpipe/internal/miner"
	"logpipe/internal/parse"
	"logpipe/internal/patterns"
	"logpipe/internal/telemetry"
	"logpipe/internal/tsnorm"
	"logpipe/pkg/record"
)

// Orchestrator owns every long-lived component the pipeline needs and drives
// both the per-record and batch passes over an input stream.
type Orchestrator struct {
	cfg       *config.Config
	dispatch  *parse.Dispatcher
	detector  *detect.Detector
	anonymize *anonymize.Engine

	minerOriginal   *miner.Miner
	minerAnonymized *miner.Miner

	metrics *telemetry.Metrics
	log     *logger.Logger
}

// New constructs an Orchestrator from configuration and a loaded pattern
// registry. registry is shared read-only across every downstream component.
func New(cfg *config.Config, registry *patterns.Registry) *Orchestrator {
	return &Orchestrator{
		cfg:             cfg,
		dispatch:        parse.New(registry),
		detector:        detect.New(registry),
		anonymize:       anonymize.New(registry, cfg),
		minerOriginal:   miner.New(cfg.Drain3.Original),
		minerAnonymized: miner.New(cfg.Drain3.Anonymized),
		metrics:         telemetry.New(),
		log:             logger.New("PIPELINE", cfg.LogLevel),
	}
}

// Metrics returns the orchestrator's telemetry handle, for a caller that
// wants to serve /metrics or inspect counters directly.
func (o *Orchestrator) Metrics() *telemetry.Metrics { return o.metrics }

// Miners returns the orchestrator's two long-lived template miners (original
// and anonymized content), for a caller that wants to snapshot or restore
// their learned cluster state across restarts (spec.md §4.6).
func (o *Orchestrator) Miners() (original, anonymized *miner.Miner) {
	return o.minerOriginal, o.minerAnonymized
}

// processRecord runs the per-record pass from spec.md §4.7 steps 1-3 over one
// LogEntry: parse, then pattern detection (populating DetectedPatterns,
// which the timestamp normalizer's decision step 3 depends on), then
// timestamp normalization, then anonymization. The record is always
// returned; no step here can abort the pass.
func (o *Orchestrator) processRecord(entry record.LogEntry) *record.ParsedRecord {
	parseStart := time.Now()
	rec := o.dispatch.Parse(entry)
	o.metrics.ObserveParse(rec.ParserName, time.Since(parseStart))

	rec.DetectedPatterns = o.detector.Detect(rec.OriginalContent)

	normStart := time.Now()
	tsnorm.Normalize(rec, o.cfg)
	o.metrics.ObserveNormalize(time.Since(normStart))

	anonStart := time.Now()
	warnings := o.anonymize.AnonymizeRecord(rec)
	o.metrics.ObserveAnonymize(time.Since(anonStart))
	for _, w := range warnings {
		rec.AddWarning(w)
		// AnonymizeRecord's warnings are per-pattern regex timeouts.
		o.metrics.AnonymizeTimeouts.Inc()
	}

	return rec
}

// Run drives the full pipeline over entries: the per-record pass in
// streaming order, followed by the whole-dataset batch pass (file-similarity
// grouping, dynamic batch sizing, dual-miner feed, template re-coherence).
// Records are returned in the same order entries were given.
func (o *Orchestrator) Run(entries []record.LogEntry) []*record.ParsedRecord {
	records := make([]*record.ParsedRecord, len(entries))
	for i, e := range entries {
		records[i] = o.processRecord(e)
	}

	o.runBatchPass(records)
	return records
}
