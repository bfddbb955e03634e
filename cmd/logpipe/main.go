// Command logpipe runs the log-processing core end to end: it reads
// newline-delimited log lines from stdin, treating each as one LogEntry from
// a single source file, drives them through the pipeline orchestrator, and
// writes each resulting record's canonical serialization as one JSON object
// per line to stdout.
//
// File discovery, encoding detection, and report emission are out of scope
// for the core (spec.md §1) and are left to whatever wraps this binary;
// logpipe itself is the thinnest possible driver for the orchestrator,
// mirroring the teacher's cmd/proxy/main.go wiring order: load config, build
// the pattern registry from it, construct the orchestrator, then run.
//
// The -state flag, if given, snapshots both template miners' learned
// clusters to a bbolt-backed miner.Store across runs: a run starts by
// restoring any prior snapshot for the two miner names ("original",
// "anonymized") and ends by saving them back, so a series of invocations
// over a rotating log keeps the clusters it has already learned instead of
// re-mining them from nothing every time. Without -state the miners are
// purely in-memory for the lifetime of one run, as spec.md §1's "no
// persistent on-disk state" non-goal describes for the default path.
//
// Usage:
//
//	logpipe < app.log > records.jsonl
//	logpipe -config pipeline.yaml -source app.log < app.log > records.jsonl
//	logpipe -state miners.db -source app.log < app.log > records.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"logpipe/internal/config"
	"logpipe/internal/logger"
	"logpipe/internal/miner"
	"logpipe/internal/patterns"
	"logpipe/internal/pipeline"
	"logpipe/pkg/record"
)

func main() {
	configPath := flag.String("config", "", "path to a pipeline configuration YAML file (optional)")
	sourceFile := flag.String("source", "stdin", "source_file label attached to every input line")
	statePath := flag.String("state", "", "path to a bbolt file snapshotting miner cluster state across runs (optional)")
	flag.Parse()

	log := logger.New("LOGPIPE", os.Getenv("LOGPIPE_LOG_LEVEL"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("startup", "load config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	registry, err := patterns.New(cfg.Regex.PatternsFile)
	if err != nil {
		log.Fatalf("startup", "load pattern registry: %v", err)
	}
	for _, w := range registry.Warnings() {
		log.Warn("pattern_registry", w)
	}

	orch := pipeline.New(cfg, registry)

	var store *miner.Store
	if *statePath != "" {
		store, err = miner.OpenStore(*statePath)
		if err != nil {
			log.Fatalf("startup", "open miner state: %v", err)
		}
		defer store.Close() //nolint:errcheck // best-effort close on exit
		restoreMinerState(log, store, orch)
	}

	entries, err := readEntries(os.Stdin, *sourceFile)
	if err != nil {
		log.Fatalf("read_input", "%v", err)
	}
	log.Infof("read_input", "%d lines read from %s", len(entries), *sourceFile)

	records := orch.Run(entries)
	log.Infof("pipeline_run", "%d records produced", len(records))

	if err := writeRecords(os.Stdout, records); err != nil {
		log.Fatalf("write_output", "%v", err)
	}

	if store != nil {
		saveMinerState(log, store, orch)
	}
}

// restoreMinerState loads any prior snapshot for both miners from store,
// leaving a miner untouched when no snapshot exists yet for its name.
func restoreMinerState(log *logger.Logger, store *miner.Store, orch *pipeline.Orchestrator) {
	original, anonymized := orch.Miners()
	loadedOriginal, err := store.Load("original", original)
	if err != nil {
		log.Fatalf("startup", "restore original miner state: %v", err)
	}
	loadedAnonymized, err := store.Load("anonymized", anonymized)
	if err != nil {
		log.Fatalf("startup", "restore anonymized miner state: %v", err)
	}
	log.Infof("miner_state", "restored original=%v anonymized=%v", loadedOriginal, loadedAnonymized)
}

// saveMinerState snapshots both miners' current cluster state to store,
// overwriting whatever was previously saved under their names.
func saveMinerState(log *logger.Logger, store *miner.Store, orch *pipeline.Orchestrator) {
	original, anonymized := orch.Miners()
	if err := store.Save("original", original); err != nil {
		log.Fatalf("shutdown", "save original miner state: %v", err)
	}
	if err := store.Save("anonymized", anonymized); err != nil {
		log.Fatalf("shutdown", "save anonymized miner state: %v", err)
	}
}

// readEntries reads newline-delimited lines from r, skipping empty lines
// (which carry no content for a LogEntry to wrap; whitespace-only lines are
// kept), and builds one LogEntry
// per line numbered from 1 in input order.
func readEntries(r *os.File, sourceFile string) ([]record.LogEntry, error) {
	var entries []record.LogEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		entry, err := record.NewLogEntry(text, sourceFile, line)
		if err != nil {
			continue // invariant violation on a single line never aborts the run
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return entries, nil
}

// writeRecords renders each record's canonical serialization as one JSON
// object per line, per spec.md §6's output stream contract.
func writeRecords(w *os.File, records []*record.ParsedRecord) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec.Serialize()); err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
	}
	return nil
}
