package pipeline

import (
	"fmt"
	"time"

	"logpipe/internal/miner"
	"logpipe/pkg/record"
)

// runBatchPass implements spec.md §4.7's whole-dataset batch pass: group by
// file similarity, partition into dynamically-sized batches, feed the dual
// miners in order, then run the template re-coherence check.
func (o *Orchestrator) runBatchPass(records []*record.ParsedRecord) {
	if len(records) == 0 {
		return
	}

	batchStart := time.Now()
	size := dynamicBatchSize(len(records), o.cfg.BatchProcessing.OptimalBatchSize)
	for _, group := range groupBySignature(records) {
		for _, batch := range partition(group, size) {
			o.feedBatch(batch)
		}
	}

	o.runRecoherence(records)

	o.metrics.SetClusterCount("original", o.minerOriginal.Len())
	o.metrics.SetClusterCount("anonymized", o.minerAnonymized.Len())
	o.metrics.ObserveBatch(time.Since(batchStart))
}

// feedBatch feeds one batch into both miners in record order, per spec.md
// §4.7 step 3. A panic partway through the batch (MinerFailed, per spec.md
// §7) never propagates: every record fed before the panic keeps its
// already-computed drain3 fields, and every record from the failure point
// onward is marked with a drain3_*.error instead, per §4.7's per-batch
// failure containment.
func (o *Orchestrator) feedBatch(batch []*record.ParsedRecord) {
	processed := 0
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		msg := fmt.Sprintf("miner batch failed: %v", r)
		for _, rec := range batch[processed:] {
			if rec.Drain3Original.Template == "" {
				rec.Drain3Original.Error = msg
			}
			if rec.Drain3Anonymized.Template == "" {
				rec.Drain3Anonymized.Error = msg
			}
			rec.AddError(msg)
		}
	}()

	for i, rec := range batch {
		origID, origTemplate, origSize := o.minerOriginal.Add(rec.OriginalContent)
		rec.Drain3Original = record.ClusterRef{ClusterID: origID, Template: origTemplate, ClusterSize: origSize}

		anonID, anonTemplate, anonSize := o.minerAnonymized.Add(rec.AnonymizedMessage)
		rec.Drain3Anonymized = record.ClusterRef{ClusterID: anonID, Template: anonTemplate, ClusterSize: anonSize}

		processed = i + 1
	}
}

// runRecoherence implements spec.md §4.7 step 4: if any record's anonymized
// template still leaks an always_anonymize field in plaintext, the
// anonymized miner is reset to fresh state and every record's
// anonymized_message is re-fed in the original record order, overwriting
// drain3_anonymized.
func (o *Orchestrator) runRecoherence(records []*record.ParsedRecord) {
	leaked := false
	for _, rec := range records {
		if o.anonymize.ContainsAlwaysAnonymizeLeak(rec.Drain3Anonymized.Template) {
			leaked = true
			break
		}
	}
	if !leaked {
		return
	}

	o.metrics.RecoherencePasses.Inc()
	o.minerAnonymized = miner.New(o.cfg.Drain3.Anonymized)
	for _, rec := range records {
		id, template, size := o.minerAnonymized.Add(rec.AnonymizedMessage)
		rec.Drain3Anonymized = record.ClusterRef{ClusterID: id, Template: template, ClusterSize: size}
	}
}
