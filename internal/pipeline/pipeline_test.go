package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logpipe/internal/config"
	"logpipe/internal/patterns"
	"logpipe/pkg/record"
)

func newOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	reg, err := patterns.New("")
	require.NoError(t, err)
	return New(cfg, reg)
}

func mustEntry(t *testing.T, content, sourceFile string, line int) record.LogEntry {
	t.Helper()
	e, err := record.NewLogEntry(content, sourceFile, line)
	require.NoError(t, err)
	return e
}

func TestRun_PerRecordPassPopulatesAllStages(t *testing.T) {
	o := newOrchestrator(t)
	content := `devname="host-01" devid="FGT80FTK22013405" vd="root" date=2025-07-06 time=00:30:24 srcip=10.63.44.101 msg="DHCP server sends a DHCPACK"`
	entries := []record.LogEntry{mustEntry(t, content, "fw.log", 1)}

	recs := o.Run(entries)

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "fortinet_log_kv", rec.ParserName)
	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, "2025-07-06T00:30:24Z", rec.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	assert.NotEqual(t, rec.OriginalContent, rec.AnonymizedMessage)
	assert.Contains(t, rec.AnonymizedMessage, "<DEVNAME>")
	assert.GreaterOrEqual(t, rec.Drain3Original.ClusterID, 1)
	assert.GreaterOrEqual(t, rec.Drain3Anonymized.ClusterID, 1)
	assert.Equal(t, 1, rec.Drain3Original.ClusterSize)
}

func TestRun_RepeatedShapeMergesIntoSameClusterWithGrowingSize(t *testing.T) {
	o := newOrchestrator(t)
	var entries []record.LogEntry
	for i := 1; i <= 3; i++ {
		// srcip=... is one unmasked token, so it varies last, past the
		// miner's depth-4 tree path, where similarity merging applies.
		content := fmt.Sprintf(`devname="host-01" msg="DHCP server sends a DHCPACK" srcip=10.63.44.%d`, i)
		entries = append(entries, mustEntry(t, content, "fw.log", i))
	}

	recs := o.Run(entries)

	require.Len(t, recs, 3)
	id := recs[0].Drain3Original.ClusterID
	for _, rec := range recs {
		assert.Equal(t, id, rec.Drain3Original.ClusterID)
	}
	assert.Equal(t, 1, recs[0].Drain3Original.ClusterSize)
	assert.Equal(t, 2, recs[1].Drain3Original.ClusterSize)
	assert.Equal(t, 3, recs[2].Drain3Original.ClusterSize)
}

func TestRun_DetectedPatternsFeedTimestampNormalizer(t *testing.T) {
	o := newOrchestrator(t)
	entries := []record.LogEntry{mustEntry(t, "event occurred around 1751762200 on the box", "free.log", 1)}

	recs := o.Run(entries)

	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Timestamp)
	assert.Equal(t, record.SourceDetectedPatterns, recs[0].TimestampInfo.Source)
}

func TestDynamicBatchSize(t *testing.T) {
	assert.Equal(t, 4000, dynamicBatchSize(5000, 0))
	assert.Equal(t, 6000, dynamicBatchSize(20000, 0))
	assert.Equal(t, 8000, dynamicBatchSize(50000, 0))
	assert.Equal(t, 12000, dynamicBatchSize(100000, 0))
	assert.Equal(t, 15000, dynamicBatchSize(100001, 0))
	assert.Equal(t, 1500, dynamicBatchSize(5000, 1500))
}

func TestGroupBySignature_MergesFilesWithMatchingSignature(t *testing.T) {
	o := newOrchestrator(t)
	entries := []record.LogEntry{
		mustEntry(t, "2024-01-15 10:30:45,ERROR,boom", "a.csv", 1),
		mustEntry(t, "2024-01-15 10:30:45,ERROR,boom", "b.csv", 1),
	}
	recs := o.Run(entries)

	groups := groupBySignature(recs)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
}

func TestGroupBySignature_DistinctContentShapesStaySeparate(t *testing.T) {
	o := newOrchestrator(t)
	entries := []record.LogEntry{
		mustEntry(t, "2024-01-15 10:30:45,ERROR,boom", "a.csv", 1),
		mustEntry(t, `{"level":"error"}`, "b.log", 1),
	}
	recs := o.Run(entries)

	groups := groupBySignature(recs)
	assert.Len(t, groups, 2)
}

func TestRunRecoherence_ResetsAnonymizedMinerWhenLeakDetected(t *testing.T) {
	o := newOrchestrator(t)
	e1 := mustEntry(t, `devname="leaky" msg="first"`, "fw.log", 1)
	e2 := mustEntry(t, `devname="leaky" msg="second"`, "fw.log", 2)
	recs := o.Run([]record.LogEntry{e1, e2})

	// Simulate a template leak slipping past anonymization (e.g. a field
	// variant the projection regex didn't catch) and force the recoherence
	// check to fire directly.
	recs[0].Drain3Anonymized.Template = `devname="leaky" msg="<*>"`
	beforeMiner := o.minerAnonymized

	o.runRecoherence(recs)

	assert.NotSame(t, beforeMiner, o.minerAnonymized)
	for _, rec := range recs {
		assert.NotContains(t, rec.Drain3Anonymized.Template, `devname="leaky"`)
	}
}

func TestRunRecoherence_NoResetWhenNoLeak(t *testing.T) {
	o := newOrchestrator(t)
	e1 := mustEntry(t, `devname="ok" msg="first"`, "fw.log", 1)
	recs := o.Run([]record.LogEntry{e1})
	beforeMiner := o.minerAnonymized

	o.runRecoherence(recs)

	assert.Same(t, beforeMiner, o.minerAnonymized)
}

func TestRun_EmptyInputProducesNoRecords(t *testing.T) {
	o := newOrchestrator(t)
	recs := o.Run(nil)
	assert.Empty(t, recs)
}
