package tsnorm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logpipe/internal/config"
	"logpipe/pkg/record"
)

func newRecord(t *testing.T, content string, parsedData map[string]any) *record.ParsedRecord {
	t.Helper()
	entry, err := record.NewLogEntry(content, "test.log", 1)
	require.NoError(t, err)
	rec, err := record.New(entry, "test", parsedData, 0.9)
	require.NoError(t, err)
	return rec
}

func TestNormalize_ExplicitField(t *testing.T) {
	cfg, _ := config.Load("")
	rec := newRecord(t, "line", map[string]any{"timestamp": "2025-07-06T00:30:24"})
	Normalize(rec, cfg)

	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, record.SourceExplicit, rec.TimestampInfo.Source)
	assert.Equal(t, 0.85, rec.TimestampInfo.Confidence)
	assert.Equal(t, 2025, rec.Timestamp.Year())
}

func TestNormalize_CombinesSeparateDateAndTimeFields(t *testing.T) {
	cfg, _ := config.Load("")
	rec := newRecord(t, "line", map[string]any{"date": "2025-07-06", "time": "00:30:24"})
	Normalize(rec, cfg)

	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, record.SourceExplicit, rec.TimestampInfo.Source)
	assert.Equal(t, 0.85, rec.TimestampInfo.Confidence)
	assert.Equal(t, "2025-07-06T00:30:24Z", rec.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
}

func TestNormalize_EpochField(t *testing.T) {
	cfg, _ := config.Load("")
	rec := newRecord(t, "line", map[string]any{"epoch": "1751762200"})
	Normalize(rec, cfg)

	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, record.SourceExplicit, rec.TimestampInfo.Source)
	assert.Equal(t, int64(1751762200), rec.Timestamp.Unix())
}

func TestNormalize_DetectedUnixTimestamp(t *testing.T) {
	cfg, _ := config.Load("")
	rec := newRecord(t, "line", map[string]any{"msg": "ok"})
	rec.DetectedPatterns["unix_timestamp"] = []string{"1751762200"}
	Normalize(rec, cfg)

	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, record.SourceDetectedPatterns, rec.TimestampInfo.Source)
	assert.Equal(t, 0.7, rec.TimestampInfo.Confidence)
}

func TestNormalize_DetectedUnixTimestamp_PicksMoreDigits(t *testing.T) {
	cfg, _ := config.Load("")
	rec := newRecord(t, "line", map[string]any{"msg": "ok"})
	rec.DetectedPatterns["unix_timestamp"] = []string{"1751762200", "1751762200123"}
	Normalize(rec, cfg)

	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, int64(1751762200), rec.Timestamp.Unix())
	assert.Equal(t, 123, rec.Timestamp.Nanosecond()/1e6)
}

func TestNormalize_ContentScanWhenParsedDataEmpty(t *testing.T) {
	cfg, _ := config.Load("")
	rec := newRecord(t, "event happened at 2025-07-06T00:30:24Z exactly", nil)
	Normalize(rec, cfg)

	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, record.SourceContentScan, rec.TimestampInfo.Source)
}

func TestNormalize_NoContentScanWhenParsedDataPresentAndNotAllowed(t *testing.T) {
	cfg, _ := config.Load("")
	rec := newRecord(t, "event happened at 2025-07-06T00:30:24Z exactly", map[string]any{"msg": "ok"})
	Normalize(rec, cfg)

	assert.Nil(t, rec.Timestamp)
	assert.Equal(t, record.SourceNone, rec.TimestampInfo.Source)
}

func TestNormalize_ContentScanAllowedByConfig(t *testing.T) {
	cfg, _ := config.Load("")
	cfg.TimestampNormalization.AllowContentScan = true
	rec := newRecord(t, "event happened at 2025-07-06T00:30:24Z exactly", map[string]any{"msg": "ok"})
	Normalize(rec, cfg)

	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, record.SourceContentScan, rec.TimestampInfo.Source)
}

func TestNormalize_NoneWhenUnresolvable(t *testing.T) {
	cfg, _ := config.Load("")
	rec := newRecord(t, "nothing dated here", map[string]any{"msg": "ok"})
	Normalize(rec, cfg)

	assert.Nil(t, rec.Timestamp)
	assert.Equal(t, record.SourceNone, rec.TimestampInfo.Source)
	assert.Equal(t, 0.0, rec.TimestampInfo.Confidence)
}

func TestNormalize_RejectsOutOfRangeInstant(t *testing.T) {
	cfg, _ := config.Load("")
	rec := newRecord(t, "line", map[string]any{"timestamp": "1969-01-01T00:00:00"})
	Normalize(rec, cfg)

	assert.Nil(t, rec.Timestamp)
	assert.Equal(t, record.SourceNone, rec.TimestampInfo.Source)
}

func TestNormalize_AlreadyExplicitTimestampIsRespected(t *testing.T) {
	cfg, _ := config.Load("")
	rec := newRecord(t, "line", map[string]any{"msg": "ok"})
	preset := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec.Timestamp = &preset
	Normalize(rec, cfg)

	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, record.SourceExplicit, rec.TimestampInfo.Source)
	assert.Equal(t, 0.9, rec.TimestampInfo.Confidence)
	assert.True(t, rec.Timestamp.Equal(preset))
}

func TestParseColonMillis(t *testing.T) {
	tm, ok := parseColonMillis("20250706-00:30:24:123")
	require.True(t, ok)
	assert.Equal(t, 2025, tm.Year())
	assert.Equal(t, 30, tm.Minute())
	assert.Equal(t, 123, tm.Nanosecond()/1e6)
}
