package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	assert.Equal(t, "patterns.yaml", cfg.Regex.PatternsFile)
	assert.NotEmpty(t, cfg.Anonymization.AlwaysAnonymize)
	assert.Equal(t, "***", cfg.Anonymization.MaskToken)
	assert.Equal(t, 4, cfg.Drain3.Original.Depth)
	assert.Equal(t, unboundedClusterValue, cfg.Drain3.Original.MaxClusters)
	assert.Equal(t, 0.4, cfg.Drain3.Original.SimilarityThreshold)
	assert.False(t, cfg.TimestampNormalization.AllowContentScan)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("LOGPIPE_PATTERNS_FILE", "/etc/logpipe/patterns.yaml")
	t.Setenv("LOGPIPE_LOG_LEVEL", "debug")
	t.Setenv("LOGPIPE_ALLOW_CONTENT_SCAN", "true")
	t.Setenv("LOGPIPE_BATCH_SIZE", "5000")
	t.Setenv("LOGPIPE_MASK_TOKEN", "[REDACTED]")

	cfg := defaults()
	loadEnv(cfg)

	assert.Equal(t, "/etc/logpipe/patterns.yaml", cfg.Regex.PatternsFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.TimestampNormalization.AllowContentScan)
	assert.Equal(t, 5000, cfg.BatchProcessing.OptimalBatchSize)
	assert.Equal(t, "[REDACTED]", cfg.Anonymization.MaskToken)
}

func TestLoadEnv_InvalidBatchSize_Ignored(t *testing.T) {
	t.Setenv("LOGPIPE_BATCH_SIZE", "not-a-number")
	cfg := defaults()
	loadEnv(cfg)
	assert.Equal(t, 0, cfg.BatchProcessing.OptimalBatchSize)
}

func TestClampBatchSize(t *testing.T) {
	cfg := defaults()
	cfg.BatchProcessing.OptimalBatchSize = 500
	clampBatchSize(cfg)
	assert.Equal(t, 1000, cfg.BatchProcessing.OptimalBatchSize)

	cfg.BatchProcessing.OptimalBatchSize = 50000
	clampBatchSize(cfg)
	assert.Equal(t, 20000, cfg.BatchProcessing.OptimalBatchSize)

	cfg.BatchProcessing.OptimalBatchSize = 0
	clampBatchSize(cfg)
	assert.Equal(t, 0, cfg.BatchProcessing.OptimalBatchSize)
}

func TestLoadFile_ValidYAML(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	require.NoError(t, err)

	_, err = f.WriteString("log_level: debug\nregex:\n  patterns_file: custom.yaml\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg := defaults()
	require.NoError(t, loadFile(cfg, f.Name()))

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "custom.yaml", cfg.Regex.PatternsFile)
}

func TestLoadFile_Missing_IsNoOp(t *testing.T) {
	cfg := defaults()
	require.NoError(t, loadFile(cfg, "/nonexistent/path/config.yaml"))
	assert.Equal(t, "patterns.yaml", cfg.Regex.PatternsFile)
}

func TestLoadFile_InvalidYAML_ReturnsError(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-bad-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("not: valid: yaml: [")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg := defaults()
	err = loadFile(cfg, f.Name())
	assert.Error(t, err)
}

func TestLoad_ReturnsNonNil(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "patterns.yaml", cfg.Regex.PatternsFile)
}

func TestAlwaysAnonymizeSet_CaseInsensitive(t *testing.T) {
	cfg := defaults()
	cfg.Anonymization.AlwaysAnonymize = []string{"DevName", "TZ"}
	set := cfg.AlwaysAnonymizeSet()
	assert.True(t, set["devname"])
	assert.True(t, set["tz"])
}

func TestMethodForField_DefaultsToMask(t *testing.T) {
	cfg := defaults()
	name, _ := cfg.MethodForField("anything")
	assert.Equal(t, "mask", name)
}

func TestMethodForField_ExplicitMethod(t *testing.T) {
	cfg := defaults()
	cfg.Anonymization.Methods = map[string]MethodConfig{
		"hash": {Fields: []string{"srcip"}},
	}
	name, _ := cfg.MethodForField("SrcIP")
	assert.Equal(t, "hash", name)
}
