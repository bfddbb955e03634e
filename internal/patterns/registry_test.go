package patterns

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_BuiltinDefaults(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)

	_, ok := r.Get(CategoryParsing, "fortinet_log_kv")
	assert.True(t, ok)
	_, ok = r.Get(CategoryDetection, "ip_address")
	assert.True(t, ok)
}

func TestByCategory_SortedByPriority(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)

	list := r.ByCategory(CategoryAnonymization)
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, list[i-1].Priority, list[i].Priority)
	}
}

func TestApplyCategory_Anonymization(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)

	out, warnings, err := r.ApplyCategory("connect from 10.0.0.5 please", CategoryAnonymization)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Contains(t, out, "<IP>")
	assert.NotContains(t, out, "10.0.0.5")
}

func TestApplyCategory_UnsupportedCategory(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)

	_, _, err = r.ApplyCategory("text", CategoryDetection)
	assert.ErrorIs(t, err, ErrUnsupportedCategory)
}

func TestNew_MalformedPatternSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
anonymization_patterns:
  broken:
    pattern: "(unterminated"
    replacement: "<X>"
`), 0o600))

	r, err := New(path)
	require.NoError(t, err)
	assert.NotEmpty(t, r.Warnings())
	_, ok := r.Get(CategoryAnonymization, "broken")
	assert.False(t, ok)
}

func TestNew_FileOverlayOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
detection_patterns:
  ip_address:
    pattern: '\d+\.\d+\.\d+\.\d+'
`), 0o600))

	r, err := New(path)
	require.NoError(t, err)
	list := r.ByCategory(CategoryDetection)
	count := 0
	for _, p := range list {
		if p.Name == "ip_address" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestApplyCategory_Timeout(t *testing.T) {
	r, err := New("", WithTimeout(1*time.Nanosecond))
	require.NoError(t, err)

	out, warnings, err := r.ApplyCategory("10.0.0.1 test", CategoryAnonymization)
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, "10.0.0.1 test", out)
}
