package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logpipe/internal/patterns"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	reg, err := patterns.New("")
	require.NoError(t, err)
	return New(reg)
}

func TestDetect_FindsKnownPatterns(t *testing.T) {
	d := newTestDetector(t)
	text := "connection from 10.0.0.1 to user@example.com via https://example.com/path"
	got := d.Detect(text)

	assert.Equal(t, []string{"10.0.0.1"}, got["ip_address"])
	assert.Equal(t, []string{"user@example.com"}, got["email"])
	assert.Contains(t, got["url"][0], "https://example.com")
}

func TestDetect_DeduplicatesPreservingOrder(t *testing.T) {
	d := newTestDetector(t)
	text := "ip=10.0.0.1 again ip=10.0.0.2 again ip=10.0.0.1"
	got := d.Detect(text)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, got["ip_address"])
}

func TestDetect_NoMatchOmitsKey(t *testing.T) {
	d := newTestDetector(t)
	got := d.Detect("nothing interesting here")
	_, ok := got["ip_address"]
	assert.False(t, ok)
}

func TestDetect_TruncatesLongContent(t *testing.T) {
	d := newTestDetector(t)
	padding := strings.Repeat("x", 21*1024)
	text := padding + " 10.0.0.9"
	got := d.Detect(text)
	_, ok := got["ip_address"]
	assert.False(t, ok, "match past the truncation boundary must not be detected")
}

func TestDetect_EmptyText(t *testing.T) {
	d := newTestDetector(t)
	got := d.Detect("")
	assert.Empty(t, got)
}

func TestDetect_SeverityLevelNormalizedToNumeric(t *testing.T) {
	d := newTestDetector(t)
	got := d.Detect("system reported a warning condition, then an error")
	require.Contains(t, got, "severity_level")
	assert.Contains(t, got["severity_level"], "warning:4")
	assert.Contains(t, got["severity_level"], "error:3")
}

func TestDetect_HostnameCaseFoldedByIDNA(t *testing.T) {
	d := newTestDetector(t)
	got := d.Detect("handshake with Example.COM then again with example.com")
	require.Contains(t, got, "hostname")
	assert.Equal(t, []string{"example.com"}, got["hostname"], "case-variant hostnames must dedupe to one IDNA-normalized form")
}

func TestDetect_URLHostCaseFoldedByIDNA(t *testing.T) {
	d := newTestDetector(t)
	got := d.Detect("fetch https://Example.COM/path then https://example.com/path")
	require.Contains(t, got, "url")
	assert.Equal(t, []string{"https://example.com/path"}, got["url"], "case-variant URL hosts must dedupe to one IDNA-normalized form")
}
