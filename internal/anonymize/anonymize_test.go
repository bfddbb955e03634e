package anonymize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logpipe/internal/config"
	"logpipe/internal/patterns"
	"logpipe/pkg/record"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg, err := patterns.New("")
	require.NoError(t, err)
	cfg, err := config.Load("")
	require.NoError(t, err)
	return New(reg, cfg)
}

func TestAnonymizeText_AlwaysAnonymizeProjection(t *testing.T) {
	e := newTestEngine(t)
	out, warnings := e.AnonymizeText(`devname="FGT60" devid="FG100" vd="root" tz="+0200"`)
	assert.Empty(t, warnings)
	assert.Contains(t, out, `devname="<DEVNAME>"`)
	assert.Contains(t, out, `devid="<DEVID>"`)
	assert.Contains(t, out, `vd="<VD>"`)
	assert.Contains(t, out, `tz="<TZ>"`)
}

func TestContainsAlwaysAnonymizeLeak_PlaceholderIsNotALeak(t *testing.T) {
	e := newTestEngine(t)
	out, _ := e.AnonymizeText(`devname="FGT60" tz="+0200"`)
	assert.False(t, e.ContainsAlwaysAnonymizeLeak(out), "an already-anonymized field must not be reported as a leak")
}

func TestContainsAlwaysAnonymizeLeak_PlaintextValueIsALeak(t *testing.T) {
	e := newTestEngine(t)
	assert.True(t, e.ContainsAlwaysAnonymizeLeak(`devname="FGT60" tz="+0200"`), "an unprojected plaintext field must be reported as a leak")
}

func TestContainsAlwaysAnonymizeLeak_NoAlwaysAnonymizeFieldPresent(t *testing.T) {
	e := newTestEngine(t)
	assert.False(t, e.ContainsAlwaysAnonymizeLeak("connection from 10.63.44.101 ok"))
}

func TestAnonymizeText_PatternSubstitution(t *testing.T) {
	e := newTestEngine(t)
	out, _ := e.AnonymizeText("connection from 10.63.44.101 ok")
	assert.Contains(t, out, "<IP>")
	assert.NotContains(t, out, "10.63.44.101")
}

func TestAnonymizeText_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	text := `devname="FGT60" src=10.0.0.1 user@example.com`
	once, _ := e.AnonymizeText(text)
	twice, _ := e.AnonymizeText(once)
	assert.Equal(t, once, twice)
}

func TestAnonymizeText_Empty(t *testing.T) {
	e := newTestEngine(t)
	out, warnings := e.AnonymizeText("")
	assert.Equal(t, "", out)
	assert.Empty(t, warnings)
}

func TestAnonymizeRecord_SetsAnonymizedMessage(t *testing.T) {
	e := newTestEngine(t)
	entry, err := record.NewLogEntry(`devname="FGT60" srcip=10.0.0.1 msg="ok"`, "test.log", 1)
	require.NoError(t, err)
	rec, err := record.New(entry, "fortinet_log_kv", map[string]any{
		"devname": "FGT60",
		"srcip":   "10.0.0.1",
		"msg":     "ok",
	}, 0.9)
	require.NoError(t, err)

	warnings := e.AnonymizeRecord(rec)
	assert.Empty(t, warnings)
	assert.Contains(t, rec.AnonymizedMessage, `devname="<DEVNAME>"`)
	assert.Equal(t, "***", rec.ParsedData["devname"])
}

func TestAnonymizeRecord_NestedValues(t *testing.T) {
	e := newTestEngine(t)
	entry, err := record.NewLogEntry("nested record", "test.log", 1)
	require.NoError(t, err)
	rec, err := record.New(entry, "json", map[string]any{
		"meta": map[string]any{
			"ip":   "10.0.0.9",
			"tags": []any{"10.0.0.9", "ok"},
		},
	}, 0.9)
	require.NoError(t, err)

	e.AnonymizeRecord(rec)
	meta := rec.ParsedData["meta"].(map[string]any)
	assert.Contains(t, meta["ip"], "<IP>")
	tags := meta["tags"].([]any)
	assert.Contains(t, tags[0], "<IP>")
	assert.Equal(t, "ok", tags[1])
}

func TestPlaceholderFor_HashMethod(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.Anonymization.Methods = map[string]config.MethodConfig{
		"hash_user": {Fields: []string{"user"}, Salt: "pepper"},
	}
	out := e.placeholderFor("user", "alice")
	assert.Regexp(t, `^<HASH_[0-9a-f]{16}>$`, out)

	again := e.placeholderFor("user", "alice")
	assert.Equal(t, out, again, "hash placeholder must be deterministic for the same input and salt")
}

func TestPlaceholderFor_ReplaceMethod(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.Anonymization.Methods = map[string]config.MethodConfig{
		"replace_session": {Fields: []string{"session"}, Pattern: "<SESSION_REDACTED>"},
	}
	out := e.placeholderFor("session", "abc123")
	assert.Equal(t, "<SESSION_REDACTED>", out)
}

func TestPlaceholderFor_DefaultsToMask(t *testing.T) {
	e := newTestEngine(t)
	out := e.placeholderFor("hostname", "web-01")
	assert.Equal(t, e.cfg.Anonymization.MaskToken, out)
}
