package secrets

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
)

const previewLen = 4

// Redactor replaces detected secrets with [REDACTED:rule:prev] markers.
// The marker keeps enough context for embeddings without the value.
type Redactor struct {
	detector *Detector
	logger   *zap.Logger
}

// NewRedactor builds a redactor; logger may be nil.
func NewRedactor(detector *Detector, logger *zap.Logger) *Redactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redactor{detector: detector, logger: logger}
}

// Result is redacted content plus its audit trail.
type Result struct {
	Content string
	Audit   AuditLog
}

// Redact scans and rewrites content.
func (r *Redactor) Redact(content string) Result {
	start := time.Now()
	findings := r.detector.Detect(content)
	audit := buildAuditLog(findings, time.Since(start))
	if len(findings) == 0 {
		return Result{Content: content, Audit: audit}
	}
	return Result{Content: replaceFindings(content, findings), Audit: audit}
}

// RedactRecord returns rec with secrets removed from its content. The
// audit is logged, never the secret values.
func (r *Redactor) RedactRecord(rec document.RawRecord) document.RawRecord {
	res := r.Redact(rec.Content)
	if !res.Audit.HasRedactions() {
		return rec
	}
	res.Audit.FilePath = rec.Metadata.SourcePath()
	r.logger.Info("redacted secrets from record",
		zap.String("source", rec.Metadata.Source()),
		zap.Int("secrets", res.Audit.Summary.TotalSecrets),
		zap.Any("rules", res.Audit.Summary.RuleCounts))
	SecretsRedacted.Add(float64(res.Audit.Summary.TotalSecrets))

	rec.Content = res.Content
	rec.Metadata = rec.Metadata.With("redactions", fmt.Sprint(res.Audit.Summary.TotalSecrets))
	return rec
}

// replaceFindings substitutes every occurrence of each secret, longest
// first so a secret that contains another is replaced whole.
func replaceFindings(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Secret) > len(sorted[j].Secret)
	})

	for _, f := range sorted {
		marker := fmt.Sprintf("[REDACTED:%s:%s]", f.RuleID, preview(f.Secret))
		content = strings.ReplaceAll(content, f.Secret, marker)
	}
	return content
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen]
}
