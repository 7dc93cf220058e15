package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/document"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/extraction"
)

// Failure reasons.
const (
	ReasonTooLarge          = "too_large"
	ReasonUndecodable       = "undecodable"
	ReasonOCRUnavailable    = "ocr_unavailable"
	ReasonVisionUnavailable = "vision_unavailable"
	ReasonEmpty             = "empty_document"
	ReasonTimeout           = "timeout"
	ReasonStat              = "stat_error"
	ReasonExtract           = "extract_error"
)

// FileResult is the outcome of extracting one file. Path is relative to
// the ingested folder, slash separated.
type FileResult struct {
	Path    string
	Records []document.RawRecord
	Err     error
	Reason  string
}

// Failed reports whether extraction failed.
func (r FileResult) Failed() bool { return r.Err != nil }

// Failure is the serializable form of a failed FileResult.
type Failure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// RunReport summarizes one ProcessFolder call.
type RunReport struct {
	RunID          string        `json:"run_id"`
	Root           string        `json:"root"`
	FilesSeen      int           `json:"files_seen"`
	FilesExtracted int           `json:"files_extracted"`
	FilesSkipped   int           `json:"files_skipped"`
	FilesFailed    int           `json:"files_failed"`
	Records        int           `json:"records"`
	Duplicates     int           `json:"duplicates"`
	Chunks         int           `json:"chunks"`
	Duration       time.Duration `json:"duration"`
	Failures       []Failure     `json:"failures,omitempty"`
}

func (r *RunReport) addFailure(res FileResult) {
	r.FilesFailed++
	r.Failures = append(r.Failures, Failure{Path: res.Path, Reason: res.Reason, Error: res.Err.Error()})
	FilesTotal.WithLabelValues("failed").Inc()
	FailuresTotal.WithLabelValues(res.Reason).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, extraction.ErrUndecodable):
		return ReasonUndecodable
	case errors.Is(err, extraction.ErrOCRUnavailable):
		return ReasonOCRUnavailable
	case errors.Is(err, extraction.ErrVisionUnavailable):
		return ReasonVisionUnavailable
	case errors.Is(err, extraction.ErrEmptyDocument):
		return ReasonEmpty
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonExtract
	}
}
