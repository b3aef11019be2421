package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying on a later run: network
	// errors, rate limits, timeouts, retry-budget exhaustion.
	ErrTransient = errors.New("transient failure")
	// ErrQuality marks judgment failures: unparseable LLM output, the target
	// word missing from a transcript, scores below threshold. Retrying the
	// same call with the same input reproduces the same judgment, so these
	// are recorded and excluded rather than retried.
	ErrQuality = errors.New("quality failure")
	// ErrResource marks failures of the unit's inputs: expired download
	// handles, corrupt media, failed audio extraction.
	ErrResource = errors.New("resource failure")
	// ErrExternalTool marks subprocess failures (ffmpeg).
	ErrExternalTool = errors.New("external tool error")
	// ErrConfiguration marks fatal setup problems: missing credentials,
	// unreadable word sources, malformed arguments. The run aborts.
	ErrConfiguration = errors.New("configuration error")
)

// Failure classes recorded alongside checkpoint failures and reported by the
// failures command.
const (
	ClassTransient = "transient"
	ClassQuality   = "quality"
	ClassResource  = "resource"
	ClassFatal     = "fatal"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Class maps a stage error to the failure class persisted in the checkpoint
// failure log. Unclassified errors default to transient so they remain
// eligible for a future run.
func Class(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return ClassFatal
	case errors.Is(err, ErrQuality):
		return ClassQuality
	case errors.Is(err, ErrResource), errors.Is(err, ErrExternalTool):
		return ClassResource
	default:
		return ClassTransient
	}
}

// IsFatal reports whether the error should abort the whole run with a
// non-zero exit rather than being recorded and skipped.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
