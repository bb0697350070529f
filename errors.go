package hsi

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention).
// Each code maps to exactly one integrity rule; a strict check reports one of
// these per violation.
const (
	// CodeMissingRequiredFields: window_ids/windows absent or not a
	// sequence/mapping pair.
	CodeMissingRequiredFields = "missing_required_fields"
	// CodeSetMismatch: id-list vs. key-set divergence for windows or sources.
	// Params carry "kind", "missing" and "extra" (both sorted ascending).
	CodeSetMismatch = "set_mismatch"
	// CodeTimestampParse: unparsable RFC3339 value. The path names the field
	// and Params carry the raw value.
	CodeTimestampParse = "timestamp_parse"
	// CodeTemporalOrder: computed_at_utc < observed_at_utc, or a window whose
	// end precedes its start. Params carry "scope" (document|window).
	CodeTemporalOrder = "temporal_order"
	// CodeSourcesPresence: exactly one of source_ids/sources is present.
	CodeSourcesPresence = "sources_presence_mismatch"
	// CodeUnknownWindowRef: a window_id reference with no declared window.
	CodeUnknownWindowRef = "unknown_window_ref"
	// CodeUnknownSourceRef: an evidence id with no declared source.
	CodeUnknownSourceRef = "unknown_source_ref"
	// CodeUndeclaredSources: evidence ids used while sources/source_ids were
	// never declared at all.
	CodeUndeclaredSources = "undeclared_sources"
	// CodeNullScore: a null score without a non-empty top-level meta.
	CodeNullScore = "null_score_without_explanation"
	// CodeDimensionMismatch: embedding.dimension != len(embedding.vector).
	CodeDimensionMismatch = "dimension_mismatch"
	// CodeMalformedEntry: wrong-typed field where a specific structure was
	// expected (decode-time shape errors).
	CodeMalformedEntry = "malformed_entry"
)

// Issue represents a single validation entry.
type Issue struct {
	Path    string // JSON Pointer (for example: /axes/tone/readings/2/window_id).
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional: remediation hints.
	Cause   error  // Optional: underlying error (e.g. a time parse failure).
	// Params carries structured parameters (e.g., {"expected":4, "actual":3})
	// for observability and programmatic handling.
	Params map[string]any
}

// Issues is a collection of validation errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. unknown_window_ref at /embeddings/0/window_id
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}
