package hsi

// Document is the lightly-typed intermediate an HSI payload decodes into.
// Optional top-level sections keep explicit presence flags where a present
// empty value and an absent value behave differently; timestamps stay raw
// strings so the strict pass owns their parse errors.
type Document struct {
	WindowIDs []string
	Windows   map[string]Window

	ObservedAtUTC string
	ComputedAtUTC string

	// SourceIDs/Sources are only populated when both sections are present;
	// the presence flags feed the presence-XOR rule.
	SourceIDs        []string
	Sources          map[string]map[string]any
	SourceIDsPresent bool
	SourcesPresent   bool

	// Meta is nil when absent, null or not a mapping; only its non-emptiness
	// is ever consulted (the null-score explanation policy).
	Meta map[string]any

	Axes       map[string]Axis
	Embeddings []Embedding
}

// Window is a named time interval over which signals are aggregated.
type Window struct {
	Start string
	End   string
}

// Axis groups the readings of one axis domain.
type Axis struct {
	Readings []AxisReading
}

// AxisReading is one scored observation along an axis domain, scoped to a
// window.
type AxisReading struct {
	// Index is the reading's position in the original readings sequence,
	// kept for JSON Pointer reporting (malformed entries may be skipped
	// during a collecting decode, shifting slice positions).
	Index    int
	WindowID string
	// Score is set when the input carried a numeric score. NullScore records
	// that the score was null or absent; a null score must never be read as
	// zero and requires a top-level meta explanation.
	Score     *float64
	NullScore bool
	// Evidence lists evidence_source_ids. EvidencePresent distinguishes a
	// present (possibly empty) list from an absent or null one: referencing
	// sources without declaring any is an error even with an empty list.
	Evidence        []string
	EvidencePresent bool
}

// Embedding is a vector representation associated with a window, with an
// optionally declared expected length.
type Embedding struct {
	Index    int
	WindowID string
	// Vector is set when present; VectorPresent distinguishes an empty vector
	// from an absent one.
	Vector        []float64
	VectorPresent bool
	// Dimension is set only when the input carried an integral number; a
	// fractional or non-numeric dimension is never checked against the vector.
	Dimension *int
}
