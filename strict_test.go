package hsi_test

import (
	"encoding/json"
	"reflect"
	"testing"

	hsi "github.com/reoring/hsi"
)

// validPayload returns a payload satisfying every integrity rule; individual
// tests mutate one aspect at a time.
func validPayload() map[string]any {
	return map[string]any{
		"window_ids": []any{"w1", "w2"},
		"windows": map[string]any{
			"w1": map[string]any{"start": "2024-01-01T00:00:00Z", "end": "2024-01-01T01:00:00Z"},
			"w2": map[string]any{"start": "2024-01-01T01:00:00Z", "end": "2024-01-01T02:00:00Z"},
		},
		"observed_at_utc": "2024-01-01T02:00:00Z",
		"computed_at_utc": "2024-01-01T02:05:00Z",
		"source_ids":      []any{"s1"},
		"sources":         map[string]any{"s1": map[string]any{"kind": "transcript"}},
		"meta":            map[string]any{"pipeline": "batch-1"},
		"axes": map[string]any{
			"tone": map[string]any{"readings": []any{
				map[string]any{"window_id": "w1", "score": 0.5, "evidence_source_ids": []any{"s1"}},
			}},
		},
		"embeddings": []any{
			map[string]any{"window_id": "w2", "vector": []any{0.1, 0.2}, "dimension": 2},
		},
	}
}

func firstIssue(t *testing.T, err error) hsi.Issue {
	t.Helper()
	iss, ok := hsi.AsIssues(err)
	if !ok || len(iss) == 0 {
		t.Fatalf("expected issues, got: %v", err)
	}
	return iss[0]
}

func TestStrict_ValidPayloadPasses(t *testing.T) {
	if err := hsi.Strict(validPayload()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestStrict_Idempotent(t *testing.T) {
	p := validPayload()
	doc, err := hsi.Decode(p)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := hsi.StrictDocument(doc); err != nil {
		t.Fatalf("first check: %v", err)
	}
	if err := hsi.StrictDocument(doc); err != nil {
		t.Fatalf("second check on same document: %v", err)
	}

	p2 := validPayload()
	p2["embeddings"].([]any)[0].(map[string]any)["dimension"] = 3
	err1 := hsi.Strict(p2)
	err2 := hsi.Strict(p2)
	if err1 == nil || err2 == nil || err1.Error() != err2.Error() {
		t.Fatalf("expected identical failures, got %v vs %v", err1, err2)
	}
}

func TestStrict_WindowSetMismatch_SortedSymmetricDifference(t *testing.T) {
	p := validPayload()
	// declared: w1,w2 plus z9,a1; windows add x2,b0 instead
	p["window_ids"] = []any{"w1", "w2", "z9", "a1"}
	wins := p["windows"].(map[string]any)
	wins["x2"] = map[string]any{"start": "2024-01-01T00:00:00Z", "end": "2024-01-01T01:00:00Z"}
	wins["b0"] = map[string]any{"start": "2024-01-01T00:00:00Z", "end": "2024-01-01T01:00:00Z"}

	it := firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeSetMismatch {
		t.Fatalf("expected set_mismatch, got %v", it)
	}
	if got := it.Params["missing"]; !reflect.DeepEqual(got, []string{"a1", "z9"}) {
		t.Fatalf("missing not sorted symmetric difference: %v", got)
	}
	if got := it.Params["extra"]; !reflect.DeepEqual(got, []string{"b0", "x2"}) {
		t.Fatalf("extra not sorted symmetric difference: %v", got)
	}
}

func TestStrict_SetEqualityIgnoresOrderAndDuplicates(t *testing.T) {
	p := validPayload()
	p["window_ids"] = []any{"w2", "w1", "w2"}
	if err := hsi.Strict(p); err != nil {
		t.Fatalf("set comparison must ignore order and duplicates: %v", err)
	}
}

func TestStrict_TemporalOrder_Document(t *testing.T) {
	p := validPayload()
	p["computed_at_utc"] = "2024-01-01T01:59:59Z"
	it := firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeTemporalOrder || it.Params["scope"] != "document" {
		t.Fatalf("expected document temporal_order, got %v", it)
	}

	// equality is allowed
	p["computed_at_utc"] = "2024-01-01T02:00:00Z"
	if err := hsi.Strict(p); err != nil {
		t.Fatalf("computed == observed must pass: %v", err)
	}
}

func TestStrict_TemporalOrder_Window(t *testing.T) {
	p := validPayload()
	p["windows"].(map[string]any)["w1"] = map[string]any{
		"start": "2024-01-01T03:00:00Z", "end": "2024-01-01T01:00:00Z",
	}
	it := firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeTemporalOrder || it.Params["scope"] != "window" || it.Params["id"] != "w1" {
		t.Fatalf("expected window temporal_order for w1, got %v", it)
	}
}

func TestStrict_TimestampParseErrorNamesField(t *testing.T) {
	p := validPayload()
	p["observed_at_utc"] = "yesterday"
	it := firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeTimestampParse || it.Path != "/observed_at_utc" {
		t.Fatalf("expected timestamp_parse at /observed_at_utc, got %v", it)
	}
	if it.Params["value"] != "yesterday" {
		t.Fatalf("expected raw value in params, got %v", it.Params)
	}
	if it.Hint == "" {
		t.Fatalf("expected a remediation hint")
	}
}

func TestStrict_ZuluAndOffsetEquivalent(t *testing.T) {
	p := validPayload()
	p["observed_at_utc"] = "2024-01-01T02:00:00+00:00"
	p["computed_at_utc"] = "2024-01-01T02:00:00Z"
	if err := hsi.Strict(p); err != nil {
		t.Fatalf("Z and +00:00 must be the same instant: %v", err)
	}
	p["observed_at_utc"] = "2024-01-01T02:00:00Z"
	p["computed_at_utc"] = "2024-01-01T02:00:00+00:00"
	if err := hsi.Strict(p); err != nil {
		t.Fatalf("Z and +00:00 must be the same instant: %v", err)
	}
}

func TestStrict_SourcesPresenceMismatch(t *testing.T) {
	p := validPayload()
	delete(p, "sources")
	it := firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeSourcesPresence {
		t.Fatalf("expected sources_presence_mismatch, got %v", it)
	}

	p = validPayload()
	delete(p, "source_ids")
	it = firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeSourcesPresence {
		t.Fatalf("expected sources_presence_mismatch, got %v", it)
	}

	// both absent is fine when nothing references sources
	p = validPayload()
	delete(p, "source_ids")
	delete(p, "sources")
	p["axes"].(map[string]any)["tone"].(map[string]any)["readings"] = []any{
		map[string]any{"window_id": "w1", "score": 0.5},
	}
	if err := hsi.Strict(p); err != nil {
		t.Fatalf("both sections absent must pass: %v", err)
	}
}

func TestStrict_SourceSetMismatch(t *testing.T) {
	p := validPayload()
	p["source_ids"] = []any{"s1", "s2"}
	it := firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeSetMismatch || it.Params["kind"] != "sources" {
		t.Fatalf("expected sources set_mismatch, got %v", it)
	}
	if got := it.Params["missing"]; !reflect.DeepEqual(got, []string{"s2"}) {
		t.Fatalf("expected missing [s2], got %v", got)
	}
}

func TestStrict_NullScorePolicy(t *testing.T) {
	nullReading := []any{map[string]any{"window_id": "w1", "score": nil}}

	p := validPayload()
	p["axes"].(map[string]any)["tone"].(map[string]any)["readings"] = nullReading
	if err := hsi.Strict(p); err != nil {
		t.Fatalf("null score with non-empty meta must pass: %v", err)
	}

	p = validPayload()
	p["axes"].(map[string]any)["tone"].(map[string]any)["readings"] = nullReading
	delete(p, "meta")
	it := firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeNullScore {
		t.Fatalf("expected null_score_without_explanation, got %v", it)
	}
	if it.Hint == "" {
		t.Fatalf("expected a remediation hint")
	}

	p = validPayload()
	p["axes"].(map[string]any)["tone"].(map[string]any)["readings"] = nullReading
	p["meta"] = map[string]any{}
	it = firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeNullScore {
		t.Fatalf("empty meta is not an explanation, got %v", it)
	}

	// an absent score behaves like a null one
	p = validPayload()
	p["axes"].(map[string]any)["tone"].(map[string]any)["readings"] = []any{
		map[string]any{"window_id": "w1"},
	}
	delete(p, "meta")
	it = firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeNullScore {
		t.Fatalf("absent score must require an explanation too, got %v", it)
	}
}

func TestStrict_UnknownWindowReference(t *testing.T) {
	p := validPayload()
	p["axes"].(map[string]any)["tone"].(map[string]any)["readings"] = []any{
		map[string]any{"window_id": "w9", "score": 0.5},
	}
	it := firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeUnknownWindowRef || it.Params["context"] != "axis_reading" || it.Params["window_id"] != "w9" {
		t.Fatalf("expected axis_reading unknown_window_ref for w9, got %v", it)
	}
	if it.Path != "/axes/tone/readings/0/window_id" {
		t.Fatalf("unexpected pointer: %q", it.Path)
	}

	p = validPayload()
	p["embeddings"] = []any{map[string]any{"window_id": "w9"}}
	it = firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeUnknownWindowRef || it.Params["context"] != "embedding" {
		t.Fatalf("expected embedding unknown_window_ref, got %v", it)
	}
}

func TestStrict_EvidenceRequiresDeclaredSources(t *testing.T) {
	// even an empty evidence list references the (undeclared) sources section
	p := validPayload()
	delete(p, "source_ids")
	delete(p, "sources")
	p["axes"].(map[string]any)["tone"].(map[string]any)["readings"] = []any{
		map[string]any{"window_id": "w1", "score": 0.5, "evidence_source_ids": []any{}},
	}
	it := firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeUndeclaredSources {
		t.Fatalf("expected undeclared_sources, got %v", it)
	}

	// a null evidence list is simply absent
	p = validPayload()
	delete(p, "source_ids")
	delete(p, "sources")
	p["axes"].(map[string]any)["tone"].(map[string]any)["readings"] = []any{
		map[string]any{"window_id": "w1", "score": 0.5, "evidence_source_ids": nil},
	}
	if err := hsi.Strict(p); err != nil {
		t.Fatalf("null evidence_source_ids must not count as present: %v", err)
	}
}

func TestStrict_UnknownSourceReference(t *testing.T) {
	p := validPayload()
	p["axes"].(map[string]any)["tone"].(map[string]any)["readings"] = []any{
		map[string]any{"window_id": "w1", "score": 0.5, "evidence_source_ids": []any{"s1", "s9"}},
	}
	it := firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeUnknownSourceRef || it.Params["source_id"] != "s9" {
		t.Fatalf("expected unknown_source_ref for s9, got %v", it)
	}
}

func TestStrict_DimensionMismatch(t *testing.T) {
	p := validPayload()
	p["embeddings"] = []any{
		map[string]any{"window_id": "w1", "vector": []any{0.1, 0.2, 0.3}, "dimension": 4},
	}
	it := firstIssue(t, hsi.Strict(p))
	if it.Code != hsi.CodeDimensionMismatch {
		t.Fatalf("expected dimension_mismatch, got %v", it)
	}
	if it.Params["expected"] != 4 || it.Params["actual"] != 3 {
		t.Fatalf("expected params {expected:4, actual:3}, got %v", it.Params)
	}

	// matching dimension passes
	p["embeddings"] = []any{
		map[string]any{"window_id": "w1", "vector": []any{0.1, 0.2, 0.3}, "dimension": 3},
	}
	if err := hsi.Strict(p); err != nil {
		t.Fatalf("matching dimension must pass: %v", err)
	}

	// absent dimension is never compared
	p["embeddings"] = []any{
		map[string]any{"window_id": "w1", "vector": []any{0.1, 0.2, 0.3}},
	}
	if err := hsi.Strict(p); err != nil {
		t.Fatalf("absent dimension must pass: %v", err)
	}

	// absent vector is never compared either
	p["embeddings"] = []any{
		map[string]any{"window_id": "w1", "dimension": 7},
	}
	if err := hsi.Strict(p); err != nil {
		t.Fatalf("absent vector must pass: %v", err)
	}
}

func TestStrict_StdlibDecodedNumbers(t *testing.T) {
	// encoding/json decodes every number as float64; an integral dimension
	// arriving that way must still be compared against the vector.
	payload := func(dimension string) []byte {
		return []byte(`{
			"window_ids": ["w1"],
			"windows": {"w1": {"start": "2024-01-01T00:00:00Z", "end": "2024-01-01T01:00:00Z"}},
			"observed_at_utc": "2024-01-01T01:00:00Z",
			"computed_at_utc": "2024-01-01T01:05:00Z",
			"axes": {"tone": {"readings": [{"window_id": "w1", "score": 1}]}},
			"embeddings": [{"window_id": "w1", "vector": [0.1, 0.2, 0.3], "dimension": ` + dimension + `}]
		}`)
	}

	var v any
	if err := json.Unmarshal(payload("4"), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	it := firstIssue(t, hsi.Strict(v))
	if it.Code != hsi.CodeDimensionMismatch {
		t.Fatalf("expected dimension_mismatch from a stdlib-decoded tree, got %v", it)
	}
	if it.Params["expected"] != 4 || it.Params["actual"] != 3 {
		t.Fatalf("expected params {expected:4, actual:3}, got %v", it.Params)
	}

	if err := json.Unmarshal(payload("3"), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := hsi.Strict(v); err != nil {
		t.Fatalf("matching dimension must pass: %v", err)
	}

	// a fractional dimension still decodes as undeclared
	if err := json.Unmarshal(payload("3.5"), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := hsi.Strict(v); err != nil {
		t.Fatalf("fractional dimension must stay unchecked: %v", err)
	}
}

func TestStrict_CollectIsPerPhase(t *testing.T) {
	p := validPayload()
	p["embeddings"] = "nope"                      // shape issue
	p["computed_at_utc"] = "2024-01-01T00:00:00Z" // would also violate document ordering
	iss, ok := hsi.AsIssues(hsi.Strict(p, hsi.CheckOpt{Collect: true}))
	if !ok || len(iss) == 0 {
		t.Fatalf("expected decode issues, got: %v", iss)
	}
	for _, it := range iss {
		if it.Code != hsi.CodeMalformedEntry {
			t.Fatalf("rule issues must not mix with decode issues: %v", iss)
		}
	}
}

func TestStrict_CollectVsFailFast(t *testing.T) {
	p := validPayload()
	p["axes"].(map[string]any)["tone"].(map[string]any)["readings"] = []any{
		map[string]any{"window_id": "w9", "score": 0.5},
	}
	p["embeddings"] = []any{
		map[string]any{"window_id": "w1", "vector": []any{0.1}, "dimension": 2},
	}

	// Fail-fast: stop at the first violation
	iss, ok := hsi.AsIssues(hsi.Strict(p))
	if !ok || len(iss) != 1 {
		t.Fatalf("expected exactly one fail-fast issue, got: %v", iss)
	}

	// Collect mode: gather every violation
	iss, ok = hsi.AsIssues(hsi.Strict(p, hsi.CheckOpt{Collect: true}))
	if !ok || len(iss) != 2 {
		t.Fatalf("expected two collected issues, got: %v", iss)
	}
	if iss[0].Code != hsi.CodeUnknownWindowRef || iss[1].Code != hsi.CodeDimensionMismatch {
		t.Fatalf("unexpected collected order: %v", iss)
	}
}
