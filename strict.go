package hsi

import (
	"fmt"
	"sort"
)

// Strict runs the full referential/temporal integrity pass over an untyped
// payload tree: Decode followed by StrictDocument. It accepts schema-invalid
// payloads; shape problems surface as decode issues before any rule runs.
//
// Collection is per-phase: with CheckOpt{Collect: true} a shape-broken payload
// yields every decode issue but no rule issues, since the rules would report
// derivative violations of whatever the broken fields decoded to.
func Strict(v any, opt ...CheckOpt) error {
	doc, err := Decode(v, opt...)
	if err != nil {
		return err
	}
	return StrictDocument(doc, opt...)
}

// StrictDocument checks the integrity rules that a generic schema language
// cannot express, against an already-decoded Document:
//
//   - windows keys <-> window_ids set equality (likewise sources)
//   - computed_at_utc >= observed_at_utc
//   - window.end >= window.start for every declared window
//   - source_ids/sources are both present or both absent
//   - axis readings and embeddings reference declared window ids
//   - evidence_source_ids reference declared sources (and require sources to
//     be declared at all)
//   - a null score carries a non-empty top-level meta explanation
//   - embedding.dimension equals len(vector) when both are present
//
// The check is a pure single pass over the document; it never mutates or
// retains its input and is safe to run concurrently on independent documents.
// By default it stops at the first violation; CheckOpt{Collect: true}
// aggregates every violation into one Issues error.
func StrictDocument(d *Document, opt ...CheckOpt) error {
	c := &checker{collect: firstOpt(opt).Collect}

	c.windowSets(d)
	if !c.halted() {
		c.documentOrder(d)
	}
	if !c.halted() {
		c.windowOrder(d)
	}
	if !c.halted() {
		c.sources(d)
	}
	if !c.halted() {
		c.readings(d)
	}
	if !c.halted() {
		c.embeddings(d)
	}

	if len(c.iss) > 0 {
		if c.collect {
			return c.iss
		}
		return c.iss[:1]
	}
	return nil
}

type checker struct {
	collect bool
	iss     Issues
}

func (c *checker) halted() bool { return !c.collect && len(c.iss) > 0 }

func (c *checker) report(it Issue) { c.iss = AppendIssues(c.iss, it) }

// windowSets enforces set equality between window_ids and windows' keys,
// naming the symmetric difference with both halves sorted for deterministic
// messages.
func (c *checker) windowSets(d *Document) {
	if it, ok := setMismatch("windows", d.WindowIDs, keySet(d.Windows)); ok {
		c.report(it)
	}
}

func (c *checker) documentOrder(d *Document) {
	observed, obsErr := ParseTimestamp(d.ObservedAtUTC)
	if obsErr != nil {
		c.report(timestampIssue(At("/observed_at_utc"), d.ObservedAtUTC, obsErr))
		if c.halted() {
			return
		}
	}
	computed, cmpErr := ParseTimestamp(d.ComputedAtUTC)
	if cmpErr != nil {
		c.report(timestampIssue(At("/computed_at_utc"), d.ComputedAtUTC, cmpErr))
	}
	if obsErr != nil || cmpErr != nil {
		return
	}
	if computed.Before(observed) {
		c.report(Root().Issue(CodeTemporalOrder, "computed_at_utc must be >= observed_at_utc", "scope", "document"))
	}
}

func (c *checker) windowOrder(d *Document) {
	for _, wid := range sortedKeys(d.Windows) {
		w := d.Windows[wid]
		ref := At("/windows").Field(wid)
		start, startErr := ParseTimestamp(w.Start)
		if startErr != nil {
			c.report(timestampIssue(ref.Field("start"), w.Start, startErr))
			if c.halted() {
				return
			}
		}
		end, endErr := ParseTimestamp(w.End)
		if endErr != nil {
			c.report(timestampIssue(ref.Field("end"), w.End, endErr))
			if c.halted() {
				return
			}
		}
		if startErr != nil || endErr != nil {
			continue
		}
		if end.Before(start) {
			c.report(ref.Issue(CodeTemporalOrder, fmt.Sprintf("window %q end must be >= start", wid), "scope", "window", "id", wid))
			if c.halted() {
				return
			}
		}
	}
}

func (c *checker) sources(d *Document) {
	if d.SourceIDsPresent != d.SourcesPresent {
		c.report(Root().Issue(CodeSourcesPresence, "sources and source_ids must either both be present or both be absent"))
		return
	}
	if !d.SourcesPresent {
		return
	}
	if it, ok := setMismatch("sources", d.SourceIDs, keySet(d.Sources)); ok {
		c.report(it)
	}
}

func (c *checker) readings(d *Document) {
	windowSet := stringSet(d.WindowIDs)
	sourcesDeclared := d.SourceIDsPresent && d.SourcesPresent
	sourceSet := stringSet(d.SourceIDs)

	for _, domain := range sortedKeys(d.Axes) {
		for _, r := range d.Axes[domain].Readings {
			ref := At("/axes").Field(domain).Field("readings").Index(r.Index)

			// A null score must never be read as zero; it requires a
			// non-empty top-level meta explanation.
			if r.NullScore && len(d.Meta) == 0 {
				it := ref.Field("score").Issue(CodeNullScore,
					"axis reading with null score requires a non-empty top-level meta explanation")
				it.Hint = "add a top-level meta entry explaining why the score is unavailable"
				c.report(it)
				if c.halted() {
					return
				}
			}

			if !windowSet[r.WindowID] {
				c.report(ref.Field("window_id").Issue(CodeUnknownWindowRef,
					fmt.Sprintf("axis reading references unknown window_id %q", r.WindowID),
					"context", "axis_reading", "window_id", r.WindowID))
				if c.halted() {
					return
				}
			}

			if !r.EvidencePresent {
				continue
			}
			if !sourcesDeclared {
				// Distinct from an unknown id: referencing sources without
				// declaring any is its own violation, even for an empty list.
				c.report(ref.Field("evidence_source_ids").Issue(CodeUndeclaredSources,
					"evidence_source_ids present but sources/source_ids are not declared"))
				if c.halted() {
					return
				}
				continue
			}
			for j, sid := range r.Evidence {
				if !sourceSet[sid] {
					c.report(ref.Field("evidence_source_ids").Index(j).Issue(CodeUnknownSourceRef,
						fmt.Sprintf("axis reading references unknown source_id %q", sid),
						"source_id", sid))
					if c.halted() {
						return
					}
				}
			}
		}
	}
}

func (c *checker) embeddings(d *Document) {
	windowSet := stringSet(d.WindowIDs)
	for _, e := range d.Embeddings {
		ref := At("/embeddings").Index(e.Index)
		if !windowSet[e.WindowID] {
			c.report(ref.Field("window_id").Issue(CodeUnknownWindowRef,
				fmt.Sprintf("embedding references unknown window_id %q", e.WindowID),
				"context", "embedding", "window_id", e.WindowID))
			if c.halted() {
				return
			}
		}
		// Only checked when both sides are declared; an absent or
		// non-integral dimension is never compared against the vector.
		if e.VectorPresent && e.Dimension != nil && *e.Dimension != len(e.Vector) {
			c.report(ref.Field("dimension").Issue(CodeDimensionMismatch,
				"embedding.dimension must equal len(embedding.vector)",
				"expected", *e.Dimension, "actual", len(e.Vector)))
			if c.halted() {
				return
			}
		}
	}
}

// ---- helpers ----

func timestampIssue(ref PathRef, raw string, cause error) Issue {
	it := ref.Issue(CodeTimestampParse, "invalid RFC3339 timestamp", "value", raw)
	it.Hint = "use an RFC3339 instant such as 2024-01-01T00:00:00Z (Z and +00:00 are equivalent)"
	it.Cause = cause
	return it
}

func setMismatch(kind string, ids []string, keys map[string]bool) (Issue, bool) {
	idSet := stringSet(ids)
	var missing, extra []string
	for id := range idSet {
		if !keys[id] {
			missing = append(missing, id)
		}
	}
	for k := range keys {
		if !idSet[k] {
			extra = append(extra, k)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return Issue{}, false
	}
	sort.Strings(missing)
	sort.Strings(extra)
	msg := fmt.Sprintf("%s/%s_ids mismatch", kind, trimPlural(kind))
	if len(missing) > 0 {
		msg += fmt.Sprintf("; missing %s: %v", kind, missing)
	}
	if len(extra) > 0 {
		msg += fmt.Sprintf("; extra %s: %v", kind, extra)
	}
	return At("/" + kind).Issue(CodeSetMismatch, msg, "kind", kind, "missing", missing, "extra", extra), true
}

func keySet[V any](m map[string]V) map[string]bool {
	set := make(map[string]bool, len(m))
	for k := range m {
		set[k] = true
	}
	return set
}

func stringSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func trimPlural(kind string) string {
	// "windows" -> "window", "sources" -> "source"
	if n := len(kind); n > 0 && kind[n-1] == 's' {
		return kind[:n-1]
	}
	return kind
}
