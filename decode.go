package hsi

import (
	"bytes"
	"math"
	"sort"
	"strconv"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Decode converts an untyped payload tree (maps, sequences, scalars) into a
// typed Document. Shape problems surface as missing_required_fields or
// malformed_entry issues; substructure the integrity rules never consult
// (a non-mapping axes domain, a non-sequence readings list) is skipped rather
// than rejected, leaving its rejection to the structural schema layer.
func Decode(v any, opt ...CheckOpt) (*Document, error) {
	o := firstOpt(opt)
	dec := &decoder{}
	doc := dec.document(v)
	if len(dec.iss) > 0 {
		if o.Collect {
			return doc, dec.iss
		}
		return doc, dec.iss[:1]
	}
	return doc, nil
}

// DecodeJSON decodes a JSON payload into a Document. Numbers are preserved as
// json.Number so an integral dimension stays distinguishable from a float.
func DecodeJSON(data []byte, opt ...CheckOpt) (*Document, error) {
	d := gojson.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return nil, Issues{{Path: "/", Code: CodeMalformedEntry, Message: "invalid JSON payload", Cause: err}}
	}
	return Decode(v, opt...)
}

// DecodeYAML decodes a YAML payload into a Document. Mapping keys are
// normalized to strings so YAML input validates identically to JSON.
func DecodeYAML(data []byte, opt ...CheckOpt) (*Document, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, Issues{{Path: "/", Code: CodeMalformedEntry, Message: "invalid YAML payload", Cause: err}}
	}
	return Decode(NormalizeYAML(v), opt...)
}

type decoder struct {
	iss Issues
}

func (d *decoder) failAt(ref PathRef, code, msg string, kv ...any) {
	d.iss = AppendIssues(d.iss, ref.Issue(code, msg, kv...))
}

func (d *decoder) document(v any) *Document {
	doc := &Document{}
	root, ok := v.(map[string]any)
	if !ok {
		d.failAt(Root(), CodeMalformedEntry, "payload must be an object")
		return doc
	}

	d.windowSection(root, doc)
	doc.ObservedAtUTC = stringOr(root["observed_at_utc"])
	doc.ComputedAtUTC = stringOr(root["computed_at_utc"])
	d.sourceSection(root, doc)

	// meta: only its non-emptiness is ever consulted, so a non-mapping meta
	// decodes as absent (the closed schema rejects it structurally).
	if m, ok := root["meta"].(map[string]any); ok {
		doc.Meta = m
	}

	d.axesSection(root, doc)
	d.embeddingsSection(root, doc)
	return doc
}

func (d *decoder) windowSection(root map[string]any, doc *Document) {
	ids, idsOK := root["window_ids"].([]any)
	wins, winsOK := root["windows"].(map[string]any)
	if !idsOK || !winsOK {
		d.failAt(Root(), CodeMissingRequiredFields, "window_ids and windows must be present")
		return
	}
	doc.WindowIDs = make([]string, 0, len(ids))
	for i, raw := range ids {
		id, ok := raw.(string)
		if !ok {
			d.failAt(At("/window_ids").Index(i), CodeMalformedEntry, "window id must be a string")
			continue
		}
		doc.WindowIDs = append(doc.WindowIDs, id)
	}
	doc.Windows = make(map[string]Window, len(wins))
	for _, wid := range sortedKeys(wins) {
		w, ok := wins[wid].(map[string]any)
		if !ok {
			d.failAt(At("/windows").Field(wid), CodeMalformedEntry, "window must be an object")
			continue
		}
		doc.Windows[wid] = Window{Start: stringOr(w["start"]), End: stringOr(w["end"])}
	}
}

func (d *decoder) sourceSection(root map[string]any, doc *Document) {
	rawIDs, idsPresent := root["source_ids"]
	rawSrcs, srcsPresent := root["sources"]
	doc.SourceIDsPresent = idsPresent && rawIDs != nil
	doc.SourcesPresent = srcsPresent && rawSrcs != nil
	if !doc.SourceIDsPresent || !doc.SourcesPresent {
		// Types are only validated when both sections are present; a lone
		// section is the presence-XOR rule's business, not a shape error.
		return
	}
	ids, idsOK := rawIDs.([]any)
	srcs, srcsOK := rawSrcs.(map[string]any)
	if !idsOK || !srcsOK {
		d.failAt(Root(), CodeMalformedEntry, "source_ids must be an array and sources must be an object")
		return
	}
	doc.SourceIDs = make([]string, 0, len(ids))
	for i, raw := range ids {
		id, ok := raw.(string)
		if !ok {
			d.failAt(At("/source_ids").Index(i), CodeMalformedEntry, "source id must be a string")
			continue
		}
		doc.SourceIDs = append(doc.SourceIDs, id)
	}
	doc.Sources = make(map[string]map[string]any, len(srcs))
	for sid, raw := range srcs {
		body, _ := raw.(map[string]any) // only keys are consulted
		doc.Sources[sid] = body
	}
}

func (d *decoder) axesSection(root map[string]any, doc *Document) {
	axes, ok := root["axes"].(map[string]any)
	if !ok {
		return
	}
	doc.Axes = make(map[string]Axis, len(axes))
	for _, domain := range sortedKeys(axes) {
		domObj, ok := axes[domain].(map[string]any)
		if !ok {
			continue
		}
		rawReadings, ok := domObj["readings"].([]any)
		if !ok {
			continue
		}
		readings := make([]AxisReading, 0, len(rawReadings))
		for i, raw := range rawReadings {
			r, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			ref := At("/axes").Field(domain).Field("readings").Index(i)
			readings = append(readings, d.axisReading(ref, i, r))
		}
		doc.Axes[domain] = Axis{Readings: readings}
	}
}

func (d *decoder) axisReading(ref PathRef, idx int, r map[string]any) AxisReading {
	out := AxisReading{Index: idx}
	out.WindowID = d.windowID(ref, r["window_id"])
	if score, present := r["score"]; !present || score == nil {
		out.NullScore = true
	} else if f, ok := asFloat(score); ok {
		out.Score = &f
	}
	if raw, present := r["evidence_source_ids"]; present && raw != nil {
		out.EvidencePresent = true
		list, ok := raw.([]any)
		if !ok {
			d.failAt(ref.Field("evidence_source_ids"), CodeMalformedEntry, "evidence_source_ids must be an array")
			out.EvidencePresent = false
			return out
		}
		out.Evidence = make([]string, 0, len(list))
		for j, e := range list {
			sid, ok := e.(string)
			if !ok {
				d.failAt(ref.Field("evidence_source_ids").Index(j), CodeMalformedEntry, "evidence source id must be a string")
				continue
			}
			out.Evidence = append(out.Evidence, sid)
		}
	}
	return out
}

func (d *decoder) embeddingsSection(root map[string]any, doc *Document) {
	raw, present := root["embeddings"]
	if !present || raw == nil {
		return
	}
	list, ok := raw.([]any)
	if !ok {
		d.failAt(At("/embeddings"), CodeMalformedEntry, "embeddings must be an array")
		return
	}
	doc.Embeddings = make([]Embedding, 0, len(list))
	for i, rawEmb := range list {
		ref := At("/embeddings").Index(i)
		emb, ok := rawEmb.(map[string]any)
		if !ok {
			d.failAt(ref, CodeMalformedEntry, "embedding must be an object")
			continue
		}
		e := Embedding{Index: i}
		e.WindowID = d.windowID(ref, emb["window_id"])
		if vec, present := emb["vector"]; present && vec != nil {
			vlist, ok := vec.([]any)
			if !ok {
				d.failAt(ref.Field("vector"), CodeMalformedEntry, "embedding.vector must be an array when present")
			} else {
				e.VectorPresent = true
				e.Vector = make([]float64, 0, len(vlist))
				for j, n := range vlist {
					f, ok := asFloat(n)
					if !ok {
						d.failAt(ref.Field("vector").Index(j), CodeMalformedEntry, "vector element must be a number")
						continue
					}
					e.Vector = append(e.Vector, f)
				}
			}
		}
		if dim, ok := asInt(emb["dimension"]); ok {
			e.Dimension = &dim
		}
		doc.Embeddings = append(doc.Embeddings, e)
	}
}

func (d *decoder) windowID(ref PathRef, raw any) string {
	if raw == nil {
		return ""
	}
	id, ok := raw.(string)
	if !ok {
		d.failAt(ref.Field("window_id"), CodeMalformedEntry, "window_id must be a string")
		return ""
	}
	return id
}

// ---- scalar helpers ----

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case gojson.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// asInt accepts only integral numbers: a fractional value (3.5, the literal
// "3.0") never counts as a declared dimension. A float64 carrying an integral
// value does; encoding/json decodes every number that way, and a tree from it
// must check the same as one from a Number-preserving decoder.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case gojson.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return int(i), err == nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---- YAML normalization ----

// NormalizeYAML converts YAML-decoded values (which may contain map[any]any)
// into JSON-like map[string]any recursively, so a YAML payload can feed the
// same validation paths as a JSON one.
func NormalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = NormalizeYAML(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = NormalizeYAML(vv)
		}
		return out
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = NormalizeYAML(t[i])
		}
		return arr
	default:
		return v
	}
}
