package hsi

// Package hsi validates Heuristic Signal Interchange (HSI) payloads.
//
// - Strict referential/temporal integrity checking via Strict/StrictDocument
//   (window and source set equality, timestamp ordering, cross-subtree
//   references, null-score policy, embedding dimensions)
// - A stable error model via Issues (JSON Pointer, code, message)
// - Typed decoding of untyped payload trees via Decode/DecodeJSON/DecodeYAML
//
// Design policy:
// - Keep the public API in the root package; generic schema conformance lives
//   in basic/ and the CLI under cmd/hsi.
// - The strict layer re-derives its own shape checks during Decode rather than
//   assuming a prior structural pass succeeded.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//  doc, err := hsi.DecodeJSON(data)
//  err = hsi.StrictDocument(doc)
//
//  // or, over an already-decoded tree, fail-fast:
//  err = hsi.Strict(payload)
//
//  // aggregate every violation instead of stopping at the first:
//  err = hsi.Strict(payload, hsi.CheckOpt{Collect: true})
//
