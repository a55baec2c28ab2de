// Package embeddings turns text into fixed-length vectors using a local
// inference backend.
//
// The backend is an Extractor: FastEmbed (in-process ONNX, requires cgo) or
// TEI (a text-embeddings-inference sidecar reached over HTTP). The Adapter
// sits in front of the Extractor and asks for pooled, normalized output
// first. If the backend cannot produce it, the Adapter requests the raw
// per-token tensor and pools it locally. Callers get the same Embedding
// either way.
//
// PrefixStrategy adds the "query: " / "passage: " markers that instruction
// tuned model families (E5) expect.
package embeddings
