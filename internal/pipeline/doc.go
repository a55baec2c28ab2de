// Package pipeline turns an embeddings request into an embeddings response
// in the shape of the OpenAI embeddings API.
//
// A request flows through NormalizeInput, the prefix strategy, the
// inference adapter and dimension reconciliation, and is collected by an
// Assembler. Items are processed one at a time in input order. Any failure
// discards the whole batch.
package pipeline
