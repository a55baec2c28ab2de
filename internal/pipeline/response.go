package pipeline

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"strings"
)

// EncodingFormat selects how vectors are written in the response.
type EncodingFormat string

const (
	EncodingFloat  EncodingFormat = "float"
	EncodingBase64 EncodingFormat = "base64"
)

// ParseEncodingFormat maps a request value to an EncodingFormat. Unknown
// values fall back to float.
func ParseEncodingFormat(s string) EncodingFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(EncodingBase64)) {
		return EncodingBase64
	}
	return EncodingFloat
}

// Request is the body of POST /embed and POST /v1/embeddings.
type Request struct {
	// Input is a string, an array of strings, or null.
	Input interface{} `json:"input"`
	// Model is echoed back in the response. It does not select a model.
	Model string `json:"model,omitempty"`
	// Type is "query" or "passage" (default).
	Type string `json:"type,omitempty"`
	// Normalize overrides the configured normalization toggle.
	Normalize *bool `json:"normalize,omitempty"`
	// EncodingFormat is "float" (default) or "base64".
	EncodingFormat string `json:"encoding_format,omitempty"`
}

// Response is the embeddings envelope.
type Response struct {
	Object string `json:"object"`
	Data   []Item `json:"data"`
	Model  string `json:"model"`
	Usage  Usage  `json:"usage"`
	Error  string `json:"error,omitempty"`
}

// Item is one embedding in a Response. Embedding is a []float32, or a
// base64 string of little-endian float32 values.
type Item struct {
	Object    string      `json:"object"`
	Index     int         `json:"index"`
	Embedding interface{} `json:"embedding"`
}

// Usage reports tokens consumed. Encoding has no completion tokens, so
// PromptTokens always equals TotalTokens.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Assembler collects embeddings in input order.
type Assembler struct {
	model  string
	format EncodingFormat
	items  []Item
	tokens int
}

// NewAssembler starts an envelope labeled with model.
func NewAssembler(model string, format EncodingFormat, capacity int) *Assembler {
	return &Assembler{
		model:  model,
		format: format,
		items:  make([]Item, 0, capacity),
	}
}

// Add appends the embedding for the next input position.
func (a *Assembler) Add(vec []float32, tokens int) {
	var embedding interface{} = vec
	if a.format == EncodingBase64 {
		embedding = encodeBase64(vec)
	}
	a.items = append(a.items, Item{
		Object:    "embedding",
		Index:     len(a.items),
		Embedding: embedding,
	})
	a.tokens += tokens
}

// Response returns the completed envelope.
func (a *Assembler) Response() *Response {
	return &Response{
		Object: "list",
		Data:   a.items,
		Model:  a.model,
		Usage:  Usage{PromptTokens: a.tokens, TotalTokens: a.tokens},
	}
}

// Failure returns an envelope for a failed batch: no data, zero usage and
// the error message. Anything added so far is discarded.
func (a *Assembler) Failure(err error) *Response {
	return FailureResponse(a.model, err)
}

// FailureResponse builds the failure envelope for model.
func FailureResponse(model string, err error) *Response {
	msg := "embedding failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &Response{
		Object: "list",
		Data:   []Item{},
		Model:  model,
		Usage:  Usage{},
		Error:  msg,
	}
}

func encodeBase64(vec []float32) string {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}
