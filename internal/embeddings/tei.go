package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// TEIConfig holds configuration for the TEI backend.
type TEIConfig struct {
	// BaseURL is the base URL of the text-embeddings-inference server
	BaseURL string

	// Model is the model the server was started with (reported only)
	Model string

	// APIKey is sent as a bearer token when set
	APIKey string

	// Client overrides the HTTP client (tests)
	Client *http.Client
}

// Validate validates the configuration.
func (c TEIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	return nil
}

// TEIExtractor runs inference on a text-embeddings-inference server.
//
// The pooled path uses /embed, which pools and optionally normalizes on the
// server, plus /tokenize for token counts. The raw path uses /embed_all,
// which returns one hidden state per token.
type TEIExtractor struct {
	config TEIConfig
	client *http.Client
}

// NewTEIExtractor creates a TEI backend with the given configuration.
func NewTEIExtractor(config TEIConfig) (*TEIExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &TEIExtractor{config: config, client: client}, nil
}

type teiEmbedRequest struct {
	Inputs    string `json:"inputs"`
	Normalize bool   `json:"normalize"`
	Truncate  bool   `json:"truncate"`
}

type teiEmbedAllRequest struct {
	Inputs   string `json:"inputs"`
	Truncate bool   `json:"truncate"`
}

type teiTokenizeRequest struct {
	Inputs           string `json:"inputs"`
	AddSpecialTokens bool   `json:"add_special_tokens"`
}

type teiToken struct {
	ID      int  `json:"id"`
	Special bool `json:"special"`
}

// Extract implements Extractor.
func (t *TEIExtractor) Extract(ctx context.Context, text string, opts ExtractOptions) (*Output, error) {
	if opts.Pooling == PoolingMean {
		return t.embed(ctx, text, opts.Normalize)
	}
	return t.embedAll(ctx, text)
}

func (t *TEIExtractor) embed(ctx context.Context, text string, normalize bool) (*Output, error) {
	var vectors [][]float32
	if err := t.post(ctx, "/embed", teiEmbedRequest{Inputs: text, Normalize: normalize, Truncate: true}, &vectors); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return &Output{}, nil
	}

	// The pooled vector stays valid when /tokenize is not offered.
	tokens, err := t.tokenize(ctx, text)
	if errors.Is(err, ErrUnsupported) {
		tokens, err = NewApproxCounter(0).CountTokens(text)
	}
	if err != nil {
		return nil, err
	}

	v := vectors[0]
	return &Output{Data: v, Dims: []int{1, len(v)}, Tokens: tokens}, nil
}

func (t *TEIExtractor) embedAll(ctx context.Context, text string) (*Output, error) {
	var states [][][]float32
	if err := t.post(ctx, "/embed_all", teiEmbedAllRequest{Inputs: text, Truncate: true}, &states); err != nil {
		return nil, err
	}
	if len(states) == 0 || len(states[0]) == 0 {
		return nil, fmt.Errorf("%w: empty hidden states", ErrShape)
	}

	rows := states[0]
	dim := len(rows[0])
	data := make([]float32, 0, len(rows)*dim)
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: token %d has %d values, want %d", ErrShape, i, len(row), dim)
		}
		data = append(data, row...)
	}

	return &Output{Data: data, Dims: []int{1, len(rows), dim}, Tokens: len(rows)}, nil
}

func (t *TEIExtractor) tokenize(ctx context.Context, text string) (int, error) {
	var tokens [][]teiToken
	if err := t.post(ctx, "/tokenize", teiTokenizeRequest{Inputs: text, AddSpecialTokens: true}, &tokens); err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}
	return len(tokens[0]), nil
}

// post sends a JSON request and decodes the JSON response into out.
// 404 and 501 mean the server does not offer the route for this model.
func (t *TEIExtractor) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotImplemented:
		return fmt.Errorf("%w: %s returned status %d", ErrUnsupported, path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s status %d: %s", ErrInference, path, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrInference, path, err)
	}
	return nil
}

// Model returns the configured model identifier.
func (t *TEIExtractor) Model() string {
	return t.config.Model
}

// Close is a no-op for TEI since it uses HTTP.
func (t *TEIExtractor) Close() error {
	return nil
}
