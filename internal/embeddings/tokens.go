package embeddings

import (
	"fmt"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// TokenCounter counts the tokens a text is split into.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

// tokenizerCounter counts tokens with a HuggingFace tokenizer.json.
type tokenizerCounter struct {
	tk        *tokenizer.Tokenizer
	maxLength int
}

// NewTokenizerCounter loads the tokenizer definition at path. Counts are
// capped at maxLength when it is positive, matching input truncation.
func NewTokenizerCounter(path string, maxLength int) (TokenCounter, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %s: %w", path, err)
	}
	return &tokenizerCounter{tk: tk, maxLength: maxLength}, nil
}

// CountTokens encodes text with special tokens and returns the id count.
func (c *tokenizerCounter) CountTokens(text string) (int, error) {
	enc, err := c.tk.EncodeSingle(text, true)
	if err != nil {
		return 0, fmt.Errorf("encoding text: %w", err)
	}
	n := len(enc.Ids)
	if c.maxLength > 0 && n > c.maxLength {
		n = c.maxLength
	}
	return n, nil
}

// approxCounter estimates tokens from whitespace separated words plus the
// two special tokens BERT-style models wrap every input with.
type approxCounter struct {
	maxLength int
}

// NewApproxCounter returns a TokenCounter for backends without a tokenizer.
func NewApproxCounter(maxLength int) TokenCounter {
	return approxCounter{maxLength: maxLength}
}

func (c approxCounter) CountTokens(text string) (int, error) {
	n := len(strings.Fields(text)) + 2
	if c.maxLength > 0 && n > c.maxLength {
		n = c.maxLength
	}
	return n, nil
}
