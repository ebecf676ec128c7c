// Package tokenizer estimates token counts locally for usage reporting.
package tokenizer

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"mcpchat/config"
	"mcpchat/model"
)

const fallbackEncoding = "cl100k_base"

// Counter approximates token counts. It uses a tiktoken encoding when one can be
// loaded and otherwise counts whitespace-separated words.
type Counter struct {
	name    string
	encoder *tiktoken.Tiktoken
}

// New resolves name as a model name first, then as an encoding name, then falls
// back to cl100k_base. When no encoding can be loaded (for example the BPE files
// cannot be fetched), the counter degrades to whitespace counting.
func New(name string) *Counter {
	c := &Counter{name: name}

	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
	}
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		config.Log.Warn().Err(err).Str("tokenizer", name).Msg("[Tokens] encoding unavailable, using whitespace estimate")
		return c
	}

	c.encoder = enc
	return c
}

// NewWhitespace returns a counter that never loads an encoding.
func NewWhitespace() *Counter {
	return &Counter{name: "whitespace"}
}

// Name is the tokenizer identifier the counter was created with.
func (c *Counter) Name() string {
	return c.name
}

// Exact reports whether a real encoding backs the counter.
func (c *Counter) Exact() bool {
	return c.encoder != nil
}

// CountText counts tokens in text. Empty text is zero tokens.
func (c *Counter) CountText(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder == nil {
		return len(strings.Fields(text))
	}
	return len(c.encoder.Encode(text, nil, nil))
}

// CountMessages sums role and content tokens over msgs.
func (c *Counter) CountMessages(msgs []model.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.CountText(m.Role)
		total += c.CountText(m.Content)
	}
	return total
}
