package components

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens in a piece of text. It is used by Memory to
// enforce a token budget on the chat history sent to the model.
type TokenCounter interface {
	Count(s string) int
}

// TikTokenCounter counts tokens with the tiktoken BPE encodings used by
// OpenAI compatible models.
type TikTokenCounter struct {
	tke *tiktoken.Tiktoken
}

// NewTikTokenCounter creates a TikTokenCounter for the given encoding,
// e.g. "cl100k_base".
func NewTikTokenCounter(encoding string) (*TikTokenCounter, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding: %w", err)
	}
	return &TikTokenCounter{tke: tke}, nil
}

func (c *TikTokenCounter) Count(s string) int {
	return len(c.tke.Encode(s, nil, nil))
}
