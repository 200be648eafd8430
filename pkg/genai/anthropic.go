package genai

import (
	"context"
	"strings"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// AnthropicBackend issues generation calls through the Anthropic Messages
// API. One SDK client is built lazily per credential so the key pool can
// rotate across them without re-dialing.
type AnthropicBackend struct {
	mu      sync.Mutex
	clients map[string]*sdk.Client
}

func NewAnthropicBackend() *AnthropicBackend {
	return &AnthropicBackend{clients: make(map[string]*sdk.Client)}
}

func (b *AnthropicBackend) clientFor(apiKey string) *sdk.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.clients[apiKey]; ok {
		return c
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	b.clients[apiKey] = &c
	return &c
}

// Complete sends one message and concatenates the text blocks of the
// response.
func (b *AnthropicBackend) Complete(ctx context.Context, apiKey string, req Request) (string, error) {
	client := b.clientFor(apiKey)

	params := sdk.MessageNewParams{
		Model:       sdk.Model(req.Model),
		MaxTokens:   req.MaxTokens,
		Temperature: sdk.Float(req.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{
			{Text: req.System},
		}
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "genai: create message")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
