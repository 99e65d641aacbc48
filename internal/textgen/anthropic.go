package textgen

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// AnthropicProvider is the primary provider, backed by the official SDK.
type AnthropicProvider struct {
	client    sdk.Client
	model     string
	maxTokens int
}

// NewAnthropicProvider creates the primary provider. maxTokens is the
// model's output ceiling used for clamping.
func NewAnthropicProvider(apiKey, model string, maxTokens int) *AnthropicProvider {
	return &AnthropicProvider{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) MaxOutputTokens() int { return p.maxTokens }

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (string, error) {
	msg, err := p.client.Messages.New(ctx, p.params(req))
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	p.logUsage(msg.Usage.InputTokens, msg.Usage.OutputTokens)

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// GenerateStream streams text deltas through onChunk and returns the
// accumulated completion.
func (p *AnthropicProvider) GenerateStream(ctx context.Context, req Request, onChunk func(string)) (string, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(req))

	message := sdk.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return "", eris.Wrap(err, "anthropic: accumulate stream event")
		}

		switch eventVariant := event.AsAny().(type) {
		case sdk.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if onChunk != nil {
					onChunk(deltaVariant.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", eris.Wrap(err, "anthropic: stream")
	}

	p.logUsage(message.Usage.InputTokens, message.Usage.OutputTokens)

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

func (p *AnthropicProvider) params(req Request) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
		Temperature: sdk.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	return params
}

func (p *AnthropicProvider) logUsage(in, out int64) {
	zap.L().Debug("token usage",
		zap.String("provider", "anthropic"),
		zap.String("model", p.model),
		zap.Int64("input_tokens", in),
		zap.Int64("output_tokens", out),
	)
}
