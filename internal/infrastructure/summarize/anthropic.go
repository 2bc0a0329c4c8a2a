package summarize

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

const defaultAnthropicMaxTokens = 1200

// Anthropic asks a Claude model for the notes object through the messages
// API and reads the text blocks of the reply.
type Anthropic struct {
	client      anthropic.Client
	model       string
	maxChars    int
	maxTokens   int64
	temperature float64
	timeout     time.Duration
	prompts     Prompts
}

func NewAnthropic(cfg config.SummarizeConfig, anthropicCfg config.AnthropicConfig, prompts Prompts, extra ...aoption.RequestOption) *Anthropic {
	opts := append([]aoption.RequestOption{aoption.WithAPIKey(anthropicCfg.APIKey)}, extra...)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &Anthropic{
		client:      anthropic.NewClient(opts...),
		model:       strings.TrimSpace(anthropicCfg.Model),
		maxChars:    cfg.MaxTranscriptChars,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		prompts:     prompts,
	}
}

func (a *Anthropic) Summarize(ctx context.Context, transcript notes.Transcript, meta ports.SessionMeta) (notes.Notes, error) {
	if ctx == nil {
		return notes.Notes{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return notes.Notes{}, errs.Wrap(err, "check context")
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
		System:      []anthropic.TextBlockParam{{Text: a.prompts.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(a.prompts.UserPrompt(meta, SerializeTranscript(transcript, a.maxChars)))),
		},
	})
	if err != nil {
		return notes.Notes{}, errs.Wrap(err, "anthropic messages")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return ParseNotes(text.String())
}
