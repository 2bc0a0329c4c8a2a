package summarize

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

// OpenAI asks a chat completion model for a JSON object reply.
type OpenAI struct {
	client      openai.Client
	model       string
	maxChars    int
	maxTokens   int
	temperature float64
	timeout     time.Duration
	prompts     Prompts
}

func NewOpenAI(cfg config.SummarizeConfig, openaiCfg config.OpenAIConfig, prompts Prompts, extra ...option.RequestOption) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(openaiCfg.APIKey)}
	if base := strings.TrimSpace(openaiCfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	opts = append(opts, extra...)

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}

	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       model,
		maxChars:    cfg.MaxTranscriptChars,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		prompts:     prompts,
	}
}

func (o *OpenAI) Summarize(ctx context.Context, transcript notes.Transcript, meta ports.SessionMeta) (notes.Notes, error) {
	if ctx == nil {
		return notes.Notes{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return notes.Notes{}, errs.Wrap(err, "check context")
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(o.prompts.System),
			openai.UserMessage(o.prompts.UserPrompt(meta, SerializeTranscript(transcript, o.maxChars))),
		},
		Temperature: openai.Float(o.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return notes.Notes{}, errs.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return notes.Notes{}, ErrUnparseable
	}

	return ParseNotes(resp.Choices[0].Message.Content)
}
