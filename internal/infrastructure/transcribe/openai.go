package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
)

// OpenAI calls the audio transcription endpoint and reads segment
// timestamps from the verbose JSON response.
type OpenAI struct {
	client         openai.Client
	model          string
	responseFormat openai.AudioResponseFormat
	timeout        time.Duration
}

func NewOpenAI(cfg config.TranscribeConfig, openaiCfg config.OpenAIConfig, extra ...option.RequestOption) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(openaiCfg.APIKey)}
	if base := strings.TrimSpace(openaiCfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	opts = append(opts, extra...)

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.AudioModelGPT4oMiniTranscribe
	}
	format := openai.AudioResponseFormat(strings.TrimSpace(cfg.ResponseFormat))
	if format == "" {
		format = openai.AudioResponseFormatVerboseJSON
	}

	return &OpenAI{
		client:         openai.NewClient(opts...),
		model:          model,
		responseFormat: format,
		timeout:        cfg.Timeout,
	}
}

type verboseSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type verboseResponse struct {
	Language string           `json:"language"`
	Text     string           `json:"text"`
	Segments []verboseSegment `json:"segments"`
}

func (o *OpenAI) Transcribe(ctx context.Context, wavPath string, language string) (notes.Transcript, error) {
	if ctx == nil {
		return notes.Transcript{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return notes.Transcript{}, errs.Wrap(err, "check context")
	}

	f, err := os.Open(wavPath)
	if err != nil {
		return notes.Transcript{}, errs.Wrap(err, "open wav file")
	}
	defer f.Close()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	params := openai.AudioTranscriptionNewParams{
		File:           f,
		Model:          o.model,
		ResponseFormat: o.responseFormat,
	}
	if o.responseFormat == openai.AudioResponseFormatVerboseJSON {
		params.TimestampGranularities = []string{"segment"}
	}
	lang := strings.TrimSpace(language)
	if lang != "" {
		params.Language = openai.String(lang)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return notes.Transcript{}, errs.Wrap(err, "openai transcription")
	}

	var verbose verboseResponse
	if raw := resp.RawJSON(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &verbose); err != nil {
			return notes.Transcript{}, errs.Wrap(err, "decode transcription response")
		}
	}
	if verbose.Text == "" {
		verbose.Text = resp.Text
	}
	if verbose.Language == "" {
		verbose.Language = lang
	}

	return toTranscript(verbose), nil
}

func toTranscript(v verboseResponse) notes.Transcript {
	out := notes.Transcript{Language: v.Language}
	if len(v.Segments) == 0 {
		out.Segments = []notes.Segment{{Speaker: defaultSpeaker, Text: strings.TrimSpace(v.Text)}}
		return out
	}

	out.Segments = make([]notes.Segment, 0, len(v.Segments))
	for _, s := range v.Segments {
		out.Segments = append(out.Segments, notes.Segment{
			Start:   s.Start,
			End:     s.End,
			Speaker: defaultSpeaker,
			Text:    strings.TrimSpace(s.Text),
		})
	}
	return out
}
