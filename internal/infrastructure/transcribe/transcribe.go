package transcribe

import (
	"context"
	"log/slog"
	"strings"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/domain/notes"
	"pdfrealm/internal/ports"
)

const (
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"

	defaultSpeaker = "Speaker"
)

// New picks the transcription backend once at startup: an explicit provider
// wins, otherwise OpenAI when a key is configured, otherwise the stub.
func New(ctx context.Context, cfg config.TranscribeConfig, openaiCfg config.OpenAIConfig) ports.Transcriber {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderStub
		if strings.TrimSpace(openaiCfg.APIKey) != "" {
			provider = ProviderOpenAI
		}
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.transcribe"))
	switch provider {
	case ProviderOpenAI:
		logging.Info(logCtx, "transcription provider selected", slog.String("provider", provider), slog.String("model", cfg.Model))
		return NewOpenAI(cfg, openaiCfg)
	default:
		if provider != ProviderStub {
			logging.Warn(logCtx, "unknown transcription provider, using stub", slog.String("provider", provider))
		} else {
			logging.Info(logCtx, "transcription provider selected", slog.String("provider", provider))
		}
		return Stub{}
	}
}

// Stub keeps the pipeline usable without a speech-to-text provider.
type Stub struct{}

const stubText = "(Transcription unavailable. Configure transcribe.provider=openai and an OpenAI API key.)"

func (Stub) Transcribe(_ context.Context, _ string, language string) (notes.Transcript, error) {
	return notes.Transcript{
		Language: strings.TrimSpace(language),
		Segments: []notes.Segment{{Speaker: defaultSpeaker, Text: stubText}},
	}, nil
}
