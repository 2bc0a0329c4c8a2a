package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderStub      = "stub"

	truncationMarker = "\n...[truncated]"
	previewSegments  = 8
	previewChars     = 400
)

var ErrUnparseable = errs.New(errs.KindInternal, "failed to parse summarization JSON")

// New picks the summarization backend once at startup. Without an explicit
// provider, OpenAI is used when its key is set, then Anthropic, then the stub.
func New(ctx context.Context, cfg config.Config) (ports.Summarizer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Summarize.Provider))
	if provider == "" {
		switch {
		case strings.TrimSpace(cfg.OpenAI.APIKey) != "":
			provider = ProviderOpenAI
		case strings.TrimSpace(cfg.Anthropic.APIKey) != "":
			provider = ProviderAnthropic
		default:
			provider = ProviderStub
		}
	}

	prompts := DefaultPrompts()
	if path := strings.TrimSpace(cfg.Summarize.PromptFile); path != "" {
		loaded, err := LoadPrompts(path)
		if err != nil {
			return nil, errs.Wrapf(err, "load prompt profile %s", path)
		}
		prompts = loaded
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.summarize"), slog.String("provider", provider))
	switch provider {
	case ProviderOpenAI:
		logging.Info(logCtx, "summarization provider selected", slog.String("model", cfg.Summarize.Model))
		return NewOpenAI(cfg.Summarize, cfg.OpenAI, prompts), nil
	case ProviderAnthropic:
		logging.Info(logCtx, "summarization provider selected", slog.String("model", cfg.Anthropic.Model))
		return NewAnthropic(cfg.Summarize, cfg.Anthropic, prompts), nil
	case ProviderStub:
		logging.Info(logCtx, "summarization provider selected")
		return Stub{}, nil
	default:
		logging.Warn(logCtx, "unknown summarization provider, using stub")
		return Stub{}, nil
	}
}

// Stub echoes a short transcript preview so reports stay readable without
// an LLM.
type Stub struct{}

func (Stub) Summarize(_ context.Context, transcript notes.Transcript, _ ports.SessionMeta) (notes.Notes, error) {
	texts := make([]string, 0, previewSegments)
	for i, seg := range transcript.Segments {
		if i >= previewSegments {
			break
		}
		if t := strings.TrimSpace(seg.Text); t != "" {
			texts = append(texts, t)
		}
	}

	preview := truncateRunes(strings.Join(texts, " "), previewChars)
	summary := "No transcript available."
	if preview != "" {
		summary = "Transcript preview: " + preview
	}
	return notes.Notes{Summary: summary}.Normalize(), nil
}

// SerializeTranscript renders one "[start-end] speaker: text" line per
// non-empty segment and cuts the result at maxChars, keeping the beginning.
func SerializeTranscript(transcript notes.Transcript, maxChars int) string {
	lines := make([]string, 0, len(transcript.Segments))
	for _, seg := range transcript.Segments {
		text := strings.Join(strings.Fields(seg.Text), " ")
		if text == "" {
			continue
		}
		speaker := strings.TrimSpace(seg.Speaker)
		if speaker == "" {
			speaker = "Speaker"
		}
		lines = append(lines, notes.Segment{Start: seg.Start, End: seg.End, Speaker: speaker, Text: text}.Line())
	}

	out := strings.Join(lines, "\n")
	if maxChars > 0 && utf8.RuneCountInString(out) > maxChars {
		out = truncateRunes(out, maxChars) + truncationMarker
	}
	return out
}

// ParseNotes accepts a strict JSON object or, failing that, the outermost
// {...} span of a reply wrapped in prose.
func ParseNotes(raw string) (notes.Notes, error) {
	var out notes.Notes
	trimmed := strings.TrimSpace(raw)
	// Only an object counts; null or arrays decode into empty notes.
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out.Normalize(), nil
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return notes.Notes{}, ErrUnparseable
	}
	out = notes.Notes{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &out); err != nil {
		return notes.Notes{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return out.Normalize(), nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
