package summarize

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"pdfrealm/internal/ports"
)

// Prompts holds the instruction texts sent to the LLM. Deployments can
// override them with a TOML profile:
//
//	system = "..."
//	instructions = "..."
type Prompts struct {
	System       string `toml:"system"`
	Instructions string `toml:"instructions"`
}

const defaultSystemPrompt = "You are an assistant designed to produce a JSON meeting notes object. Output MUST be valid JSON only (no markdown)."

const defaultInstructions = `Create concise meeting/call notes as JSON for the following session.

Requirements:
Return a single JSON object with EXACT keys:
- summary: string
- topics: array of { topic: string, details: string }
- decisions: array of string
- action_items: array of { owner: string|null, item: string, due: string|null }
- open_questions: array of string
- key_quotes: array of { speaker: string, quote: string }`

func DefaultPrompts() Prompts {
	return Prompts{System: defaultSystemPrompt, Instructions: defaultInstructions}
}

func LoadPrompts(path string) (Prompts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, err
	}

	var p Prompts
	if err := toml.Unmarshal(raw, &p); err != nil {
		return Prompts{}, err
	}

	defaults := DefaultPrompts()
	if strings.TrimSpace(p.System) == "" {
		p.System = defaults.System
	}
	if strings.TrimSpace(p.Instructions) == "" {
		return Prompts{}, errors.New("prompt profile: instructions is required")
	}
	return p, nil
}

// UserPrompt assembles the per-session request: instructions, session
// metadata, then the timestamped transcript.
func (p Prompts) UserPrompt(meta ports.SessionMeta, transcriptText string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Instructions))
	b.WriteString("\n\nSession:\n")
	fmt.Fprintf(&b, "- title: %s\n", meta.Title)
	fmt.Fprintf(&b, "- session_type: %s\n", meta.Kind)
	fmt.Fprintf(&b, "- started_at: %s\n", formatTime(meta.StartedAt))
	fmt.Fprintf(&b, "- ended_at: %s\n", formatTime(meta.EndedAt))
	b.WriteString("\nTranscript (timestamped):\n")
	b.WriteString(transcriptText)
	return b.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
