package notes

import "strings"

type Topic struct {
	Topic   string `json:"topic"`
	Details string `json:"details"`
}

type ActionItem struct {
	Owner string `json:"owner"`
	Item  string `json:"item"`
	Due   string `json:"due"`
}

type KeyQuote struct {
	Speaker string `json:"speaker"`
	Quote   string `json:"quote"`
}

// Notes is the structured summary produced for a session.
type Notes struct {
	Title         string       `json:"title,omitempty"`
	Summary       string       `json:"summary"`
	Topics        []Topic      `json:"topics"`
	Decisions     []string     `json:"decisions"`
	ActionItems   []ActionItem `json:"action_items"`
	OpenQuestions []string     `json:"open_questions"`
	KeyQuotes     []KeyQuote   `json:"key_quotes"`
}

// Normalize trims text, drops blank entries and replaces nil collections
// with empty ones.
func (n Notes) Normalize() Notes {
	out := Notes{
		Title:         strings.TrimSpace(n.Title),
		Summary:       strings.TrimSpace(n.Summary),
		Topics:        []Topic{},
		Decisions:     compactStrings(n.Decisions),
		ActionItems:   []ActionItem{},
		OpenQuestions: compactStrings(n.OpenQuestions),
		KeyQuotes:     []KeyQuote{},
	}

	for _, t := range n.Topics {
		t.Topic = strings.TrimSpace(t.Topic)
		t.Details = strings.TrimSpace(t.Details)
		if t.Topic == "" && t.Details == "" {
			continue
		}
		out.Topics = append(out.Topics, t)
	}
	for _, a := range n.ActionItems {
		a.Owner = strings.TrimSpace(a.Owner)
		a.Item = strings.TrimSpace(a.Item)
		a.Due = strings.TrimSpace(a.Due)
		if a.Item == "" {
			continue
		}
		out.ActionItems = append(out.ActionItems, a)
	}
	for _, q := range n.KeyQuotes {
		q.Speaker = strings.TrimSpace(q.Speaker)
		q.Quote = strings.TrimSpace(q.Quote)
		if q.Quote == "" {
			continue
		}
		out.KeyQuotes = append(out.KeyQuotes, q)
	}
	return out
}

// String renders an action item as "item (Owner: X, Due: Y)".
func (a ActionItem) String() string {
	parts := make([]string, 0, 2)
	if a.Owner != "" {
		parts = append(parts, "Owner: "+a.Owner)
	}
	if a.Due != "" {
		parts = append(parts, "Due: "+a.Due)
	}
	if len(parts) == 0 {
		return a.Item
	}
	return a.Item + " (" + strings.Join(parts, ", ") + ")"
}

func (q KeyQuote) String() string {
	speaker := q.Speaker
	if speaker == "" {
		speaker = "Speaker"
	}
	return speaker + ": “" + q.Quote + "”"
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
