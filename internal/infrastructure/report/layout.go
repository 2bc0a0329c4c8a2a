package report

import (
	"time"

	"pdfrealm/internal/ports"
)

const (
	Placeholder  = "—"
	DefaultTitle = "AI Notes Report"
)

type BlockKind int

const (
	BlockTitle BlockKind = iota
	BlockMeta
	BlockHeading
	BlockSubheading
	BlockParagraph
	BlockBullet
	BlockTranscriptLine
)

// Block is one laid-out unit of the report in reading order.
type Block struct {
	Kind BlockKind
	Text string
}

// Section headings in the order they are rendered.
const (
	HeadingParticipants  = "Participants"
	HeadingSummary       = "Summary"
	HeadingTopics        = "Topics"
	HeadingDecisions     = "Decisions"
	HeadingActionItems   = "Action Items"
	HeadingOpenQuestions = "Open Questions"
	HeadingKeyQuotes     = "Key Quotes"
	HeadingTranscript    = "Transcript (Appendix)"
)

// BuildLayout turns the report input into an ordered list of blocks. Every
// section is always present; empty ones carry a single placeholder.
func BuildLayout(in ports.ReportInput) []Block {
	n := in.Notes.Normalize()
	blocks := make([]Block, 0, 32)
	add := func(kind BlockKind, text string) {
		blocks = append(blocks, Block{Kind: kind, Text: text})
	}
	bullets := func(heading string, items []string) {
		add(BlockHeading, heading)
		if len(items) == 0 {
			add(BlockBullet, Placeholder)
			return
		}
		for _, item := range items {
			add(BlockBullet, item)
		}
	}

	title := n.Title
	if title == "" {
		title = in.Session.Title
	}
	if title == "" {
		title = DefaultTitle
	}
	add(BlockTitle, title)

	add(BlockMeta, "Session Type: "+orPlaceholder(string(in.Session.Kind)))
	add(BlockMeta, "Context: "+orPlaceholder(in.Session.ContextID))
	add(BlockMeta, "Started: "+formatTime(in.Session.StartedAt))
	add(BlockMeta, "Ended: "+formatTime(in.Session.EndedAt))
	add(BlockMeta, "Generated: "+formatTime(&in.GeneratedAt))

	bullets(HeadingParticipants, in.Participants)

	add(BlockHeading, HeadingSummary)
	add(BlockParagraph, orPlaceholder(n.Summary))

	add(BlockHeading, HeadingTopics)
	if len(n.Topics) == 0 {
		add(BlockBullet, Placeholder)
	}
	for _, t := range n.Topics {
		add(BlockSubheading, orPlaceholder(t.Topic))
		if t.Details != "" {
			add(BlockParagraph, t.Details)
		}
	}

	bullets(HeadingDecisions, n.Decisions)

	actions := make([]string, 0, len(n.ActionItems))
	for _, a := range n.ActionItems {
		actions = append(actions, a.String())
	}
	bullets(HeadingActionItems, actions)

	bullets(HeadingOpenQuestions, n.OpenQuestions)

	quotes := make([]string, 0, len(n.KeyQuotes))
	for _, q := range n.KeyQuotes {
		quotes = append(quotes, q.String())
	}
	bullets(HeadingKeyQuotes, quotes)

	if in.IncludeTranscript {
		add(BlockHeading, HeadingTranscript)
		if len(in.Transcript.Segments) == 0 {
			add(BlockTranscriptLine, Placeholder)
		}
		for _, seg := range in.Transcript.Segments {
			add(BlockTranscriptLine, seg.Line())
		}
	}

	return blocks
}

// SectionBlocks returns the blocks between heading and the next heading.
func SectionBlocks(blocks []Block, heading string) []Block {
	for i, b := range blocks {
		if b.Kind != BlockHeading || b.Text != heading {
			continue
		}
		end := i + 1
		for end < len(blocks) && blocks[end].Kind != BlockHeading {
			end++
		}
		return blocks[i+1 : end]
	}
	return nil
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return Placeholder
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}
