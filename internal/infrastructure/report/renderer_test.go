package report

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrealm/internal/domain/notes"
	"pdfrealm/internal/ports"
)

var generatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleInput() ports.ReportInput {
	started := generatedAt.Add(-time.Hour)
	return ports.ReportInput{
		Session: ports.SessionMeta{
			ID:        "s1",
			Kind:      notes.KindVideo,
			ContextID: "room-7",
			Title:     "Weekly sync",
			StartedAt: &started,
		},
		Participants: []string{"Ann", "Bob", "Cy"},
		Notes: notes.Notes{
			Summary:     "We agreed on the launch.",
			Topics:      []notes.Topic{{Topic: "Launch", Details: "Friday at noon"}},
			Decisions:   []string{"Ship Friday"},
			ActionItems: []notes.ActionItem{{Owner: "Bob", Item: "Write changelog"}},
			KeyQuotes:   []notes.KeyQuote{{Speaker: "Ann", Quote: "Let's go"}},
		},
		Transcript: notes.Transcript{Segments: []notes.Segment{
			{Start: 0, End: 1, Speaker: "Ann", Text: "hello"},
			{Start: 1, End: 2, Speaker: "Bob", Text: "hi"},
		}},
		GeneratedAt: generatedAt,
	}
}

func headings(blocks []Block) []string {
	var out []string
	for _, b := range blocks {
		if b.Kind == BlockHeading {
			out = append(out, b.Text)
		}
	}
	return out
}

func TestBuildLayoutSectionOrder(t *testing.T) {
	in := sampleInput()
	in.IncludeTranscript = true
	blocks := BuildLayout(in)

	assert.Equal(t, Block{Kind: BlockTitle, Text: "Weekly sync"}, blocks[0])
	assert.Equal(t, []string{
		HeadingParticipants, HeadingSummary, HeadingTopics, HeadingDecisions,
		HeadingActionItems, HeadingOpenQuestions, HeadingKeyQuotes, HeadingTranscript,
	}, headings(blocks))

	assert.Equal(t, []Block{
		{Kind: BlockMeta, Text: "Session Type: video"},
		{Kind: BlockMeta, Text: "Context: room-7"},
		{Kind: BlockMeta, Text: "Started: 2024-05-01 11:00:00 UTC"},
		{Kind: BlockMeta, Text: "Ended: —"},
		{Kind: BlockMeta, Text: "Generated: 2024-05-01 12:00:00 UTC"},
	}, blocks[1:6])

	assert.Len(t, SectionBlocks(blocks, HeadingParticipants), 3)
	assert.Equal(t, []Block{{Kind: BlockBullet, Text: "Write changelog (Owner: Bob)"}}, SectionBlocks(blocks, HeadingActionItems))
	assert.Equal(t, []Block{{Kind: BlockBullet, Text: Placeholder}}, SectionBlocks(blocks, HeadingOpenQuestions))
	assert.Equal(t, []Block{{Kind: BlockBullet, Text: "Ann: “Let's go”"}}, SectionBlocks(blocks, HeadingKeyQuotes))
	assert.Equal(t, []Block{
		{Kind: BlockTranscriptLine, Text: "[0.0s-1.0s] Ann: hello"},
		{Kind: BlockTranscriptLine, Text: "[1.0s-2.0s] Bob: hi"},
	}, SectionBlocks(blocks, HeadingTranscript))
}

func TestBuildLayoutEmptyNotesKeepsEverySection(t *testing.T) {
	blocks := BuildLayout(ports.ReportInput{GeneratedAt: generatedAt})

	assert.Equal(t, DefaultTitle, blocks[0].Text)
	for _, h := range []string{HeadingParticipants, HeadingSummary, HeadingTopics, HeadingDecisions, HeadingActionItems, HeadingOpenQuestions, HeadingKeyQuotes} {
		section := SectionBlocks(blocks, h)
		require.Len(t, section, 1, h)
		assert.Equal(t, Placeholder, section[0].Text, h)
	}
	assert.Nil(t, SectionBlocks(blocks, HeadingTranscript), "appendix is opt-in")
}

func TestBuildLayoutTitleFallback(t *testing.T) {
	in := sampleInput()
	in.Notes.Title = "From the model"
	assert.Equal(t, "From the model", BuildLayout(in)[0].Text)
}

func TestRenderProducesPDF(t *testing.T) {
	out, err := NewRenderer().Render(sampleInput())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	again, err := NewRenderer().Render(sampleInput())
	require.NoError(t, err)
	assert.Equal(t, out, again, "same input must render identical bytes")
}

func TestRenderFootersCoverEveryPage(t *testing.T) {
	in := sampleInput()
	in.IncludeTranscript = true
	in.Transcript.Segments = nil
	for i := 0; i < 200; i++ {
		in.Transcript.Segments = append(in.Transcript.Segments, notes.Segment{
			Start: float64(i), End: float64(i + 1), Speaker: "Ann", Text: strings.Repeat("words ", 8),
		})
	}

	out, err := (&Renderer{compress: false}).Render(in)
	require.NoError(t, err)

	pages := bytes.Count(out, []byte("/Type /Page\n"))
	require.Greater(t, pages, 1)
	for i := 1; i <= pages; i++ {
		assert.Contains(t, string(out), fmt.Sprintf("(Page %d of %d)", i, pages))
	}
}
