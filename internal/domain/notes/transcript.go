package notes

import (
	"encoding/json"
	"fmt"
	"strings"
)

const defaultChatSpeaker = "Participant"

type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

type Transcript struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// ChatMessage is one line of an owner-decrypted chat transcript.
type ChatMessage struct {
	Who  string `json:"who"`
	Text string `json:"text"`
}

type ChatTranscript struct {
	Messages []ChatMessage `json:"messages"`
}

// ParseChatTranscript accepts a JSON object carrying a messages array.
func ParseChatTranscript(raw []byte) (ChatTranscript, error) {
	var envelope struct {
		Messages *[]ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ChatTranscript{}, ErrInvalidChat
	}
	if envelope.Messages == nil {
		return ChatTranscript{}, ErrInvalidChat
	}
	return ChatTranscript{Messages: *envelope.Messages}, nil
}

// Transcript converts chat messages into index-ordered pseudo segments.
func (c ChatTranscript) Transcript() Transcript {
	segments := make([]Segment, 0, len(c.Messages))
	for idx, msg := range c.Messages {
		speaker := strings.TrimSpace(msg.Who)
		if speaker == "" {
			speaker = defaultChatSpeaker
		}
		segments = append(segments, Segment{
			Start:   float64(idx),
			End:     float64(idx),
			Speaker: speaker,
			Text:    msg.Text,
		})
	}
	return Transcript{Segments: segments}
}

// Line renders a segment as "[start-end] speaker: text".
func (s Segment) Line() string {
	return fmt.Sprintf("[%s-%s] %s: %s", formatOffset(s.Start), formatOffset(s.End), s.Speaker, s.Text)
}

func formatOffset(seconds float64) string {
	return fmt.Sprintf("%.1fs", seconds)
}
