package webhook

import (
	"strings"
	"time"
)

// Event types carried in the signed webhook stream. Only the post-call
// transcription event carries business logic; everything else is acknowledged
// and dropped.
const (
	EventTypePostCallTranscription = "post_call_transcription"
	EventTypePostCallAudio         = "post_call_audio"
)

// Event is the verified webhook payload envelope.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData is the post-call payload subset this system consumes. Everything
// except ConversationID is optional.
type EventData struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status,omitempty"`

	CallerPhone string `json:"caller_phone,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`

	// EventTimestamp is Unix seconds as reported by the provider.
	EventTimestamp int64 `json:"event_timestamp,omitempty"`

	Analysis   *Analysis        `json:"analysis,omitempty"`
	Transcript []TranscriptTurn `json:"transcript,omitempty"`
}

type Analysis struct {
	DataCollectionResults DataCollectionResults `json:"data_collection_results"`
}

type DataCollectionResults struct {
	Intent string `json:"intent"`
}

type TranscriptTurn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Intent returns the structured analysis intent, or "" when the event carries
// none.
func (d EventData) Intent() string {
	if d.Analysis == nil {
		return ""
	}
	return d.Analysis.DataCollectionResults.Intent
}

// Phone prefers caller_phone over phone_number; "" when neither is set.
func (d EventData) Phone() string {
	if d.CallerPhone != "" {
		return d.CallerPhone
	}
	return d.PhoneNumber
}

// OccurredAt converts the reported event timestamp; zero when absent.
func (d EventData) OccurredAt() time.Time {
	if d.EventTimestamp == 0 {
		return time.Time{}
	}
	return time.Unix(d.EventTimestamp, 0).UTC()
}

// Legacy event shapes, posted unsigned by older integrations. Their intent is
// recovered from free text by the keyword classifier.
const (
	LegacyEventConversationStarted = "conversation.started"
	LegacyEventConversationEnded   = "conversation.ended"
	LegacyEventConversationUpdated = "conversation.updated"
)

type LegacyEvent struct {
	EventType      string              `json:"event_type"`
	ConversationID string              `json:"conversation_id"`
	Conversation   *LegacyConversation `json:"conversation,omitempty"`
}

type LegacyConversation struct {
	CallerPhone string          `json:"caller_phone,omitempty"`
	Transcript  string          `json:"transcript,omitempty"`
	Messages    []LegacyMessage `json:"messages,omitempty"`
}

type LegacyMessage struct {
	Content string `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
}

// FullText concatenates the transcript and message contents for
// classification.
func (c *LegacyConversation) FullText() string {
	if c == nil {
		return ""
	}
	parts := []string{c.Transcript}
	for _, m := range c.Messages {
		if m.Content != "" {
			parts = append(parts, m.Content)
		} else if m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
