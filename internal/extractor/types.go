package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/resonance/internal/analyzer"
)

// ErrUnsupportedKind is returned when a caller asks for a source kind the
// extractor does not know how to read.
var ErrUnsupportedKind = errors.New("unsupported source kind")

// SourceKind tells Extract how to interpret its input.
type SourceKind string

const (
	KindHTML SourceKind = "html"
	KindJSON SourceKind = "json"
	KindText SourceKind = "text"
)

// ParseSourceKind maps a user-supplied kind name onto a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html", "htm":
		return KindHTML, nil
	case "json":
		return KindJSON, nil
	case "text", "txt", "rawtext", "raw":
		return KindText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// KindFromPath infers the source kind from a file extension. Anything that is
// not HTML or JSON is read as raw text.
func KindFromPath(path string) SourceKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return KindHTML
	case ".json":
		return KindJSON
	default:
		return KindText
	}
}

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleUnknown   Role = "unknown"
)

// Message is a single turn recovered from a conversation.
type Message struct {
	Role              Role     `json:"role"`
	Content           string   `json:"content"`
	Timestamp         *float64 `json:"timestamp,omitempty"`
	TimestampReadable string   `json:"timestamp_readable,omitempty"`

	// ContentID correlates the message with payload-internal references.
	// Only meaningful during extraction.
	ContentID string `json:"-"`
}

func (m *Message) setTimestamp(ts float64) {
	m.Timestamp = &ts
	m.TimestampReadable = readableTime(ts)
}

// Pattern names the locator pattern that produced a payload.
type Pattern string

const (
	PatternStreamEnqueue  Pattern = "stream_enqueue"
	PatternMessagesArray  Pattern = "messages_array"
	PatternConversation   Pattern = "conversation_object"
	PatternGlobalState    Pattern = "global_state"
	PatternDirectDocument Pattern = "json_document"
)

// RawPayload is the escaped blob found inside a source document, along with
// its decoded JSON text.
type RawPayload struct {
	Pattern Pattern
	Raw     string
	Decoded string
}

// Strategy names which path of the pipeline produced the message list.
type Strategy string

const (
	StrategySchema    Strategy = "schema"
	StrategyMarkers   Strategy = "markers"
	StrategyDOM       Strategy = "dom_roles"
	StrategyLabeled   Strategy = "labeled_turns"
	StrategyParagraph Strategy = "paragraphs"
	StrategyNone      Strategy = "none"
)

// Conversation is the structured form of an extracted transcript.
type Conversation struct {
	Title              string    `json:"title"`
	CreateTime         *float64  `json:"create_time,omitempty"`
	CreateTimeReadable string    `json:"create_time_readable,omitempty"`
	UpdateTime         *float64  `json:"update_time,omitempty"`
	UpdateTimeReadable string    `json:"update_time_readable,omitempty"`
	Strategy           Strategy  `json:"strategy"`
	Pattern            Pattern   `json:"pattern,omitempty"`
	Messages           []Message `json:"messages"`
}

// Result bundles the recovered conversation with its analysis.
type Result struct {
	Kind         SourceKind       `json:"kind"`
	Conversation Conversation     `json:"conversation"`
	Context      analyzer.Context `json:"context"`
}

const defaultTitle = "ChatGPT Conversation"

func readableTime(ts float64) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format(time.RFC3339)
}

// partition splits messages into user and assistant texts, preserving order.
// Messages with any other role are left out of both lists.
func partition(msgs []Message) (user, assistant []string) {
	user, assistant = []string{}, []string{}
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			user = append(user, m.Content)
		case RoleAssistant:
			assistant = append(assistant, m.Content)
		}
	}
	return user, assistant
}
