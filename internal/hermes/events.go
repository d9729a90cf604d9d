package hermes

import (
	"time"

	"github.com/MikeSquared-Agency/resonance/internal/analyzer"
)

const (
	// SubjectShareSubmitted carries share URLs or raw sources to extract.
	SubjectShareSubmitted = "resonance.share.submitted"
	// SubjectContextExtracted announces a finished extraction to the search
	// and insight services.
	SubjectContextExtracted = "resonance.context.extracted"
)

// ShareSubmitted asks for one extraction. Either URL or Source is set.
type ShareSubmitted struct {
	RequestID string `json:"request_id"`
	URL       string `json:"url,omitempty"`
	Source    string `json:"source,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// ContextExtracted is published after every successful extraction.
type ContextExtracted struct {
	RequestID      string           `json:"request_id"`
	ConversationID string           `json:"conversation_id,omitempty"`
	SourceURL      string           `json:"source_url,omitempty"`
	Title          string           `json:"title"`
	Strategy       string           `json:"strategy"`
	MessageCount   int              `json:"message_count"`
	Context        analyzer.Context `json:"context"`
	ExtractedAt    time.Time        `json:"extracted_at"`
}
