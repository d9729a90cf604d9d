package extractor

import "strings"

// FormatTranscript renders messages as a User:/Assistant: transcript with a
// blank line between turns. User and assistant turns split back out of the
// output unchanged, as long as no message contains a speaker label itself.
func FormatTranscript(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(speakerLabel(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func speakerLabel(r Role) string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return "Unknown"
	}
}
