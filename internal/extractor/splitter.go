package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Paragraph heuristic thresholds, in characters.
const (
	shortParagraph = 200
	longParagraph  = 100
)

// labelConvention is one pair of speaker-label spellings.
type labelConvention struct {
	user      []string
	assistant []string
	re        *regexp.Regexp
}

func newConvention(user, assistant []string) labelConvention {
	names := append(append([]string{}, user...), assistant...)
	for i, n := range names {
		names[i] = regexp.QuoteMeta(n)
	}
	return labelConvention{
		user:      user,
		assistant: assistant,
		re:        regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `):`),
	}
}

func (c labelConvention) roleOf(label string) Role {
	for _, u := range c.user {
		if strings.EqualFold(u, label) {
			return RoleUser
		}
	}
	return RoleAssistant
}

// conventions are tried in order; the first one whose labels appear in the
// text wins, even when every labeled body is empty.
var conventions = []labelConvention{
	newConvention([]string{"User"}, []string{"Assistant", "AI", "ChatGPT"}),
	newConvention([]string{"Human"}, []string{"AI", "Assistant"}),
	newConvention([]string{"You"}, []string{"ChatGPT", "Claude"}),
}

var userLeadIns = []string{"I ", "How ", "What ", "Can "}

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// SplitOptions controls the paragraph heuristic.
type SplitOptions struct {
	// Unclassified is the role given to paragraphs that are neither short
	// questions nor long answers. Empty or RoleUnknown drops them.
	Unclassified Role
}

// Split separates raw conversation text into user and assistant turns using
// the default options. It always returns two non-nil lists.
func Split(text string) (user, assistant []string) {
	turns, _ := SplitOptions{}.Turns(text)
	return partition(turns)
}

// Turns returns the ordered turns found in text and the strategy that found
// them. text is passed through Normalize first.
func (o SplitOptions) Turns(text string) ([]Message, Strategy) {
	return o.turns(Normalize(text))
}

func (o SplitOptions) turns(text string) ([]Message, Strategy) {
	if turns := labeledTurns(text); len(turns) > 0 {
		return turns, StrategyLabeled
	}
	if turns := o.paragraphTurns(text); len(turns) > 0 {
		return turns, StrategyParagraph
	}
	return nil, StrategyNone
}

// labeledTurns splits text on the labels of the first matching convention.
// Empty bodies are dropped, so a winning convention can still yield nothing
// and leave the text to the paragraph heuristic.
func labeledTurns(text string) []Message {
	for _, c := range conventions {
		locs := c.re.FindAllStringSubmatchIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		var turns []Message
		for i, loc := range locs {
			end := len(text)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			body := strings.TrimSpace(text[loc[1]:end])
			if body == "" {
				continue
			}
			turns = append(turns, Message{
				Role:    c.roleOf(text[loc[2]:loc[3]]),
				Content: body,
			})
		}
		return turns
	}
	return nil
}

// paragraphTurns classifies blank-line separated paragraphs: short questions
// or first-person openers are the user, long paragraphs are the assistant.
// Anything else is dropped unless o.Unclassified says otherwise.
func (o SplitOptions) paragraphTurns(text string) []Message {
	var turns []Message
	for _, para := range blankLine.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)
		var role Role
		switch {
		case n < shortParagraph && (strings.Contains(para, "?") || hasAnyPrefix(para, userLeadIns)):
			role = RoleUser
		case n > longParagraph:
			role = RoleAssistant
		case o.Unclassified == RoleUser || o.Unclassified == RoleAssistant:
			role = o.Unclassified
		default:
			continue
		}
		turns = append(turns, Message{Role: role, Content: para})
	}
	return turns
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
