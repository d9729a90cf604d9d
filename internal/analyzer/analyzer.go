// Package analyzer derives a conversation context from separated user and
// assistant messages by scoring them against fixed vocabularies.
package analyzer

import (
	"strings"
	"unicode"
)

// Flow describes the overall shape of a conversation.
type Flow string

const (
	FlowProblemSolved        Flow = "problem solved"
	FlowProblemExploration   Flow = "problem exploration"
	FlowIterativeRefinement  Flow = "iterative refinement"
	FlowClarificationSeeking Flow = "clarification seeking"
	FlowSingleQuery          Flow = "single query"
	FlowUnclear              Flow = "unclear"
)

// Context is the structured intelligence derived from one conversation.
type Context struct {
	ProblemDomain     string   `json:"problem_domain"`
	ProblemStatement  string   `json:"problem_statement"`
	ProblemComplexity string   `json:"problem_complexity"`
	ThinkingPatterns  []string `json:"thinking_patterns"`
	FrameworksUsed    []string `json:"frameworks_used"`
	DecisionPoints    []string `json:"decision_points"`
	TopicsOfInterest  []string `json:"topics_of_interest"`
	IntellectualStyle string   `json:"intellectual_style"`
	CurrentFocus      string   `json:"current_focus"`
	UserMessages      []string `json:"user_messages"`
	AIResponses       []string `json:"ai_responses"`
	ConversationFlow  Flow     `json:"conversation_flow"`
}

// Analyzer scores conversations against a vocabulary. It holds no mutable
// state and is safe for concurrent use.
type Analyzer struct {
	vocab *Vocabulary
}

// New returns an Analyzer over v, or over the built-in vocabulary when v is
// nil.
func New(v *Vocabulary) *Analyzer {
	if v == nil {
		v = DefaultVocabulary()
	}
	return &Analyzer{vocab: v}
}

// Analyze runs the built-in vocabulary over the given messages.
func Analyze(userMessages, aiResponses []string) Context {
	return New(nil).Analyze(userMessages, aiResponses)
}

// Analyze derives a Context. Domain, statement, thinking patterns, decisions,
// topics, style and focus are read from the user's side only; complexity and
// frameworks look at both sides.
func (a *Analyzer) Analyze(userMessages, aiResponses []string) Context {
	v := a.vocab
	user := cloneStrings(userMessages)
	ai := cloneStrings(aiResponses)

	userText := strings.Join(user, " ")
	fullText := userText + " " + strings.Join(ai, " ")

	statement, ok := CaptureFirst(userText, v.ProblemPatterns)
	if !ok {
		statement = a.problemFallback(userText)
	}
	focus, ok := CaptureFirst(userText, v.FocusPatterns)
	if !ok {
		focus = a.focusFallback(userText)
	}
	decisions := CaptureAll(userText, v.DecisionPatterns)
	for i, d := range decisions {
		decisions[i] = plainText(d)
	}

	return Context{
		ProblemDomain:     ScoreCategories(userText, v.Domains),
		ProblemStatement:  plainText(statement),
		ProblemComplexity: ScoreCategories(fullText, v.Complexity),
		ThinkingPatterns:  MatchingCategories(userText, v.ThinkingPatterns),
		FrameworksUsed:    Present(fullText, v.Frameworks),
		DecisionPoints:    decisions,
		TopicsOfInterest:  Present(userText, v.Topics),
		IntellectualStyle: ScoreCategories(userText, v.IntellectualStyles),
		CurrentFocus:      plainText(focus),
		UserMessages:      user,
		AIResponses:       ai,
		ConversationFlow:  a.flow(user),
	}
}

// problemFallback returns the first of the leading sentences that mentions a
// problem keyword.
func (a *Analyzer) problemFallback(text string) string {
	v := a.vocab
	sentences := strings.Split(text, ".")
	if n := v.ProblemFallbackSentences; n > 0 && len(sentences) > n {
		sentences = sentences[:n]
	}
	for _, s := range sentences {
		if containsAny(strings.ToLower(s), v.ProblemFallbackKeywords) {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return v.ProblemDefault
}

// focusFallback looks for a present-progressive "I'm <verb>ing <object>".
func (a *Analyzer) focusFallback(text string) string {
	if re := a.vocab.FocusFallback; re != nil {
		if m := re.FindStringSubmatch(text); m != nil {
			if s := strings.TrimSpace(m[1] + " " + m[2]); s != "" {
				return s
			}
		}
	}
	return a.vocab.FocusDefault
}

func (a *Analyzer) flow(user []string) Flow {
	if len(user) == 0 {
		return FlowUnclear
	}
	first := strings.ToLower(user[0])
	last := ""
	if len(user) > 1 {
		last = strings.ToLower(user[len(user)-1])
	}

	if containsAny(first, a.vocab.OpeningTriggers) {
		if containsAny(last, a.vocab.ClosingTriggers) {
			return FlowProblemSolved
		}
		return FlowProblemExploration
	}
	switch {
	case len(user) > 3:
		return FlowIterativeRefinement
	case len(user) > 1:
		return FlowClarificationSeeking
	default:
		return FlowSingleQuery
	}
}

// plainText collapses control characters and runs of whitespace to single
// spaces so the value can be dropped into a free-text search query.
func plainText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
