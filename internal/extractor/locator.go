package extractor

import (
	"encoding/json"
	"regexp"
	"strings"
)

// locator is one way of finding an embedded conversation blob. It returns
// every candidate payload it can see, in document order.
type locator struct {
	pattern Pattern
	find    func(doc string) []RawPayload
}

// locators are tried in priority order.
var locators = []locator{
	{PatternStreamEnqueue, findStreamEnqueue},
	{PatternMessagesArray, jsonValueAfter(PatternMessagesArray, regexp.MustCompile(`"messages"\s*:\s*\[`))},
	{PatternConversation, jsonValueAfter(PatternConversation, regexp.MustCompile(`"conversation"\s*:\s*\{`))},
	{PatternGlobalState, jsonValueAfter(PatternGlobalState, regexp.MustCompile(`window\.__[A-Za-z0-9_]+\s*=\s*[\[{]`))},
}

// Locate scans a document for an embedded conversation payload.
//
// Patterns are tried in fixed priority order. A candidate only counts once its
// decoded text parses as JSON; a candidate that does not parse makes the
// locator move on to the next candidate and then the next pattern. The result
// is false only when every pattern has been exhausted.
func Locate(doc string) (*RawPayload, bool) {
	for _, l := range locators {
		for _, p := range l.find(doc) {
			if p.Raw == "" || !json.Valid([]byte(p.Decoded)) {
				continue
			}
			return &p, true
		}
	}
	return nil, false
}

var streamEnqueue = regexp.MustCompile(`streamController\.enqueue\("((?:[^"\\]|\\.)*)"\)`)

func findStreamEnqueue(doc string) []RawPayload {
	matches := streamEnqueue.FindAllStringSubmatch(doc, -1)
	out := make([]RawPayload, 0, len(matches))
	for _, m := range matches {
		out = append(out, RawPayload{
			Pattern: PatternStreamEnqueue,
			Raw:     m[1],
			Decoded: decodeStringLiteral(m[1]),
		})
	}
	return out
}

// decodeStringLiteral reverses the JavaScript string escaping around a stream
// chunk. The body of a JS string literal is valid JSON string content, so the
// JSON decoder handles it exactly; when it refuses, the more forgiving
// Normalize pass is used instead.
func decodeStringLiteral(body string) string {
	var s string
	if err := json.Unmarshal([]byte(`"`+body+`"`), &s); err == nil {
		return s
	}
	return Normalize(body)
}

// jsonValueAfter builds a finder for a JSON value that starts at the last
// character of each match of prefix.
func jsonValueAfter(pattern Pattern, prefix *regexp.Regexp) func(string) []RawPayload {
	return func(doc string) []RawPayload {
		var out []RawPayload
		for _, loc := range prefix.FindAllStringIndex(doc, -1) {
			start := loc[1] - 1
			raw, ok := leadingJSONValue(doc[start:])
			if !ok {
				// Keep the structural match so Locate can fall through on it.
				out = append(out, RawPayload{Pattern: pattern, Raw: doc[start : start+1]})
				continue
			}
			out = append(out, RawPayload{Pattern: pattern, Raw: raw, Decoded: raw})
		}
		return out
	}
}

// leadingJSONValue reads exactly one JSON value from the front of s.
func leadingJSONValue(s string) (string, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", false
	}
	return string(raw), true
}
