package extractor

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Default role markers observed in shared-chat payloads. They are
// reverse-engineered and can change without notice.
const (
	DefaultRoleField       = "_2210"
	DefaultUserMarker      = "18"
	DefaultAssistantMarker = "2280"
)

const (
	// roleWindow is how far before a content block the decoder looks for
	// role markers and timestamps.
	roleWindow = 1000
	// minBlockLength drops labels, ids and other short literals that share
	// the content-block shape.
	minBlockLength = 20
	// maxSchemaDepth bounds the search for a messages array in parsed JSON.
	maxSchemaDepth = 8
)

// Markers holds the numeric identifiers that distinguish speaker roles in the
// obfuscated payload encoding.
type Markers struct {
	Field     string
	User      string
	Assistant string
}

// DefaultMarkers returns the markers currently used by shared-chat pages.
func DefaultMarkers() Markers {
	return Markers{Field: DefaultRoleField, User: DefaultUserMarker, Assistant: DefaultAssistantMarker}
}

func (m Markers) withDefaults() Markers {
	d := DefaultMarkers()
	if m.Field == "" {
		m.Field = d.Field
	}
	if m.User == "" {
		m.User = d.User
	}
	if m.Assistant == "" {
		m.Assistant = d.Assistant
	}
	return m
}

// Decode recovers messages from a located payload using the default markers.
// It returns nil when no message can be recovered.
func Decode(p *RawPayload) []Message {
	return DefaultMarkers().Decode(p)
}

// Decode tries the schema-aware decoder and then the marker decoder. It never
// falls back to text splitting; that is the caller's decision.
func (m Markers) Decode(p *RawPayload) []Message {
	if p == nil || p.Decoded == "" {
		return nil
	}
	if msgs := decodeSchema(p.Decoded); len(msgs) > 0 {
		return msgs
	}
	return m.withDefaults().decodeMarkers(p.Decoded)
}

// --- schema-aware decode ---

// decodeSchema maps JSON of the shape {"messages":[{"role":..,"content":..}]}
// (at any nesting depth, or as a bare array) onto messages.
func decodeSchema(text string) []Message {
	var root any
	if err := json.Unmarshal([]byte(text), &root); err != nil {
		return nil
	}
	entries := findMessageEntries(root, 0)
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		if msg := entryToMessage(e); msg.Content != "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func findMessageEntries(v any, depth int) []map[string]any {
	if depth > maxSchemaDepth {
		return nil
	}
	switch t := v.(type) {
	case []any:
		if entries, ok := messageEntries(t); ok {
			return entries
		}
		for _, item := range t {
			if found := findMessageEntries(item, depth+1); len(found) > 0 {
				return found
			}
		}
	case map[string]any:
		if arr, ok := t["messages"].([]any); ok {
			if entries, ok := messageEntries(arr); ok {
				return entries
			}
		}
		// Sorted so that the same document always yields the same answer.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if found := findMessageEntries(t[k], depth+1); len(found) > 0 {
				return found
			}
		}
	}
	return nil
}

// messageEntries picks the objects in arr that carry both a role and
// content, in order. Other items are skipped; ok is false only when none
// qualify.
func messageEntries(arr []any) ([]map[string]any, bool) {
	var out []map[string]any
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := obj["content"]; !ok {
			continue
		}
		if entryRole(obj) == "" {
			continue
		}
		out = append(out, obj)
	}
	return out, len(out) > 0
}

func entryRole(obj map[string]any) string {
	if r, ok := obj["role"].(string); ok {
		return r
	}
	if author, ok := obj["author"].(map[string]any); ok {
		if r, ok := author["role"].(string); ok {
			return r
		}
	}
	return ""
}

func entryToMessage(obj map[string]any) Message {
	msg := Message{
		Role:    mapRoleName(entryRole(obj)),
		Content: strings.TrimSpace(contentText(obj["content"])),
	}
	if id, ok := obj["id"].(string); ok {
		msg.ContentID = id
	}
	for _, key := range []string{"create_time", "timestamp"} {
		if ts, ok := obj[key].(float64); ok && ts > 0 {
			msg.setTimestamp(ts)
			break
		}
	}
	return msg
}

// mapRoleName applies the schema rule: "user" is a user, "assistant" or "ai"
// is an assistant, anything else is unknown.
func mapRoleName(name string) Role {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "user":
		return RoleUser
	case "assistant", "ai":
		return RoleAssistant
	default:
		return RoleUnknown
	}
}

// contentText flattens the content shapes seen in exports: a plain string, a
// list of strings or text blocks, or an object with "parts" or "text".
func contentText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var parts []string
		for _, item := range t {
			if s := contentText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		if typ, ok := t["type"].(string); ok && typ != "text" {
			return ""
		}
		if s, ok := t["text"].(string); ok {
			return s
		}
		if parts, ok := t["parts"]; ok {
			return contentText(parts)
		}
	}
	return ""
}

// --- marker-based decode ---

var (
	contentBlock  = regexp.MustCompile(`\[(\d+)\],"((?:[^"\\]|\\.)*)"`)
	leadTimestamp = regexp.MustCompile(`(?:^|[^\d.])(\d{9,11}(?:\.\d+)?),(?:\{[^{}]*\},)+$`)
	explicitRole  = regexp.MustCompile(`"role":"(user|assistant|system)"`)
)

var systemIndicators = []string{
	"original custom instructions",
	"the output of this plugin was redacted",
}

func (m Markers) decodeMarkers(data string) []Message {
	marker := regexp.MustCompile(`"` + regexp.QuoteMeta(m.Field) + `":(\d+)`)

	var msgs []Message
	seen := make(map[string]bool)
	for _, loc := range contentBlock.FindAllStringSubmatchIndex(data, -1) {
		id := data[loc[2]:loc[3]]
		if seen[id] {
			continue
		}
		content := cleanContent(data[loc[4]:loc[5]])
		if !isMessageContent(content) {
			continue
		}
		seen[id] = true

		before := data[max(0, loc[0]-roleWindow):loc[0]]
		msg := Message{
			Role:      m.roleFromContext(marker, before),
			Content:   content,
			ContentID: id,
		}
		if msg.Role == RoleUnknown {
			msg.Role = classifyContent(content)
		}
		if ts, ok := precedingTimestamp(before); ok {
			msg.setTimestamp(ts)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// roleFromContext looks for the marker nearest to the block first, then for
// an explicit role literal.
func (m Markers) roleFromContext(marker *regexp.Regexp, before string) Role {
	if all := marker.FindAllStringSubmatch(before, -1); len(all) > 0 {
		switch all[len(all)-1][1] {
		case m.User:
			return RoleUser
		case m.Assistant:
			return RoleAssistant
		}
	}
	if all := explicitRole.FindAllStringSubmatch(before, -1); len(all) > 0 {
		return Role(all[len(all)-1][1])
	}
	return RoleUnknown
}

func precedingTimestamp(before string) (float64, bool) {
	m := leadTimestamp.FindStringSubmatch(before)
	if m == nil {
		return 0, false
	}
	ts, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

func isMessageContent(content string) bool {
	if len([]rune(content)) < minBlockLength {
		return false
	}
	lower := strings.ToLower(content)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return false
	}
	for _, ind := range systemIndicators {
		if strings.Contains(lower, ind) {
			return false
		}
	}
	return true
}
