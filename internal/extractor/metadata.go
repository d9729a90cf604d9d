package extractor

import (
	"regexp"
	"strconv"
)

var (
	titleField      = regexp.MustCompile(`"title"\s*:\s*"((?:[^"\\]|\\.)+)"`)
	createTimeField = regexp.MustCompile(`"create_time"\s*:\s*(\d+(?:\.\d+)?)`)
	updateTimeField = regexp.MustCompile(`"update_time"\s*:\s*(\d+(?:\.\d+)?)`)
)

// applyMetadata fills conversation-level fields from a decoded payload.
func applyMetadata(conv *Conversation, decoded string) {
	if m := titleField.FindStringSubmatch(decoded); m != nil {
		if title := cleanContent(m[1]); title != "" {
			conv.Title = title
		}
	}
	if ts, ok := firstFloat(createTimeField, decoded); ok {
		conv.CreateTime = &ts
		conv.CreateTimeReadable = readableTime(ts)
	}
	if ts, ok := firstFloat(updateTimeField, decoded); ok {
		conv.UpdateTime = &ts
		conv.UpdateTimeReadable = readableTime(ts)
	}
}

func firstFloat(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
