package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"golang.org/x/net/html"
)

// Normalize decodes HTML entities and then reverses one layer of literal
// backslash escapes.
//
// Order is fixed: entities first, then a single left-to-right pass over the
// escapes \n \t \r \" \/ \\ and \uXXXX. An escaped backslash consumes both
// characters, so `\\n` becomes a backslash followed by "n", never a newline.
// Anything else after a backslash, including a short or invalid \u sequence,
// is kept verbatim.
func Normalize(raw string) string {
	if raw == "" {
		return raw
	}
	s := raw
	if strings.IndexByte(s, '&') >= 0 {
		s = html.UnescapeString(s)
	}
	return normalizeEscapes(s)
}

// normalizeEscapes is the escape half of Normalize, for text whose entities
// have already been decoded.
func normalizeEscapes(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	return unescapeLiterals(s)
}

func unescapeLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		switch next := s[i+1]; next {
		case 'n':
			b.WriteByte('\n')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case '"', '/', '\\':
			b.WriteByte(next)
			i++
		case 'u':
			if r, ok := parseHex4(s, i+2); ok {
				i += 5
				if utf16.IsSurrogate(r) && strings.HasPrefix(s[i+1:], `\u`) {
					if lo, ok := parseHex4(s, i+3); ok {
						if pair := utf16.DecodeRune(r, lo); pair != unicode.ReplacementChar {
							r = pair
							i += 6
						}
					}
				}
				b.WriteRune(r)
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func parseHex4(s string, at int) (rune, bool) {
	if at+4 > len(s) {
		return 0, false
	}
	n, err := strconv.ParseUint(s[at:at+4], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}

var (
	fileCiteMarker = regexp.MustCompile(`\s*fileciteturn\d+file\d+\s*`)
	excessNewlines = regexp.MustCompile(`\n{3,}`)
)

// cleanContent turns an escaped content literal into message text.
func cleanContent(s string) string {
	s = Normalize(s)
	s = fileCiteMarker.ReplaceAllString(s, " ")
	s = excessNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
