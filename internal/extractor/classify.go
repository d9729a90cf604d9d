package extractor

import (
	"regexp"
	"unicode/utf8"
)

// longFormLength is the size above which structured text is taken to be an
// assistant answer even when it also reads like a request.
const longFormLength = 400

var userPhrasing = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi\s+(?:want|need|am|think|have)\b`),
	regexp.MustCompile(`(?i)\bhelp\s+me\b`),
	regexp.MustCompile(`(?i)\bcan\s+you\b`),
	regexp.MustCompile(`(?i)\bplease\b`),
	regexp.MustCompile(`(?i)\bhow\s+(?:do|can)\s+i\b`),
	regexp.MustCompile(`(?i)\bwhat\s+(?:is|are)\b`),
	regexp.MustCompile(`\?\s*$`),
}

var assistantStructure = []*regexp.Regexp{
	regexp.MustCompile(`#{2,3}\s`),
	regexp.MustCompile(`\*\*[^*]+\*\*`),
	regexp.MustCompile(`(?m)^\s*\d+\.\s+`),
	regexp.MustCompile(`(?m)^[-*]\s+`),
	regexp.MustCompile(`(?i)\blet's\s+`),
	regexp.MustCompile(`(?i)\bhere\s+(?:is|are)\b`),
	regexp.MustCompile(`(?i)\bto\s+(?:address|solve|implement)\b`),
}

// classifyContent guesses a role from the shape of the text alone. It is the
// last resort when a payload carries no usable role marker.
func classifyContent(content string) Role {
	structured := matchesAny(assistantStructure, content)
	if structured && utf8.RuneCountInString(content) > longFormLength {
		return RoleAssistant
	}
	if matchesAny(userPhrasing, content) {
		return RoleUser
	}
	if structured {
		return RoleAssistant
	}
	return RoleUnknown
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
