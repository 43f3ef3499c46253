package skill

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultMaxSpeechLength keeps replies well under the platform's
// 8000 character outputSpeech cap.
const DefaultMaxSpeechLength = 6000

const ellipsis = "..."

var (
	markdownLink   = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	markdownHeader = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	markdownBullet = regexp.MustCompile(`(?m)^\s*(?:[-*+•]|\d+[.)])\s+`)
	markdownFence  = regexp.MustCompile("```[A-Za-z0-9_+-]*")
	markdownCode   = regexp.MustCompile("`([^`\n]*)`")

	// Emphasis only counts when the markers hug their content, so "5 * 3"
	// and snake_case identifiers survive.
	markdownBold   = regexp.MustCompile(`(\*\*|__)(\S(?:.*?\S)?)(\*\*|__)`)
	markdownStrike = regexp.MustCompile(`~~(\S(?:.*?\S)?)~~`)
	markdownStar   = regexp.MustCompile(`\*(\S(?:[^*]*?\S)?)\*`)
	markdownUnder  = regexp.MustCompile(`(^|[^\pL\pN_])_(\S(?:[^_]*?\S)?)_([^\pL\pN_]|$)`)

	loneMarkup = regexp.MustCompile("^[*_`~#]{2,}$")
)

// SanitizeSpeech turns generated text into something a speech synthesizer
// reads cleanly: markdown is stripped, whitespace collapsed, and the result
// cut to at most maxLen runes, preferring a sentence boundary.
func SanitizeSpeech(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxSpeechLength
	}

	s := markdownLink.ReplaceAllString(text, "$1")
	s = markdownHeader.ReplaceAllString(s, "")
	s = markdownBullet.ReplaceAllString(s, "")
	s = markdownFence.ReplaceAllString(s, " ")
	s = markdownCode.ReplaceAllString(s, "$1")
	s = markdownBold.ReplaceAllString(s, "$2")
	s = markdownStrike.ReplaceAllString(s, "$1")
	s = markdownStar.ReplaceAllString(s, "$1")
	s = markdownUnder.ReplaceAllString(s, "$1$2$3")

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if !loneMarkup.MatchString(f) {
			kept = append(kept, f)
		}
	}
	s = strings.Join(kept, " ")

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return truncate(runes, maxLen)
}

// truncate never returns more than maxLen runes.
func truncate(runes []rune, maxLen int) string {
	// Prefer a sentence end unless it would drop most of the text. A stop
	// followed by a digit or letter is a decimal point or an abbreviation.
	for i := maxLen - 1; i >= maxLen/3; i-- {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
			return string(runes[:i+1])
		}
	}

	if maxLen <= len(ellipsis) {
		return string(runes[:maxLen])
	}

	cut := string(runes[:maxLen-len(ellipsis)])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + ellipsis
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
