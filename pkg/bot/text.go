package bot

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// DefaultChunkSize is the longest reply sent as a single message, in runes.
const DefaultChunkSize = 1990

// mentionPattern matches <@U123> and <@U123|name>.
var mentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]*)?>`)

// StripMention removes every mention of botID from text and trims it.
func StripMention(text, botID string) string {
	out := mentionPattern.ReplaceAllStringFunc(text, func(m string) string {
		if mentionPattern.FindStringSubmatch(m)[1] == botID {
			return ""
		}
		return m
	})
	return strings.TrimSpace(out)
}

// ResolveMentions replaces each remaining user mention with the name
// returned by resolve, and returns the distinct names in order of first
// appearance.
func ResolveMentions(text string, resolve func(userID string) string) (string, []string) {
	var names []string
	out := mentionPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := resolve(mentionPattern.FindStringSubmatch(m)[1])
		names = append(names, name)
		return name
	})
	return out, lo.Uniq(names)
}

// SplitMessage cuts text into consecutive chunks of at most size runes.
// A size of zero or less selects DefaultChunkSize.
func SplitMessage(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return lo.Map(lo.Chunk([]rune(text), size), func(chunk []rune, _ int) string {
		return string(chunk)
	})
}
