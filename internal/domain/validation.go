package domain

import (
	"regexp"
	"strings"
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)
	// Mentions: @username anywhere in reply content.
	mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]{3,50})`)
)

func ValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

func ValidPassword(s string) bool {
	return len(s) >= 8 && len(s) <= 128
}

func ValidThreadTitle(s string) bool {
	t := strings.TrimSpace(s)
	return t != "" && len(t) <= 200
}

func ValidContent(s string) bool {
	t := strings.TrimSpace(s)
	return t != "" && len(t) <= 20000
}

// ParseMentions extracts the distinct @usernames in content, in order of
// first appearance.
func ParseMentions(content string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range mentionRe.FindAllStringSubmatch(content, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Preview truncates content for notification previews.
func Preview(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}
