package ticket

import (
	"regexp"
	"strings"
)

var (
	reLineBreaks = regexp.MustCompile(`\r\n?`)
	reHSpace     = regexp.MustCompile(`[\t\x{00A0}\x{2007}\x{202F}]+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText unifies line endings and horizontal whitespace in OCR output.
// Line breaks are kept so that rules never match across lines.
func NormalizeText(s string) string {
	if s == "" {
		return s
	}
	s = reLineBreaks.ReplaceAllString(s, "\n")
	s = reHSpace.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
