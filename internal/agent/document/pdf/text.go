package pdf

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	horizontalSpace = regexp.MustCompile(`[\t\f\v\r \x{00A0}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// joinRuns joins a page's text runs with single spaces.
func joinRuns(runs []string) string {
	return strings.Join(runs, " ")
}

// joinPages separates pages with a blank line.
func joinPages(pages []string) string {
	return strings.Join(pages, "\n\n")
}

// normalize collapses whitespace runs to one space, blank-line runs to one
// blank line, and trims both ends.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// sufficient reports whether native text is good enough to skip OCR.
func sufficient(text, firstPage string, minLength int) bool {
	return utf8.RuneCountInString(text) > minLength && strings.TrimSpace(firstPage) != ""
}
