package coursecode

import (
	"regexp"
	"strings"
)

// DefaultCourse is the course assigned to calendar entries that carry no
// bracketed course code.
const DefaultCourse = "Canvas"

// bracketPattern matches the first bracketed group, e.g. "[CS 256]".
var bracketPattern = regexp.MustCompile(`\[(.*?)\]\s*`)

// ParseSummary splits a Canvas event summary such as
// "[PSYC 101] Response Paper 3" into its course ("PSYC 101") and title
// ("Response Paper 3"). Without a bracketed code the course is
// DefaultCourse and the title is the trimmed summary.
func ParseSummary(summary string) (course, title string) {
	loc := bracketPattern.FindStringSubmatchIndex(summary)
	if loc == nil {
		return DefaultCourse, strings.TrimSpace(summary)
	}

	course = strings.TrimSpace(summary[loc[2]:loc[3]])
	if course == "" {
		course = DefaultCourse
	}
	title = strings.TrimSpace(summary[:loc[0]] + summary[loc[1]:])
	return course, title
}
