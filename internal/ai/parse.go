package ai

import (
	"fmt"
	"regexp"
	"strings"
)

// ParseError indicates the generation service broke the output contract.
// It carries the raw response so the defect can be diagnosed, and it is
// never retried: the same prompt would fail the same way.
type ParseError struct {
	Missing []string // section markers absent from the response
	Raw     string   // full response text
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("generation response missing sections %v", e.Missing)
}

// The response contract: exactly three tagged sections, in any order.
var sectionPatterns = map[string]*regexp.Regexp{
	"completed":  regexp.MustCompile(`(?s)<completed>(.*?)</completed>`),
	"inprogress": regexp.MustCompile(`(?s)<inprogress>(.*?)</inprogress>`),
	"new":        regexp.MustCompile(`(?s)<new>(.*?)</new>`),
}

// ParseSections extracts the three labeled sections from a generation
// response. All three markers must be present; anything else is a contract
// violation, reported as a ParseError rather than swallowed as "no data".
func ParseSections(response string) (Summary, error) {
	sections := make(map[string][]string, len(sectionPatterns))
	var missing []string

	for _, tag := range []string{"completed", "inprogress", "new"} {
		match := sectionPatterns[tag].FindStringSubmatch(response)
		if match == nil {
			missing = append(missing, tag)
			continue
		}
		sections[tag] = splitItems(match[1])
	}

	if len(missing) > 0 {
		return Summary{}, &ParseError{Missing: missing, Raw: response}
	}

	return Summary{
		Completed:  sections["completed"],
		InProgress: sections["inprogress"],
		New:        sections["new"],
	}, nil
}

// splitItems turns a section body into individual items: one per non-blank
// line, with leading bullet glyphs stripped. Order is preserved.
func splitItems(body string) []string {
	var items []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•* \t")
		if line == "" {
			continue
		}
		items = append(items, line)
	}
	return items
}
