package source

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/statusdoc/statusdoc/internal/daterange"
)

// Commit is a single commit as fetched from a hosting provider. Immutable
// once fetched.
type Commit struct {
	Hash      string
	AuthorRaw string // raw author identity, typically "Name <email>"
	Username  string // provider account name, may be empty
	Message   string
	Timestamp time.Time
	URL       string
}

// Source fetches commits for one repository within a window, already
// filtered down to the allowed contributors.
type Source interface {
	Commits(ctx context.Context, window daterange.Window, filter Filter) ([]Commit, error)
}

// Filter is an allow-list of contributor identities. A commit passes when
// its username matches one of the allowed usernames (case-insensitive), or
// one of the allowed emails appears in its raw author string.
type Filter struct {
	emails    []string
	usernames []string
}

// NewFilter builds a Filter from email and username allow-lists. Blank
// entries are dropped; matching is case-insensitive.
func NewFilter(emails, usernames []string) Filter {
	f := Filter{}
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			f.emails = append(f.emails, e)
		}
	}
	for _, u := range usernames {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			f.usernames = append(f.usernames, u)
		}
	}
	return f
}

// Empty reports whether the filter has no identities at all.
func (f Filter) Empty() bool {
	return len(f.emails) == 0 && len(f.usernames) == 0
}

// Matches reports whether a commit authored by the given raw identity and
// username belongs to an allowed contributor.
func (f Filter) Matches(authorRaw, username string) bool {
	raw := strings.ToLower(authorRaw)
	for _, e := range f.emails {
		if strings.Contains(raw, e) {
			return true
		}
	}
	user := strings.ToLower(strings.TrimSpace(username))
	for _, u := range f.usernames {
		if user == u {
			return true
		}
	}
	return false
}

// mergePrefix matches merge commits, which carry no report-worthy content.
var mergePrefix = regexp.MustCompile(`(?i)^merge\b`)

// IsMergeCommit reports whether a commit message is a merge commit message.
func IsMergeCommit(message string) bool {
	return mergePrefix.MatchString(strings.TrimSpace(message))
}

// FetchError is a failed commit fetch. Transient errors (5xx, timeouts)
// have already exhausted their retry budget by the time the caller sees
// them; terminal errors (401/403/404) surface immediately.
type FetchError struct {
	StatusCode int // zero when the request never got a response
	Transient  bool
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("commit fetch failed: HTTP %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("commit fetch failed: HTTP %d", e.StatusCode)
	default:
		return fmt.Sprintf("commit fetch failed: %v", e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
