package ai

import (
	"context"

	"github.com/statusdoc/statusdoc/internal/source"
)

// Summary is the three-category breakdown of a window's work. Item order
// follows the generation model's output order and is never re-sorted.
type Summary struct {
	Completed  []string // tasks finished during the window
	InProgress []string // tasks still being worked on
	New        []string // tasks started during the window
}

// IsEmpty reports whether the summary has no items in any category.
func (s Summary) IsEmpty() bool {
	return len(s.Completed) == 0 && len(s.InProgress) == 0 && len(s.New) == 0
}

// Summarizer turns a set of commits into a structured summary.
type Summarizer interface {
	// Summarize generates a summary for the given commits. An empty commit
	// list must produce an empty Summary without any service call.
	Summarize(ctx context.Context, commits []source.Commit) (Summary, error)
}
