package format

import (
	"fmt"
	"strings"

	"github.com/statusdoc/statusdoc/internal/ai"
	"github.com/statusdoc/statusdoc/internal/daterange"
)

// Kind selects the document layout for a rendered report block.
type Kind int

const (
	// KindTable renders the report as a single-column table, one row per
	// category.
	KindTable Kind = iota
	// KindBullet renders the report as headed bullet lists.
	KindBullet
)

// ParseKind maps a --format flag value to a Kind.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "table":
		return KindTable, nil
	case "bullet":
		return KindBullet, nil
	default:
		return 0, fmt.Errorf("unknown format %q (expected \"table\" or \"bullet\")", raw)
	}
}

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindBullet:
		return "bullet"
	default:
		return "unknown"
	}
}

// Section is one category of the report with its formatted item lines.
// Items always holds at least one line: empty categories carry an explicit
// placeholder so a reader can tell "nothing happened" from "section lost".
type Section struct {
	Title string
	Items []string
}

// Block is a fully rendered report ready to be appended to a document.
// It is produced fresh each run and never persisted on its own.
type Block struct {
	Kind     Kind
	Heading  string
	Period   string
	Sections []Section
}

// The three fixed report categories, in presentation order.
var sectionTitles = [3]string{
	"1. Tasks completed 100%:",
	"2. Tasks continue to work on:",
	"3. New tasks started:",
}

// Category glyphs used in the table layout.
var sectionGlyphs = [3]string{"✅", "⏳", "🆕"}

const blockHeading = "Weekly Status Report"

// Render converts a summary into a Block for the requested kind. Pure
// function: same summary and window always produce the same block.
//
// Both kinds mark empty categories explicitly: bullet sections get a single
// "None" bullet, table sections get a "none" line under the category label.
func Render(summary ai.Summary, window daterange.Window, kind Kind) Block {
	categories := [3][]string{summary.Completed, summary.InProgress, summary.New}

	block := Block{
		Kind:    kind,
		Heading: blockHeading,
		Period:  window.PeriodLabel(),
	}

	for i, items := range categories {
		section := Section{Title: sectionTitles[i]}
		switch {
		case len(items) == 0 && kind == KindBullet:
			section.Items = []string{"None"}
		case len(items) == 0:
			section.Items = []string{"none"}
		case kind == KindTable:
			for _, item := range items {
				section.Items = append(section.Items, sectionGlyphs[i]+" "+item)
			}
		default:
			section.Items = append(section.Items, items...)
		}
		block.Sections = append(block.Sections, section)
	}

	return block
}

// TableRows flattens the block into the single-column row contents used by
// the table layout: the period row followed by one row per category.
func (b Block) TableRows() []string {
	rows := []string{b.Period}
	for _, section := range b.Sections {
		rows = append(rows, section.Title+"\n"+strings.Join(section.Items, "\n"))
	}
	return rows
}
