package format

import (
	"strings"
	"testing"
	"time"

	"github.com/statusdoc/statusdoc/internal/ai"
	"github.com/statusdoc/statusdoc/internal/daterange"
)

func testWindow() daterange.Window {
	return daterange.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"table", KindTable, false},
		{"bullet", KindBullet, false},
		{"TABLE", KindTable, false},
		{" bullet ", KindBullet, false},
		{"markdown", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseKind(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRenderIncludesEveryItemInBothKinds(t *testing.T) {
	summary := ai.Summary{
		Completed:  []string{"Shipped billing export", "Fixed login redirect"},
		InProgress: []string{"Session store migration"},
		New:        []string{"Spike on rate limiting"},
	}
	allItems := append(append(append([]string{}, summary.Completed...), summary.InProgress...), summary.New...)

	for _, kind := range []Kind{KindTable, KindBullet} {
		block := Render(summary, testWindow(), kind)

		if block.Heading != "Weekly Status Report" {
			t.Errorf("%v: Heading = %q", kind, block.Heading)
		}
		if block.Period != "Period from 01-01-2024 to 07-01-2024" {
			t.Errorf("%v: Period = %q", kind, block.Period)
		}
		if len(block.Sections) != 3 {
			t.Fatalf("%v: got %d sections, want 3", kind, len(block.Sections))
		}

		joined := ""
		for _, section := range block.Sections {
			joined += strings.Join(section.Items, "\n") + "\n"
		}
		for _, item := range allItems {
			if !strings.Contains(joined, item) {
				t.Errorf("%v: rendered block dropped item %q", kind, item)
			}
		}
	}
}

func TestRenderMarksEmptyCategories(t *testing.T) {
	// All three categories empty: the zero-commit week still renders a
	// complete report with explicit markers.
	bullet := Render(ai.Summary{}, testWindow(), KindBullet)
	for _, section := range bullet.Sections {
		if len(section.Items) != 1 || section.Items[0] != "None" {
			t.Errorf("bullet section %q items = %q, want [None]", section.Title, section.Items)
		}
	}

	table := Render(ai.Summary{}, testWindow(), KindTable)
	for _, section := range table.Sections {
		if len(section.Items) != 1 || section.Items[0] != "none" {
			t.Errorf("table section %q items = %q, want [none]", section.Title, section.Items)
		}
	}
}

func TestRenderTableGlyphs(t *testing.T) {
	summary := ai.Summary{
		Completed:  []string{"done item"},
		InProgress: []string{"ongoing item"},
		New:        []string{"fresh item"},
	}

	block := Render(summary, testWindow(), KindTable)

	wantPrefixes := []string{"✅", "⏳", "🆕"}
	for i, section := range block.Sections {
		if !strings.HasPrefix(section.Items[0], wantPrefixes[i]+" ") {
			t.Errorf("section %d item = %q, want %s prefix", i, section.Items[0], wantPrefixes[i])
		}
	}

	// Bullet layout carries no glyphs.
	bullet := Render(summary, testWindow(), KindBullet)
	if bullet.Sections[0].Items[0] != "done item" {
		t.Errorf("bullet item = %q, want bare text", bullet.Sections[0].Items[0])
	}
}

func TestTableRows(t *testing.T) {
	summary := ai.Summary{Completed: []string{"a", "b"}}
	block := Render(summary, testWindow(), KindTable)

	rows := block.TableRows()
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4 (period + three categories)", len(rows))
	}
	if rows[0] != block.Period {
		t.Errorf("rows[0] = %q, want period row", rows[0])
	}
	if !strings.HasPrefix(rows[1], "1. Tasks completed 100%:\n") {
		t.Errorf("rows[1] = %q, want category label first", rows[1])
	}
	if !strings.Contains(rows[1], "✅ a") || !strings.Contains(rows[1], "✅ b") {
		t.Errorf("rows[1] = %q, missing items", rows[1])
	}
}

func TestMarkdownPreview(t *testing.T) {
	summary := ai.Summary{
		Completed: []string{"Shipped billing | export"},
	}

	bullet := Render(summary, testWindow(), KindBullet).Markdown()
	if !strings.Contains(bullet, "# Weekly Status Report") {
		t.Errorf("bullet preview missing heading:\n%s", bullet)
	}
	if !strings.Contains(bullet, "- Shipped billing | export") {
		t.Errorf("bullet preview missing item:\n%s", bullet)
	}
	if !strings.Contains(bullet, "## 1. Tasks completed 100%:") {
		t.Errorf("bullet preview missing section heading:\n%s", bullet)
	}

	table := Render(summary, testWindow(), KindTable).Markdown()
	if !strings.Contains(table, "| Category | Item |") {
		t.Errorf("table preview missing header row:\n%s", table)
	}
	// Pipes inside items must be escaped in table cells.
	if !strings.Contains(table, `Shipped billing \| export`) {
		t.Errorf("table preview did not escape pipes:\n%s", table)
	}
}
