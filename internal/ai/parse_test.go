package ai

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseSections(t *testing.T) {
	response := `Here is the report you asked for:

<completed>
- Shipped the billing export (https://example.com/c1)
- Fixed the login redirect (https://example.com/c2)
</completed>

<inprogress>
• Migrating the session store (https://example.com/c3)
</inprogress>

<new>
</new>

Let me know if you need anything else.`

	summary, err := ParseSections(response)
	if err != nil {
		t.Fatalf("ParseSections returned error: %v", err)
	}

	wantCompleted := []string{
		"Shipped the billing export (https://example.com/c1)",
		"Fixed the login redirect (https://example.com/c2)",
	}
	if !reflect.DeepEqual(summary.Completed, wantCompleted) {
		t.Errorf("Completed = %q, want %q", summary.Completed, wantCompleted)
	}

	wantInProgress := []string{"Migrating the session store (https://example.com/c3)"}
	if !reflect.DeepEqual(summary.InProgress, wantInProgress) {
		t.Errorf("InProgress = %q, want %q", summary.InProgress, wantInProgress)
	}

	if len(summary.New) != 0 {
		t.Errorf("New = %q, want empty", summary.New)
	}
}

func TestParseSectionsPreservesOrder(t *testing.T) {
	response := `<completed>
- third
- first
- second
</completed>
<inprogress></inprogress>
<new></new>`

	summary, err := ParseSections(response)
	if err != nil {
		t.Fatalf("ParseSections returned error: %v", err)
	}

	want := []string{"third", "first", "second"}
	if !reflect.DeepEqual(summary.Completed, want) {
		t.Errorf("Completed = %q, want %q (model order, not sorted)", summary.Completed, want)
	}
}

func TestParseSectionsMissingMarkers(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		wantMissing []string
	}{
		{
			name:        "missing new section",
			response:    "<completed>- a</completed>\n<inprogress>- b</inprogress>",
			wantMissing: []string{"new"},
		},
		{
			name:        "missing inprogress section",
			response:    "<completed>- a</completed>\n<new>- c</new>",
			wantMissing: []string{"inprogress"},
		},
		{
			name:        "missing completed section",
			response:    "<inprogress>- b</inprogress>\n<new>- c</new>",
			wantMissing: []string{"completed"},
		},
		{
			name:        "unclosed tag",
			response:    "<completed>- a\n<inprogress>- b</inprogress>\n<new></new>",
			wantMissing: []string{"completed"},
		},
		{
			name:        "free-form prose without any markers",
			response:    "This week the team completed the billing export and started the migration.",
			wantMissing: []string{"completed", "inprogress", "new"},
		},
		{
			name:        "empty response",
			response:    "",
			wantMissing: []string{"completed", "inprogress", "new"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSections(tt.response)
			if err == nil {
				t.Fatal("expected ParseError, got none")
			}

			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error type = %T, want *ParseError", err)
			}
			if !reflect.DeepEqual(parseErr.Missing, tt.wantMissing) {
				t.Errorf("Missing = %q, want %q", parseErr.Missing, tt.wantMissing)
			}
			if parseErr.Raw != tt.response {
				t.Error("ParseError should carry the raw response for diagnosis")
			}
		})
	}
}

func TestParseSectionsStripsBulletGlyphs(t *testing.T) {
	response := `<completed>
- dash bullet
• dot bullet
* star bullet
plain line
</completed>
<inprogress></inprogress>
<new></new>`

	summary, err := ParseSections(response)
	if err != nil {
		t.Fatalf("ParseSections returned error: %v", err)
	}

	want := []string{"dash bullet", "dot bullet", "star bullet", "plain line"}
	if !reflect.DeepEqual(summary.Completed, want) {
		t.Errorf("Completed = %q, want %q", summary.Completed, want)
	}

	for _, item := range summary.Completed {
		if strings.HasPrefix(item, "-") || strings.HasPrefix(item, "•") {
			t.Errorf("item %q retains a bullet glyph", item)
		}
	}
}
