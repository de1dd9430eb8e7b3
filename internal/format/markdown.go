package format

import (
	"fmt"
	"strings"
)

// Markdown renders the block as markdown for terminal preview (--dry-run).
// The document appender never uses this path; it works from the block's
// structure directly.
func (b Block) Markdown() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("# %s\n\n", b.Heading))
	builder.WriteString(b.Period + "\n\n")

	if b.Kind == KindTable {
		builder.WriteString(renderMarkdownTable(b.Sections))
	} else {
		builder.WriteString(renderMarkdownBullets(b.Sections))
	}

	return builder.String()
}

// renderMarkdownTable generates a two-column markdown table with one row
// per item, repeating the category label down the first column.
func renderMarkdownTable(sections []Section) string {
	var builder strings.Builder

	builder.WriteString("| Category | Item |\n")
	builder.WriteString("|----------|------|\n")

	for _, section := range sections {
		for _, item := range section.Items {
			builder.WriteString(fmt.Sprintf("| %s | %s |\n",
				escapeMarkdownTableCell(section.Title),
				escapeMarkdownTableCell(item)))
		}
	}

	return builder.String()
}

// renderMarkdownBullets generates a headed bullet list per category.
func renderMarkdownBullets(sections []Section) string {
	var builder strings.Builder

	for i, section := range sections {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(fmt.Sprintf("## %s\n", section.Title))
		for _, item := range section.Items {
			builder.WriteString(fmt.Sprintf("- %s\n", item))
		}
	}

	return builder.String()
}

// escapeMarkdownTableCell escapes pipe characters and other problematic content for table cells
func escapeMarkdownTableCell(content string) string {
	// First escape existing backslashes to prevent unintended escaping
	content = strings.ReplaceAll(content, "\\", "\\\\")

	// Then replace pipe characters that would break table formatting
	content = strings.ReplaceAll(content, "|", "\\|")

	// Use collapseNewlines to properly handle line endings and spacing
	content = collapseNewlines(content)

	// Replace tabs
	content = strings.ReplaceAll(content, "\t", " ")

	return strings.TrimSpace(content)
}

// collapseNewlines replaces newlines with single spaces for table cell content
func collapseNewlines(content string) string {
	// Replace Windows line endings first to avoid double spaces
	content = strings.ReplaceAll(content, "\r\n", " ")
	// Then replace remaining Unix and Mac line endings
	content = strings.ReplaceAll(content, "\n", " ")
	content = strings.ReplaceAll(content, "\r", " ")

	// Collapse multiple spaces into single spaces
	for strings.Contains(content, "  ") {
		content = strings.ReplaceAll(content, "  ", " ")
	}

	return strings.TrimSpace(content)
}
