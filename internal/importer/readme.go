package importer

import (
	"regexp"
	"strings"
)

// TemplateMeta is one row parsed from the repository README tables:
// | Title | Description | Department | Link |
type TemplateMeta struct {
	Title       string
	Description string
	Category    string
	Department  string
	SourceURL   string
	AuthorName  string
}

var markdownLinkRe = regexp.MustCompile(`\[.*?\]\((.*?)\)`)

// parseReadmeTemplates extracts template metadata from README markdown
// tables. Category comes from the preceding "### " heading.
func parseReadmeTemplates(content, author string) []TemplateMeta {
	var templates []TemplateMeta

	currentCategory := ""
	inTable := false

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "### ") {
			currentCategory = strings.TrimSpace(strings.TrimPrefix(line, "### "))
			inTable = false
			continue
		}

		if strings.Contains(line, "| Title |") {
			inTable = true
			continue
		}
		if inTable && strings.HasPrefix(line, "|---") {
			continue
		}
		if !inTable || !strings.HasPrefix(line, "|") {
			continue
		}

		cells := splitTableRow(line)
		if len(cells) < 4 {
			continue
		}

		title := cells[0]
		if title == "" || title == "Title" {
			continue
		}

		link := cells[3]
		if m := markdownLinkRe.FindStringSubmatch(link); m != nil {
			link = m[1]
		}

		templates = append(templates, TemplateMeta{
			Title:       title,
			Description: cells[1],
			Category:    currentCategory,
			Department:  cells[2],
			SourceURL:   link,
			AuthorName:  author,
		})
	}

	return templates
}

// splitTableRow splits "| a | b | c |" into trimmed cell values.
func splitTableRow(line string) []string {
	parts := strings.Split(line, "|")
	if len(parts) < 3 {
		return nil
	}
	// First and last parts are the empty strings outside the outer pipes.
	cells := make([]string, 0, len(parts)-2)
	for _, p := range parts[1 : len(parts)-1] {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}
