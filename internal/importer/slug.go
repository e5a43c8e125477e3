package importer

import (
	"regexp"
	"strings"
)

const maxTags = 10

var (
	invalidSlugChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	dashRun          = regexp.MustCompile(`-+`)
)

// GenerateSlug derives a URL-friendly, stable identifier from a title
// or filename. Import idempotency keys on this value.
func GenerateSlug(title string) string {
	slug := strings.ToLower(title)
	slug = invalidSlugChars.ReplaceAllString(slug, "")
	slug = whitespaceRun.ReplaceAllString(slug, "-")
	slug = dashRun.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// ExtractTags derives up to 10 tags from a workflow payload: the node
// types it uses (with the n8n prefix stripped) plus significant words
// from its name.
func ExtractTags(workflow map[string]any) []string {
	var tags []string
	seen := map[string]bool{}

	add := func(tag string) {
		if tag != "" && !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	if nodes, ok := workflow["nodes"].([]any); ok {
		for _, raw := range nodes {
			node, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if nodeType, ok := node["type"].(string); ok {
				add(strings.TrimPrefix(nodeType, "n8n-nodes-base."))
			}
		}
	}

	if name, ok := workflow["name"].(string); ok {
		for _, part := range strings.Fields(strings.ToLower(name)) {
			if len(part) > 3 {
				add(part)
			}
		}
	}

	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}

// titleFromFilename turns "my_template-name.json" into "my template name".
func titleFromFilename(filename string) string {
	title := strings.TrimSuffix(filename, ".json")
	title = strings.ReplaceAll(title, "_", " ")
	title = strings.ReplaceAll(title, "-", " ")
	return title
}

// categoryFromDirName turns "AI_Agents-Research" into "AI Agents Research".
func categoryFromDirName(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(s, "-", " ")
}
