package server

import (
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter contains metadata from the YAML header of a markdown doc
type frontmatter struct {
	Description string
	Tags        []string
}

// rawFrontmatter keeps tags loose, docs use both "a, b" and [a, b]
type rawFrontmatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Tags        any    `yaml:"tags"`
}

// isMarkdown reports whether a doc file may carry frontmatter
func isMarkdown(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".mdx", ".markdown":
		return true
	}
	return false
}

// parseFrontmatter extracts the YAML block delimited by "---" lines at the top of content.
// Missing or malformed frontmatter yields empty metadata. Title is used when
// description is absent.
func parseFrontmatter(content string) frontmatter {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, "---\n") {
		return frontmatter{}
	}

	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end == -1 {
		if !strings.HasSuffix(rest, "\n---") {
			return frontmatter{} // unterminated or empty block
		}
		end = len(rest) - len("\n---")
	}

	var raw rawFrontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &raw); err != nil {
		return frontmatter{}
	}

	res := frontmatter{Description: strings.TrimSpace(raw.Description), Tags: parseTags(raw.Tags)}
	if res.Description == "" {
		res.Description = strings.TrimSpace(raw.Title)
	}
	return res
}

// parseTags accepts a comma-separated string or a list
func parseTags(tags any) []string {
	var items []string
	switch v := tags.(type) {
	case string:
		items = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	default:
		return nil
	}

	var res []string
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}
