// Package content parses authored markdown (with optional YAML
// frontmatter) into the canonical document model.
package content

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/blacktop/postkit/internal/publish"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

var frontmatterPattern = regexp.MustCompile(`(?s)\A---\s*\n(.*?)\n---\s*\n?(.*)\z`)

type frontmatter struct {
	Title string  `yaml:"title"`
	Short string  `yaml:"short"`
	Tags  tagList `yaml:"tags"`
}

// tagList accepts either a YAML sequence or a comma-separated scalar.
type tagList []string

func (t *tagList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var tags []string
		if err := value.Decode(&tags); err != nil {
			return err
		}
		*t = tags
	case yaml.ScalarNode:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				*t = append(*t, tag)
			}
		}
	default:
		return fmt.Errorf("tags: expected list or string, got %v", value.Kind)
	}
	return nil
}

// ParseFile reads and parses a markdown document from disk.
func ParseFile(path string) (publish.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return publish.Document{}, fmt.Errorf("open content: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse builds a Document from markdown with optional frontmatter.
// A missing title is not an error: it falls back to the first heading
// at normalization time, or to empty.
func Parse(r io.Reader) (publish.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return publish.Document{}, fmt.Errorf("read content: %w", err)
	}

	var meta frontmatter
	body := string(raw)
	if match := frontmatterPattern.FindStringSubmatch(body); match != nil {
		if err := yaml.Unmarshal([]byte(match[1]), &meta); err != nil {
			return publish.Document{}, fmt.Errorf("parse frontmatter: %w", err)
		}
		body = match[2]
	}
	body = strings.TrimSpace(body)

	html, err := renderHTML(body)
	if err != nil {
		return publish.Document{}, fmt.Errorf("render html: %w", err)
	}

	return publish.Document{
		Title: strings.TrimSpace(meta.Title),
		Short: strings.TrimSpace(meta.Short),
		Tags:  dedupeTags(meta.Tags),
		Body:  body,
		HTML:  html,
	}, nil
}

func renderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// dedupeTags drops semantic duplicates (case-insensitive) while keeping
// first-seen casing and order.
func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(tag))
	}
	return out
}
