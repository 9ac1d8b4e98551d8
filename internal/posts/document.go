// Package posts owns the document model: one Markdown file with YAML
// front-matter per blog post. Documents are immutable once loaded; the build
// pipeline never writes back to the posts tree.
package posts

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is one content item with its front-matter metadata and body.
type Document struct {
	Slug      string
	Title     string
	Published time.Time
	Draft     bool
	Tags      []string
	Body      []byte
}

// frontMatter mirrors the YAML front-matter block of a post file.
type frontMatter struct {
	Title string   `yaml:"title"`
	Date  string   `yaml:"date"`
	Draft bool     `yaml:"draft,omitempty"`
	Tags  []string `yaml:"tags,omitempty"`
}

// ErrMissingClosingDelimiter indicates the document started with a YAML
// front-matter delimiter but never closed it.
var ErrMissingClosingDelimiter = errors.New("front-matter start delimiter found but closing delimiter is missing")

var delim = []byte("---\n")

// Split separates the `---` delimited YAML front-matter from the Markdown
// body. If the document has no front-matter, had is false and body is the
// full input.
func Split(content []byte) (fm []byte, body []byte, had bool, err error) {
	if !bytes.HasPrefix(content, delim) {
		return nil, content, false, nil
	}
	rest := content[len(delim):]
	if bytes.HasPrefix(rest, delim) {
		return []byte{}, rest[len(delim):], true, nil
	}
	idx := bytes.Index(rest, []byte("\n---\n"))
	if idx < 0 {
		return nil, nil, false, ErrMissingClosingDelimiter
	}
	return rest[:idx+1], rest[idx+len("\n---\n"):], true, nil
}

// dateLayouts are accepted front-matter date formats, most specific first.
var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Parse builds a Document from raw file content. The slug is supplied by the
// caller (derived from the filename) and is not part of the front-matter.
func Parse(slug string, content []byte) (*Document, error) {
	raw, body, had, err := Split(content)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", slug, err)
	}
	doc := &Document{Slug: slug, Body: body}
	if !had {
		return nil, fmt.Errorf("post %s: missing front-matter", slug)
	}

	var fm frontMatter
	if err := yaml.Unmarshal(raw, &fm); err != nil {
		return nil, fmt.Errorf("post %s: parse front-matter: %w", slug, err)
	}
	if fm.Title == "" {
		return nil, fmt.Errorf("post %s: front-matter is missing a title", slug)
	}
	doc.Title = fm.Title
	doc.Draft = fm.Draft
	doc.Tags = normalizeTags(fm.Tags)

	if fm.Date == "" {
		return nil, fmt.Errorf("post %s: front-matter is missing a date", slug)
	}
	for _, layout := range dateLayouts {
		if ts, perr := time.Parse(layout, fm.Date); perr == nil {
			doc.Published = ts
			break
		}
	}
	if doc.Published.IsZero() {
		return nil, fmt.Errorf("post %s: unparseable date %q", slug, fm.Date)
	}
	return doc, nil
}

// normalizeTags deduplicates and sorts a tag set so downstream consumers see
// a stable order regardless of front-matter ordering.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
