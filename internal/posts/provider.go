package posts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Provider supplies documents to the build pipeline.
type Provider interface {
	// ListPublished returns all non-draft documents sorted by publication
	// date descending.
	ListPublished() ([]*Document, error)
	// RootPath is the posts source tree, used only for precondition checks.
	RootPath() string
}

// DirProvider loads documents from a directory of Markdown files. The slug is
// the filename without extension.
type DirProvider struct {
	root string
}

// NewDirProvider creates a provider rooted at dir.
func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{root: dir}
}

func (p *DirProvider) RootPath() string { return p.root }

// ListPublished walks the posts tree, parses every Markdown file and returns
// published documents newest first. A file that fails to parse fails the
// listing; the build treats the posts tree as an already-validated input.
func (p *DirProvider) ListPublished() ([]*Document, error) {
	var docs []*Document
	err := filepath.WalkDir(p.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != p.root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".md" && ext != ".markdown" {
			return nil
		}
		content, rerr := os.ReadFile(path)
		if rerr != nil {
			return fmt.Errorf("read post %s: %w", path, rerr)
		}
		slug := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		doc, perr := Parse(slug, content)
		if perr != nil {
			return perr
		}
		if doc.Draft {
			slog.Debug("Skipping draft", "slug", doc.Slug)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Published.After(docs[j].Published)
	})
	return docs, nil
}
