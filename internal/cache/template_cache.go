package cache

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"
)

// compiledTemplate pairs a parsed template with the source mtime observed at
// compile time, so staleness can be detected on the next lookup.
type compiledTemplate struct {
	tmpl    *template.Template
	modTime time.Time
}

// TemplateCache compiles page templates from a directory and caches the
// compiled handles. Entries invalidate automatically: a lookup compares the
// source file's current mtime against the one recorded at compile time and
// recompiles when the file is newer.
type TemplateCache struct {
	dir string
	lru *LRU
}

// NewTemplateCache creates a cache over the given template directory.
func NewTemplateCache(dir string, capacity int) *TemplateCache {
	return &TemplateCache{dir: dir, lru: NewLRU(capacity)}
}

// Dir returns the template source directory.
func (tc *TemplateCache) Dir() string { return tc.dir }

// Path returns the on-disk path for a template name.
func (tc *TemplateCache) Path(name string) string {
	return filepath.Join(tc.dir, name+".html")
}

// Get returns the compiled template for name, recompiling if the source file
// changed since it was cached.
func (tc *TemplateCache) Get(name string) (*template.Template, error) {
	path := tc.Path(name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}

	if v, ok := tc.lru.Get(name); ok {
		ct := v.(*compiledTemplate)
		if !info.ModTime().After(ct.modTime) {
			return ct.tmpl, nil
		}
		// stale entry, fall through to recompile
	}

	tmpl, err := template.New(filepath.Base(path)).ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf("compile template %s: %w", name, err)
	}
	tc.lru.Put(name, &compiledTemplate{tmpl: tmpl, modTime: info.ModTime()})
	return tmpl, nil
}

// Validate confirms the named template exists and compiles, without caching.
func (tc *TemplateCache) Validate(name string) error {
	path := tc.Path(name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("template %s: %w", name, err)
	}
	if _, err := template.ParseFiles(path); err != nil {
		return fmt.Errorf("template %s does not compile: %w", name, err)
	}
	return nil
}

// Stats exposes the underlying cache accounting.
func (tc *TemplateCache) Stats() Stats { return tc.lru.Stats() }

// Clear drops all compiled templates.
func (tc *TemplateCache) Clear() { tc.lru.Clear() }
