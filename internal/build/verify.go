package build

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/net/html"
)

// minArtifactSize is the smallest byte count a top-level artifact may have
// and still count as non-trivial.
const minArtifactSize = 64

// requiredArtifacts are the top-level files every successful build produces.
var requiredArtifacts = []string{"index.html", "archive.html", "feed.xml"}

// verifyOutput confirms the output tree holds a plausible site: the tree and
// every required artifact exist with non-trivial size, and the homepage
// parses as HTML with actual element content. A missing or empty posts
// directory is logged but not fatal (a site with zero posts is legal).
func (o *Orchestrator) verifyOutput() error {
	if _, err := os.Stat(o.cfg.OutputDir); err != nil {
		return fmt.Errorf("output tree missing: %w", err)
	}

	for _, name := range requiredArtifacts {
		path := filepath.Join(o.cfg.OutputDir, name)
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("required artifact %s missing: %w", name, err)
		}
		if info.Size() < minArtifactSize {
			return fmt.Errorf("required artifact %s is near-empty (%d bytes)", name, info.Size())
		}
	}

	if err := o.verifyHomepage(); err != nil {
		return err
	}

	postsDir := filepath.Join(o.cfg.OutputDir, "posts")
	entries, err := os.ReadDir(postsDir)
	if err != nil {
		slog.Warn("Posts directory missing from output tree", "dir", postsDir, "error", err)
	} else if len(entries) == 0 {
		slog.Warn("Posts directory is empty", "dir", postsDir)
	}
	return nil
}

// verifyHomepage parses index.html and requires at least one element node,
// catching templates that rendered to whitespace or raw text.
func (o *Orchestrator) verifyHomepage() error {
	f, err := os.Open(filepath.Join(o.cfg.OutputDir, "index.html"))
	if err != nil {
		return fmt.Errorf("open index.html: %w", err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return fmt.Errorf("index.html does not parse as HTML: %w", err)
	}
	// html.Parse synthesizes html/head/body for any input, so require an
	// element beyond that skeleton.
	if !hasContentElement(doc) {
		return fmt.Errorf("index.html contains no content elements")
	}
	return nil
}

func hasContentElement(n *html.Node) bool {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "html", "head", "body":
		default:
			return true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasContentElement(c) {
			return true
		}
	}
	return false
}
