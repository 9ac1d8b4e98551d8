// Package gitsync keeps the content directory in sync with a remote git
// repository. A sync before each build ensures the daemon publishes what is
// actually on the branch, not whatever happens to be on disk.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	appcfg "git.home.luguber.info/inful/blogsmith/internal/config"
)

// Typed errors enable structured classification without string parsing
// upstream.

type AuthError struct {
	Op  string
	URL string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op  string
	URL string
	Err error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// Syncer clones or updates the content repository into a local directory.
type Syncer struct {
	cfg appcfg.GitSyncConfig
	dir string
}

// New creates a syncer that materializes cfg.URL into dir.
func New(cfg appcfg.GitSyncConfig, dir string) *Syncer {
	return &Syncer{cfg: cfg, dir: dir}
}

// Sync brings dir up to date with the remote branch: clone when the
// directory holds no repository, otherwise fetch and fast-forward. It
// returns the HEAD commit hash after the sync.
func (s *Syncer) Sync(ctx context.Context) (string, error) {
	if !s.cfg.Enabled {
		return "", errors.New("git sync is not enabled")
	}
	if _, err := os.Stat(filepath.Join(s.dir, ".git")); err != nil {
		return s.clone(ctx)
	}
	return s.update(ctx)
}

func (s *Syncer) auth() *http.BasicAuth {
	if s.cfg.Token == "" {
		return nil
	}
	// token auth over https; the username is ignored by most forges
	return &http.BasicAuth{Username: "token", Password: s.cfg.Token}
}

func (s *Syncer) clone(ctx context.Context) (string, error) {
	slog.Info("Cloning content repository", "url", s.cfg.URL, "branch", s.cfg.Branch, "path", s.dir)

	opts := &git.CloneOptions{URL: s.cfg.URL}
	if s.cfg.Branch != "" {
		opts.ReferenceName = plumbing.ReferenceName("refs/heads/" + s.cfg.Branch)
		opts.SingleBranch = true
	}
	if a := s.auth(); a != nil {
		opts.Auth = a
	}

	repo, err := git.PlainCloneContext(ctx, s.dir, false, opts)
	if err != nil {
		return "", classify("clone", s.cfg.URL, err)
	}
	return headHash(repo)
}

func (s *Syncer) update(ctx context.Context) (string, error) {
	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}

	fetchOpts := &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.NoTags,
		RefSpecs:   []gitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
	}
	if a := s.auth(); a != nil {
		fetchOpts.Auth = a
	}
	if err := repo.FetchContext(ctx, fetchOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", classify("fetch", s.cfg.URL, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}

	pullOpts := &git.PullOptions{RemoteName: "origin"}
	if s.cfg.Branch != "" {
		pullOpts.ReferenceName = plumbing.ReferenceName("refs/heads/" + s.cfg.Branch)
	}
	if a := s.auth(); a != nil {
		pullOpts.Auth = a
	}
	if err := wt.PullContext(ctx, pullOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", classify("pull", s.cfg.URL, err)
	}

	hash, err := headHash(repo)
	if err != nil {
		return "", err
	}
	slog.Info("Content repository updated", "path", s.dir, "commit", shortHash(hash))
	return hash, nil
}

func headHash(repo *git.Repository) (string, error) {
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func classify(op, url string, err error) error {
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "authorization"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: op, URL: url, Err: err}
	default:
		return fmt.Errorf("%s %s: %w", op, url, err)
	}
}
