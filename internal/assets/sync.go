package assets

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/blogsmith/internal/config"
)

// ErrAssetSync is the sentinel wrapped by aggregate copy failures.
var ErrAssetSync = errors.New("asset sync")

// Syncer copies static files for every configured mapping. It performs no
// rollback of its own; backup and restore of the whole output tree belong to
// the orchestrator.
type Syncer struct {
	mappings []config.AssetMapping
}

// NewSyncer creates a Syncer over the configured mappings.
func NewSyncer(mappings []config.AssetMapping) *Syncer {
	return &Syncer{mappings: mappings}
}

// CopyDirectoryAssets walks src recursively and copies every valid file into
// dst, preserving relative paths. It returns per-file success and failure
// counts; validation failures and copy errors count as failures but do not
// stop the walk.
func (s *Syncer) CopyDirectoryAssets(src, dst string) (succeeded, failed int) {
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			slog.Warn("Asset walk error", "path", path, "error", walkErr)
			failed++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			failed++
			return nil
		}
		target := filepath.Join(dst, rel)

		if err := ValidateFile(path); err != nil {
			slog.Warn("Asset rejected", "path", path, "error", err)
			failed++
			return nil
		}
		if upToDate(path, target) {
			succeeded++
			return nil
		}
		if err := copyFile(path, target); err != nil {
			slog.Warn("Asset copy failed", "src", path, "dst", target, "error", err)
			failed++
			return nil
		}
		succeeded++
		return nil
	})
	if err != nil {
		slog.Warn("Asset tree walk aborted", "src", src, "error", err)
		failed++
	}
	return succeeded, failed
}

// CopyAllAssets runs CopyDirectoryAssets for every configured mapping. Every
// mapping is attempted even when an earlier one failed; an aggregate error is
// returned at the end if any file failed.
func (s *Syncer) CopyAllAssets(outputDir string) (succeeded, failed int, err error) {
	for _, m := range s.mappings {
		dst := filepath.Join(outputDir, m.Destination)
		if _, statErr := os.Stat(m.Source); statErr != nil {
			slog.Warn("Asset source missing", "source", m.Source, "description", m.Description)
			failed++
			continue
		}
		ok, bad := s.CopyDirectoryAssets(m.Source, dst)
		succeeded += ok
		failed += bad
		slog.Info("Asset mapping processed",
			"source", m.Source,
			"destination", dst,
			"copied", ok,
			"failed", bad)
	}
	if failed > 0 {
		return succeeded, failed, fmt.Errorf("%w: %d of %d files failed", ErrAssetSync, failed, succeeded+failed)
	}
	return succeeded, failed, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create asset directory: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
