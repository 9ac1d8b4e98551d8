package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/blogsmith/internal/observability"
)

// createBackup prepares a fresh output tree while preserving the previous
// one. Any stale backup is deleted first, then an existing output tree is
// moved aside, making the step idempotent and crash-tolerant. moved reports
// whether the previous output tree actually left its place: until it has,
// the live site is untouched and a failure here must not trigger a
// rollback, because rollback deletes the output tree.
func (o *Orchestrator) createBackup() (moved bool, err error) {
	if _, serr := os.Stat(o.cfg.BackupDir); serr == nil {
		slog.Debug("Removing stale backup", "backup", o.cfg.BackupDir)
		if rerr := os.RemoveAll(o.cfg.BackupDir); rerr != nil {
			return false, fmt.Errorf("remove stale backup: %w", rerr)
		}
	}

	if _, serr := os.Stat(o.cfg.OutputDir); serr == nil {
		if rerr := o.moveTree(o.cfg.OutputDir, o.cfg.BackupDir); rerr != nil {
			return false, fmt.Errorf("move output tree to backup: %w", rerr)
		}
		moved = true
		slog.Info("Backed up previous output tree", "backup", o.cfg.BackupDir)
	}

	if merr := os.MkdirAll(filepath.Join(o.cfg.OutputDir, "posts"), 0o755); merr != nil {
		return moved, fmt.Errorf("create output directory: %w", merr)
	}
	if merr := os.MkdirAll(filepath.Join(o.cfg.OutputDir, "tags"), 0o755); merr != nil {
		return moved, fmt.Errorf("create tags directory: %w", merr)
	}
	return moved, nil
}

// moveTree relocates a directory tree. A same-volume rename is a single
// atomic filesystem operation; when output and backup span filesystems the
// rename fails and, with cross_volume acknowledged in the configuration,
// the tree is copied and the source deleted instead. The fallback is not
// atomic, which is exactly what the acknowledgment accepts.
func (o *Orchestrator) moveTree(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !o.cfg.CrossVolume {
		return err
	}
	slog.Debug("Rename failed, copying tree instead", "src", src, "dst", dst, "error", err)
	if cerr := copyTree(src, dst); cerr != nil {
		// Leave no half-copied destination behind; the source is intact.
		os.RemoveAll(dst)
		return fmt.Errorf("copy tree after failed rename: %w", cerr)
	}
	if rerr := os.RemoveAll(src); rerr != nil {
		return fmt.Errorf("remove source after copy: %w", rerr)
	}
	return nil
}

// copyTree duplicates a directory tree file by file, creating destination
// directories as needed.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(src, path)
		if rerr != nil {
			return rerr
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		return os.WriteFile(target, data, 0o644)
	})
}

// rollback restores the previous output tree after a failed build. The
// failed output is deleted, then the backup (if one exists) is moved back.
// restored reports whether the site is intact again; hadBackup
// distinguishes "nothing to restore" from a restore failure. Callers must
// only enter rollback once the backup phase has moved the previous output
// aside; before that point the output tree still holds the live site.
func (o *Orchestrator) rollback(ctx context.Context) (restored, hadBackup bool) {
	if err := os.RemoveAll(o.cfg.OutputDir); err != nil {
		observability.ErrorContext(ctx, "Rollback could not remove failed output tree",
			slog.String("output", o.cfg.OutputDir), slog.Any("error", err))
		return false, o.backupExists()
	}

	if !o.backupExists() {
		observability.WarnContext(ctx, "Rollback found no backup to restore",
			slog.String("backup", o.cfg.BackupDir))
		return true, false
	}

	if err := o.moveTree(o.cfg.BackupDir, o.cfg.OutputDir); err != nil {
		observability.ErrorContext(ctx, "Rollback failed to restore backup",
			slog.String("backup", o.cfg.BackupDir), slog.Any("error", err))
		return false, true
	}
	observability.InfoContext(ctx, "Rolled back to previous output tree",
		slog.String("output", o.cfg.OutputDir))
	return true, true
}

// cleanupBackup deletes the backup after a fully successful build. Failure
// is logged but does not change the build outcome.
func (o *Orchestrator) cleanupBackup() {
	if !o.backupExists() {
		return
	}
	if err := os.RemoveAll(o.cfg.BackupDir); err != nil {
		slog.Warn("Failed to remove backup after successful build", "backup", o.cfg.BackupDir, "error", err)
	}
}

func (o *Orchestrator) backupExists() bool {
	_, err := os.Stat(o.cfg.BackupDir)
	return err == nil
}
