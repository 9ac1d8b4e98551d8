package assets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/blogsmith/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		file    string
		wantErr string
	}{
		{"image ok", "logo.png", ""},
		{"stylesheet ok", "main.css", ""},
		{"disallowed extension", "script.sh", "not allowed"},
		{"blocked filename", ".htaccess", "not allowed"}, // extension check fires first
		{"blocked conf", "nginx.conf", "not allowed"},
		{"blocked policy file", "crossdomain.xml", "blocked"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.file)
			writeFile(t, path, "content")
			err := ValidateFile(path)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateFile_Missing(t *testing.T) {
	if err := ValidateFile(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCopyDirectoryAssets_CountsFailuresWithoutAborting(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "ok.css"), "body{}")
	writeFile(t, filepath.Join(src, "img", "pic.png"), "png")
	writeFile(t, filepath.Join(src, "run.sh"), "#!/bin/sh")

	ok, failed := NewSyncer(nil).CopyDirectoryAssets(src, dst)
	if ok != 2 || failed != 1 {
		t.Fatalf("expected 2 ok / 1 failed, got %d / %d", ok, failed)
	}
	if _, err := os.Stat(filepath.Join(dst, "img", "pic.png")); err != nil {
		t.Fatalf("nested asset not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "run.sh")); err == nil {
		t.Fatal("rejected asset was copied")
	}
}

func TestCopyDirectoryAssets_SkipsUpToDate(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "a.css"), "v1")

	s := NewSyncer(nil)
	if ok, failed := s.CopyDirectoryAssets(src, dst); ok != 1 || failed != 0 {
		t.Fatalf("first copy: got %d / %d", ok, failed)
	}
	// second run: same mtime window but matching size, must be treated as
	// up to date and still counted as success
	if ok, failed := s.CopyDirectoryAssets(src, dst); ok != 1 || failed != 0 {
		t.Fatalf("second copy: got %d / %d", ok, failed)
	}
}

func TestCopyAllAssets_AggregateErrorAfterAllMappings(t *testing.T) {
	good := t.TempDir()
	writeFile(t, filepath.Join(good, "fine.js"), "ok")
	out := t.TempDir()

	s := NewSyncer([]config.AssetMapping{
		{Source: filepath.Join(good, "missing-subdir"), Destination: "a", Description: "broken mapping"},
		{Source: good, Destination: "static", Description: "scripts"},
	})
	ok, failed, err := s.CopyAllAssets(out)
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if ok != 1 || failed != 1 {
		t.Fatalf("expected 1 ok / 1 failed, got %d / %d", ok, failed)
	}
	// the later mapping was still attempted
	if _, serr := os.Stat(filepath.Join(out, "static", "fine.js")); serr != nil {
		t.Fatalf("second mapping not attempted: %v", serr)
	}
}

func TestCopyAllAssets_Success(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "styles.css"), "body{}")
	out := t.TempDir()

	s := NewSyncer([]config.AssetMapping{{Source: src, Destination: "css"}})
	ok, failed, err := s.CopyAllAssets(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok != 1 || failed != 0 {
		t.Fatalf("got %d / %d", ok, failed)
	}
}
