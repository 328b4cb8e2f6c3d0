package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempVault(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs, dir
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRead(t *testing.T) {
	s, dir := tempVault(t)
	writeFile(t, dir, "note.md", "# Hello\nWorld\n")
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "# Hello\nWorld\n" {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissing(t *testing.T) {
	s, _ := tempVault(t)
	if _, err := s.Read("nope.md"); err == nil {
		t.Error("expected error reading missing file")
	}
}

func TestList(t *testing.T) {
	s, dir := tempVault(t)
	writeFile(t, dir, "a.md", "a")
	writeFile(t, dir, "sub/b.md", "b")
	writeFile(t, dir, "readme.txt", "not md")

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
	for _, m := range items {
		if m.Checksum == "" {
			t.Errorf("missing checksum for %s", m.Path)
		}
	}
}

func TestListSubdir(t *testing.T) {
	s, dir := tempVault(t)
	writeFile(t, dir, "a.md", "a")
	writeFile(t, dir, "sub/b.md", "b")

	items, err := s.List("sub")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != filepath.Join("sub", "b.md") {
		t.Errorf("items = %v", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s, _ := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/muninn-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "muninn-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
