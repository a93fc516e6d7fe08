package file

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileReturnsContent(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644)
	tool := New(dir)

	out, err := tool.ReadFile(map[string]any{"path": "a.txt"})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if out != "hello" {
		t.Errorf("ReadFile() = %q, want hello", out)
	}
}

func TestReadFileTruncatesLongContent(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "big.txt"), []byte(strings.Repeat("x", 9000)), 0644)
	tool := New(dir)

	out, err := tool.ReadFile(map[string]any{"path": "big.txt"})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(out) >= 9000 {
		t.Errorf("ReadFile() not truncated, len = %d", len(out))
	}
}

func TestReadFileRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	tool := New(dir)
	if _, err := tool.ReadFile(map[string]any{"path": "../etc/passwd"}); err == nil {
		t.Error("ReadFile: expected path-traversal error")
	}
}

func TestReadFileRejectsAbsolutePath(t *testing.T) {
	tool := New(t.TempDir())
	if _, err := tool.ReadFile(map[string]any{"path": "/etc/passwd"}); err == nil {
		t.Error("ReadFile: expected absolute-path error")
	}
}

func TestWriteFileCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	tool := New(dir)

	out, err := tool.WriteFile(map[string]any{"path": "nested/b.txt", "content": "hi"})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !strings.Contains(out, "b.txt") {
		t.Errorf("WriteFile() = %q, want mention of b.txt", out)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "nested/b.txt"))
	if string(data) != "hi" {
		t.Errorf("file content = %q, want hi", data)
	}
}

func TestEditFileRequiresExistingFile(t *testing.T) {
	dir := t.TempDir()
	tool := New(dir)
	if _, err := tool.EditFile(map[string]any{"path": "missing.txt", "content": "x"}); err == nil {
		t.Error("EditFile: expected error for missing file")
	}
}

func TestEditFileReplacesContent(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "c.txt"), []byte("old"), 0644)
	tool := New(dir)

	if _, err := tool.EditFile(map[string]any{"path": "c.txt", "content": "new"}); err != nil {
		t.Fatalf("EditFile: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "c.txt"))
	if string(data) != "new" {
		t.Errorf("file content = %q, want new", data)
	}
}

func TestFindReplaceCountsOccurrences(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "d.txt"), []byte("foo bar foo"), 0644)
	tool := New(dir)

	out, err := tool.FindReplace(map[string]any{"path": "d.txt", "find": "foo", "replace": "baz"})
	if err != nil {
		t.Fatalf("FindReplace: %v", err)
	}
	if !strings.Contains(out, "2") {
		t.Errorf("FindReplace() = %q, want mention of 2 occurrences", out)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "d.txt"))
	if string(data) != "baz bar baz" {
		t.Errorf("file content = %q, want baz bar baz", data)
	}
}

func TestDiffFileMarksAddedAndRemovedLines(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "e.txt"), []byte("one\ntwo\nthree"), 0644)
	tool := New(dir)

	out, err := tool.DiffFile(map[string]any{"path": "e.txt", "proposed": "one\nTWO\nthree"})
	if err != nil {
		t.Fatalf("DiffFile: %v", err)
	}
	if !strings.Contains(out, "- two") {
		t.Errorf("DiffFile() missing removed line, got %q", out)
	}
	if !strings.Contains(out, "+ TWO") {
		t.Errorf("DiffFile() missing added line, got %q", out)
	}
	if !strings.Contains(out, "  one") {
		t.Errorf("DiffFile() missing unchanged line, got %q", out)
	}
}

func TestDefinitionsListsFiveTools(t *testing.T) {
	tool := New(t.TempDir())
	defs := tool.Definitions()
	if len(defs) != 5 {
		t.Fatalf("Definitions() returned %d tools, want 5", len(defs))
	}
}
