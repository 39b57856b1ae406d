package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestValidator(t *testing.T) (*PathValidator, string) {
	t.Helper()
	dir := t.TempDir()
	pv, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { pv.Close() })
	return pv, dir
}

func TestValidateAndNormalize(t *testing.T) {
	pv, _ := newTestValidator(t)

	valid := map[string]string{
		"config.json":        "config.json",
		"sub/config.json":    "sub/config.json",
		"./config.json":      "config.json",
		"sub/../config.json": "config.json",
	}
	for in, want := range valid {
		got, err := pv.ValidateAndNormalize(in)
		if err != nil {
			t.Errorf("ValidateAndNormalize(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ValidateAndNormalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateRejectsEscapes(t *testing.T) {
	pv, _ := newTestValidator(t)

	if _, err := pv.ValidateAndNormalize(""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("empty path: got %v, want ErrEmptyPath", err)
	}
	if _, err := pv.ValidateAndNormalize("/etc/passwd"); !errors.Is(err, ErrAbsolutePath) {
		t.Errorf("absolute path: got %v, want ErrAbsolutePath", err)
	}
	for _, in := range []string{"../outside", "sub/../../outside"} {
		if _, err := pv.ValidateAndNormalize(in); !errors.Is(err, ErrPathEscapes) {
			t.Errorf("escaping path %q: got %v, want ErrPathEscapes", in, err)
		}
	}
}

func TestWriteAndReadInRoot(t *testing.T) {
	pv, dir := newTestValidator(t)

	if err := pv.MkdirAllInRoot("sub", 0700); err != nil {
		t.Fatalf("MkdirAllInRoot failed: %v", err)
	}
	if err := pv.WriteFileInRoot("sub/file.txt", []byte("content"), 0600); err != nil {
		t.Fatalf("WriteFileInRoot failed: %v", err)
	}

	data, err := pv.ReadFileInRoot("sub/file.txt")
	if err != nil {
		t.Fatalf("ReadFileInRoot failed: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("content mismatch: %q", data)
	}

	info, err := pv.StatInRoot("sub/file.txt")
	if err != nil {
		t.Fatalf("StatInRoot failed: %v", err)
	}
	if info.Size() != int64(len("content")) {
		t.Errorf("size mismatch: %d", info.Size())
	}

	// File really is inside the root
	if _, err := os.Stat(filepath.Join(dir, "sub", "file.txt")); err != nil {
		t.Errorf("file should exist under root: %v", err)
	}

	if err := pv.RemoveInRoot("sub/file.txt"); err != nil {
		t.Fatalf("RemoveInRoot failed: %v", err)
	}
	if _, err := pv.StatInRoot("sub/file.txt"); err == nil {
		t.Error("file should have been removed")
	}
}

func TestWriteRejectsEscapingPath(t *testing.T) {
	pv, _ := newTestValidator(t)

	if err := pv.WriteFileInRoot("../escape.txt", []byte("x"), 0600); err == nil {
		t.Error("expected error writing outside root")
	}
}
