package source

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"stowage/internal/descriptor"
)

func TestFetch_LocalCopiesTreeVerbatim(t *testing.T) {
	src := t.TempDir()
	err := os.WriteFile(filepath.Join(src, "requirements.txt"), []byte("fastapi==0.110.0\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	err = os.MkdirAll(filepath.Join(src, "backend", "nested"), 0755)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(filepath.Join(src, "backend", "nested", "util.py"), []byte("x = 1\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}

	d := descriptor.Descriptor{Dir: src}
	dst := t.TempDir()

	err = Fetch(context.Background(), d, dst)
	if err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(filepath.Join(dst, "backend", "nested", "util.py"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "x = 1\n" {
		t.Fatalf("Unexpected copied content %q", content)
	}
}

func TestFetch_LocalCopiesSymlinks(t *testing.T) {
	src := t.TempDir()
	err := os.MkdirAll(filepath.Join(src, "scripts"), 0755)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(filepath.Join(src, "scripts", "start.sh"), []byte("#!/bin/sh\necho ready\n"), 0755)
	if err != nil {
		t.Fatal(err)
	}
	err = os.MkdirAll(filepath.Join(src, "backend"), 0755)
	if err != nil {
		t.Fatal(err)
	}
	err = os.Symlink("../scripts/start.sh", filepath.Join(src, "backend", "start.sh"))
	if err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	err = Fetch(context.Background(), descriptor.Descriptor{Dir: src}, dst)
	if err != nil {
		t.Fatal(err)
	}

	link := filepath.Join(dst, "backend", "start.sh")
	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("Expected the symlink to be copied: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatal("Expected backend/start.sh to stay a symlink")
	}

	target, err := os.Readlink(link)
	if err != nil {
		t.Fatal(err)
	}
	if target != "../scripts/start.sh" {
		t.Fatalf("Unexpected symlink target %s", target)
	}
}

func TestFetch_LocalPreservesFileMode(t *testing.T) {
	src := t.TempDir()
	err := os.WriteFile(filepath.Join(src, "start.sh"), []byte("#!/bin/sh\necho ready\n"), 0755)
	if err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	err = Fetch(context.Background(), descriptor.Descriptor{Dir: src}, dst)
	if err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(dst, "start.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Fatal("Expected the startup script to stay executable")
	}
}

func TestUntar_RejectsPathEscape(t *testing.T) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	content := []byte("owned\n")
	err := tw.WriteHeader(&tar.Header{
		Name: "owner-repo-abc123/../../evil.txt",
		Size: int64(len(content)),
		Mode: 0644,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = tw.Write(content)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatal(err)
	}

	parent := t.TempDir()
	dst := filepath.Join(parent, "repo")
	err = os.MkdirAll(dst, 0755)
	if err != nil {
		t.Fatal(err)
	}

	err = untar(dst, &buf)
	if err == nil {
		t.Fatal("Expected error for a tar entry escaping the destination")
	}
	if _, err := os.Stat(filepath.Join(parent, "evil.txt")); !os.IsNotExist(err) {
		t.Fatal("Expected nothing to be written outside the destination")
	}
}

func TestUntar_StripsLeadingDirectory(t *testing.T) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	content := []byte("fastapi==0.110.0\n")
	err := tw.WriteHeader(&tar.Header{
		Name: "owner-repo-abc123/requirements.txt",
		Size: int64(len(content)),
		Mode: 0644,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = tw.Write(content)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	err = untar(dst, &buf)
	if err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "requirements.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("Unexpected extracted content %q", got)
	}
}
