package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path"
	"testing"
)

func writeApp(t *testing.T, root string, dirName string, appName string) {
	t.Helper()
	dir := path.Join(root, dirName)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		t.Fatal(err)
	}

	content := fmt.Sprintf(`
version: 1
app: %s
image:
  base: python:3.11-slim
build:
  workdir: /app
  manifest:
    file: requirements.txt
    install: pip install -r requirements.txt
run:
  workdir: /app/backend
  command: ["sh", "start.sh"]
`, appName)

	err = os.WriteFile(path.Join(dir, FileName), []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}
}

func TestDiscover_UniqueNames(t *testing.T) {
	root := t.TempDir()
	writeApp(t, root, "app-1", "app-1")
	writeApp(t, root, "app-2", "app-2")
	writeApp(t, root, "app-3", "app-3")

	descriptors, err := Discover(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(descriptors) != 3 {
		t.Fatalf("Expected 3 descriptors, got %d", len(descriptors))
	}
}

func TestDiscover_SameNames(t *testing.T) {
	root := t.TempDir()
	writeApp(t, root, "first", "app-1")
	writeApp(t, root, "second", "app-2")
	writeApp(t, root, "third", "app-1")

	_, err := Discover(root)
	if err == nil {
		t.Fatal("Expected error")
	}

	expectedErrorMsg := "there are multiple apps with the same name. Duplicate names [app-1]"
	if err.Error() != expectedErrorMsg {
		t.Fatalf("Expected error '%s', got '%s'", expectedErrorMsg, err.Error())
	}
}

func TestDiscover_SingleAppRoot(t *testing.T) {
	root := t.TempDir()
	writeApp(t, root, ".", "solo")

	descriptors, err := Discover(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(descriptors) != 1 || descriptors[0].App != "solo" {
		t.Fatalf("Expected single descriptor for solo, got %v", descriptors)
	}
}

func TestDiscover_Empty(t *testing.T) {
	_, err := Discover(t.TempDir())
	if !errors.Is(err, ErrDescriptorNotFound) {
		t.Fatalf("Expected ErrDescriptorNotFound, got %v", err)
	}
}

func TestDiscover_SkipsDirsWithoutDescriptor(t *testing.T) {
	root := t.TempDir()
	writeApp(t, root, "app-1", "app-1")
	err := os.MkdirAll(path.Join(root, "not-an-app"), 0755)
	if err != nil {
		t.Fatal(err)
	}

	descriptors, err := Discover(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(descriptors) != 1 {
		t.Fatalf("Expected 1 descriptor, got %d", len(descriptors))
	}
}
