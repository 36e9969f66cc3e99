package descriptor

import (
	"errors"
	"os"
	"path"
	"testing"
)

const validDescriptor = `
version: 1
app: persons-api
image:
  base: python:3.11-slim
build:
  workdir: /app
  manifest:
    file: requirements.txt
    install: pip install --no-cache-dir -r requirements.txt
run:
  workdir: /app/backend
  command: ["sh", "start.sh"]
  ports: ["8000:8000"]
`

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(path.Join(dir, FileName), []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad_Valid(t *testing.T) {
	dir := writeDescriptor(t, validDescriptor)

	d, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if d.App != "persons-api" {
		t.Fatalf("Expected app persons-api, got %s", d.App)
	}
	if d.Image.Base != "python:3.11-slim" {
		t.Fatalf("Unexpected base image %s", d.Image.Base)
	}
	if d.Run.Workdir != "/app/backend" {
		t.Fatalf("Unexpected run workdir %s", d.Run.Workdir)
	}
	if len(d.Run.Command) != 2 || d.Run.Command[0] != "sh" {
		t.Fatalf("Unexpected run command %v", d.Run.Command)
	}
	if d.Dir != dir {
		t.Fatalf("Expected Dir %s, got %s", dir, d.Dir)
	}
	if !d.Source.IsLocal() {
		t.Fatal("Expected local source")
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, ErrDescriptorNotFound) {
		t.Fatalf("Expected ErrDescriptorNotFound, got %v", err)
	}
}

func TestLoad_UnknownField(t *testing.T) {
	dir := writeDescriptor(t, validDescriptor+"\nunknown: field\n")

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Expected error for unknown field")
	}
}

func TestLoad_MissingCommand(t *testing.T) {
	dir := writeDescriptor(t, `
version: 1
app: persons-api
image:
  base: python:3.11-slim
build:
  workdir: /app
  manifest:
    file: requirements.txt
    install: pip install -r requirements.txt
run:
  workdir: /app/backend
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Expected validation error for missing run.command")
	}
}

func TestValidate_RunWorkdirOutsideBuildWorkdir(t *testing.T) {
	dir := writeDescriptor(t, `
version: 1
app: persons-api
image:
  base: python:3.11-slim
build:
  workdir: /app
  manifest:
    file: requirements.txt
    install: pip install -r requirements.txt
run:
  workdir: /srv/backend
  command: ["sh", "start.sh"]
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Expected error for run.workdir outside build.workdir")
	}
}

func TestValidate_ManifestOutsideSourceTree(t *testing.T) {
	dir := writeDescriptor(t, `
version: 1
app: persons-api
image:
  base: python:3.11-slim
build:
  workdir: /app
  manifest:
    file: ../requirements.txt
    install: pip install -r requirements.txt
run:
  workdir: /app/backend
  command: ["sh", "start.sh"]
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Expected error for manifest path escaping the source tree")
	}
}

func TestValidate_SameWorkdir(t *testing.T) {
	dir := writeDescriptor(t, `
version: 1
app: worker
image:
  base: python:3.11-slim
build:
  workdir: /app
  manifest:
    file: requirements.txt
    install: pip install -r requirements.txt
run:
  workdir: /app
  command: ["python", "main.py"]
`)

	_, err := Load(dir)
	if err != nil {
		t.Fatalf("Expected run.workdir == build.workdir to be valid, got %v", err)
	}
}
