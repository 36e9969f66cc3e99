package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the descriptor file stowage looks for in an app directory.
const FileName = "stowage.yaml"

var ErrDescriptorNotFound = errors.New("descriptor not found")

// Descriptor declares how an app's image is built and launched.
type Descriptor struct {
	Version int    `yaml:"version" validate:"required,oneof=1"`
	App     string `yaml:"app" validate:"required,hostname_rfc1123"`

	Image struct {
		// Pinned base runtime, e.g. python:3.11-slim.
		Base string `yaml:"base" validate:"required"`
	} `yaml:"image"`

	Build struct {
		Workdir  string `yaml:"workdir" validate:"required,startswith=/"`
		Manifest struct {
			// Path of the dependency manifest, relative to the source root.
			File string `yaml:"file" validate:"required"`
			// Command that installs everything the manifest declares.
			Install string `yaml:"install" validate:"required"`
		} `yaml:"manifest"`
	} `yaml:"build"`

	Run struct {
		Workdir string            `yaml:"workdir" validate:"required,startswith=/"`
		Command []string          `yaml:"command" validate:"required,min=1"`
		Ports   []string          `yaml:"ports"`
		Env     map[string]string `yaml:"env"`
		Volumes []string          `yaml:"volumes"`
	} `yaml:"run"`

	Source Source `yaml:"source"`

	// Directory the descriptor was loaded from. Not part of the file.
	Dir string `yaml:"-"`
}

// Source selects where the project tree comes from. All fields empty means
// the descriptor's own directory.
type Source struct {
	Git struct {
		URL      string `yaml:"url"`
		Revision string `yaml:"revision"`
	} `yaml:"git"`
	Github struct {
		Owner      string `yaml:"owner"`
		Repository string `yaml:"repository"`
		Revision   string `yaml:"revision"`
	} `yaml:"github"`
}

func (s Source) IsLocal() bool {
	return s.Git.URL == "" && s.Github.Owner == ""
}

// Load reads and validates the descriptor in dir.
func Load(dir string) (Descriptor, error) {
	filePath := path.Join(dir, FileName)

	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Descriptor{}, fmt.Errorf("%w in `%s`", ErrDescriptorNotFound, dir)
		}
		return Descriptor{}, err
	}
	defer file.Close()

	decoded := Descriptor{}
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	err = decoder.Decode(&decoded)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to decode descriptor `%s`: %w", filePath, err)
	}

	decoded.Dir = dir
	err = decoded.Validate()
	if err != nil {
		return Descriptor{}, fmt.Errorf("invalid descriptor `%s`: %w", filePath, err)
	}

	return decoded, nil
}

func (d Descriptor) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.Struct(d)
	if err != nil {
		return err
	}

	if filepath.IsAbs(d.Build.Manifest.File) || strings.HasPrefix(d.Build.Manifest.File, "..") {
		return fmt.Errorf("build.manifest.file must be a path inside the source tree, got `%s`", d.Build.Manifest.File)
	}

	// The run workdir has to live under the build context so the copied
	// source tree actually contains it.
	if d.Run.Workdir != d.Build.Workdir && !strings.HasPrefix(d.Run.Workdir, d.Build.Workdir+"/") {
		return fmt.Errorf("run.workdir `%s` is not inside build.workdir `%s`", d.Run.Workdir, d.Build.Workdir)
	}

	return nil
}
