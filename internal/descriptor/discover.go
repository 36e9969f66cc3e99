package descriptor

import (
	"fmt"
	"os"
	"path"
	"strings"
)

// Discover loads every descriptor directly under root: root itself if it
// holds a stowage.yaml, otherwise each child directory that does. Duplicate
// app names are rejected so fleet resources stay addressable by name.
func Discover(root string) ([]Descriptor, error) {
	if _, err := os.Stat(path.Join(root, FileName)); err == nil {
		single, err := Load(root)
		if err != nil {
			return nil, err
		}
		return []Descriptor{single}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var descriptors []Descriptor
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := path.Join(root, entry.Name())
		if _, err := os.Stat(path.Join(dir, FileName)); err != nil {
			continue
		}

		decoded, err := Load(dir)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, decoded)
	}

	if len(descriptors) == 0 {
		return nil, fmt.Errorf("%w under `%s`", ErrDescriptorNotFound, root)
	}

	err = checkAppNameCollisions(descriptors)
	if err != nil {
		return nil, err
	}

	return descriptors, nil
}

func checkAppNameCollisions(descriptors []Descriptor) error {
	counts := make(map[string]int, len(descriptors))
	for _, d := range descriptors {
		counts[d.App]++
	}

	var duplicates []string
	for _, d := range descriptors {
		if counts[d.App] > 1 {
			duplicates = append(duplicates, d.App)
			counts[d.App] = 0
		}
	}

	if len(duplicates) > 0 {
		return fmt.Errorf("there are multiple apps with the same name. Duplicate names [%s]", strings.Join(duplicates, ", "))
	}
	return nil
}
