// Package dockerfile turns a build descriptor into a layered image
// definition. The instruction order is load-bearing: the dependency manifest
// is copied and installed before the full source tree so that source-only
// changes never invalidate the cached install layer.
package dockerfile

import (
	"fmt"
	"slices"
	"strings"

	"stowage/internal/descriptor"
)

// Generate renders the Dockerfile for d. Output is deterministic: the same
// descriptor always produces the same bytes.
func Generate(d descriptor.Descriptor) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "FROM %s\n\n", d.Image.Base)

	fmt.Fprintf(&sb, "WORKDIR %s\n\n", d.Build.Workdir)

	// Manifest layer first, source layer second. The manifest keeps its
	// relative path inside the workdir so the install command can reference
	// it the same way it would on a plain checkout.
	fmt.Fprintf(&sb, "COPY %[1]s %[1]s\n", d.Build.Manifest.File)
	fmt.Fprintf(&sb, "RUN %s\n\n", d.Build.Manifest.Install)

	sb.WriteString("COPY . .\n\n")

	if d.Run.Workdir != d.Build.Workdir {
		fmt.Fprintf(&sb, "WORKDIR %s\n\n", d.Run.Workdir)
	}

	for _, key := range sortedEnvKeys(d.Run.Env) {
		fmt.Fprintf(&sb, "ENV %s=%q\n", key, d.Run.Env[key])
	}
	if len(d.Run.Env) > 0 {
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "CMD [%s]\n", execForm(d.Run.Command))

	return sb.String()
}

func execForm(command []string) string {
	quoted := make([]string, 0, len(command))
	for _, part := range command {
		quoted = append(quoted, fmt.Sprintf("%q", part))
	}
	return strings.Join(quoted, ", ")
}

func sortedEnvKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	// Map iteration order would break output determinism.
	slices.Sort(keys)
	return keys
}
