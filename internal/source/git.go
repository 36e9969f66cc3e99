package source

import (
	"context"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

func cloneRepository(ctx context.Context, url string, revision string, destinationDir string) error {
	opts := &git.CloneOptions{
		URL: url,
		// Shallow clone, the history is never needed for a build.
		Depth: 1,
	}
	if revision != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(revision)
		opts.SingleBranch = true
	}

	_, err := git.PlainCloneContext(ctx, destinationDir, false, opts)
	if err != nil {
		return fmt.Errorf("failed to clone `%s`: %w", url, err)
	}
	return nil
}
