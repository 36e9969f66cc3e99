// Package source materializes a descriptor's project tree into a local
// directory, copied verbatim with no filtering or transformation.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"stowage/internal/descriptor"
)

// Fetch places the source tree for d into destinationDir. The provider is
// chosen from the descriptor: git URL, GitHub repository, or the
// descriptor's own directory when neither is set.
func Fetch(ctx context.Context, d descriptor.Descriptor, destinationDir string) error {
	switch {
	case d.Source.Git.URL != "":
		return cloneRepository(ctx, d.Source.Git.URL, d.Source.Git.Revision, destinationDir)
	case d.Source.Github.Owner != "":
		gh := d.Source.Github
		return downloadGithubRepository(ctx, gh.Owner, gh.Repository, gh.Revision, destinationDir)
	default:
		return copyTree(d.Dir, destinationDir)
	}
}

func copyTree(src string, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	err = os.MkdirAll(dst, srcInfo.Mode())
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.IsDir():
			err = copyTree(srcPath, dstPath)
		case entry.Type()&os.ModeSymlink != 0:
			err = copySymlink(srcPath, dstPath)
		case entry.Type().IsRegular():
			err = copyFile(srcPath, dstPath)
		default:
			// Sockets, devices and the like can't be staged into a build
			// context; dropping them silently would not be verbatim.
			err = fmt.Errorf("unsupported file type %s at `%s`", entry.Type(), srcPath)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func copySymlink(src string, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	return os.Symlink(target, dst)
}

func copyFile(src string, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}

	_, err = io.Copy(dstFile, srcFile)
	closeErr := dstFile.Close()
	if err != nil {
		return err
	}
	return closeErr
}
