package source

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Github wraps its tarballs in a single `owner-repo-sha/` directory that has
// to be stripped on extraction.
var firstDirNameRegex = regexp.MustCompile("^[^/]*/")

func downloadGithubRepository(ctx context.Context, owner string, repo string, revision string, destinationDir string) error {
	url := "https://api.github.com/repos/" + owner + "/" + repo + "/tarball"
	if revision != "" {
		url += "/" + revision
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return errors.New("non 200 response code from " + url)
	}

	return untar(destinationDir, res.Body)
}

func untar(destinationDir string, tarSource io.Reader) error {
	gzr, err := gzip.NewReader(tarSource)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)

	for {
		header, err := tr.Next()

		switch {
		case err == io.EOF:
			return nil

		case err != nil:
			return err

		case header == nil:
			continue
		}

		target := filepath.Join(destinationDir, firstDirNameRegex.ReplaceAllString(header.Name, ""))

		// A crafted entry name with `..` segments must not write outside
		// the destination.
		cleanDestination := filepath.Clean(destinationDir)
		if target != cleanDestination && !strings.HasPrefix(target, cleanDestination+string(os.PathSeparator)) {
			return fmt.Errorf("tar entry `%s` escapes the destination directory", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if _, err := os.Stat(target); err != nil {
				if err := os.MkdirAll(target, 0755); err != nil {
					return err
				}
			}

		case tar.TypeReg:
			f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR, os.FileMode(header.Mode))
			if err != nil {
				return err
			}

			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}

			f.Close()
		}
	}
}
