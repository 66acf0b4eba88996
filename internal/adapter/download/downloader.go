// Package download saves rendered videos to disk and opens them.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// ErrNoFetcher is returned when no registered fetcher accepts a URL.
var ErrNoFetcher = errors.New("no fetcher for url")

// Downloader fetches URLs into a target directory.
type Downloader struct {
	registry  *Registry
	targetDir string
}

// NewDownloader creates a Downloader writing into targetDir.
func NewDownloader(registry *Registry, targetDir string) *Downloader {
	return &Downloader{registry: registry, targetDir: targetDir}
}

// Download fetches url into a temp dir and moves the result to the target
// directory as filename. Existing files are never overwritten; their path
// is returned instead.
func (d *Downloader) Download(ctx context.Context, url, filename string) (string, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	dst := filepath.Join(d.targetDir, name)
	if _, err := os.Stat(dst); err == nil {
		log.Printf("download %s: skipped (exists)", name)
		return dst, nil
	}

	f := d.registry.Match(url)
	if f == nil {
		return "", fmt.Errorf("%w: %s", ErrNoFetcher, url)
	}

	tempDir, err := os.MkdirTemp("", "reel-download-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	src := filepath.Join(tempDir, name)
	n, err := fetchTo(ctx, f, url, src)
	if err != nil {
		return "", err
	}
	log.Printf("download %s: fetched %s via %s", name, humanize.Bytes(uint64(n)), f.Name())

	if err := os.MkdirAll(d.targetDir, 0755); err != nil {
		return "", err
	}
	moved, err := moveFile(src, dst)
	if err != nil {
		return "", err
	}
	if moved {
		log.Printf("download %s: saved to %s", name, d.targetDir)
	} else {
		log.Printf("download %s: skipped (exists)", name)
	}
	return dst, nil
}

func fetchTo(ctx context.Context, f Fetcher, url, path string) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := f.Fetch(ctx, url, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// moveFile moves src to dst unless dst exists.
func moveFile(src, dst string) (bool, error) {
	// Skip if destination exists (no overwrite)
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	}
	if err := os.Rename(src, dst); err != nil {
		// Cross-device fallback
		if err := copyFile(src, dst); err != nil {
			return false, err
		}
		os.Remove(src)
	}
	return true, nil
}

// copyFile copies a file from src to dst, failing if dst exists.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
