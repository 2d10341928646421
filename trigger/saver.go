package trigger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SavedFile describes an artifact written by a Saver.
type SavedFile struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// DirSaver writes artifacts into Dir.
//
// Bytes are staged in a hidden temporary file which is hard-linked into
// place once complete. The temporary file is always removed. An existing
// file is never overwritten: "report.xlsx" becomes "report (1).xlsx", and
// so on.
type DirSaver struct {
	Dir string
}

// Save implements Saver.
func (s DirSaver) Save(name string, r io.Reader) (*SavedFile, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("save: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".taxscrape-*.part")
	if err != nil {
		return nil, fmt.Errorf("save: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("save: write temp: %w", err)
	}

	final, err := publish(tmpPath, dir, name)
	if err != nil {
		return nil, err
	}

	return &SavedFile{
		Name:   filepath.Base(final),
		Path:   final,
		Size:   n,
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// publish links src to dir/name, or to the first "name (i).ext" that does
// not exist yet. Link fails rather than replacing an existing file, so a
// name taken concurrently is skipped, never clobbered.
func publish(src, dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for i := 1; i < 1000; i++ {
		err := os.Link(src, candidate)
		if err == nil {
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("save: publish %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
	}
	return "", fmt.Errorf("save: no free name for %s in %s", name, dir)
}
