// ABOUTME: Local media file helpers consumed by the sync core
// ABOUTME: Content fingerprinting, file metadata, and playable file URLs
package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Metadata describes the selected media file
type Metadata struct {
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// ComputeFingerprint streams the whole file through SHA-256 and returns
// the hex digest. Deterministic and collision-resistant, so two parties
// with the same digest hold the same content.
func ComputeFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Stat returns basic metadata for the file
func Stat(path string) (Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Metadata{}, fmt.Errorf("%s is a directory", path)
	}

	return Metadata{
		Name:       filepath.Base(path),
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}, nil
}

// PlayableURL converts a local path into a file:// URL a media element
// can load
func PlayableURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		// Windows drive paths (C:/...) need a leading slash
		abs = "/" + abs
	}

	u := url.URL{Scheme: "file", Path: abs}
	return u.String(), nil
}
