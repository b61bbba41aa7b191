// Package artifact resolves model artifact references to verified local
// files. Local refs are verified in place; http(s) refs are downloaded into
// the store directory and reused across fetches while their checksum holds.
package artifact

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

// Store fetches, verifies, and installs model artifacts.
type Store struct {
	dir    string
	client *http.Client
	log    zerolog.Logger
}

// New creates a Store rooted at dir (created if absent). dir may contain a
// leading '~'.
func New(dir string, log zerolog.Logger) (*Store, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{
		dir:    abs,
		client: &http.Client{Timeout: 10 * time.Minute},
		log:    log.With().Str("component", "artifact").Logger(),
	}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Fetch resolves ref to a local file path, verifying the checksum when one
// is present. Remote refs are installed under the store directory keyed by
// checksum (or URL basename when no checksum is set).
func (s *Store) Fetch(ctx context.Context, ref types.ArtifactRef) (string, error) {
	if ref.URI == "" {
		return "", fmt.Errorf("empty artifact uri")
	}
	if isRemote(ref.URI) {
		return s.fetchRemote(ctx, ref)
	}
	path, err := fsutil.ExpandHome(ref.URI)
	if err != nil {
		return "", err
	}
	if !fsutil.PathExists(path) {
		return "", fmt.Errorf("artifact not found: %s", path)
	}
	if ref.SHA256 != "" {
		if err := Verify(path, ref.SHA256); err != nil {
			return "", err
		}
	}
	return path, nil
}

func (s *Store) fetchRemote(ctx context.Context, ref types.ArtifactRef) (string, error) {
	dest := filepath.Join(s.dir, s.localName(ref))
	if fsutil.PathExists(dest) {
		// reuse the installed copy unless its content no longer matches
		if ref.SHA256 == "" {
			return dest, nil
		}
		if err := Verify(dest, ref.SHA256); err == nil {
			return dest, nil
		}
		s.log.Warn().Str("path", dest).Msg("cached artifact failed verification, refetching")
		_ = os.Remove(dest)
	}

	s.log.Info().Str("url", ref.URI).Msg("downloading artifact")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URI, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", ref.URI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", ref.URI, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(s.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("download %s: %w", ref.URI, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if ref.SHA256 != "" {
		if err := Verify(tmpName, ref.SHA256); err != nil {
			return "", err
		}
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("install artifact: %w", err)
	}
	s.log.Info().Str("path", dest).Msg("artifact installed")
	return dest, nil
}

// localName derives the install filename for a remote ref. The checksum is
// preferred so distinct versions behind the same URL never collide.
func (s *Store) localName(ref types.ArtifactRef) string {
	if ref.SHA256 != "" {
		ext := ""
		if u, err := url.Parse(ref.URI); err == nil {
			ext = filepath.Ext(u.Path)
		}
		return ref.SHA256 + ext
	}
	if u, err := url.Parse(ref.URI); err == nil && filepath.Base(u.Path) != "." {
		return filepath.Base(u.Path)
	}
	return HashString(ref.URI)
}

// Verify checks the sha256 hex digest of the file at path.
func Verify(path, wantHex string) error {
	got, err := HashFile(path)
	if err != nil {
		return fmt.Errorf("checksum %s: %w", path, err)
	}
	if !strings.EqualFold(got, wantHex) {
		return &ChecksumError{Path: path, Want: strings.ToLower(wantHex), Got: got}
	}
	return nil
}

// HashFile returns the hex sha256 of the file contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, bufio.NewReader(f)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashString returns the hex sha256 of s.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func isRemote(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// ChecksumError reports a content digest mismatch.
type ChecksumError struct {
	Path string
	Want string
	Got  string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: want %s got %s", e.Path, e.Want, e.Got)
}

// IsChecksumMismatch reports whether err indicates a digest mismatch.
func IsChecksumMismatch(err error) bool {
	var ce *ChecksumError
	return errors.As(err, &ce)
}
