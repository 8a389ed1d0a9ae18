package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage is the single-node backend: staged and promoted objects are plain
// files under rootDir, and promoted files are served by the API under /files/.
type Storage struct {
	rootDir       string
	publicBaseURL string
}

func New(rootDir, publicBaseURL string) (*Storage, error) {
	for _, dir := range []string{"staging", "documents"} {
		if err := os.MkdirAll(filepath.Join(rootDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &Storage{
		rootDir:       rootDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// RootDir is the directory the API's /files/ handler serves from.
func (s *Storage) RootDir() string { return s.rootDir }

func (s *Storage) Stage(ctx context.Context, key, contentType string, data io.Reader, size int64) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	written, err := io.Copy(f, data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if size > 0 && written != size {
		_ = os.Remove(path)
		return fmt.Errorf("stage %s: size mismatch, declared %d got %d", key, size, written)
	}
	return nil
}

func (s *Storage) Promote(ctx context.Context, stagingKey, permanentKey, contentType string) (string, error) {
	src, err := s.resolve(stagingKey)
	if err != nil {
		return "", err
	}
	dst, err := s.resolve(permanentKey)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", permanentKey, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("promote %s -> %s: %w", stagingKey, permanentKey, err)
	}
	return s.publicBaseURL + "/files/" + permanentKey, nil
}

func (s *Storage) Discard(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discard %s: %w", key, err)
	}
	return nil
}

func (s *Storage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.rootDir, clean), nil
}
