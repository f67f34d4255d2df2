package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"DailyDigest/internal/config"
	"DailyDigest/internal/ports"
)

// NewArtifactStore picks the backend named in the configuration.
func NewArtifactStore(ctx context.Context, cfg config.ArtifactsConfig) (ports.ArtifactStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "fs":
		return NewFSArtifacts(cfg.Dir), nil
	case "s3":
		return NewS3Artifacts(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown artifacts backend %q", cfg.Backend)
	}
}

// FSArtifacts keeps artifacts as files under <dir>/<YYYY-MM-DD>/<name>.
type FSArtifacts struct {
	dir string
}

var _ ports.ArtifactStore = (*FSArtifacts)(nil)

// NewFSArtifacts roots the store at dir.
func NewFSArtifacts(dir string) *FSArtifacts {
	return &FSArtifacts{dir: dir}
}

// Put writes through a temp file and rename so a rerun never leaves a torn file.
func (s *FSArtifacts) Put(ctx context.Context, day, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := artifactKey(day, name)
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write artifact %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store artifact %s: %w", key, err)
	}
	return nil
}

// Get reads one artifact back.
func (s *FSArtifacts) Get(ctx context.Context, day, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := artifactKey(day, name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ports.ErrArtifactNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return data, nil
}

func artifactKey(day, name string) (string, error) {
	day, name = strings.TrimSpace(day), strings.TrimSpace(name)
	if day == "" || name == "" {
		return "", fmt.Errorf("artifact day and name are required")
	}
	for _, part := range []string{day, name} {
		if strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return "", fmt.Errorf("invalid artifact key component %q", part)
		}
	}
	return day + "/" + name, nil
}
