package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalWriter 写入本地目录
type LocalWriter struct {
	BaseDir string
	Prefix  string
	Mkdir   bool
}

func (w *LocalWriter) Write(ctx context.Context, meta Meta, content []byte) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	base := strings.TrimSpace(w.BaseDir)
	if base == "" {
		base = "./data/archive"
	}
	full := filepath.Join(base, filepath.FromSlash(objectPath(w.Prefix, meta)))
	if w.Mkdir {
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return Object{}, fmt.Errorf("failed to create dir: %w", err)
		}
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return Object{}, fmt.Errorf("failed to write file: %w", err)
	}
	return Object{
		URI:         "file://" + full,
		Size:        int64(len(content)),
		Checksum:    checksum(content),
		ContentType: ContentType,
	}, nil
}
