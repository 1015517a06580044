// Package storage 会话记录（transcript）归档，支持本地目录与 MinIO。
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/sshcollectorpro/clisession/internal/config"
	"github.com/sshcollectorpro/clisession/pkg/logger"
)

// ContentType 归档内容类型
const ContentType = "text/plain; charset=utf-8"

// Writer 归档写入器
type Writer interface {
	Write(ctx context.Context, meta Meta, content []byte) (Object, error)
}

// Meta 归档元数据
type Meta struct {
	Hostname string
	RunID    string
	// Started 执行开始时间，用于目录中的日期与时间
	Started time.Time
	// Name 文件名，默认 transcript.txt
	Name string
}

// Object 已写入对象的描述
type Object struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

// New 按配置创建写入器；归档关闭时返回 nil
func New(cfg config.ArchiveConfig) (Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	local := &LocalWriter{BaseDir: cfg.Local.BaseDir, Prefix: cfg.Prefix, Mkdir: cfg.Local.MkdirIfMissing}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		return local, nil
	case "minio":
		mw, err := NewMinioWriter(cfg.Minio, cfg.Prefix)
		if err != nil {
			logger.Warnf("MinIO client initialization failed, archive falls back to local: %v", err)
			return local, nil
		}
		return &fallbackWriter{primary: mw, fallback: local}, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// fallbackWriter 主写入失败时写本地，同时返回预警错误
type fallbackWriter struct {
	primary  Writer
	fallback Writer
}

func (w *fallbackWriter) Write(ctx context.Context, meta Meta, content []byte) (Object, error) {
	obj, err := w.primary.Write(ctx, meta, content)
	if err == nil {
		return obj, nil
	}
	logger.Warnf("MinIO write failed; falling back to local: %v", err)
	obj, lerr := w.fallback.Write(ctx, meta, content)
	if lerr != nil {
		return Object{}, fmt.Errorf("minio write failed: %v; local fallback failed: %w", err, lerr)
	}
	return obj, nil
}

// objectPath <prefix>/<host>/<date>_<time>/<run_id>/<name>，使用 POSIX 分隔符
func objectPath(prefix string, meta Meta) string {
	started := meta.Started
	if started.IsZero() {
		started = time.Now()
	}
	parts := make([]string, 0, 5)
	if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
		parts = append(parts, p)
	}
	host := slug(meta.Hostname)
	if host == "" {
		host = "unknown"
	}
	parts = append(parts, host, started.Format("20060102_150405"))
	if id := slug(meta.RunID); id != "" {
		parts = append(parts, id)
	}
	name := slug(meta.Name)
	if name == "" {
		name = "transcript.txt"
	}
	return path.Join(append(parts, name)...)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
