package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/clisession/internal/config"
)

func TestObjectPath(t *testing.T) {
	started := time.Date(2021, 3, 1, 14, 58, 30, 0, time.UTC)
	p := objectPath("/transcripts/", Meta{Hostname: "Core SW/1", RunID: "abc-123", Started: started})
	assert.Equal(t, "transcripts/core_sw_1/20210301_145830/abc-123/transcript.txt", p)

	p = objectPath("", Meta{Started: started, Name: "show run.txt"})
	assert.Equal(t, "unknown/20210301_145830/show_run.txt", p, "缺省主机名与 run id")
}

func TestLocalWriter(t *testing.T) {
	dir := t.TempDir()
	w := &LocalWriter{BaseDir: dir, Prefix: "tx", Mkdir: true}
	content := []byte("Router>show clock\r\n12:00\r\nRouter>")

	obj, err := w.Write(context.Background(), Meta{Hostname: "r1", RunID: "run1"}, content)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.URI, "file://"+dir))
	assert.Equal(t, int64(len(content)), obj.Size)
	assert.True(t, strings.HasPrefix(obj.Checksum, "sha256:"))

	got, err := os.ReadFile(strings.TrimPrefix(obj.URI, "file://"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Contains(t, obj.URI, filepath.Join("tx", "r1"))
}

func TestNewWriter(t *testing.T) {
	w, err := New(config.ArchiveConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, w, "归档关闭")

	w, err = New(config.ArchiveConfig{Enabled: true, Backend: "local"})
	require.NoError(t, err)
	assert.IsType(t, &LocalWriter{}, w)

	w, err = New(config.ArchiveConfig{Enabled: true, Backend: "minio"})
	require.NoError(t, err)
	assert.IsType(t, &LocalWriter{}, w, "MinIO 配置不完整时回退到本地")

	w, err = New(config.ArchiveConfig{Enabled: true, Backend: "minio", Minio: config.MinioConfig{Host: "127.0.0.1", Port: 9000, Bucket: "b"}})
	require.NoError(t, err)
	assert.IsType(t, &fallbackWriter{}, w)

	_, err = New(config.ArchiveConfig{Enabled: true, Backend: "s3"})
	assert.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write(context.Context, Meta, []byte) (Object, error) {
	return Object{}, errors.New("connection refused")
}

func TestFallbackWriter(t *testing.T) {
	dir := t.TempDir()
	w := &fallbackWriter{primary: failingWriter{}, fallback: &LocalWriter{BaseDir: dir, Mkdir: true}}
	obj, err := w.Write(context.Background(), Meta{Hostname: "r1"}, []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.URI, "file://"))
}
