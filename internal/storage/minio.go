package storage

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sshcollectorpro/clisession/internal/config"
)

// MinioWriter MinIO 对象存储写入
type MinioWriter struct {
	client   *minio.Client
	bucket   string
	prefix   string
	endpoint string

	mu            sync.Mutex
	bucketEnsured bool
}

// NewMinioWriter 创建客户端，不做网络校验；bucket 在首次写入时确保存在
func NewMinioWriter(cfg config.MinioConfig, prefix string) (*MinioWriter, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("minio configuration incomplete; host/port missing")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("minio bucket not configured")
	}
	endpoint := net.JoinHostPort(host, strconv.Itoa(cfg.Port))

	tr := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   16,
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.Secure,
		Transport: tr,
	})
	if err != nil {
		return nil, err
	}
	return &MinioWriter{client: client, bucket: bucket, prefix: prefix, endpoint: endpoint}, nil
}

// Write 写入对象，失败按 2s/4s 退避重试两次
func (w *MinioWriter) Write(ctx context.Context, meta Meta, content []byte) (Object, error) {
	if err := w.ensureBucket(ctx); err != nil {
		return Object{}, fmt.Errorf("minio ensure bucket %s on %s: %w", w.bucket, w.endpoint, err)
	}
	name := objectPath(w.prefix, meta)

	var lastErr error
	for _, backoff := range []time.Duration{2 * time.Second, 4 * time.Second, 0} {
		_, lastErr = w.client.PutObject(ctx, w.bucket, name, bytes.NewReader(content), int64(len(content)),
			minio.PutObjectOptions{ContentType: ContentType})
		if lastErr == nil || backoff == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return Object{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	if lastErr != nil {
		return Object{}, fmt.Errorf("minio put object failed after retries: %w", lastErr)
	}
	return Object{
		URI:         "minio://" + path.Join(w.bucket, name),
		Size:        int64(len(content)),
		Checksum:    checksum(content),
		ContentType: ContentType,
	}, nil
}

func (w *MinioWriter) ensureBucket(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bucketEnsured {
		return nil
	}
	exists, err := w.client.BucketExists(ctx, w.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	w.bucketEnsured = true
	return nil
}
