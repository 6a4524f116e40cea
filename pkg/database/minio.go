package database

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"campus_chat/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOClient definition minio client
type MinIOClient struct {
	Client        *minio.Client
	BucketName    string
	PublicBaseURL string
}

// NewMinIOConnection create a new minio connection have retry
func NewMinIOConnection(ctx context.Context, d MinIOConnection) (*MinIOClient, error) {
	var mc *MinIOClient
	var err error

	attempts := d.RetryCount
	if attempts < 1 {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		mc, err = NewMinioClient(ctx, d)
		if err == nil {
			logger.Log.Info("minio connected", zap.String("endpoint", d.Endpoint), zap.Int("attempt", i))
			return mc, nil
		}

		logger.Log.Warn("minio connect failed", zap.String("endpoint", d.Endpoint), zap.Int("attempt", i), zap.Error(err))
		if i < attempts {
			time.Sleep(d.RetryInterval)
		}
	}

	return nil, err
}

// NewMinioClient create a new minio client and make sure the bucket exists
func NewMinioClient(ctx context.Context, d MinIOConnection) (*MinIOClient, error) {
	minioClient, err := minio.New(d.Endpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(d.User, d.Password, ""),
			Secure: d.UseSSL,
		})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	exists, err := minioClient.BucketExists(ctx, d.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket [%s]: %w", d.BucketName, err)
	}

	if !exists {
		if err = minioClient.MakeBucket(ctx, d.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket [%s]: %w", d.BucketName, err)
		}
		logger.Log.Info("bucket created", zap.String("bucket", d.BucketName))
	}

	base := strings.TrimRight(d.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if d.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + d.Endpoint
	}

	return &MinIOClient{
		Client:        minioClient,
		BucketName:    d.BucketName,
		PublicBaseURL: base,
	}, nil
}

// Upload put object from reader, size -1 when unknown
func (m *MinIOClient) Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.Client.PutObject(ctx, m.BucketName, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// ObjectURL direct url of an object under the public base url
func (m *MinIOClient) ObjectURL(objectName string) string {
	parts := strings.Split(strings.Trim(objectName, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return m.PublicBaseURL + "/" + m.BucketName + "/" + strings.Join(parts, "/")
}

// PresignGetURL 生成一個 Presigned URL 用來獲取指定的 object
func (m *MinIOClient) PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := m.Client.PresignedGetObject(ctx, m.BucketName, objectName, expiry, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectName, err)
	}
	return presignedURL.String(), nil
}
