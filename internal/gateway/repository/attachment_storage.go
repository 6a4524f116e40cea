package repository

import (
	"context"
	"io"
	"time"

	"campus_chat/pkg/database"
)

// AttachmentStorage definition attachment object storage
type AttachmentStorage interface {
	// Put store the object and return the url clients download it from
	Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
}

// MinIOStorage AttachmentStorage on a MinIO bucket
type MinIOStorage struct {
	client *database.MinIOClient
	// presign > 0 時回傳 presigned url, bucket 不公開時使用
	presign time.Duration
}

// NewMinIOStorage create MinIOStorage, presign 0 means public object urls
func NewMinIOStorage(client *database.MinIOClient, presign time.Duration) *MinIOStorage {
	return &MinIOStorage{client: client, presign: presign}
}

// Put upload object and return its download url
func (s *MinIOStorage) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	if err := s.client.Upload(ctx, objectName, r, size, contentType); err != nil {
		return "", err
	}
	if s.presign > 0 {
		return s.client.PresignGetURL(ctx, objectName, s.presign)
	}
	return s.client.ObjectURL(objectName), nil
}
