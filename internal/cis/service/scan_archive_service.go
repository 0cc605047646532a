package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ErrArchiveUnavailable is returned when no object store is configured.
var ErrArchiveUnavailable = errors.New("scan archive storage is not configured")

// ScanArchiveService stores raw scanner photos in MinIO so a disputed stage
// transition can be audited later. Nothing is recorded in the database; the
// returned object key is the handle.
type ScanArchiveService struct {
	mc     *minio.Client
	bucket string
}

func NewScanArchiveService(mc *minio.Client, bucket string) *ScanArchiveService {
	return &ScanArchiveService{mc: mc, bucket: bucket}
}

// Save uploads one photo and returns its object key.
func (s *ScanArchiveService) Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	if s.mc == nil {
		return "", ErrArchiveUnavailable
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	key := fmt.Sprintf("scans/%s%s", uuid.New().String(), ext)

	_, err := s.mc.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload scan photo: %w", err)
	}
	return key, nil
}
