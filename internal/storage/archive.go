// Package storage archives submitted essay attachments to object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/SAP-F-2025/attempt-session-service/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AttachmentArchive stores submitted attachments and returns their location
type AttachmentArchive interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// ObjectName builds the archive path of one attachment of one question
func ObjectName(attemptID, questionKey, filename string) string {
	return path.Join("attempts", sanitize(attemptID), sanitize(questionKey), sanitize(filename))
}

func sanitize(part string) string {
	part = strings.ReplaceAll(part, "..", "_")
	part = strings.ReplaceAll(part, "/", "_")
	part = strings.ReplaceAll(part, "\\", "_")
	if part == "" {
		return "_"
	}
	return part
}

// NewArchive selects an implementation from configuration
func NewArchive(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (AttachmentArchive, error) {
	switch cfg.Type {
	case "minio":
		logger.Info("Using MinIO attachment archive", "endpoint", cfg.MinioEndpoint, "bucket", cfg.MinioBucket)
		return NewMinioArchive(ctx, cfg)
	case "local":
		logger.Info("Using local attachment archive", "path", cfg.LocalPath)
		return &LocalArchive{Root: cfg.LocalPath}, nil
	case "", "none":
		logger.Info("Attachment archiving disabled")
		return NoopArchive{}, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

type MinioArchive struct {
	client *minio.Client
	bucket string
}

func NewMinioArchive(ctx context.Context, cfg config.StorageConfig) (*MinioArchive, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
	}

	return &MinioArchive{client: client, bucket: cfg.MinioBucket}, nil
}

func (a *MinioArchive) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return "/" + a.bucket + "/" + objectName, nil
}

// LocalArchive writes attachments below Root
type LocalArchive struct {
	Root string
}

func (a *LocalArchive) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(a.Root, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

type NoopArchive struct{}

func (NoopArchive) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	return "", nil
}
