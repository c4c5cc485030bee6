package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"io"
	"strings"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/gabriel-vasile/mimetype"
)

const DefaultMaxFileSize = 10 << 20

// Encoder turns an upload into a storable attachment
type Encoder interface {
	Encode(ctx context.Context, upload models.Upload) (models.FileAttachment, error)
}

// ContentEncoder reads the upload, checks its size and sniffs the content type
// when the declared one is missing or generic.
type ContentEncoder struct {
	MaxSize int64
	// AllowedTypes holds exact types or prefixes ending in "/"
	AllowedTypes []string
}

func NewContentEncoder(maxSize int64) *ContentEncoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &ContentEncoder{
		MaxSize:      maxSize,
		AllowedTypes: []string{"image/", "application/pdf"},
	}
}

func (e *ContentEncoder) Encode(ctx context.Context, upload models.Upload) (models.FileAttachment, error) {
	if err := ctx.Err(); err != nil {
		return models.FileAttachment{}, err
	}

	data, err := e.read(upload)
	if err != nil {
		return models.FileAttachment{}, err
	}
	if len(data) == 0 {
		return models.FileAttachment{}, ErrEmptyFile
	}

	mimeType := baseMediaType(upload.MIMEType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = baseMediaType(mimetype.Detect(data).String())
	}
	if !e.allowed(mimeType) {
		return models.FileAttachment{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
	}

	return models.FileAttachment{
		Filename: upload.Filename,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Data:     data,
	}, nil
}

func (e *ContentEncoder) read(upload models.Upload) ([]byte, error) {
	if upload.Open == nil {
		if int64(len(upload.Data)) > e.MaxSize {
			return nil, ErrFileTooLarge
		}
		return upload.Data, nil
	}

	rc, err := upload.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, e.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > e.MaxSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func (e *ContentEncoder) allowed(mimeType string) bool {
	for _, allowed := range e.AllowedTypes {
		if strings.HasSuffix(allowed, "/") && strings.HasPrefix(mimeType, allowed) {
			return true
		}
		if mimeType == allowed {
			return true
		}
	}
	return false
}

func baseMediaType(v string) string {
	base, _, _ := strings.Cut(v, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// NewCapturedImage builds an upload from a canvas capture encoded as a data URL,
// e.g. "data:image/png;base64,iVBOR...". An empty filename gets one derived from the type.
func NewCapturedImage(dataURL, filename string) (models.Upload, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return models.Upload{}, ErrInvalidDataURL
	}
	header, encoded, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return models.Upload{}, ErrInvalidDataURL
	}
	mimeType := baseMediaType(strings.TrimSuffix(header, ";base64"))

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return models.Upload{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}

	if filename == "" {
		ext := ".png"
		if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
			ext = m.Extension()
		}
		filename = "drawing" + ext
	}

	return models.Upload{
		Filename: filename,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Token:    fmt.Sprintf("%d-%x", len(data), checksum(data)),
		Data:     data,
	}, nil
}

func checksum(data []byte) uint32 {
	h := fnv.New32a()
	h.Write(data)
	return h.Sum32()
}
