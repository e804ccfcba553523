package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

var (
	ErrNotImage = errors.New("only image files are accepted")
	ErrTooLarge = errors.New("file exceeds the upload limit")
)

// DefaultMaxUpload is the cover size limit.
const DefaultMaxUpload = 5 << 20

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Uploader checks images before they reach the bucket.
type Uploader struct {
	bucket  Bucket
	maxSize int64
}

func NewUploader(bucket Bucket, maxSize int64) *Uploader {
	if maxSize <= 0 {
		maxSize = DefaultMaxUpload
	}
	return &Uploader{bucket: bucket, maxSize: maxSize}
}

// Upload stores body under a fresh KSUID key and returns its public URL.
// Both the declared and the sniffed type must be images; size is the
// declared length, -1 when unknown.
func (u *Uploader) Upload(ctx context.Context, contentType string, size int64, body io.Reader) (string, error) {
	if !isImage(contentType) {
		return "", ErrNotImage
	}
	if size > u.maxSize {
		return "", ErrTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(body, u.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > u.maxSize {
		return "", ErrTooLarge
	}
	sniffed := http.DetectContentType(data)
	if !isImage(sniffed) {
		return "", ErrNotImage
	}
	key := utilities.NewKSUID() + extensions[sniffed]
	return u.bucket.Put(ctx, key, sniffed, bytes.NewReader(data))
}

func isImage(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "image/")
}
