// Package storage holds uploaded cover images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Bucket stores objects under flat keys.
type Bucket interface {
	// Put writes body under key and returns the object's public URL.
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// FSBucket keeps objects as files in one directory.
type FSBucket struct {
	dir        string
	publicBase string
}

// NewFSBucket creates dir if needed. Public URLs are publicBase + "/" + key.
func NewFSBucket(dir, publicBase string) (*FSBucket, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &FSBucket{dir: dir, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

func validKey(key string) bool {
	return key != "" && key != "." && key != ".." &&
		!strings.ContainsAny(key, `/\`) && filepath.Base(key) == key
}

func (b *FSBucket) Put(ctx context.Context, key, _ string, body io.Reader) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(b.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(b.dir, key)); err != nil {
		return "", err
	}
	return b.publicBase + "/" + key, nil
}

func (b *FSBucket) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	f, err := os.Open(filepath.Join(b.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}
