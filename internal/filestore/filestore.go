// Package filestore stores uploaded KYC evidence in buckets on local disk and
// builds the public URLs used to preview and download it.
package filestore

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrInvalidRef is returned for empty or path-like bucket names and file references
	ErrInvalidRef = errors.New("invalid file reference")
	// ErrFileNotFound is returned when a reference does not resolve to a stored file
	ErrFileNotFound = errors.New("file not found")
)

// FileInfo describes a stored file
type FileInfo struct {
	Bucket   string    `json:"bucket"`
	Ref      string    `json:"ref"`
	Size     int64     `json:"size"`
	Checksum string    `json:"checksum,omitempty"`
	ModTime  time.Time `json:"mod_time"`
}

// FileStore is the file storage boundary used by the KYC service
type FileStore interface {
	Upload(ctx context.Context, bucket, filename string, r io.Reader) (*FileInfo, error)
	Delete(ctx context.Context, bucket, ref string) error
	Open(ctx context.Context, bucket, ref string) (io.ReadCloser, *FileInfo, error)
	PreviewURL(bucket, ref string) string
	DownloadURL(bucket, ref string) string
}

// LocalStore keeps files under dataDir/<bucket>/<ref>
type LocalStore struct {
	dataDir       string
	publicBaseURL string
}

// NewLocalStore creates the data directory if needed and returns a store
// whose URLs are rooted at publicBaseURL.
func NewLocalStore(dataDir, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &LocalStore{
		dataDir:       dataDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Upload streams r to disk through a temp file, fsync and an atomic rename
func (s *LocalStore) Upload(ctx context.Context, bucket, filename string, r io.Reader) (*FileInfo, error) {
	if err := validateName(bucket); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.dataDir, bucket)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create bucket directory: %w", err)
	}

	ref := newRef(filename)
	fullPath := filepath.Join(dir, ref)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(r, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	return &FileInfo{
		Bucket:   bucket,
		Ref:      ref,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
		ModTime:  time.Now(),
	}, nil
}

// Delete removes a stored file. Deleting a missing file is not an error.
func (s *LocalStore) Delete(ctx context.Context, bucket, ref string) error {
	fullPath, err := s.path(bucket, ref)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", ref, err)
	}
	return nil
}

// Open returns a reader for a stored file. The caller must close it.
func (s *LocalStore) Open(ctx context.Context, bucket, ref string) (io.ReadCloser, *FileInfo, error) {
	fullPath, err := s.path(bucket, ref)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("failed to open file %s: %w", ref, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat file %s: %w", ref, err)
	}

	return f, &FileInfo{Bucket: bucket, Ref: ref, Size: stat.Size(), ModTime: stat.ModTime()}, nil
}

// PreviewURL returns the inline-view URL for a file
func (s *LocalStore) PreviewURL(bucket, ref string) string {
	return fmt.Sprintf("%s/api/files/%s/%s/preview", s.publicBaseURL, bucket, ref)
}

// DownloadURL returns the attachment URL for a file
func (s *LocalStore) DownloadURL(bucket, ref string) string {
	return fmt.Sprintf("%s/api/files/%s/%s/download", s.publicBaseURL, bucket, ref)
}

func (s *LocalStore) path(bucket, ref string) (string, error) {
	if err := validateName(bucket); err != nil {
		return "", err
	}
	if err := validateName(ref); err != nil {
		return "", err
	}
	return filepath.Join(s.dataDir, bucket, ref), nil
}

func validateName(name string) error {
	if name == "" || name == "." || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidRef, name)
	}
	return nil
}

// newRef builds "<ulid>-<slug>.<ext>" so references sort by upload millisecond and
// keep a readable hint of the original name. The random part of the ULID
// comes from crypto/rand.
func newRef(filename string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), cryptorand.Reader).String()

	ext := strings.ToLower(filepath.Ext(filename))
	name := slug.Make(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	if len(name) > 50 {
		name = name[:50]
	}
	ext = slug.Make(strings.TrimPrefix(ext, "."))

	ref := id
	if name != "" {
		ref += "-" + name
	}
	if ext != "" {
		ref += "." + ext
	}
	return ref
}
