package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const blobScheme = "blob:"

// Blob is an assembled, addressable copy of a received file
type Blob struct {
	ID        uuid.UUID
	Name      string
	MimeType  string
	Data      []byte
	CreatedAt time.Time
}

// URL returns the handle the UI uses to retrieve the blob
func (b *Blob) URL() string {
	return blobScheme + b.ID.String()
}

// Size returns the number of bytes in the blob
func (b *Blob) Size() int64 {
	return int64(len(b.Data))
}

// Checksum returns the hex SHA-256 of the blob contents
func (b *Blob) Checksum() string {
	sum := sha256.Sum256(b.Data)
	return hex.EncodeToString(sum[:])
}

// SaveTo writes the blob into dir under its base name and returns the path
func (b *Blob) SaveTo(dir string) (string, error) {
	name := filepath.Base(b.Name)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		name = b.ID.String()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// BlobStore keeps completed inbound files addressable until revoked
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[uuid.UUID]*Blob
}

// NewBlobStore creates an empty store
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[uuid.UUID]*Blob)}
}

// Put stores data under a fresh handle
func (s *BlobStore) Put(name, mimeType string, data []byte) *Blob {
	b := &Blob{
		ID:        uuid.New(),
		Name:      name,
		MimeType:  mimeType,
		Data:      data,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.blobs[b.ID] = b
	s.mu.Unlock()
	return b
}

// Get resolves a blob URL
func (s *BlobStore) Get(url string) (*Blob, bool) {
	id, ok := parseBlobURL(url)
	if !ok {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	return b, ok
}

// Revoke releases a blob. Unknown URLs are ignored.
func (s *BlobStore) Revoke(url string) {
	id, ok := parseBlobURL(url)
	if !ok {
		return
	}

	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
}

// Len returns the number of live blobs
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func parseBlobURL(url string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(url, blobScheme)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
