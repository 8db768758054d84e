package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// ErrUnreadableSource is returned when a file cannot be opened for sending
var ErrUnreadableSource = errors.New("file is not readable")

const defaultMimeType = "application/octet-stream"

// Source is a named, sized, randomly readable byte sequence to send. Chunks
// are read on demand so a large file is never held in memory as a whole.
type Source struct {
	Name     string
	MimeType string
	Size     int64

	reader io.ReaderAt
	closer io.Closer
}

// OpenSource opens the file at path for sending
func OpenSource(path string) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	if !stat.Mode().IsRegular() {
		file.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrUnreadableSource, path)
	}

	return &Source{
		Name:     filepath.Base(path),
		MimeType: detectMimeType(path),
		Size:     stat.Size(),
		reader:   file,
		closer:   file,
	}, nil
}

// NewSource wraps an in-memory byte slice
func NewSource(name, mimeType string, data []byte) *Source {
	if mimeType == "" {
		mimeType = detectMimeType(name)
	}
	return &Source{
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		reader:   bytes.NewReader(data),
	}
}

// ReadChunk returns the bytes in [offset, end)
func (s *Source) ReadChunk(offset, end int64) ([]byte, error) {
	buf := make([]byte, end-offset)
	n, err := s.reader.ReadAt(buf, offset)
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("failed to read %s at %d: %w", s.Name, offset, err)
}

// Close releases the underlying file, if any
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func detectMimeType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return defaultMimeType
}
