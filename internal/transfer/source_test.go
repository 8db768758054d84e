package transfer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	data := pattern(4096)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	if src.Name != "report.pdf" || src.Size != 4096 || src.MimeType != "application/pdf" {
		t.Fatalf("source = %+v", src)
	}
	chunk, err := src.ReadChunk(1000, 2000)
	if err != nil {
		t.Fatalf("read chunk: %v", err)
	}
	if !bytes.Equal(chunk, data[1000:2000]) {
		t.Errorf("chunk mismatch")
	}
	if _, err := src.ReadChunk(4000, 5000); err == nil {
		t.Errorf("read past end succeeded")
	}
}

func TestOpenSourceRejects(t *testing.T) {
	dir := t.TempDir()
	for _, path := range []string{filepath.Join(dir, "missing.txt"), dir} {
		if _, err := OpenSource(path); !errors.Is(err, ErrUnreadableSource) {
			t.Errorf("OpenSource(%s) err = %v, want ErrUnreadableSource", path, err)
		}
	}
}

func TestNewSourceMimeFallback(t *testing.T) {
	if got := NewSource("noext", "", nil).MimeType; got != defaultMimeType {
		t.Errorf("mime = %q", got)
	}
	if got := NewSource("a.txt", "", nil).MimeType; !strings.HasPrefix(got, "text/plain") {
		t.Errorf("mime = %q", got)
	}
}

func TestBlobStore(t *testing.T) {
	store := NewBlobStore()
	b := store.Put("a.txt", "text/plain", []byte("hello"))

	if !strings.HasPrefix(b.URL(), "blob:") {
		t.Fatalf("url = %q", b.URL())
	}
	got, ok := store.Get(b.URL())
	if !ok || got != b {
		t.Fatalf("get %s failed", b.URL())
	}
	if _, ok := store.Get("blob:not-a-uuid"); ok {
		t.Errorf("malformed url resolved")
	}

	if got := b.Checksum(); got != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("checksum = %s", got)
	}

	store.Revoke(b.URL())
	store.Revoke("http://example.com")
	if _, ok := store.Get(b.URL()); ok || store.Len() != 0 {
		t.Errorf("blob still live after revoke")
	}
}

func TestBlobSaveToUsesBaseName(t *testing.T) {
	dir := t.TempDir()
	b := NewBlobStore().Put("../../etc/evil.txt", "text/plain", []byte("x"))

	path, err := b.SaveTo(filepath.Join(dir, "downloads"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path != filepath.Join(dir, "downloads", "evil.txt") {
		t.Fatalf("saved to %s", path)
	}
	if data, err := os.ReadFile(path); err != nil || string(data) != "x" {
		t.Fatalf("read back %q, %v", data, err)
	}
}
