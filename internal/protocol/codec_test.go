package protocol

import (
	"bytes"
	"errors"
	"testing"

	cbor "github.com/fxamacker/cbor/v2"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec()
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func TestChunkFrameRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	in := NewChunk(ChunkFrame{
		TransferID: "7c1f",
		FileName:   "report.pdf",
		MimeType:   "application/pdf",
		Chunk:      []byte{0, 1, 2, 0xff},
		IsLast:     true,
		Progress:   100,
	})
	data, err := c.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := c.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Kind != KindChunk || out.Chunk == nil || out.Cancel != nil {
		t.Fatalf("decoded wrong variant: %+v", out)
	}
	got := out.Chunk
	if got.FileName != "report.pdf" || got.MimeType != "application/pdf" || got.TransferID != "7c1f" {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if !bytes.Equal(got.Chunk, in.Chunk.Chunk) || !got.IsLast || got.Progress != 100 {
		t.Errorf("payload mismatch: %+v", got)
	}
}

func TestEmptyChunkSurvives(t *testing.T) {
	c := newTestCodec(t)
	data, err := c.Encode(NewChunk(ChunkFrame{TransferID: "e1", FileName: "empty.txt", IsLast: true, Progress: 100}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := c.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Chunk.Chunk) != 0 || !out.Chunk.IsLast {
		t.Fatalf("unexpected frame: %+v", out.Chunk)
	}
}

func TestCancelFrame(t *testing.T) {
	c := newTestCodec(t)
	data, err := c.Encode(NewCancel("id-1", "movie.mkv"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := c.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Kind != KindCancel || out.Cancel.FileName != "movie.mkv" || out.Cancel.TransferID != "id-1" {
		t.Fatalf("unexpected frame: %+v", out)
	}
	if out.FileName() != "movie.mkv" {
		t.Errorf("FileName() = %q", out.FileName())
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	c := newTestCodec(t)
	mustMarshal := func(v any) []byte {
		b, err := cbor.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return b
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte{0xff, 0x00, 0x13}},
		{"not a map", mustMarshal(42)},
		{"unknown type", mustMarshal(map[string]any{"type": "hello", "fileName": "a"})},
		{"chunk without isLast", mustMarshal(map[string]any{"type": "chunk", "fileName": "a", "chunk": []byte{1}, "progress": 1})},
		{"chunk without chunk", mustMarshal(map[string]any{"type": "chunk", "fileName": "a", "isLast": false, "progress": 1})},
		{"chunk without name", mustMarshal(map[string]any{"type": "chunk", "fileName": "", "chunk": []byte{1}, "isLast": false, "progress": 1})},
		{"progress out of range", mustMarshal(map[string]any{"type": "chunk", "fileName": "a", "chunk": []byte{1}, "isLast": false, "progress": 101})},
		{"chunk without transfer id", mustMarshal(map[string]any{"type": "chunk", "fileName": "a", "chunk": []byte{1}, "isLast": true, "progress": 100})},
		{"cancel without name", mustMarshal(map[string]any{"type": "cancel"})},
		{"cancel without transfer id", mustMarshal(map[string]any{"type": "cancel", "fileName": "a"})},
		{"cancel with chunk", mustMarshal(map[string]any{"type": "cancel", "fileName": "a", "chunk": []byte{1}})},
		{"unknown field", mustMarshal(map[string]any{"type": "cancel", "fileName": "a", "extra": 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Decode(tt.data); !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("got %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestEncodeRejectsInconsistentVariant(t *testing.T) {
	c := newTestCodec(t)
	bad := []Frame{
		{Kind: KindChunk},
		{Kind: KindCancel},
		{Kind: Kind(9)},
		NewChunk(ChunkFrame{TransferID: "t", FileName: "a", Progress: -1}),
		NewChunk(ChunkFrame{FileName: "a", IsLast: true, Progress: 100}),
		NewCancel("", "a"),
	}
	for _, f := range bad {
		if _, err := c.Encode(f); !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("Encode(%+v) = %v, want ErrMalformedFrame", f, err)
		}
	}
}
