// Package protocol defines the frames exchanged over a transfer channel and
// their CBOR wire encoding.
package protocol

import "fmt"

// Kind discriminates the two frame variants
type Kind uint8

const (
	KindChunk Kind = iota + 1
	KindCancel
)

// String returns the wire tag of the kind
func (k Kind) String() string {
	switch k {
	case KindChunk:
		return "chunk"
	case KindCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// ChunkFrame carries one contiguous slice of a file
type ChunkFrame struct {
	TransferID string
	FileName   string
	MimeType   string
	Chunk      []byte
	IsLast     bool
	Progress   int // 0..100
}

// CancelFrame tells the peer to drop a transfer
type CancelFrame struct {
	TransferID string
	FileName   string
}

// Frame is a tagged variant: exactly one of Chunk or Cancel is set, matching Kind.
type Frame struct {
	Kind   Kind
	Chunk  *ChunkFrame
	Cancel *CancelFrame
}

// NewChunk builds a chunk frame
func NewChunk(c ChunkFrame) Frame {
	return Frame{Kind: KindChunk, Chunk: &c}
}

// NewCancel builds a cancel frame
func NewCancel(transferID, fileName string) Frame {
	return Frame{Kind: KindCancel, Cancel: &CancelFrame{TransferID: transferID, FileName: fileName}}
}

// FileName returns the file name the frame refers to
func (f Frame) FileName() string {
	switch {
	case f.Chunk != nil:
		return f.Chunk.FileName
	case f.Cancel != nil:
		return f.Cancel.FileName
	default:
		return ""
	}
}

// Validate checks that the variant is consistent and its fields are in range
func (f Frame) Validate() error {
	switch f.Kind {
	case KindChunk:
		if f.Chunk == nil || f.Cancel != nil {
			return fmt.Errorf("%w: chunk frame without chunk payload", ErrMalformedFrame)
		}
		if f.Chunk.FileName == "" {
			return fmt.Errorf("%w: chunk frame without file name", ErrMalformedFrame)
		}
		if f.Chunk.TransferID == "" {
			return fmt.Errorf("%w: chunk frame without transfer id", ErrMalformedFrame)
		}
		if f.Chunk.Progress < 0 || f.Chunk.Progress > 100 {
			return fmt.Errorf("%w: progress %d out of range", ErrMalformedFrame, f.Chunk.Progress)
		}
	case KindCancel:
		if f.Cancel == nil || f.Chunk != nil {
			return fmt.Errorf("%w: cancel frame without cancel payload", ErrMalformedFrame)
		}
		if f.Cancel.FileName == "" {
			return fmt.Errorf("%w: cancel frame without file name", ErrMalformedFrame)
		}
		if f.Cancel.TransferID == "" {
			return fmt.Errorf("%w: cancel frame without transfer id", ErrMalformedFrame)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrMalformedFrame, f.Kind)
	}
	return nil
}
