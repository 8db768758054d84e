package protocol

import (
	"errors"
	"fmt"

	cbor "github.com/fxamacker/cbor/v2"
)

// ErrMalformedFrame is returned for payloads matching neither frame shape
var ErrMalformedFrame = errors.New("malformed frame")

// wireFrame is the CBOR map sent on the channel. Pointer fields distinguish
// "absent" from the zero value so required keys can be enforced.
type wireFrame struct {
	Type       string  `cbor:"type"`
	TransferID string  `cbor:"transferId"`
	FileName   string  `cbor:"fileName"`
	MimeType   string  `cbor:"mimeType,omitempty"`
	Chunk      *[]byte `cbor:"chunk,omitempty"`
	IsLast     *bool   `cbor:"isLast,omitempty"`
	Progress   *int    `cbor:"progress,omitempty"`
}

// Codec encodes and decodes frames. It is safe for concurrent use.
type Codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCodec returns a codec producing canonical CBOR and rejecting unknown or duplicate keys
func NewCodec() (*Codec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build cbor encoder: %w", err)
	}
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build cbor decoder: %w", err)
	}
	return &Codec{enc: em, dec: dm}, nil
}

// Encode validates and serializes a frame
func (c *Codec) Encode(f Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var w wireFrame
	switch f.Kind {
	case KindChunk:
		chunk := f.Chunk.Chunk
		if chunk == nil {
			chunk = []byte{}
		}
		w = wireFrame{
			Type:       KindChunk.String(),
			TransferID: f.Chunk.TransferID,
			FileName:   f.Chunk.FileName,
			MimeType:   f.Chunk.MimeType,
			Chunk:      &chunk,
			IsLast:     &f.Chunk.IsLast,
			Progress:   &f.Chunk.Progress,
		}
	case KindCancel:
		w = wireFrame{
			Type:       KindCancel.String(),
			TransferID: f.Cancel.TransferID,
			FileName:   f.Cancel.FileName,
		}
	}

	data, err := c.enc.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize frame: %w", err)
	}
	return data, nil
}

// Decode parses and validates a payload received from the channel. Any
// payload that is not a well-formed chunk or cancel frame yields an error
// wrapping ErrMalformedFrame.
func (c *Codec) Decode(data []byte) (Frame, error) {
	var w wireFrame
	if err := c.dec.Unmarshal(data, &w); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var f Frame
	switch w.Type {
	case "chunk":
		if w.Chunk == nil || w.IsLast == nil || w.Progress == nil {
			return Frame{}, fmt.Errorf("%w: chunk frame missing chunk, isLast or progress", ErrMalformedFrame)
		}
		f = NewChunk(ChunkFrame{
			TransferID: w.TransferID,
			FileName:   w.FileName,
			MimeType:   w.MimeType,
			Chunk:      *w.Chunk,
			IsLast:     *w.IsLast,
			Progress:   *w.Progress,
		})
	case "cancel":
		if w.Chunk != nil || w.IsLast != nil || w.Progress != nil {
			return Frame{}, fmt.Errorf("%w: cancel frame carries chunk fields", ErrMalformedFrame)
		}
		f = NewCancel(w.TransferID, w.FileName)
	default:
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, w.Type)
	}

	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}
