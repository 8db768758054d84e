package transfer

import (
	"context"

	"peerdrop/internal/protocol"
)

// FrameWriter puts one frame on the channel
type FrameWriter interface {
	WriteFrame(ctx context.Context, f protocol.Frame) error
}

// FrameWriterFunc adapts a function to FrameWriter
type FrameWriterFunc func(ctx context.Context, f protocol.Frame) error

// WriteFrame calls fn(ctx, f)
func (fn FrameWriterFunc) WriteFrame(ctx context.Context, f protocol.Frame) error {
	return fn(ctx, f)
}
