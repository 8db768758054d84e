package transfer

import (
	"fmt"

	"go.uber.org/zap"

	"peerdrop/internal/logging"
	"peerdrop/internal/protocol"
	"peerdrop/internal/registry"
)

// Receiver reassembles inbound transfers from decoded frames. OnFrame must be
// called from a single goroutine in channel order.
type Receiver struct {
	registry *registry.Registry
	blobs    *BlobStore
	notifier Notifier
	logger   *zap.Logger
}

// NewReceiver creates a receiver storing completed files in blobs
func NewReceiver(reg *registry.Registry, blobs *BlobStore, notifier Notifier, logger *zap.Logger) *Receiver {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Receiver{
		registry: reg,
		blobs:    blobs,
		notifier: notifier,
		logger:   logging.OrNop(logger).Named("receiver"),
	}
}

// OnFrame applies one inbound frame. Problems are logged and reported as
// warnings; they never stop the read loop.
func (r *Receiver) OnFrame(f protocol.Frame) {
	if err := f.Validate(); err != nil {
		r.warn("", "dropping invalid frame", zap.Error(err))
		return
	}

	switch f.Kind {
	case protocol.KindCancel:
		r.handleCancel(f.Cancel)
	case protocol.KindChunk:
		r.handleChunk(f.Chunk)
	}
}

func (r *Receiver) handleCancel(c *protocol.CancelFrame) {
	if entry, exists := r.registry.Inbound(c.FileName); exists &&
		c.TransferID != "" && entry.TransferID != "" && entry.TransferID != c.TransferID {
		r.logger.Debug("ignoring cancel for an earlier transfer",
			zap.String("file", c.FileName), zap.String("transfer_id", c.TransferID))
		return
	}

	if !r.registry.CancelInbound(c.FileName, c.TransferID) {
		return
	}
	r.logger.Info("transfer cancelled by peer", zap.String("file", c.FileName))
	r.notifier.Cancelled(Inbound, c.FileName)
}

func (r *Receiver) handleChunk(c *protocol.ChunkFrame) {
	entry, exists := r.registry.Inbound(c.FileName)
	switch {
	case !exists || entry.TransferID != c.TransferID:
		if exists && entry.BlobURL != "" {
			r.blobs.Revoke(entry.BlobURL)
		}
		r.registry.StartOrResetInbound(c.FileName, c.TransferID, c.MimeType)
		r.logger.Info("receiving file",
			zap.String("file", c.FileName), zap.String("mime", c.MimeType), zap.String("transfer_id", c.TransferID))
	case entry.Status.Terminal():
		r.warn(c.FileName, fmt.Sprintf("ignoring chunk for %s transfer", entry.Status),
			zap.String("transfer_id", c.TransferID))
		return
	}

	if err := r.registry.AppendChunk(c.FileName, c.Chunk); err != nil {
		r.warn(c.FileName, "dropping chunk", zap.Error(err))
		return
	}

	progress := c.Progress
	if c.IsLast {
		progress = 100
	}
	progress = r.registry.SetInboundProgress(c.FileName, progress)
	r.notifier.Progress(Inbound, c.FileName, progress)

	if !c.IsLast {
		return
	}

	data, err := r.registry.CompleteInbound(c.FileName, c.MimeType)
	if err != nil {
		r.warn(c.FileName, "could not complete transfer", zap.Error(err))
		return
	}
	blob := r.blobs.Put(c.FileName, c.MimeType, data)
	r.registry.AttachBlob(c.FileName, blob.URL())

	r.logger.Info("file received",
		zap.String("file", c.FileName), zap.Int64("size", blob.Size()), zap.String("blob", blob.URL()))
	r.notifier.Completed(Inbound, c.FileName, blob)
}

// warn logs a non-fatal problem and surfaces it to the user
func (r *Receiver) warn(fileName, msg string, fields ...zap.Field) {
	if fileName != "" {
		fields = append(fields, zap.String("file", fileName))
		msg = fmt.Sprintf("%s: %s", msg, fileName)
	}
	r.logger.Warn(msg, fields...)
	r.notifier.Warn(msg)
}
