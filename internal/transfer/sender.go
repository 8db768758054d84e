// Package transfer implements the chunked file transfer pipelines: the
// Sender slices a source into ordered chunk frames and the Receiver
// reassembles them.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peerdrop/internal/config"
	"peerdrop/internal/logging"
	"peerdrop/internal/protocol"
	"peerdrop/internal/registry"
)

// ErrCancelled is returned by Send when the transfer was cancelled
var ErrCancelled = errors.New("transfer cancelled")

const cancelWriteTimeout = 5 * time.Second

// Sender streams sources over a channel one chunk at a time. Transfers on one
// Sender are serialized so chunk frames of different files never interleave.
type Sender struct {
	registry  *registry.Registry
	notifier  Notifier
	logger    *zap.Logger
	chunkSize int64

	// slot admits one transfer loop at a time
	slot chan struct{}
	// writeMu orders chunk frames against cancel frames on the wire
	writeMu sync.Mutex
}

// NewSender creates a sender; chunkSize <= 0 selects the 1 MiB default
func NewSender(reg *registry.Registry, notifier Notifier, chunkSize int, logger *zap.Logger) *Sender {
	if chunkSize <= 0 {
		chunkSize = config.DefaultChunkSize
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Sender{
		registry:  reg,
		notifier:  notifier,
		logger:    logging.OrNop(logger).Named("sender"),
		chunkSize: int64(chunkSize),
		slot:      make(chan struct{}, 1),
	}
}

// outboundTask is the loop state of one transfer
type outboundTask struct {
	src    *Source
	id     string
	offset int64
}

// Send streams src through w until the last chunk is sent, the transfer is
// cancelled or ctx is done. It waits for any earlier transfer on this Sender
// to finish first.
func (s *Sender) Send(ctx context.Context, src *Source, w FrameWriter) error {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.slot }()

	task := &outboundTask{src: src, id: uuid.NewString()}
	s.registry.StartOutbound(src.Name, task.id, src.Size)
	s.notifier.Progress(Outbound, src.Name, 0)
	s.logger.Info("sending file",
		zap.String("file", src.Name), zap.Int64("size", src.Size), zap.String("transfer_id", task.id))

	for {
		last, err := s.step(ctx, task, w)
		if err != nil {
			return err
		}
		if last {
			s.notifier.Completed(Outbound, src.Name, nil)
			s.logger.Info("file sent", zap.String("file", src.Name), zap.Int64("size", src.Size))
			return nil
		}

		// Yield between chunks so cancellation and inbound frames interleave.
		runtime.Gosched()
		if ctx.Err() != nil {
			s.abort(ctx, task, w)
			return ctx.Err()
		}
	}
}

// step sends exactly one chunk frame, or none if the transfer was cancelled.
// It reports whether the frame sent was the last one.
func (s *Sender) step(ctx context.Context, task *outboundTask, w FrameWriter) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	name := task.src.Name
	if s.registry.IsCancelled(name) {
		s.logger.Info("transfer cancelled", zap.String("file", name), zap.Int64("offset", task.offset))
		return false, ErrCancelled
	}

	end := min(task.offset+s.chunkSize, task.src.Size)
	chunk, err := task.src.ReadChunk(task.offset, end)
	if err != nil {
		s.failLocked(ctx, task, w)
		return false, err
	}

	isLast := end == task.src.Size
	frame := protocol.NewChunk(protocol.ChunkFrame{
		TransferID: task.id,
		FileName:   name,
		MimeType:   task.src.MimeType,
		Chunk:      chunk,
		IsLast:     isLast,
		Progress:   registry.Percent(end, task.src.Size),
	})
	if err := w.WriteFrame(ctx, frame); err != nil {
		if ctx.Err() != nil {
			// The peer may hold earlier chunks; it still gets a cancel frame.
			s.failLocked(ctx, task, w)
		} else if changed, _ := s.registry.CancelOutbound(name); changed {
			s.notifier.Cancelled(Outbound, name)
		}
		return false, fmt.Errorf("failed to send chunk of %s: %w", name, err)
	}

	task.offset = end
	progress, ok := s.registry.RecordProgress(name, end)
	if !ok {
		// Cancelled while the chunk was in flight. Cancel writes its frame
		// once writeMu is released.
		s.registry.AdvanceOffset(name, end)
		s.logger.Info("transfer cancelled", zap.String("file", name), zap.Int64("offset", end))
		return false, ErrCancelled
	}
	if isLast {
		if err := s.registry.CompleteOutbound(name); err != nil {
			// Cancel won the race against the final chunk.
			return false, ErrCancelled
		}
		progress = 100
	}
	s.notifier.Progress(Outbound, name, progress)
	s.logger.Debug("chunk sent",
		zap.String("file", name), zap.Int64("offset", end), zap.Int("progress", progress), zap.Bool("last", isLast))
	return isLast, nil
}

// Cancel stops the outbound transfer of fileName and tells the peer. The
// state flips immediately; the cancel frame waits for any chunk already being
// written, so it is always the last frame of the transfer on the wire. It is
// sent once per transfer, even if the loop already exited.
func (s *Sender) Cancel(ctx context.Context, fileName string, w FrameWriter) error {
	changed, err := s.registry.CancelOutbound(fileName)
	if err != nil || !changed {
		return err
	}
	s.notifier.Cancelled(Outbound, fileName)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writeCancel(ctx, fileName, w)
}

func (s *Sender) writeCancel(ctx context.Context, fileName string, w FrameWriter) error {
	t, _ := s.registry.Outbound(fileName)
	if err := w.WriteFrame(ctx, protocol.NewCancel(t.TransferID, fileName)); err != nil {
		return fmt.Errorf("failed to send cancel for %s: %w", fileName, err)
	}
	s.logger.Info("sent cancel", zap.String("file", fileName), zap.Int64("offset", t.Offset))
	return nil
}

// abort cancels a transfer whose context ended, still informing the peer
func (s *Sender) abort(ctx context.Context, task *outboundTask, w FrameWriter) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelWriteTimeout)
	defer cancel()

	if err := s.Cancel(ctx, task.src.Name, w); err != nil {
		s.logger.Warn("could not notify peer of aborted transfer", zap.String("file", task.src.Name), zap.Error(err))
	}
}

// failLocked cancels a transfer that cannot go on, because its source became
// unreadable or its context ended mid-write, and tells the peer. The caller
// holds writeMu.
func (s *Sender) failLocked(ctx context.Context, task *outboundTask, w FrameWriter) {
	changed, err := s.registry.CancelOutbound(task.src.Name)
	if err != nil || !changed {
		return
	}
	s.notifier.Cancelled(Outbound, task.src.Name)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelWriteTimeout)
	defer cancel()
	if err := s.writeCancel(ctx, task.src.Name, w); err != nil {
		s.logger.Warn("could not notify peer of failed transfer", zap.String("file", task.src.Name), zap.Error(err))
	}
}
