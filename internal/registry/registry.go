// Package registry tracks the state of every outbound and inbound transfer on
// one endpoint, keyed by file name.
package registry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"peerdrop/internal/logging"
)

var (
	ErrUnknownTransfer  = errors.New("unknown transfer")
	ErrTransferFinished = errors.New("transfer already finished")
	ErrNoActiveTransfer = errors.New("no active inbound transfer")
)

// Status is the lifecycle state of a transfer
type Status int

const (
	StatusSending Status = iota
	StatusReceiving
	StatusDone
	StatusCancelled
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusSending:
		return "sending"
	case StatusReceiving:
		return "receiving"
	case StatusDone:
		return "done"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further chunk may be accepted or emitted
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// OutboundTransfer is a snapshot of a file being sent
type OutboundTransfer struct {
	FileName   string
	TransferID string
	TotalSize  int64
	Offset     int64
	Progress   int
	Cancelled  bool
	Status     Status
}

// InboundTransfer is a snapshot of a file being received. Chunks is not
// included; BufferedChunks and BufferedBytes describe the buffer instead.
// ChunksReceived and BytesReceived count everything accepted for the
// transfer and survive completion, when the buffer itself is released.
type InboundTransfer struct {
	FileName       string
	TransferID     string
	MimeType       string
	Progress       int
	Status         Status
	ChunksReceived int
	BytesReceived  int64
	BufferedChunks int
	BufferedBytes  int64
	BlobURL        string
}

type inbound struct {
	transferID string
	mimeType   string
	chunks     [][]byte
	received   int
	bytes      int64
	progress   int
	status     Status
	blobURL    string
}

// Registry owns all transfer state for one endpoint. All methods are safe for
// concurrent use.
type Registry struct {
	mu       sync.Mutex
	outbound map[string]*OutboundTransfer
	inbound  map[string]*inbound
	logger   *zap.Logger
}

// New creates an empty registry
func New(logger *zap.Logger) *Registry {
	return &Registry{
		outbound: make(map[string]*OutboundTransfer),
		inbound:  make(map[string]*inbound),
		logger:   logging.OrNop(logger).Named("registry"),
	}
}

// Percent computes round(offset/total*100); an empty file is complete at 100.
func Percent(offset, total int64) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(offset) / float64(total) * 100))
}

// StartOutbound inserts or resets the entry for fileName in sending state
func (r *Registry) StartOutbound(fileName, transferID string, totalSize int64) OutboundTransfer {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := &OutboundTransfer{
		FileName:   fileName,
		TransferID: transferID,
		TotalSize:  totalSize,
		Status:     StatusSending,
	}
	r.outbound[fileName] = t
	r.logger.Debug("outbound started", zap.String("file", fileName), zap.Int64("size", totalSize))
	return *t
}

// RecordProgress stores the bytes sent so far and returns the new progress.
// ok is false when the entry is absent or already terminal.
func (r *Registry) RecordProgress(fileName string, offset int64) (progress int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.outbound[fileName]
	if !exists || t.Status.Terminal() {
		return 0, false
	}
	if offset < t.Offset || offset > t.TotalSize {
		r.logger.Warn("ignoring out of range offset",
			zap.String("file", fileName), zap.Int64("offset", offset), zap.Int64("current", t.Offset))
		return t.Progress, false
	}
	t.Offset = offset
	t.Progress = Percent(offset, t.TotalSize)
	return t.Progress, true
}

// AdvanceOffset moves the offset of a cancelled entry forward to cover a
// chunk that was already handed to the channel when the cancel landed.
// Progress and status are left as they were.
func (r *Registry) AdvanceOffset(fileName string, offset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.outbound[fileName]
	if !exists || t.Status != StatusCancelled || offset <= t.Offset || offset > t.TotalSize {
		return
	}
	t.Offset = offset
}

// CompleteOutbound marks the entry done
func (r *Registry) CompleteOutbound(fileName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.outbound[fileName]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTransfer, fileName)
	}
	if t.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTransferFinished, fileName, t.Status)
	}
	t.Offset = t.TotalSize
	t.Progress = 100
	t.Status = StatusDone
	return nil
}

// CancelOutbound flags the entry as cancelled. It is idempotent: changed is
// false when the entry was already cancelled.
func (r *Registry) CancelOutbound(fileName string) (changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.outbound[fileName]
	if !exists {
		return false, fmt.Errorf("%w: %s", ErrUnknownTransfer, fileName)
	}
	switch t.Status {
	case StatusCancelled:
		return false, nil
	case StatusDone:
		return false, fmt.Errorf("%w: %s", ErrTransferFinished, fileName)
	}
	t.Cancelled = true
	t.Status = StatusCancelled
	r.logger.Debug("outbound cancelled", zap.String("file", fileName), zap.Int64("offset", t.Offset))
	return true, nil
}

// IsCancelled reports whether the outbound entry has been cancelled
func (r *Registry) IsCancelled(fileName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.outbound[fileName]
	return exists && t.Cancelled
}

// Outbound returns a snapshot of the outbound entry
func (r *Registry) Outbound(fileName string) (OutboundTransfer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.outbound[fileName]
	if !exists {
		return OutboundTransfer{}, false
	}
	return *t, true
}

// StartOrResetInbound creates a fresh, empty entry for fileName, discarding
// whatever an earlier transfer of the same name left behind.
func (r *Registry) StartOrResetInbound(fileName, transferID, mimeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.inbound[fileName]; exists {
		r.logger.Debug("resetting inbound entry",
			zap.String("file", fileName), zap.Stringer("previous", prev.status))
	}
	r.inbound[fileName] = &inbound{
		transferID: transferID,
		mimeType:   mimeType,
		status:     StatusReceiving,
	}
}

// AppendChunk appends data to the buffer of a receiving entry
func (r *Registry) AppendChunk(fileName string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, exists := r.inbound[fileName]
	if !exists || in.status != StatusReceiving {
		return fmt.Errorf("%w: %s", ErrNoActiveTransfer, fileName)
	}
	in.chunks = append(in.chunks, data)
	in.received++
	in.bytes += int64(len(data))
	return nil
}

// SetInboundProgress records receiver-side progress. Progress never goes backwards.
func (r *Registry) SetInboundProgress(fileName string, progress int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, exists := r.inbound[fileName]
	if !exists || in.status != StatusReceiving {
		return 0
	}
	if progress > in.progress {
		in.progress = min(progress, 100)
	}
	return in.progress
}

// CompleteInbound concatenates the buffered chunks in arrival order, clears
// the buffer and marks the entry done.
func (r *Registry) CompleteInbound(fileName, mimeType string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, exists := r.inbound[fileName]
	if !exists || in.status != StatusReceiving {
		return nil, fmt.Errorf("%w: %s", ErrNoActiveTransfer, fileName)
	}

	var size int
	for _, c := range in.chunks {
		size += len(c)
	}
	assembled := make([]byte, 0, size)
	for _, c := range in.chunks {
		assembled = append(assembled, c...)
	}

	if mimeType != "" {
		in.mimeType = mimeType
	}
	in.chunks = nil
	in.progress = 100
	in.status = StatusDone
	return assembled, nil
}

// CancelInbound marks the entry cancelled and frees its buffer. It returns
// false if the entry was already terminal. A cancel for an unseen name leaves
// a cancelled tombstone so late chunks of that transfer are ignored.
func (r *Registry) CancelInbound(fileName, transferID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, exists := r.inbound[fileName]
	if !exists {
		r.inbound[fileName] = &inbound{transferID: transferID, status: StatusCancelled}
		return true
	}
	if in.status.Terminal() {
		return false
	}
	in.chunks = nil
	in.status = StatusCancelled
	return true
}

// AttachBlob records where the assembled bytes of a done entry can be retrieved
func (r *Registry) AttachBlob(fileName, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if in, exists := r.inbound[fileName]; exists && in.status == StatusDone {
		in.blobURL = url
	}
}

// Inbound returns a snapshot of the inbound entry
func (r *Registry) Inbound(fileName string) (InboundTransfer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, exists := r.inbound[fileName]
	if !exists {
		return InboundTransfer{}, false
	}
	return in.snapshot(fileName), true
}

// ListOutbound returns all outbound entries sorted by file name
func (r *Registry) ListOutbound() []OutboundTransfer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]OutboundTransfer, 0, len(r.outbound))
	for _, t := range r.outbound {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

// ListInbound returns all inbound entries sorted by file name
func (r *Registry) ListInbound() []InboundTransfer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]InboundTransfer, 0, len(r.inbound))
	for name, in := range r.inbound {
		out = append(out, in.snapshot(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

func (in *inbound) snapshot(name string) InboundTransfer {
	var size int64
	for _, c := range in.chunks {
		size += int64(len(c))
	}
	return InboundTransfer{
		FileName:       name,
		TransferID:     in.transferID,
		MimeType:       in.mimeType,
		Progress:       in.progress,
		Status:         in.status,
		ChunksReceived: in.received,
		BytesReceived:  in.bytes,
		BufferedChunks: len(in.chunks),
		BufferedBytes:  size,
		BlobURL:        in.blobURL,
	}
}
