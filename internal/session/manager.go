// Package session owns the single channel between two peers and routes
// frames between it and the transfer pipelines.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"peerdrop/internal/logging"
	"peerdrop/internal/protocol"
	"peerdrop/internal/registry"
	"peerdrop/internal/transfer"
	"peerdrop/internal/transport"
)

var (
	ErrNoChannel        = errors.New("no open channel")
	ErrAlreadyConnected = errors.New("session already has an open channel")
)

// Options configures a Manager
type Options struct {
	ChunkSize int
	Notifier  transfer.Notifier
	Logger    *zap.Logger
}

// Manager holds at most one channel at a time. Outbound transfers share one
// Sender, so sends on a session run one after another; inbound frames are
// applied by a single read loop in channel order.
type Manager struct {
	registry *registry.Registry
	blobs    *transfer.BlobStore
	sender   *transfer.Sender
	receiver *transfer.Receiver
	codec    *protocol.Codec
	notifier transfer.Notifier
	logger   *zap.Logger

	mu      sync.Mutex
	channel transport.Channel
	ctx     context.Context
	cancel  context.CancelFunc
	closed  chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a session with its own registry and blob store
func NewManager(opts Options) (*Manager, error) {
	codec, err := protocol.NewCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to create frame codec: %w", err)
	}

	logger := logging.OrNop(opts.Logger)
	notifier := opts.Notifier
	if notifier == nil {
		notifier = transfer.NopNotifier{}
	}

	reg := registry.New(logger)
	blobs := transfer.NewBlobStore()
	return &Manager{
		registry: reg,
		blobs:    blobs,
		sender:   transfer.NewSender(reg, notifier, opts.ChunkSize, logger),
		receiver: transfer.NewReceiver(reg, blobs, notifier, logger),
		codec:    codec,
		notifier: notifier,
		logger:   logger.Named("session"),
	}, nil
}

// Attach takes ownership of an open channel and starts reading from it
func (m *Manager) Attach(ch transport.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channel != nil {
		return ErrAlreadyConnected
	}

	m.channel = ch
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.closed = make(chan struct{})

	m.wg.Add(1)
	go m.readLoop(m.ctx, ch, m.closed)

	m.logger.Info("channel attached", zap.String("label", ch.Label()))
	m.notifier.Info(fmt.Sprintf("Connected over %s", ch.Label()))
	return nil
}

// Connected reports whether a channel is attached
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channel != nil
}

// Disconnected returns a channel closed when the current channel goes away.
// It returns a closed channel if nothing is attached.
func (m *Manager) Disconnected() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channel == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return m.closed
}

func (m *Manager) readLoop(ctx context.Context, ch transport.Channel, closed chan struct{}) {
	defer m.wg.Done()
	defer m.detach(ch, closed)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch.Done():
			m.logger.Info("channel closed by peer", zap.String("label", ch.Label()))
			return
		case msg := <-ch.Messages():
			frame, err := m.codec.Decode(msg)
			if err != nil {
				m.logger.Warn("dropping malformed frame", zap.Int("bytes", len(msg)), zap.Error(err))
				m.notifier.Warn(fmt.Sprintf("Dropped a malformed message from the peer: %v", err))
				continue
			}
			m.receiver.OnFrame(frame)
		}
	}
}

// detach forgets ch if it is still the attached channel
func (m *Manager) detach(ch transport.Channel, closed chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channel != ch {
		return
	}
	m.channel = nil
	m.cancel()
	close(closed)
}

func (m *Manager) current() (transport.Channel, context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channel == nil {
		return nil, nil, ErrNoChannel
	}
	return m.channel, m.ctx, nil
}

// WriteFrame encodes f and sends it on the attached channel
func (m *Manager) WriteFrame(ctx context.Context, f protocol.Frame) error {
	ch, _, err := m.current()
	if err != nil {
		return err
	}

	data, err := m.codec.Encode(f)
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", f.Kind, err)
	}
	return ch.Send(ctx, data)
}

// Send streams the file at path to the peer and blocks until it is sent,
// cancelled or the channel goes away. Transfers queue behind one another.
func (m *Manager) Send(ctx context.Context, path string) error {
	_, sessionCtx, err := m.current()
	if err != nil {
		return err
	}

	src, err := transfer.OpenSource(path)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sessionCtx, cancel)
	defer stop()

	return m.sender.Send(ctx, src, m)
}

// Cancel stops an outbound transfer and tells the peer
func (m *Manager) Cancel(ctx context.Context, fileName string) error {
	return m.sender.Cancel(ctx, fileName, m)
}

// Outbound lists outbound transfers
func (m *Manager) Outbound() []registry.OutboundTransfer {
	return m.registry.ListOutbound()
}

// Inbound lists inbound transfers
func (m *Manager) Inbound() []registry.InboundTransfer {
	return m.registry.ListInbound()
}

// Blob resolves a blob URL of a completed inbound transfer
func (m *Manager) Blob(url string) (*transfer.Blob, bool) {
	return m.blobs.Get(url)
}

// Close closes the attached channel, if any, and waits for the read loop
func (m *Manager) Close() error {
	m.mu.Lock()
	ch := m.channel
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	var err error
	if ch != nil {
		err = ch.Close()
	}
	m.wg.Wait()
	return err
}
