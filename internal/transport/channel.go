package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"peerdrop/internal/config"
	"peerdrop/internal/logging"
)

var (
	ErrChannelClosed   = errors.New("channel is closed")
	ErrChannelNotReady = errors.New("channel is not open")
)

// Channel is one established, ordered, reliable, bidirectional message
// transport between two endpoints.
type Channel interface {
	// Send delivers one message. Messages are observed by the peer in the
	// order Send returned.
	Send(ctx context.Context, payload []byte) error
	// Messages yields inbound messages in arrival order.
	Messages() <-chan []byte
	// Done is closed once the channel is closed by either side.
	Done() <-chan struct{}
	// Label identifies the channel in logs and the UI.
	Label() string
	Close() error
}

// DataChannel adapts an ordered WebRTC data channel to Channel, applying
// buffered-amount flow control on Send.
type DataChannel struct {
	config      *config.Config
	logger      *zap.Logger
	dataChannel *webrtc.DataChannel

	readyCh         chan struct{}
	readyOnce       sync.Once
	bufferControlCh chan struct{}
	incomingMsgCh   chan []byte
	doneCh          chan struct{}

	sendMutex    sync.Mutex
	closeMutex   sync.RWMutex
	isClosed     bool
	shutdownOnce sync.Once
}

// NewDataChannel creates an unbound channel; bind it with CreateDataChannel
// (offering side) or AcceptDataChannel (answering side).
func NewDataChannel(cfg *config.Config, logger *zap.Logger) *DataChannel {
	return &DataChannel{
		config:          cfg,
		logger:          logging.OrNop(logger).Named("datachannel"),
		readyCh:         make(chan struct{}),
		bufferControlCh: make(chan struct{}, 1),
		incomingMsgCh:   make(chan []byte, 128),
		doneCh:          make(chan struct{}),
	}
}

// CreateDataChannel creates and configures an ordered, reliable WebRTC data channel
func (c *DataChannel) CreateDataChannel(peerConn *webrtc.PeerConnection, label string) error {
	ordered := true
	options := &webrtc.DataChannelInit{
		Ordered: &ordered,
	}

	dataChannel, err := peerConn.CreateDataChannel(label, options)
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}

	c.bind(dataChannel)
	return nil
}

// AcceptDataChannel binds the first data channel the remote peer opens
func (c *DataChannel) AcceptDataChannel(peerConn *webrtc.PeerConnection) {
	var once sync.Once
	peerConn.OnDataChannel(func(dataChannel *webrtc.DataChannel) {
		once.Do(func() {
			c.logger.Info("received data channel",
				zap.String("label", dataChannel.Label()), zap.Uint16p("id", dataChannel.ID()))
			c.bind(dataChannel)
		})
	})
}

// bind configures WebRTC data channel event handlers
func (c *DataChannel) bind(dataChannel *webrtc.DataChannel) {
	c.dataChannel = dataChannel

	dataChannel.OnOpen(func() {
		c.logger.Info("data channel opened", zap.String("label", dataChannel.Label()))
		c.readyOnce.Do(func() { close(c.readyCh) })
	})

	dataChannel.OnClose(func() {
		c.logger.Info("data channel closed", zap.String("label", dataChannel.Label()))
		c.shutdown()
	})

	dataChannel.OnError(func(err error) {
		c.logger.Error("data channel error", zap.Error(err))
		c.shutdown()
	})

	dataChannel.OnMessage(func(msg webrtc.DataChannelMessage) {
		// pion reuses its read buffer between callbacks
		payload := make([]byte, len(msg.Data))
		copy(payload, msg.Data)
		select {
		case c.incomingMsgCh <- payload:
		case <-c.doneCh:
		}
	})

	dataChannel.SetBufferedAmountLowThreshold(c.config.WebRTC.BufferedAmountLowThreshold)
	// Must not block: this callback runs on the pion/sctp read loop.
	dataChannel.OnBufferedAmountLow(func() {
		select {
		case c.bufferControlCh <- struct{}{}:
		default:
		}
	})
}

// WaitReady blocks until the data channel is open
func (c *DataChannel) WaitReady(ctx context.Context) error {
	timeout := c.config.WebRTC.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-c.readyCh:
		return nil
	case <-c.doneCh:
		return ErrChannelClosed
	case <-ctx.Done():
		return fmt.Errorf("cancelled while waiting for channel ready: %w", ctx.Err())
	case <-time.After(timeout):
		return fmt.Errorf("%w: timeout after %s", ErrChannelNotReady, timeout)
	}
}

// Send sends one message through the data channel with flow control
func (c *DataChannel) Send(ctx context.Context, payload []byte) error {
	if c.IsClosed() {
		return ErrChannelClosed
	}
	select {
	case <-c.readyCh:
	default:
		return ErrChannelNotReady
	}

	// Serialize senders so flow control and message order hold together.
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if err := c.handleFlowControl(ctx); err != nil {
		return err
	}
	if err := c.dataChannel.Send(payload); err != nil {
		return fmt.Errorf("failed to send data: %w", err)
	}
	return nil
}

// handleFlowControl waits while the SCTP send buffer is above the high water mark
func (c *DataChannel) handleFlowControl(ctx context.Context) error {
	for c.dataChannel.BufferedAmount() > c.config.WebRTC.MaxBufferedAmount {
		select {
		case <-c.bufferControlCh:
		case <-c.doneCh:
			return ErrChannelClosed
		case <-ctx.Done():
			return fmt.Errorf("channel cancelled during flow control: %w", ctx.Err())
		case <-time.After(30 * time.Second):
			return fmt.Errorf("flow control timeout - WebRTC channel may be dead")
		}
	}
	return nil
}

// Messages returns inbound messages in arrival order
func (c *DataChannel) Messages() <-chan []byte {
	return c.incomingMsgCh
}

// Done is closed when the channel shuts down
func (c *DataChannel) Done() <-chan struct{} {
	return c.doneCh
}

// Label returns the data channel label
func (c *DataChannel) Label() string {
	if c.dataChannel == nil {
		return ""
	}
	return c.dataChannel.Label()
}

// IsClosed returns whether the channel is closed
func (c *DataChannel) IsClosed() bool {
	c.closeMutex.RLock()
	defer c.closeMutex.RUnlock()
	return c.isClosed
}

// Close gracefully closes the data channel
func (c *DataChannel) Close() error {
	if c.IsClosed() {
		return nil
	}

	var err error
	if c.dataChannel != nil && c.dataChannel.ReadyState() == webrtc.DataChannelStateOpen {
		err = c.dataChannel.GracefulClose()
	}
	c.shutdown()
	return err
}

// shutdown marks the channel closed and wakes every waiter
func (c *DataChannel) shutdown() {
	c.shutdownOnce.Do(func() {
		c.closeMutex.Lock()
		c.isClosed = true
		c.closeMutex.Unlock()
		close(c.doneCh)
	})
}
