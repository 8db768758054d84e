package transport

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"peerdrop/internal/config"
	"peerdrop/internal/logging"
)

// ConnectionFailureError reports that the peer connection failed or closed
type ConnectionFailureError struct {
	State   webrtc.PeerConnectionState
	Role    string
	Message string
}

func (e *ConnectionFailureError) Error() string {
	return fmt.Sprintf("connection failed in %s state for %s: %s", e.State.String(), e.Role, e.Message)
}

// PeerService manages WebRTC peer connection lifecycle
type PeerService struct {
	config      *config.Config
	logger      *zap.Logger
	failureChan chan *ConnectionFailureError
}

// NewPeerService creates a new peer service with the given configuration
func NewPeerService(cfg *config.Config, logger *zap.Logger) *PeerService {
	return &PeerService{
		config:      cfg,
		logger:      logging.OrNop(logger).Named("peer"),
		failureChan: make(chan *ConnectionFailureError, 1),
	}
}

// CreatePeerConnection creates a new peer connection and starts watching its state
func (p *PeerService) CreatePeerConnection(role string) (*webrtc.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: p.config.ICEServers(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.handleConnectionStateChange(state, role)
	})
	return pc, nil
}

// Failures returns a channel that receives connection failures
func (p *PeerService) Failures() <-chan *ConnectionFailureError {
	return p.failureChan
}

// Close gracefully closes the peer connection
func (p *PeerService) Close(peerConn *webrtc.PeerConnection) error {
	if peerConn == nil {
		return nil
	}
	return peerConn.Close()
}

func (p *PeerService) handleConnectionStateChange(state webrtc.PeerConnectionState, role string) {
	p.logger.Info("peer connection state changed", zap.Stringer("state", state), zap.String("role", role))

	var msg string
	switch state {
	case webrtc.PeerConnectionStateFailed:
		msg = "peer connection failed"
	case webrtc.PeerConnectionStateClosed:
		msg = "peer connection closed"
	default:
		return
	}

	select {
	case p.failureChan <- &ConnectionFailureError{State: state, Role: role, Message: msg}:
	default:
		// a failure is already pending
	}
}
