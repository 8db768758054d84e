// Package signalling exchanges SDP offer and answer between two peers through
// a rendezvous store, keyed by a short code the users share out of band.
package signalling

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"peerdrop/internal/config"
	"peerdrop/internal/logging"
	"peerdrop/pkg/utils"
)

// ErrInvalidCode is returned for codes that are not 8 alphanumeric characters
var ErrInvalidCode = errors.New("invalid session code")

// SignalingServer defines the interface for signaling storage operations
type SignalingServer interface {
	CreateSession(ctx context.Context, offer string) (code string, err error)
	GetOffer(ctx context.Context, code string) (offer string, err error)
	UpdateAnswer(ctx context.Context, code, answer string) error
	WaitForAnswer(ctx context.Context, code string) (answer string, err error)
	DeleteSession(ctx context.Context, code string) error
}

// SDPHandler defines the interface for WebRTC SDP operations
type SDPHandler interface {
	CreateOffer(peerConn *webrtc.PeerConnection) (*webrtc.SessionDescription, error)
	CreateAnswer(peerConn *webrtc.PeerConnection) (*webrtc.SessionDescription, error)
	WaitForICEGathering(ctx context.Context, peerConn *webrtc.PeerConnection) error
}

// SignalingService runs the host and join sides of the exchange
type SignalingService struct {
	server SignalingServer
	sdp    SDPHandler
	logger *zap.Logger
}

// NewSignalingService composes a rendezvous store and an SDP handler
func NewSignalingService(server SignalingServer, sdp SDPHandler, logger *zap.Logger) *SignalingService {
	return &SignalingService{
		server: server,
		sdp:    sdp,
		logger: logging.OrNop(logger).Named("signalling"),
	}
}

// NewDefaultSignalingService uses Firebase as the rendezvous store
func NewDefaultSignalingService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*SignalingService, error) {
	server, err := NewFirebaseClient(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase client: %w", err)
	}
	return NewSignalingService(server, &WebRTCHandler{}, logger), nil
}

// Host publishes an offer, reports the session code through onCode and waits
// for the joining peer's answer. The code is returned even on failure so the
// caller can clear the session.
func (s *SignalingService) Host(ctx context.Context, peerConn *webrtc.PeerConnection, onCode func(code string)) (string, error) {
	if _, err := s.sdp.CreateOffer(peerConn); err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	offer, err := s.gatheredDescription(ctx, peerConn)
	if err != nil {
		return "", err
	}

	code, err := s.server.CreateSession(ctx, offer)
	if err != nil {
		return "", fmt.Errorf("failed to create session with offer: %w", err)
	}
	if onCode != nil {
		onCode(code)
	}

	answer, err := s.server.WaitForAnswer(ctx, code)
	if err != nil {
		return code, fmt.Errorf("failed to wait for answer: %w", err)
	}
	answerSD, err := utils.Decode[webrtc.SessionDescription](answer)
	if err != nil {
		return code, fmt.Errorf("failed to decode answer SDP: %w", err)
	}
	if err := peerConn.SetRemoteDescription(answerSD); err != nil {
		return code, fmt.Errorf("failed to set remote description: %w", err)
	}

	s.logger.Info("answer applied", zap.String("code", code))
	return code, nil
}

// Join answers the offer stored under code
func (s *SignalingService) Join(ctx context.Context, peerConn *webrtc.PeerConnection, code string) error {
	if !utils.IsValidCode(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}

	encodedOffer, err := s.server.GetOffer(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to get offer from session: %w", err)
	}
	offerSD, err := utils.Decode[webrtc.SessionDescription](encodedOffer)
	if err != nil {
		return fmt.Errorf("failed to decode offer SDP: %w", err)
	}
	if err := peerConn.SetRemoteDescription(offerSD); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	if _, err := s.sdp.CreateAnswer(peerConn); err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	answer, err := s.gatheredDescription(ctx, peerConn)
	if err != nil {
		return err
	}
	if err := s.server.UpdateAnswer(ctx, code, answer); err != nil {
		return fmt.Errorf("failed to upload answer: %w", err)
	}

	s.logger.Info("answer published", zap.String("code", code))
	return nil
}

// gatheredDescription waits for ICE gathering and encodes the final local
// description with every candidate in it
func (s *SignalingService) gatheredDescription(ctx context.Context, peerConn *webrtc.PeerConnection) (string, error) {
	if err := s.sdp.WaitForICEGathering(ctx, peerConn); err != nil {
		return "", fmt.Errorf("failed to wait for ICE gathering: %w", err)
	}
	local := peerConn.LocalDescription()
	if local == nil {
		return "", fmt.Errorf("local description is nil after ICE gathering")
	}
	encoded, err := utils.Encode(*local)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s SDP: %w", local.Type, err)
	}
	return encoded, nil
}

// ClearSession deletes a session by its code
func (s *SignalingService) ClearSession(ctx context.Context, code string) error {
	return s.server.DeleteSession(ctx, code)
}
