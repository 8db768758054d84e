package signalling

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// WebRTCHandler implements SDPHandler on a pion peer connection
type WebRTCHandler struct{}

// CreateOffer creates an offer and sets it as the local description
func (h *WebRTCHandler) CreateOffer(peerConn *webrtc.PeerConnection) (*webrtc.SessionDescription, error) {
	offer, err := peerConn.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	return setLocal(peerConn, offer)
}

// CreateAnswer creates an answer to the remote offer and sets it as the local description
func (h *WebRTCHandler) CreateAnswer(peerConn *webrtc.PeerConnection) (*webrtc.SessionDescription, error) {
	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}
	return setLocal(peerConn, answer)
}

// WaitForICEGathering blocks until candidate gathering is complete
func (h *WebRTCHandler) WaitForICEGathering(ctx context.Context, peerConn *webrtc.PeerConnection) error {
	select {
	case <-webrtc.GatheringCompletePromise(peerConn):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func setLocal(peerConn *webrtc.PeerConnection, sd webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := peerConn.SetLocalDescription(sd); err != nil {
		return nil, fmt.Errorf("failed to set local %s: %w", sd.Type, err)
	}
	return &sd, nil
}
