package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"peerdrop/internal/config"
	"peerdrop/internal/logging"
	"peerdrop/internal/session"
	"peerdrop/internal/signalling"
	"peerdrop/internal/transport"
	"peerdrop/internal/ui"
)

const (
	dataChannelLabel = "peerdrop"
	cleanupTimeout   = 10 * time.Second
)

// HostApp opens a session: it publishes an offer, shows the code and waits
// for a peer to join
type HostApp struct {
	config      *config.Config
	peerService *transport.PeerService
	signalling  *signalling.SignalingService
	console     *ui.ConsoleUI
	logger      *zap.Logger
}

// NewHostApp creates the host side application
func NewHostApp(cfg *config.Config, peerService *transport.PeerService, sig *signalling.SignalingService, console *ui.ConsoleUI, logger *zap.Logger) *HostApp {
	return &HostApp{
		config:      cfg,
		peerService: peerService,
		signalling:  sig,
		console:     console,
		logger:      logging.OrNop(logger).Named("host"),
	}
}

// Run hosts one connection and runs the interactive loop on it
func (h *HostApp) Run(ctx context.Context) error {
	peerConn, err := h.peerService.CreatePeerConnection("host")
	if err != nil {
		return err
	}
	defer func() {
		if err := h.peerService.Close(peerConn); err != nil {
			h.logger.Warn("error closing peer connection", zap.Error(err))
		}
	}()

	channel := transport.NewDataChannel(h.config, h.logger)
	if err := channel.CreateDataChannel(peerConn, dataChannelLabel); err != nil {
		return err
	}

	code, err := h.signalling.Host(ctx, peerConn, h.console.ShowCode)
	if code != "" {
		defer h.clearSession(ctx, code)
	}
	if err != nil {
		return fmt.Errorf("failed during signalling process: %w", err)
	}

	h.console.ShowMessage("Peer answered, connecting...")
	if err := channel.WaitReady(ctx); err != nil {
		return fmt.Errorf("data channel did not open: %w", err)
	}

	return runSession(ctx, h.config, channel, h.peerService, h.console, h.logger)
}

// clearSession removes the rendezvous record even if ctx is already cancelled
func (h *HostApp) clearSession(ctx context.Context, code string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := h.signalling.ClearSession(ctx, code); err != nil {
		h.logger.Warn("failed to clear session", zap.String("code", code), zap.Error(err))
	}
}

// runSession attaches an open channel to a new session and hands control to
// the interactive loop
func runSession(ctx context.Context, cfg *config.Config, ch transport.Channel, peers *transport.PeerService, console *ui.ConsoleUI, logger *zap.Logger) error {
	m, err := session.NewManager(session.Options{
		ChunkSize: cfg.Transfer.ChunkSize,
		Notifier:  console,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if err := m.Attach(ch); err != nil {
		return err
	}
	defer m.Close()

	return NewInteractive(m, console, logger).Run(ctx, console.Lines(ctx), peers.Failures())
}
