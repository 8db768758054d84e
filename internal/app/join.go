package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"peerdrop/internal/config"
	"peerdrop/internal/logging"
	"peerdrop/internal/signalling"
	"peerdrop/internal/transport"
	"peerdrop/internal/ui"
)

// JoinApp connects to a hosted session by its code
type JoinApp struct {
	config      *config.Config
	peerService *transport.PeerService
	signalling  *signalling.SignalingService
	console     *ui.ConsoleUI
	logger      *zap.Logger

	// Code is asked for interactively when empty
	Code string
}

// NewJoinApp creates the joining side application
func NewJoinApp(cfg *config.Config, peerService *transport.PeerService, sig *signalling.SignalingService, console *ui.ConsoleUI, code string, logger *zap.Logger) *JoinApp {
	return &JoinApp{
		config:      cfg,
		peerService: peerService,
		signalling:  sig,
		console:     console,
		logger:      logging.OrNop(logger).Named("join"),
		Code:        code,
	}
}

// Run joins the session and runs the interactive loop on it
func (j *JoinApp) Run(ctx context.Context) error {
	code := j.Code
	if code == "" {
		var err error
		if code, err = j.console.InputCode(ctx); err != nil {
			return fmt.Errorf("failed to get code from user: %w", err)
		}
	}

	peerConn, err := j.peerService.CreatePeerConnection("join")
	if err != nil {
		return err
	}
	defer func() {
		if err := j.peerService.Close(peerConn); err != nil {
			j.logger.Warn("error closing peer connection", zap.Error(err))
		}
	}()

	// The host creates the data channel; it must be accepted before the
	// offer is applied.
	channel := transport.NewDataChannel(j.config, j.logger)
	channel.AcceptDataChannel(peerConn)

	if err := j.signalling.Join(ctx, peerConn, code); err != nil {
		return fmt.Errorf("failed during signalling process: %w", err)
	}

	j.console.ShowMessage("Answer sent, connecting...")
	if err := channel.WaitReady(ctx); err != nil {
		return fmt.Errorf("data channel did not open: %w", err)
	}

	return runSession(ctx, j.config, channel, j.peerService, j.console, j.logger)
}
