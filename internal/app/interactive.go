package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"peerdrop/internal/logging"
	"peerdrop/internal/session"
	"peerdrop/internal/transfer"
	"peerdrop/internal/transport"
	"peerdrop/internal/ui"
)

// Interactive runs the command loop of a connected session
type Interactive struct {
	session *session.Manager
	console *ui.ConsoleUI
	logger  *zap.Logger

	wg sync.WaitGroup
}

// NewInteractive creates the command loop for a connected session
func NewInteractive(m *session.Manager, console *ui.ConsoleUI, logger *zap.Logger) *Interactive {
	return &Interactive{
		session: m,
		console: console,
		logger:  logging.OrNop(logger).Named("interactive"),
	}
}

// Run dispatches commands read from lines until quit, end of input, peer
// disconnect, a connection failure or ctx cancellation. Running transfers are
// cancelled and awaited before it returns.
func (i *Interactive) Run(ctx context.Context, lines <-chan string, failures <-chan *transport.ConnectionFailureError) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		i.wg.Wait()
	}()

	i.console.ShowMessage(ui.Usage)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-i.session.Disconnected():
			i.console.ShowMessage("Peer disconnected")
			return nil
		case failure := <-failures:
			return failure
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if quit := i.dispatch(ctx, line); quit {
				return nil
			}
		}
	}
}

func (i *Interactive) dispatch(ctx context.Context, line string) (quit bool) {
	cmd, err := ui.ParseCommand(line)
	if err != nil {
		i.console.ShowMessage(fmt.Sprintf("%v (type help for commands)", err))
		return false
	}

	switch cmd.Kind {
	case ui.CommandSend:
		i.send(ctx, cmd.Arg)
	case ui.CommandCancel:
		if err := i.session.Cancel(ctx, cmd.Arg); err != nil {
			i.console.Warn(fmt.Sprintf("cannot cancel %s: %v", cmd.Arg, err))
		}
	case ui.CommandList:
		var buf strings.Builder
		if err := ui.WriteTransfers(&buf, i.session.Outbound(), i.session.Inbound()); err == nil {
			i.console.ShowMessage(strings.TrimRight(buf.String(), "\n"))
		}
	case ui.CommandHelp:
		i.console.ShowMessage(ui.Usage)
	case ui.CommandQuit:
		return true
	}
	return false
}

// send starts a transfer in the background; transfers queue inside the session
func (i *Interactive) send(ctx context.Context, path string) {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()

		err := i.session.Send(ctx, path)
		switch {
		case err == nil, errors.Is(err, transfer.ErrCancelled):
		case errors.Is(err, context.Canceled):
			i.logger.Debug("send aborted", zap.String("path", path))
		default:
			i.logger.Warn("send failed", zap.String("path", path), zap.Error(err))
			i.console.Warn(fmt.Sprintf("cannot send %s: %v", path, err))
		}
	}()
}
