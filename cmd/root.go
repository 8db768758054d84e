package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"peerdrop/internal/config"
	"peerdrop/internal/logging"
	"peerdrop/internal/signalling"
	"peerdrop/internal/transport"
	"peerdrop/internal/ui"
	"peerdrop/pkg/utils"
)

var (
	cfg     *config.Config
	logger  *zap.Logger
	cfgFile string
	outDir  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "peerdrop",
	Short: "peerdrop - send files directly between two machines",
	Long: `peerdrop exchanges files between two peers over a WebRTC data channel.

One side hosts a session and shares the code it prints; the other side joins
with that code. Once connected, either side can send files, watch their
progress and cancel them while they are in flight.

Usage:
  Host a session: peerdrop host
  Join a session: peerdrop join --code ABCD1234

Configuration is read from $HOME/.peerdrop.yaml (or --config), a .env file and
PEERDROP_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("out") {
			cfg.Transfer.DownloadDir = outDir
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if cfg.Transfer.DownloadDir, err = utils.ResolveDownloadDir(cfg.Transfer.DownloadDir); err != nil {
			return err
		}

		logger, err = logging.Setup(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		logger.Debug("configuration loaded",
			zap.String("download_dir", cfg.Transfer.DownloadDir), zap.Int("chunk_size", cfg.Transfer.ChunkSize))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.peerdrop.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "", "directory to save received files (default is the current directory)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// createContext creates a context that cancels on interrupt signals
func createContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	context.AfterFunc(ctx, func() {
		fmt.Fprintln(os.Stderr, "\nShutting down...")
	})
	return ctx, stop
}

// services are shared by the host and join commands
type services struct {
	peers      *transport.PeerService
	signalling *signalling.SignalingService
	console    *ui.ConsoleUI
}

func createServices(ctx context.Context) (*services, error) {
	sig, err := signalling.NewDefaultSignalingService(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &services{
		peers:      transport.NewPeerService(cfg, logger),
		signalling: sig,
		console:    ui.NewConsoleUI(os.Stdin, os.Stdout, cfg.Transfer.DownloadDir, logger),
	}, nil
}
