package cmd

import (
	"github.com/spf13/cobra"

	"peerdrop/internal/app"
)

// hostCmd represents the host command
var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Host a session and wait for a peer to join",
	Long: `Host a peerdrop session. This will:

1. Create a WebRTC peer connection and data channel
2. Publish an SDP offer and print the session code
3. Wait for the joining peer's answer
4. Start the interactive prompt once the channel opens`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := createContext()
		defer stop()

		svc, err := createServices(ctx)
		if err != nil {
			return err
		}
		return app.NewHostApp(cfg, svc.peers, svc.signalling, svc.console, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)
}
