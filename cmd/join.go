package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"peerdrop/internal/app"
	"peerdrop/pkg/utils"
)

var joinCode string

// joinCmd represents the join command
var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a hosted session by its code",
	Long: `Join a peerdrop session. This will:

1. Read the session code from --code or prompt for it
2. Fetch the host's SDP offer and publish an answer
3. Start the interactive prompt once the channel opens`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if joinCode != "" && !utils.IsValidCode(joinCode) {
			return fmt.Errorf("code must be 8 alphanumeric characters")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := createContext()
		defer stop()

		svc, err := createServices(ctx)
		if err != nil {
			return err
		}
		return app.NewJoinApp(cfg, svc.peers, svc.signalling, svc.console, joinCode, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinCmd.Flags().StringVarP(&joinCode, "code", "c", "", "session code printed by the host")
}
