// Package cli is the broadcast command line client. It runs uploads
// in-process and draws their progress on the terminal.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/realityworks/broadcast-app/internal/config"
	"github.com/realityworks/broadcast-app/pkg/logger"
)

var (
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "broadcast",
	Short:         "Broadcast upload client",
	Long:          "Publish media posts and replace the profile trailer of a Broadcast account",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level written to stderr (debug, info, warn, error)")

	rootCmd.AddCommand(newUploadCmd())
}

// newLogger logs to stderr so it does not interleave with the progress bar
func newLogger() *logger.Logger {
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		level = logger.WARN
	}
	return logger.NewWithConfig(logger.Config{Level: level, Output: os.Stderr})
}
