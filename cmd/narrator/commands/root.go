// Package commands implements the narrator CLI.
package commands

import (
	"github.com/spf13/cobra"

	"ai-scene-narrator-service/internal/config"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "narrator",
	Short: "Assistive scene narrator",
	Long: `Assistive scene narrator.

Captures camera frames, asks a vision model about them and speaks the
answers aloud, one feature at a time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFiles...)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
