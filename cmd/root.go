package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "zaya",
	Short: "Chat logging backend for the Zaya assistant",
	Long: `Zaya logs user chat interactions into a Feishu Bitable, keeps a rolling
per-user conversation history, and uses it to generate contextual AI
replies and conversation summaries.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".zaya.yml", "config file path")
}
