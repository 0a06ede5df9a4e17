// Command cityrag serves grounded answers about Istanbul districts.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "cityrag",
		Short:        "Question answering over Istanbul district statistics",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default config/$ENV.yaml)")

	root.AddCommand(
		serveCmd(&configPath),
		askCmd(&configPath),
		versionCmd(),
	)
	return root
}
