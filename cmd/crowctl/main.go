package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/ratethiscrow/crowapi/cmd/crowctl/cmd"
	"github.com/ratethiscrow/crowapi/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	logger.Init(logger.Options{Env: os.Getenv("APP_ENV"), IsDev: true})

	rootCmd := &cobra.Command{
		Use:          "crowctl",
		Short:        "Maintenance tools for the crow API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.KeysCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
