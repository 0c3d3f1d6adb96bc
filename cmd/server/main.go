// Command server runs the onboarding workflow: the HTTP trigger with its
// background runner, one-off runs, purges and schema migration.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// a missing .env is fine; the environment wins either way
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "onboard",
		Short:         "Customer onboarding workflow engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), runCmd(), purgeCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
