package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"payment-intent-engine/internal/client"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

var globalFlags struct {
	server  string
	token   string
	timeout time.Duration
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "intentctl",
		Short: "Command-line client for the Payment Intent Engine",
		Long: `intentctl talks to a running payment intent engine over its HTTP API.

Create an intent from a natural-language description, inspect the risk and
market analysis, then approve it for settlement.

Examples:
  intentctl create "send 0.25 ETH to 0x7099...79C8 when gas is cheap"
  intentctl login --username operator
  intentctl execute 0190a5b2-7c4e-7d10-8b7a-3f1e2d4c5b6a --wait 30s
  intentctl list --limit 5`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVarP(&globalFlags.server, "server", "s", envOr("INTENTCTL_SERVER", "http://localhost:8080"), "engine base URL")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.token, "token", "t", os.Getenv("INTENTCTL_TOKEN"), "operator bearer token")
	rootCmd.PersistentFlags().DurationVar(&globalFlags.timeout, "timeout", 2*time.Minute, "request timeout")

	rootCmd.AddCommand(
		createCmd(),
		executeCmd(),
		getCmd(),
		listCmd(),
		eventsCmd(),
		analyticsCmd(),
		marketCmd(),
		loginCmd(),
		hashPasswordCmd(),
		migrateCmd(),
	)
	return rootCmd
}

func newClient() *client.Client {
	return client.New(globalFlags.server, client.WithToken(globalFlags.token))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
