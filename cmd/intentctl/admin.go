package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"payment-intent-engine/config"
	pgStorage "payment-intent-engine/internal/adapter/storage/postgres"
	"payment-intent-engine/internal/service"
	"payment-intent-engine/pkg/logger"

	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain an operator token",
		Long: `Exchange operator credentials for a bearer token.

The password is read from stdin unless --password is given. The token is
printed on its own line so it can be exported:
  export INTENTCTL_TOKEN=$(intentctl login -u operator < pw.txt)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				pw, err := readLine(cmd)
				if err != nil {
					return err
				}
				password = pw
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			resp, err := newClient().Login(ctx, username, password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
			return err
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "operator", "operator username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print an argon2id hash for auth.password_hash",
		Long: `Read a password from stdin and print its argon2id hash, suitable for
the auth.password_hash setting (PIE_AUTH_PASSWORD_HASH).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readLine(cmd)
			if err != nil {
				return err
			}
			hash, err := service.NewArgon2HashService().Hash(pw)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func migrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate [up|down|status|version|redo|reset]",
		Short: "Run database migrations",
		Long: `Run the embedded schema migrations against the database named in the
engine configuration (database.* or PIE_DATABASE_* variables).`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "version", "redo", "reset"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level, true)

			ctx, cancel := context.WithTimeout(cmd.Context(), globalFlags.timeout)
			defer cancel()

			pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			return pgStorage.RunMigrations(ctx, pool, command, log)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "engine config file")
	return cmd
}

func readLine(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
