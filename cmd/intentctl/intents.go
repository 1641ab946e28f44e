package main

import (
	"context"
	"strings"
	"time"

	"payment-intent-engine/internal/adapter/http/dto"

	"github.com/spf13/cobra"
)

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), globalFlags.timeout)
}

func createCmd() *cobra.Command {
	var req dto.CreateIntentRequest
	var amount string

	cmd := &cobra.Command{
		Use:   "create [description]",
		Short: "Create a payment intent",
		Long: `Create a payment intent from a free-text description.

Explicit flags override anything read from the description. The description
may be omitted when both --amount and --recipient are given.

Examples:
  intentctl create "pay alice 12.5 USDC for the design work"
  intentctl create --amount 0.1 --symbol ETH --recipient 0x7099...79C8`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.Description = args[0]
			}
			req.Amount = dto.Amount(amount)

			ctx, cancel := commandContext(cmd)
			defer cancel()

			intent, err := newClient().CreateIntent(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, intent)
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "decimal amount, e.g. 0.25")
	cmd.Flags().StringVar(&req.Token, "symbol", "", "token symbol (ETH, CRO, USDC)")
	cmd.Flags().StringVar(&req.Recipient, "recipient", "", "recipient address")
	cmd.Flags().StringVar(&req.Urgency, "urgency", "", "low, medium or high")
	return cmd
}

func executeCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "execute <intent-id>",
		Short: "Approve an intent and settle it",
		Long: `Approve a PENDING_APPROVAL intent and wait for settlement.

A failed settlement is not a command error: the intent is printed with
status FAILED and its error code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			intent, err := newClient().ExecuteIntent(ctx, args[0], wait)
			if err != nil {
				return err
			}
			return printJSON(cmd, intent)
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "maximum time the server waits for settlement (0 = server default)")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <intent-id>",
		Short: "Show one intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			intent, err := newClient().GetIntent(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, intent)
		},
	}
}

func listCmd() *cobra.Command {
	var limit int
	var brief bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent intents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			intents, err := newClient().ListIntents(ctx, limit)
			if err != nil {
				return err
			}
			if !brief {
				return printJSON(cmd, intents)
			}

			out := cmd.OutOrStdout()
			for _, in := range intents {
				line := strings.Join([]string{
					in.ID,
					string(in.Status),
					in.Request.Amount.String() + " " + string(in.Request.Token),
					in.Request.Recipient,
				}, "\t")
				if _, err := out.Write([]byte(line + "\n")); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum intents (1-100)")
	cmd.Flags().BoolVar(&brief, "brief", false, "one tab-separated line per intent")
	return cmd
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <intent-id>",
		Short: "Show the audit trail of an intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			records, err := newClient().IntentEvents(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		},
	}
}

func analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show intent statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := newClient().Analytics(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, a)
		},
	}
}

func marketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "market",
		Short: "Show the current market snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			m, err := newClient().Market(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	}
}
