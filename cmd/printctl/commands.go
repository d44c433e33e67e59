package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remoteprint/remoteprint/internal/auth"
	"github.com/remoteprint/remoteprint/internal/model"
	"github.com/remoteprint/remoteprint/internal/service"
)

func newResetMonthlyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-monthly",
		Short: "Zero every account's monthly print count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(cmd.Context(), func(b backend) error {
				result, err := b.ResetMonthly(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d of %d accounts updated\n",
					result.Message, result.UpdatedUsers, result.TotalUsers)
				return err
			})
		},
	}
}

func newCreateAccountCmd(a *app) *cobra.Command {
	var input service.CreateAccountInput
	var plan string

	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Register a tenant account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input.Plan = model.PlanID(plan)
			return a.withBackend(cmd.Context(), func(b backend) error {
				account, err := b.CreateAccount(cmd.Context(), input)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n",
					account.ID, account.Email, account.Plan.PlanID)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&input.ID, "id", "", "Identity provider user ID (generated when empty)")
	cmd.Flags().StringVar(&input.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&input.CompanyName, "company", "", "Company name")
	cmd.Flags().StringVar(&plan, "plan", string(model.PlanFree), "Plan: free, pro, enterprise")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// createdKey is the JSON form of create-key output.
type createdKey struct {
	AccountID string   `json:"account_id"`
	KeyID     string   `json:"key_id"`
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
}

func newCreateKeyCmd(a *app) *cobra.Command {
	var (
		accountID string
		name      string
		scopes    []string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "create-key",
		Short: "Mint an API key for an account and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "plain" && format != "json" {
				return fmt.Errorf("invalid format %q; use plain or json", format)
			}

			return a.withBackend(cmd.Context(), func(b backend) error {
				created, err := b.CreateAPIKey(cmd.Context(), accountID, service.CreateAPIKeyInput{
					Name:   name,
					Scopes: scopes,
				})
				if err != nil {
					return err
				}

				if format == "plain" {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), created.Plaintext)
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(createdKey{
					AccountID: created.Key.AccountID,
					KeyID:     created.Key.ID,
					Key:       created.Plaintext,
					KeyPrefix: created.Key.KeyPrefix,
					Scopes:    created.Key.Scopes,
				})
			})
		},
	}

	cmd.Flags().StringVar(&accountID, "account-id", "", "Owning account ID")
	cmd.Flags().StringVar(&name, "name", "default", "Key name")
	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "Comma-separated scopes (print,read,admin); default print,read")
	cmd.Flags().StringVar(&format, "format", "plain", "Output format: plain or json")
	_ = cmd.MarkFlagRequired("account-id")

	return cmd
}

func newHashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print an argon2id hash for RESET_TOKEN_HASH",
		Long:  "Hashes the token argument, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					token = scanner.Text()
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read token: %w", err)
				}
			}

			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("token must not be empty")
			}

			hash, err := auth.HashSecret(token)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
