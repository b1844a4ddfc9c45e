package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sunvolt/loginguard/internal/models"
	"github.com/sunvolt/loginguard/internal/services"
)

const commandTimeout = 30 * time.Second

func newRootCmd(b backend) *cobra.Command {
	root := &cobra.Command{
		Use:           "guardctl",
		Short:         "Operator CLI for loginguard",
		SilenceUsage:  true,
	}

	root.AddCommand(
		newMigrateCmd(b),
		newLedgerCmd(b),
		newPolicyCmd(b),
		newUserCmd(b),
	)
	return root
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), commandTimeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCmd(b backend) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			if err := b.Migrate(ctx); err != nil {
				return err
			}
			v, err := b.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			v, err := b.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", v)
			return nil
		},
	})
	return migrateCmd
}

// ledgerView is the operator-facing view of one client's ledger
type ledgerView struct {
	ClientID          string     `json:"clientId"`
	Attempts          int        `json:"attempts"`
	AttemptsRemaining int        `json:"attemptsRemaining"`
	Locked            bool       `json:"locked"`
	LockoutUntil      *time.Time `json:"lockoutUntil,omitempty"`
	MinutesRemaining  int        `json:"minutesRemaining,omitempty"`
}

func newLedgerCmd(b backend) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or clear a client's failed-login record",
	}

	var clientID string

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show a client's attempt count and lockout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			kv, err := b.KV(ctx)
			if err != nil {
				return err
			}
			policy, err := b.Policy(ctx)
			if err != nil {
				return err
			}

			rec, err := services.NewKVLedgerStore(kv.ForClient(clientID)).Read(ctx)
			if err != nil {
				return err
			}
			current := policy.Current()
			if rec == nil {
				open := models.OpenRecord(current.MaxLoginAttempts)
				rec = &open
			}
			rec.MaxAttempts = current.MaxLoginAttempts

			now := time.Now()
			view := ledgerView{
				ClientID:          clientID,
				Attempts:          rec.Attempts,
				AttemptsRemaining: models.AttemptsRemaining(*rec),
				Locked:            models.IsLockedAt(*rec, now),
				MinutesRemaining:  models.RemainingMinutes(*rec, now),
			}
			if view.Locked {
				view.LockoutUntil = rec.LockoutUntil
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove a client's record, lifting any lockout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			kv, err := b.KV(ctx)
			if err != nil {
				return err
			}
			if err := services.NewKVLedgerStore(kv.ForClient(clientID)).Remove(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ledger cleared for %s\n", clientID)
			return nil
		},
	}

	for _, c := range []*cobra.Command{showCmd, clearCmd} {
		c.Flags().StringVar(&clientID, "client", "", "client id (the lg_client cookie value)")
		_ = c.MarkFlagRequired("client")
	}

	ledgerCmd.AddCommand(showCmd, clearCmd)
	return ledgerCmd
}

func newPolicyCmd(b backend) *cobra.Command {
	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Read or change the login security policy",
	}

	policyCmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the active policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			p, err := b.Policy(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p.Current())
		},
	})

	var (
		maxAttempts    int
		lockoutMinutes float64
		captcha        bool
		sessionTimeout float64
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change policy fields; unset flags keep their current value",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			p, err := b.Policy(ctx)
			if err != nil {
				return err
			}

			next := p.Current()
			flags := cmd.Flags()
			if flags.Changed("max-attempts") {
				next.MaxLoginAttempts = maxAttempts
			}
			if flags.Changed("lockout-minutes") {
				next.LockoutDurationMinutes = lockoutMinutes
			}
			if flags.Changed("captcha") {
				next.CaptchaEnabled = captcha
			}
			if flags.Changed("session-timeout") {
				next.SessionTimeoutMinutes = sessionTimeout
			}

			updated, err := p.Update(ctx, next)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), updated)
		},
	}
	setCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "failed attempts before lockout")
	setCmd.Flags().Float64Var(&lockoutMinutes, "lockout-minutes", 0, "lockout duration in minutes")
	setCmd.Flags().BoolVar(&captcha, "captcha", false, "require the verification image before login")
	setCmd.Flags().Float64Var(&sessionTimeout, "session-timeout", 0, "idle session lifetime in minutes")

	policyCmd.AddCommand(setCmd)
	return policyCmd
}

func newUserCmd(b backend) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts that can sign in",
	}

	var acct services.NewAccount
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account (password from GUARDCTL_PASSWORD when --password is omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			if acct.Password == "" {
				acct.Password = os.Getenv("GUARDCTL_PASSWORD")
			}

			accounts, err := b.Accounts(ctx)
			if err != nil {
				return err
			}
			user, err := accounts.CreateAccount(ctx, acct)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.Email, user.Role, user.ID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&acct.Email, "email", "", "account email")
	createCmd.Flags().StringVar(&acct.Name, "name", "", "display name")
	createCmd.Flags().StringVar(&acct.Role, "role", "editor", "admin or editor")
	createCmd.Flags().StringVar(&acct.Password, "password", "", "account password")
	_ = createCmd.MarkFlagRequired("email")

	var email, status string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Set an account to active, suspended or disabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			accounts, err := b.Accounts(ctx)
			if err != nil {
				return err
			}
			if err := accounts.SetStatus(ctx, email, status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", email, status)
			return nil
		},
	}
	statusCmd.Flags().StringVar(&email, "email", "", "account email")
	statusCmd.Flags().StringVar(&status, "set", "", "active, suspended or disabled")
	_ = statusCmd.MarkFlagRequired("email")
	_ = statusCmd.MarkFlagRequired("set")

	userCmd.AddCommand(createCmd, statusCmd)
	return userCmd
}
