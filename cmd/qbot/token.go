package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/qbot/internal/access"
	"github.com/suPer8Hu/qbot/internal/auth"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		userID int64
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API token (defaults to the owner)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.AdminJWTSecret == "" {
				return errors.New("ADMIN_JWT_SECRET is not set")
			}
			if userID == 0 {
				owner, ok := access.NewGate(access.ParseIDs(cfg.AllowedUsers), nil, nil).Owner()
				if !ok {
					return errors.New("no owner: set ALLOWED_USERS or pass --user")
				}
				userID = owner
			}
			tok, err := auth.IssueToken(cfg.AdminJWTSecret, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram user id to put in the token subject.")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime.")
	return cmd
}
