// Package tokencmder provides the token command for minting development
// tenant tokens.
package tokencmder

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dialhaven/recall/pkg/cliui"
	"github.com/dialhaven/recall/pkg/config"
	"github.com/dialhaven/recall/pkg/tenant"
)

const tokenLongDesc string = `Mint a signed tenant bearer token for local development.

The token is signed with auth.secret from the resolved configuration
(config.toml, RECALL_AUTH_SECRET, or --secret) and names the given
tenant. Production tokens come from the token-issuing authority, not
from this command.

Examples:
  recall token dentist-main-st
  recall token plumber-oakvale --ttl 48h`

const tokenShortDesc string = "Mint a development tenant token"

func NewTokenCmd() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <tenant-id>",
		Short: tokenShortDesc,
		Long:  tokenLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runToken(args[0], secret, ttl, configDir)
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to auth.secret from config)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}

func runToken(tenantID, secret string, ttl time.Duration, configDir string) error {
	if secret == "" {
		v, err := config.InitViper(configDir)
		if err != nil {
			return err
		}
		secret = v.GetString("auth.secret")
	}

	if secret == "" {
		return errors.New("no signing secret: set auth.secret or pass --secret")
	}

	token, err := tenant.Issue([]byte(secret), tenant.ID(tenantID), ttl)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}

	fmt.Printf("\n  %s %s\n  %s %s\n\n  %s\n\n",
		cliui.KeyStyle.Render("Tenant:"),
		cliui.ValueStyle.Render(tenantID),
		cliui.KeyStyle.Render("Expires:"),
		cliui.DimStyle.Render(time.Now().Add(ttl).Format(time.RFC3339)),
		token,
	)

	return nil
}
