package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-lynx/vectorium/admin"
	"github.com/go-lynx/vectorium/cmd/vectorium/internal/base"
)

var (
	subject string
	secret  string
	ttl     time.Duration
)

// CmdToken issues a bearer token for the admin API.
var CmdToken = &cobra.Command{
	Use:     "token",
	Short:   "Issue a bearer token for the admin API",
	Example: `  vectorium token --subject ops --ttl 24h`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key := secret
		if key == "" {
			cfg, _, err := base.LoadConfig()
			if err != nil {
				return err
			}
			key = cfg.Admin.JWTSecret
		}
		if key == "" {
			return errors.New("no secret: set admin.jwtSecret or pass --secret")
		}
		tok, err := admin.IssueToken(key, subject, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	CmdToken.Flags().StringVarP(&subject, "subject", "s", "admin", "token subject")
	CmdToken.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to admin.jwtSecret)")
	CmdToken.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime (0 for no expiry)")
}
