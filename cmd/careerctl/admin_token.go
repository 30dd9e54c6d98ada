package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ping-media/ai-career-counselor-api/internal/config"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/api"
)

func newAdminTokenCmd() *cobra.Command {
	var (
		secret     string
		configPath string
		subject    string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Mint an admin token for the raw history endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("ADMIN_JWT_SECRET")
			}
			if secret == "" && configPath != "" {
				cfg, err := config.Load(configPath, false)
				if err != nil {
					return err
				}
				secret = cfg.Admin.JWTSecret
				if ttl == 0 {
					ttl = cfg.Admin.TokenTTL
				}
			}
			if secret == "" {
				return errors.New("no secret: pass --secret, set ADMIN_JWT_SECRET or point --config at a config with admin.jwt_secret")
			}
			tok, err := api.NewAuthManager(secret, ttl).Mint(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (admin.jwt_secret)")
	cmd.Flags().StringVar(&configPath, "config", "", "read the secret from this config file")
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default 24h)")
	return cmd
}
