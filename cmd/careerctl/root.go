package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

type rootOptions struct {
	server      string
	sessionFile string
	noColor     bool
	timeout     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "careerctl",
		Short: "Talk to the CareerVerse counselor from your terminal",
		Long: `careerctl is a small client for the CareerVerse counselor API.

Quick Start:
  careerctl chat                   # start or resume a conversation
  careerctl history                # show the visible conversation
  careerctl admin-token --secret … # mint a token for the raw history endpoint`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("CAREERCTL_SERVER", "http://localhost:3000"), "API base URL")
	cmd.PersistentFlags().StringVar(&opts.sessionFile, "session-file", defaultSessionFile(), "file holding the current session id")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 90*time.Second, "per-request timeout")

	cmd.AddCommand(newChatCmd(opts), newHistoryCmd(opts), newAdminTokenCmd())
	return cmd
}

func (o *rootOptions) client() *apiClient {
	return newAPIClient(o.server, o.timeout)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".careerctl-session"
	}
	return filepath.Join(dir, "careerctl", "session")
}

func loadSessionID(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func saveSessionID(path, id string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(id+"\n"), 0o600)
}
