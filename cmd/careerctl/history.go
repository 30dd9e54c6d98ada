package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		sessionID string
		raw       bool
		token     string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a conversation",
		Long: `Shows the visible conversation of the current session. With --raw the
admin endpoint is used and system instructions are included.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				sessionID = loadSessionID(opts.sessionFile)
			}
			if token == "" {
				token = os.Getenv("CAREERCTL_ADMIN_TOKEN")
			}
			cli := opts.client()

			var (
				h   *historyReply
				err error
			)
			if raw {
				if sessionID == "" {
					return errors.New("--raw needs a session id")
				}
				h, err = cli.FullHistory(cmd.Context(), sessionID, token)
			} else {
				h, err = cli.History(cmd.Context(), sessionID)
			}
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "id", "", "session id (defaults to the saved one)")
	cmd.Flags().BoolVar(&raw, "raw", false, "fetch the full log from the admin endpoint")
	cmd.Flags().StringVar(&token, "token", "", "admin token for --raw (or CAREERCTL_ADMIN_TOKEN)")
	return cmd
}

func printHistory(w io.Writer, h *historyReply) {
	if h.SessionID == nil {
		fmt.Fprintln(w, "No conversation found.")
		return
	}
	head := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s %s\n", head("Session:"), *h.SessionID)
	if h.State != "" {
		fmt.Fprintf(w, "%s %s\n", head("State:"), h.State)
	}
	p := h.UserInfo
	if p.Name != "" || p.Stream != "" || p.SelectedRole != "" {
		fmt.Fprintf(w, "%s name=%q stream=%q role=%q\n", head("Profile:"), p.Name, p.Stream, p.SelectedRole)
	}
	fmt.Fprintln(w)

	roles := map[string]*color.Color{
		"user":      color.New(color.FgGreen, color.Bold),
		"assistant": color.New(color.FgCyan, color.Bold),
		"system":    color.New(color.FgYellow),
	}
	for _, m := range h.Messages {
		c, ok := roles[m.Role]
		if !ok {
			c = color.New(color.Reset)
		}
		c.Fprintf(w, "[%s] %s\n", m.Timestamp.Local().Format("15:04"), m.Role)
		fmt.Fprintln(w, m.Content)
		fmt.Fprintln(w)
	}
}
