package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start or resume a conversation",
		Long: `Reads lines from stdin and sends each as a turn. The session id is kept
in --session-file so the next run resumes the conversation.

Type /new to start over, exit to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), cmd, opts, fresh)
		},
	}
	cmd.Flags().BoolVar(&fresh, "new", false, "start a new session instead of resuming")
	return cmd
}

func runChat(ctx context.Context, cmd *cobra.Command, opts *rootOptions, fresh bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	cli := opts.client()
	you := color.New(color.FgGreen, color.Bold).SprintFunc()
	bot := color.New(color.FgCyan, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	sessionID := loadSessionID(opts.sessionFile)
	if fresh {
		id, err := cli.NewSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("new session: %w", err)
		}
		sessionID = id
		if err := saveSessionID(opts.sessionFile, id); err != nil {
			return err
		}
	}
	if sessionID != "" {
		fmt.Fprintln(out, dim("session "+sessionID))
	}
	fmt.Fprintln(out, dim("Type your message and press Enter. Type 'exit' to quit, '/new' to start over."))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, you("You: "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/new":
			id, err := cli.NewSession(ctx, sessionID)
			if err != nil {
				color.New(color.FgRed).Fprintf(out, "Error: %v\n", err)
				continue
			}
			sessionID = id
			if err := saveSessionID(opts.sessionFile, id); err != nil {
				return err
			}
			fmt.Fprintln(out, dim("new session "+id))
			continue
		}

		reply, err := cli.Chat(ctx, sessionID, line)
		if err != nil {
			color.New(color.FgRed).Fprintf(out, "Error: %v\n", err)
			continue
		}
		if reply.SessionID != sessionID {
			sessionID = reply.SessionID
			if err := saveSessionID(opts.sessionFile, sessionID); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "%s %s\n\n", bot("Counselor:"), reply.Response)
	}
}
