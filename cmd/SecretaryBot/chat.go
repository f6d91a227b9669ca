package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pilyavetsb/SecretaryBot/internal/messaging"
	"github.com/pilyavetsb/SecretaryBot/internal/store"
)

// consoleChannelID names console conversations.
const consoleChannelID = "console"

func newChatCmd(flags *Flags) *cobra.Command {
	var user string
	var persist bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot in this terminal",
		Long: `Runs one conversation over standard input and output. State is kept in
memory unless --persist is given, in which case --db-dsn is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn := ""
			if persist {
				dsn = flags.dbDSN
			}
			st, err := openStore(dsn)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runChat(ctx, flags, st, user, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&user, "user", defaultConsoleUser(), "sender identity of typed messages")
	cmd.Flags().BoolVar(&persist, "persist", false, "keep dialog state and profiles in --db-dsn")
	return cmd
}

func defaultConsoleUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "console"
}

// runChat runs the console conversation until the input ends or ctx is
// cancelled.
func runChat(ctx context.Context, flags *Flags, st store.Store, user string, in io.Reader, out io.Writer) error {
	b, err := buildBot(flags, st)
	if err != nil {
		return err
	}
	svc := messaging.NewConsoleService(in, out, user)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	handler := messaging.NewResponseHandler(consoleChannelID, b, svc, messaging.WithReceiptRecorder(st))
	if err := handler.Run(ctx); err != nil {
		return err
	}
	slog.Debug("console chat finished", "user", user)
	return nil
}
