package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pilyavetsb/SecretaryBot/internal/api"
	"github.com/pilyavetsb/SecretaryBot/internal/bot"
	"github.com/pilyavetsb/SecretaryBot/internal/lockfile"
	"github.com/pilyavetsb/SecretaryBot/internal/messaging"
	"github.com/pilyavetsb/SecretaryBot/internal/recovery"
	"github.com/pilyavetsb/SecretaryBot/internal/store"
	"github.com/pilyavetsb/SecretaryBot/internal/twiliowhatsapp"
	"github.com/pilyavetsb/SecretaryBot/internal/whatsapp"
)

// ServeFlags holds the flags of the serve command
type ServeFlags struct {
	apiAddr        string
	useTwilio      bool
	useWhatsApp    bool
	twilioURL      string
	waDSN          string
	qrOutput       string
	numeric        bool
	allowedOrigins []string

	maintenanceInterval time.Duration
	stackMaxIdle        time.Duration
	dedupRetention      time.Duration
}

func newServeCmd(env Config, flags *Flags) *cobra.Command {
	sf := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and messaging transports",
		Long: `Starts the HTTP API (activities, conversations, profiles, web chat) and,
when enabled, the WhatsApp or Twilio WhatsApp transport. Stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("state-dir") && !cmd.Flags().Changed("whatsapp-db-dsn") && env.WhatsAppDBDSN == defaultWhatsAppDSN(env.StateDir) {
				sf.waDSN = defaultWhatsAppDSN(flags.stateDir)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags, sf)
		},
	}

	f := cmd.Flags()
	f.StringVar(&sf.apiAddr, "api-addr", env.APIAddr, "API listen address (overrides $API_ADDR)")
	f.BoolVar(&sf.useTwilio, "twilio", env.UseTwilio, "receive and send WhatsApp messages through Twilio (overrides $USE_TWILIO)")
	f.BoolVar(&sf.useWhatsApp, "whatsapp", env.UseWhatsApp, "connect a WhatsApp account directly (overrides $USE_WHATSAPP)")
	f.StringVar(&sf.twilioURL, "twilio-webhook-url", env.TwilioPublicURL, "public webhook URL; enables signature checks (overrides $TWILIO_WEBHOOK_URL)")
	f.StringVar(&sf.waDSN, "whatsapp-db-dsn", env.WhatsAppDBDSN, "WhatsApp session database (overrides $WHATSAPP_DB_DSN)")
	f.StringVar(&sf.qrOutput, "qr-output", "", "path to write the WhatsApp login QR code")
	f.BoolVar(&sf.numeric, "numeric-code", false, "use a numeric WhatsApp login code instead of a QR code")
	f.StringSliceVar(&sf.allowedOrigins, "allowed-origin", nil, "origin allowed to open the web chat socket (repeatable)")
	f.DurationVar(&sf.maintenanceInterval, "maintenance-interval", recovery.DefaultInterval, "how often stored state is swept")
	f.DurationVar(&sf.stackMaxIdle, "stack-max-idle", recovery.DefaultStackMaxIdle, "drop dialog stacks untouched for this long (0 keeps them)")
	f.DurationVar(&sf.dedupRetention, "dedup-retention", recovery.DefaultDedupRetention, "forget inbound message IDs after this long (0 keeps them)")
	return cmd
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(sf *ServeFlags) []api.Option {
	var apiOpts []api.Option
	if sf.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(sf.apiAddr))
	}
	if len(sf.allowedOrigins) > 0 {
		apiOpts = append(apiOpts, api.WithAllowedOrigins(sf.allowedOrigins...))
	}
	return apiOpts
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(sf *ServeFlags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if sf.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(sf.qrOutput))
	}
	if sf.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if sf.waDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(sf.waDSN))
	}
	return waOpts
}

// buildTwilioOptions enables signature checks when the public URL is known.
func buildTwilioOptions(sf *ServeFlags) []messaging.TwilioOption {
	if sf.twilioURL == "" {
		slog.Warn("TWILIO_WEBHOOK_URL not set, Twilio webhook signatures are not verified")
		return nil
	}
	opts := twiliowhatsapp.OptsFromEnv(twiliowhatsapp.Opts{})
	return []messaging.TwilioOption{messaging.WithSignatureCheck(opts.AuthToken, sf.twilioURL)}
}

// buildMaintenance registers the startup and periodic state repairs.
func buildMaintenance(b *bot.Bot, st store.Store, sf *ServeFlags) *recovery.RecoveryManager {
	rm := recovery.NewRecoveryManager(st)
	rm.RegisterRecoverable(recovery.NewStackSweeper(b.Dialogs(), b, sf.stackMaxIdle))
	rm.RegisterRecoverable(recovery.NewDedupPurger(sf.dedupRetention))
	return rm
}

func runServe(ctx context.Context, flags *Flags, sf *ServeFlags) error {
	if sf.useTwilio && sf.useWhatsApp {
		return errors.New("--twilio and --whatsapp are mutually exclusive")
	}

	lock, err := lockfile.Acquire(flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := openStore(flags.dbDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	b, err := buildBot(flags, st)
	if err != nil {
		return err
	}

	apiOpts := buildAPIOptions(sf)
	var tr transport
	switch {
	case sf.useTwilio:
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return fmt.Errorf("twilio client: %w", err)
		}
		svc := messaging.NewTwilioService(client, buildTwilioOptions(sf)...)
		apiOpts = append(apiOpts, api.WithTwilioWebhook(http.HandlerFunc(svc.TwilioWebhookHandler)))
		tr = transport{channelID: "twilio", svc: svc}
	case sf.useWhatsApp:
		client, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(sf)...)
		if err != nil {
			return fmt.Errorf("whatsapp client: %w", err)
		}
		defer client.Close()
		tr = transport{channelID: "whatsapp", svc: messaging.NewWhatsAppService(client)}
	}

	maintenance := buildMaintenance(b, st, sf)
	if err := maintenance.RecoverAll(ctx); err != nil {
		slog.Warn("Startup recovery incomplete", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return maintenance.Run(gctx, sf.maintenanceInterval)
	})
	if tr.svc != nil {
		if err := startTransport(gctx, g, b, st, tr); err != nil {
			return err
		}
	}
	server := api.NewServer(b, st, apiOpts...)
	g.Go(func() error {
		return server.Run(gctx)
	})

	slog.Info("SecretaryBot serving", "transport", tr.channelID)
	if err := g.Wait(); err != nil {
		slog.Error("SecretaryBot stopped with error", "error", err)
		return err
	}
	slog.Info("SecretaryBot exited successfully")
	return nil
}

type transport struct {
	channelID string
	svc       messaging.Service
}

// startTransport starts t and feeds its messages to b until ctx ends.
func startTransport(ctx context.Context, g *errgroup.Group, b *bot.Bot, st store.Store, t transport) error {
	if err := t.svc.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", t.channelID, err)
	}
	handler := messaging.NewResponseHandler(t.channelID, b, t.svc, messaging.WithReceiptRecorder(st))
	g.Go(func() error {
		defer t.svc.Stop()
		return handler.Run(ctx)
	})
	return nil
}
