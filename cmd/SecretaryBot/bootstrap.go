package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pilyavetsb/SecretaryBot/internal/bot"
	"github.com/pilyavetsb/SecretaryBot/internal/config"
	"github.com/pilyavetsb/SecretaryBot/internal/dialog"
	"github.com/pilyavetsb/SecretaryBot/internal/dialogs"
	"github.com/pilyavetsb/SecretaryBot/internal/directory"
	"github.com/pilyavetsb/SecretaryBot/internal/genai"
	"github.com/pilyavetsb/SecretaryBot/internal/quotes"
	"github.com/pilyavetsb/SecretaryBot/internal/store"
)

// openStore opens the application store. An empty DSN selects the in-memory
// store.
func openStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "sqlite3" {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
		slog.Debug("Detected SQLite DSN", "db_path", dsn)
	} else {
		slog.Debug("Detected PostgreSQL DSN", "dsn_set", true)
	}
	return store.Open(dsn)
}

// buildDirectory returns the Graph client, or an empty mock when no
// credentials are configured.
func buildDirectory(cfg *config.Config) directory.Directory {
	if !cfg.HasGraphCredentials() {
		slog.Warn("Graph credentials not configured, reports, contacts and autoreplies will not reach Microsoft 365")
		return directory.NewMockClient()
	}
	opts := []directory.Option{
		directory.WithBaseURLs(cfg.Graph.BaseURL, cfg.Graph.BetaURL),
		directory.WithMailboxSchedule(cfg.Autoreply.TimeZone, cfg.Autoreply.StartTime, cfg.Autoreply.EndTime),
	}
	if cfg.Graph.StaticToken != "" {
		opts = append(opts, directory.WithStaticToken(cfg.Graph.StaticToken))
	} else {
		opts = append(opts, directory.WithClientCredentials(cfg.Graph.ClientID, cfg.Graph.ClientSecret, cfg.TokenEndpoint()))
	}
	return directory.NewGraphClient(opts...)
}

func buildQuotes(cfg *config.Config) quotes.Source {
	return quotes.NewYahooClient(
		quotes.WithBaseURL(cfg.Stocks.BaseURL),
		quotes.WithRange(cfg.Stocks.Range),
	)
}

// buildSetOptions enables the LLM choice matcher when a key is available.
func buildSetOptions(flags *Flags) []dialog.SetOption {
	if flags.openaiKey == "" {
		return nil
	}
	matcher, err := genai.NewClient(genai.WithAPIKey(flags.openaiKey))
	if err != nil {
		slog.Warn("GenAI matcher disabled", "error", err)
		return nil
	}
	slog.Info("GenAI matcher enabled for free-form menu answers")
	return []dialog.SetOption{dialog.WithChoiceMatcher(matcher)}
}

// buildBot loads the content file and wires the dialogs to st.
func buildBot(flags *Flags, st store.Store) (*bot.Bot, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	set, err := dialogs.NewSet(dialogs.Deps{
		Config:    cfg,
		Directory: buildDirectory(cfg),
		Quotes:    buildQuotes(cfg),
		Profiles:  bot.NewStoreBasedStateManager(st),
	}, buildSetOptions(flags)...)
	if err != nil {
		return nil, fmt.Errorf("build dialogs: %w", err)
	}
	return bot.New(set, st)
}

func newInitConfigCmd(flags *Flags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the built-in bot content to the config file",
		Long: `Writes the default links, report channels, contact tree location and
stock settings as YAML to --config so they can be edited.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(flags.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", flags.configPath)
			}
			if err := config.DefaultConfig().Save(flags.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", flags.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
