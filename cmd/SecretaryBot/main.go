package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pilyavetsb/SecretaryBot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for SecretaryBot state data
	DefaultStateDir = "/var/lib/secretarybot"
	// DefaultAppDBFileName is the SQLite file of dialog state, profiles and audit
	DefaultAppDBFileName = "secretarybot.db"
	// DefaultWhatsAppDBFileName is the SQLite file of the WhatsApp session
	DefaultWhatsAppDBFileName = "whatsapp.db"
	// DefaultConfigFileName is the content file looked up in the state directory
	DefaultConfigFileName = "bot.yaml"
)

func main() {
	loadDotEnv()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	StateDir         string
	ConfigPath       string
	ApplicationDBDSN string
	WhatsAppDBDSN    string
	OpenAIKey        string
	APIAddr          string
	LogLevel         string
	UseTwilio        bool
	UseWhatsApp      bool
	TwilioPublicURL  string
}

// Flags holds command line flag values shared by all commands
type Flags struct {
	stateDir   string
	configPath string
	dbDSN      string
	openaiKey  string
	logLevel   string
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
}

// loadEnvironmentConfig reads the environment, filling in defaults derived
// from the state directory.
func loadEnvironmentConfig() Config {
	config := Config{
		StateDir:         os.Getenv("SECRETARY_STATE_DIR"),
		ConfigPath:       os.Getenv("SECRETARY_CONFIG"),
		ApplicationDBDSN: os.Getenv("DATABASE_DSN"),
		WhatsAppDBDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		APIAddr:          os.Getenv("API_ADDR"),
		LogLevel:         os.Getenv("SECRETARY_LOG_LEVEL"),
		UseTwilio:        util.ParseBoolEnv("USE_TWILIO", false),
		UseWhatsApp:      util.ParseBoolEnv("USE_WHATSAPP", false),
		TwilioPublicURL:  os.Getenv("TWILIO_WEBHOOK_URL"),
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.ApplicationDBDSN == "" {
		config.ApplicationDBDSN = os.Getenv("DATABASE_URL")
	}
	if config.ApplicationDBDSN == "" {
		config.ApplicationDBDSN = filepath.Join(config.StateDir, DefaultAppDBFileName)
	}
	if config.WhatsAppDBDSN == "" {
		config.WhatsAppDBDSN = defaultWhatsAppDSN(config.StateDir)
	}
	if config.ConfigPath == "" {
		config.ConfigPath = filepath.Join(config.StateDir, DefaultConfigFileName)
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	slog.Debug("environment variables loaded",
		"SECRETARY_STATE_DIR", config.StateDir,
		"SECRETARY_CONFIG", config.ConfigPath,
		"DATABASE_DSN_SET", config.ApplicationDBDSN != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDBDSN != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"USE_TWILIO", config.UseTwilio,
		"USE_WHATSAPP", config.UseWhatsApp)
	return config
}

func defaultWhatsAppDSN(stateDir string) string {
	return "file:" + filepath.Join(stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
}

// initializeLogger installs a text handler at the given level.
func initializeLogger(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return nil
}

func newRootCmd() *cobra.Command {
	env := loadEnvironmentConfig()
	flags := &Flags{}

	root := &cobra.Command{
		Use:   "secretarybot",
		Short: "Corporate assistant chat bot",
		Long: `SecretaryBot answers colleagues in chat: useful links, Химкурьер reports,
stock quotes, the contacts tree and Outlook autoreplies.

Commands:
  serve - run the HTTP API and the configured messaging transports
  chat  - talk to the bot in this terminal`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeLogger(flags.logLevel); err != nil {
				return err
			}
			// Content file and database follow a moved state directory unless set explicitly.
			if cmd.Flags().Changed("state-dir") {
				if !cmd.Flags().Changed("config") && env.ConfigPath == filepath.Join(env.StateDir, DefaultConfigFileName) {
					flags.configPath = filepath.Join(flags.stateDir, DefaultConfigFileName)
				}
				if !cmd.Flags().Changed("db-dsn") && env.ApplicationDBDSN == filepath.Join(env.StateDir, DefaultAppDBFileName) {
					flags.dbDSN = filepath.Join(flags.stateDir, DefaultAppDBFileName)
				}
			}
			slog.Debug("flags parsed",
				"stateDir", flags.stateDir,
				"config", flags.configPath,
				"dbDSN_set", flags.dbDSN != "",
				"openaiKeySet", flags.openaiKey != "")
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.stateDir, "state-dir", env.StateDir, "state directory (overrides $SECRETARY_STATE_DIR)")
	pf.StringVar(&flags.configPath, "config", env.ConfigPath, "bot content file (overrides $SECRETARY_CONFIG)")
	pf.StringVar(&flags.dbDSN, "db-dsn", env.ApplicationDBDSN, "SQLite path or PostgreSQL DSN (overrides $DATABASE_DSN or $DATABASE_URL)")
	pf.StringVar(&flags.openaiKey, "openai-api-key", env.OpenAIKey, "OpenAI key for free-form menu answers (overrides $OPENAI_API_KEY)")
	pf.StringVar(&flags.logLevel, "log-level", env.LogLevel, "debug, info, warn or error (overrides $SECRETARY_LOG_LEVEL)")

	root.AddCommand(newServeCmd(env, flags), newChatCmd(flags), newInitConfigCmd(flags))
	return root
}
