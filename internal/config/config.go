// Package config loads the bot content configuration: menus, link catalogue,
// report locations, the contact tree and remote API endpoints.
//
// Defaults reproduce the production content; a YAML file may override any of
// it and environment variables override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete content configuration.
type Config struct {
	DoneWord   string          `yaml:"done_word"`
	LatestWord string          `yaml:"latest_word"`
	Links      LinksConfig     `yaml:"links"`
	Reports    ReportsConfig   `yaml:"reports"`
	Contacts   ContactsConfig  `yaml:"contacts"`
	Stocks     StocksConfig    `yaml:"stocks"`
	Autoreply  AutoreplyConfig `yaml:"autoreply"`
	Graph      GraphConfig     `yaml:"graph"`
}

// LinkTopic is one entry of the useful links catalogue.
type LinkTopic struct {
	Topic string `yaml:"topic"`
	Link  string `yaml:"link"`
}

// LinksConfig configures the links dialog.
type LinksConfig struct {
	MaxSelections int         `yaml:"max_selections"`
	Topics        []LinkTopic `yaml:"topics"`
}

// ReportChannel maps a menu label to the file name prefix of its reports.
type ReportChannel struct {
	Label  string `yaml:"label"`
	Prefix string `yaml:"prefix"`
}

// ReportsConfig locates the report files.
type ReportsConfig struct {
	SiteID   string          `yaml:"site_id"`
	DriveID  string          `yaml:"drive_id"`
	Channels []ReportChannel `yaml:"channels"`
}

// ContactsConfig locates the contact tree.
type ContactsConfig struct {
	SiteID      string   `yaml:"site_id"`
	DriveID     string   `yaml:"drive_id"`
	TreePath    string   `yaml:"tree_path"`
	Departments []string `yaml:"departments"`
	LeafMarker  string   `yaml:"leaf_marker"`
}

// StocksConfig configures the quote source.
type StocksConfig struct {
	Ticker  string `yaml:"ticker"`
	BaseURL string `yaml:"base_url"`
	Range   string `yaml:"range"`
}

// AutoreplyConfig holds mailbox settings applied with every autoreply.
type AutoreplyConfig struct {
	TimeZone  string `yaml:"time_zone"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
}

// GraphConfig configures the directory API client. Secrets are only read
// from the environment.
type GraphConfig struct {
	BaseURL      string `yaml:"base_url"`
	BetaURL      string `yaml:"beta_url"`
	TokenURL     string `yaml:"token_url"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"-"`
	StaticToken  string `yaml:"-"`
}

// DefaultConfig returns the built-in content.
func DefaultConfig() *Config {
	return &Config{
		DoneWord:   "завершить",
		LatestWord: "свежий",
		Links: LinksConfig{
			MaxSelections: 3,
			Topics: []LinkTopic{
				{Topic: "Вопрос по статьям затрат", Link: "[Справка по статьям затрат](https://vk.com/feed)"},
				{Topic: "Вопрос по командировочным документам", Link: "[Формы командировочных документов](https://www.google.com)"},
				{Topic: "Вопрос по процедуре списания", Link: "[Инструкция по списанию ТМЦ](https://www.kinopoisk.ru)"},
			},
		},
		Reports: ReportsConfig{
			SiteID:  "tikkurila.sharepoint.com,a6aa1089-0ccd-4edc-be69-03d4dc4aabc2,a5a516d4-962c-4663-89e8-424aabecfcf8",
			DriveID: "b!iRCqps0M3E6-aQPU3EqrwtQWpaUslmNGiehCSqvs_PgkFFzTCYK_Sa7Y0KpehzLj",
			Channels: []ReportChannel{
				{Label: "Деко", Prefix: "Deco"},
				{Label: "Индастри", Prefix: "Industry"},
			},
		},
		Contacts: ContactsConfig{
			SiteID:      "tikkurila.sharepoint.com,a6aa1089-0ccd-4edc-be69-03d4dc4aabc2,a5a516d4-962c-4663-89e8-424aabecfcf8",
			DriveID:     "b!iRCqps0M3E6-aQPU3EqrwtQWpaUslmNGiehCSqvs_PjR9APmWaAIRJ2s7cN4zjqu",
			TreePath:    "FunctionalAreas/selector_dialog_tree.json",
			Departments: []string{"ФАО", "Бухгалтерия"},
			LeafMarker:  "@tikkurila.com",
		},
		Stocks: StocksConfig{
			Ticker:  "TIK1V.HE",
			BaseURL: "https://query1.finance.yahoo.com",
			Range:   "2d",
		},
		Autoreply: AutoreplyConfig{
			TimeZone:  "Russian Standard Time",
			StartTime: "07:00:00",
			EndTime:   "23:59:00",
		},
		Graph: GraphConfig{
			BaseURL:  "https://graph.microsoft.com/v1.0",
			BetaURL:  "https://graph.microsoft.com/beta",
			TokenURL: "https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_ACCESS_TOKEN"); v != "" {
		c.Graph.StaticToken = v
	}
	if v := os.Getenv("GRAPH_BASE_URL"); v != "" {
		c.Graph.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("STOCKS_TICKER"); v != "" {
		c.Stocks.Ticker = v
	}
	if v := os.Getenv("STOCKS_BASE_URL"); v != "" {
		c.Stocks.BaseURL = strings.TrimRight(v, "/")
	}
}

// Validate checks the parts of the content every dialog relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DoneWord) == "" {
		return fmt.Errorf("done_word must not be empty")
	}
	if c.Links.MaxSelections < 1 {
		return fmt.Errorf("links.max_selections must be positive, got %d", c.Links.MaxSelections)
	}
	if len(c.Links.Topics) == 0 {
		return fmt.Errorf("links.topics must not be empty")
	}
	if len(c.Reports.Channels) == 0 {
		return fmt.Errorf("reports.channels must not be empty")
	}
	for _, ch := range c.Reports.Channels {
		if ch.Label == "" || ch.Prefix == "" {
			return fmt.Errorf("report channel needs label and prefix: %+v", ch)
		}
	}
	if c.Contacts.LeafMarker == "" {
		return fmt.Errorf("contacts.leaf_marker must not be empty")
	}
	return nil
}

// HasGraphCredentials reports whether the directory client can authenticate.
func (c *Config) HasGraphCredentials() bool {
	if c.Graph.StaticToken != "" {
		return true
	}
	return c.Graph.TenantID != "" && c.Graph.ClientID != "" && c.Graph.ClientSecret != ""
}

// TokenEndpoint returns the OAuth2 token URL of the configured tenant.
func (c *Config) TokenEndpoint() string {
	if strings.Contains(c.Graph.TokenURL, "%s") {
		return fmt.Sprintf(c.Graph.TokenURL, c.Graph.TenantID)
	}
	return c.Graph.TokenURL
}
