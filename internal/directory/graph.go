package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Graph API defaults.
const (
	DefaultBaseURL   = "https://graph.microsoft.com/v1.0"
	DefaultBetaURL   = "https://graph.microsoft.com/beta"
	DefaultTimeZone  = "Russian Standard Time"
	DefaultStartTime = "07:00:00"
	DefaultEndTime   = "23:59:00"
	// DefaultTimeout bounds every request to the API.
	DefaultTimeout = 30 * time.Second
	// GraphScope is the client credentials scope for the Graph API.
	GraphScope = "https://graph.microsoft.com/.default"
	// maxErrorBody limits how much of an error response is logged.
	maxErrorBody = 512
)

// Opts holds configuration options for the Graph client.
type Opts struct {
	HTTPClient  *http.Client
	TokenSource oauth2.TokenSource
	BaseURL     string
	BetaURL     string
	TimeZone    string
	StartTime   string
	EndTime     string
}

// Option defines a functional option for configuring the Graph client.
type Option func(*Opts)

// WithHTTPClient sets the HTTP client. It is used as is, so it must already
// authenticate its requests unless a token source is also given.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithTokenSource sets the OAuth2 token source used for every request.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(o *Opts) { o.TokenSource = ts }
}

// WithStaticToken authenticates every request with a fixed bearer token.
func WithStaticToken(token string) Option {
	return WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
}

// WithClientCredentials authenticates as an application through the client
// credentials flow.
func WithClientCredentials(clientID, clientSecret, tokenURL string) Option {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{GraphScope},
	}
	return WithTokenSource(cfg.TokenSource(context.Background()))
}

// WithBaseURLs overrides the v1.0 and beta endpoints.
func WithBaseURLs(base, beta string) Option {
	return func(o *Opts) {
		o.BaseURL = base
		o.BetaURL = beta
	}
}

// WithMailboxSchedule sets the time zone and day bounds of autoreplies.
func WithMailboxSchedule(timeZone, start, end string) Option {
	return func(o *Opts) {
		o.TimeZone = timeZone
		o.StartTime = start
		o.EndTime = end
	}
}

// GraphClient implements Directory against Microsoft Graph.
type GraphClient struct {
	http      *http.Client
	baseURL   string
	betaURL   string
	timeZone  string
	startTime string
	endTime   string
}

var _ Directory = (*GraphClient)(nil)

// NewGraphClient creates a Graph-backed directory client.
func NewGraphClient(opts ...Option) *GraphClient {
	cfg := Opts{
		BaseURL:   DefaultBaseURL,
		BetaURL:   DefaultBetaURL,
		TimeZone:  DefaultTimeZone,
		StartTime: DefaultStartTime,
		EndTime:   DefaultEndTime,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.TokenSource != nil {
		httpClient = &http.Client{
			Timeout: httpClient.Timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.ReuseTokenSource(nil, cfg.TokenSource),
				Base:   httpClient.Transport,
			},
		}
	}
	slog.Debug("GraphClient created", "baseURL", cfg.BaseURL, "authenticated", cfg.TokenSource != nil)

	return &GraphClient{
		http:      httpClient,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		betaURL:   strings.TrimRight(cfg.BetaURL, "/"),
		timeZone:  cfg.TimeZone,
		startTime: cfg.StartTime,
		endTime:   cfg.EndTime,
	}
}

// driveURL builds the address of an item path under a drive root.
func (c *GraphClient) driveURL(siteID, driveID, itemPath string) string {
	return fmt.Sprintf("%s/sites/%s/drives/%s/root:/%s", c.baseURL, siteID, driveID, strings.TrimLeft(itemPath, "/"))
}

func (c *GraphClient) userURL(base, email, suffix string) string {
	return base + "/users/" + url.PathEscape(email) + suffix
}

// do performs a request and returns the body when the status matches want.
func (c *GraphClient) do(ctx context.Context, method, endpoint string, payload any, want int) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRemoteUnavailable, err)
	}
	if resp.StatusCode != want {
		snippet := data
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		slog.Debug("GraphClient unexpected status", "method", method, "url", endpoint, "status", resp.StatusCode, "body", string(snippet))
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
		}
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrRemoteUnavailable, method, endpoint, resp.StatusCode)
	}
	return data, nil
}

// DownloadFile returns the content of the file at path.
func (c *GraphClient) DownloadFile(ctx context.Context, siteID, driveID, path string) ([]byte, error) {
	data, err := c.do(ctx, http.MethodGet, c.driveURL(siteID, driveID, path)+":/content", nil, http.StatusOK)
	if err != nil {
		slog.Error("GraphClient DownloadFile failed", "path", path, "error", err)
		return nil, err
	}
	return data, nil
}

// ListLatest returns the name of the item in folder whose Latest column is set.
func (c *GraphClient) ListLatest(ctx context.Context, siteID, driveID, folder string) (string, error) {
	endpoint := c.driveURL(siteID, driveID, folder) + ":/children?$expand=listItem($expand=fields($select=Latest))"
	data, err := c.do(ctx, http.MethodGet, endpoint, nil, http.StatusOK)
	if err != nil {
		slog.Error("GraphClient ListLatest failed", "folder", folder, "error", err)
		return "", err
	}
	var latest string
	gjson.GetBytes(data, "value").ForEach(func(_, item gjson.Result) bool {
		if item.Get("listItem.fields.Latest").Bool() {
			latest = item.Get("name").String()
			return false
		}
		return true
	})
	if latest == "" {
		return "", fmt.Errorf("%w: no latest file in %s", ErrNotFound, folder)
	}
	return latest, nil
}

// downloadURLKey is the annotation carrying a pre-authenticated download link.
const downloadURLKey = "@microsoft.graph.downloadUrl"

// ResolveLinks maps names found in folder to their download URLs.
func (c *GraphClient) ResolveLinks(ctx context.Context, siteID, driveID, folder string, names []string) (map[string]string, error) {
	endpoint := c.driveURL(siteID, driveID, folder) + ":/children?$expand=listItem"
	data, err := c.do(ctx, http.MethodGet, endpoint, nil, http.StatusOK)
	if err != nil {
		slog.Error("GraphClient ResolveLinks failed", "folder", folder, "error", err)
		return nil, err
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	links := make(map[string]string)
	gjson.GetBytes(data, "value").ForEach(func(_, item gjson.Result) bool {
		name := item.Get("name").String()
		if !wanted[name] {
			return true
		}
		// annotation keys start with '@', which gjson paths treat as modifiers
		item.ForEach(func(key, value gjson.Result) bool {
			if key.String() == downloadURLKey {
				links[name] = value.String()
				return false
			}
			return true
		})
		return true
	})
	return links, nil
}

// GetUserSummary returns name, title and email, with NotAvailable for
// anything the directory does not know.
func (c *GraphClient) GetUserSummary(ctx context.Context, email string) UserSummary {
	data, err := c.do(ctx, http.MethodGet, c.userURL(c.baseURL, email, "?$select=displayName,jobTitle"), nil, http.StatusOK)
	if err != nil {
		slog.Warn("GraphClient GetUserSummary degraded", "email", email, "error", err)
		return UserSummary{Name: NotAvailable, Title: NotAvailable, Email: NotAvailable}
	}
	s := UserSummary{
		Name:  gjson.GetBytes(data, "displayName").String(),
		Title: gjson.GetBytes(data, "jobTitle").String(),
		Email: email,
	}
	if s.Name == "" {
		s.Name = NotAvailable
	}
	if s.Title == "" {
		s.Title = NotAvailable
	}
	return s
}

// GetManagerName returns the manager's display name or NotAvailable.
func (c *GraphClient) GetManagerName(ctx context.Context, email string) string {
	data, err := c.do(ctx, http.MethodGet, c.userURL(c.baseURL, email, "/manager"), nil, http.StatusOK)
	if err != nil {
		slog.Warn("GraphClient GetManagerName degraded", "email", email, "error", err)
		return NotAvailable
	}
	name := gjson.GetBytes(data, "displayName").String()
	if name == "" {
		return NotAvailable
	}
	return name
}

// GetPresence returns "availability, activity" or NoInfo.
func (c *GraphClient) GetPresence(ctx context.Context, email string) string {
	data, err := c.do(ctx, http.MethodGet, c.userURL(c.betaURL, email, "/presence"), nil, http.StatusOK)
	if err != nil {
		slog.Warn("GraphClient GetPresence degraded", "email", email, "error", err)
		return NoInfo
	}
	availability := gjson.GetBytes(data, "availability")
	activity := gjson.GetBytes(data, "activity")
	if !availability.Exists() || !activity.Exists() {
		return NoInfo
	}
	return availability.String() + ", " + activity.String()
}

// GetAutoreplyEndDate returns the scheduled end of the person's automatic
// replies as dd.mm.yyyy, or "" when none is scheduled.
func (c *GraphClient) GetAutoreplyEndDate(ctx context.Context, email string) string {
	payload := map[string]any{
		"EmailAddresses":  []string{email},
		"MailTipsOptions": "automaticReplies, mailboxFullStatus",
	}
	data, err := c.do(ctx, http.MethodPost, c.userURL(c.baseURL, email, "/getMailTips"), payload, http.StatusOK)
	if err != nil {
		slog.Warn("GraphClient GetAutoreplyEndDate degraded", "email", email, "error", err)
		return ""
	}
	raw := gjson.GetBytes(data, "value.0.automaticReplies.scheduledEndTime.dateTime").String()
	if raw == "" {
		return ""
	}
	day, _, _ := strings.Cut(raw, "T")
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return ""
	}
	return t.Format("02.01.2006")
}

// GetProfilePhoto returns the person's photo as a data URI. It prefers the
// stored 96x96 rendition, falls back to resizing the full photo, and finally
// to the placeholder.
func (c *GraphClient) GetProfilePhoto(ctx context.Context, email string) string {
	if data, err := c.do(ctx, http.MethodGet, c.userURL(c.baseURL, email, "/photos/96x96/$value"), nil, http.StatusOK); err == nil {
		return dataURI(http.DetectContentType(data), data)
	}
	data, err := c.do(ctx, http.MethodGet, c.userURL(c.baseURL, email, "/photo/$value"), nil, http.StatusOK)
	if err != nil {
		slog.Debug("GraphClient GetProfilePhoto: using placeholder", "email", email, "error", err)
		return PlaceholderPhoto()
	}
	fitted, err := fitPhoto(data)
	if err != nil {
		slog.Warn("GraphClient GetProfilePhoto: resize failed", "email", email, "error", err)
		return PlaceholderPhoto()
	}
	return dataURI("image/jpeg", fitted)
}

type dateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// SetAutoreply schedules internal automatic replies between the two dates.
func (c *GraphClient) SetAutoreply(ctx context.Context, a Autoreply) error {
	payload := map[string]any{
		"automaticRepliesSetting": map[string]any{
			"status":                 "scheduled",
			"internalReplyMessage":   a.Message,
			"scheduledStartDateTime": dateTimeZone{a.StartDate + "T" + c.startTime, c.timeZone},
			"scheduledEndDateTime":   dateTimeZone{a.EndDate + "T" + c.endTime, c.timeZone},
		},
	}
	if _, err := c.do(ctx, http.MethodPatch, c.userURL(c.baseURL, a.Email, "/mailboxSettings"), payload, http.StatusOK); err != nil {
		slog.Error("GraphClient SetAutoreply failed", "email", a.Email, "error", err)
		return fmt.Errorf("set autoreply for %s: %w", a.Email, err)
	}
	slog.Info("GraphClient SetAutoreply succeeded", "email", a.Email, "start", a.StartDate, "end", a.EndDate)
	return nil
}

// SetOutOfOfficeEvent creates an all-day out-of-office calendar event.
func (c *GraphClient) SetOutOfOfficeEvent(ctx context.Context, o OutOfOffice) error {
	payload := map[string]any{
		"subject":  o.Subject,
		"start":    dateTimeZone{o.StartDate + "T00:00:00", c.timeZone},
		"end":      dateTimeZone{o.EndDate + "T00:00:00", c.timeZone},
		"showAs":   "oof",
		"isAllDay": true,
	}
	if _, err := c.do(ctx, http.MethodPost, c.userURL(c.baseURL, o.Email, "/events"), payload, http.StatusCreated); err != nil {
		slog.Error("GraphClient SetOutOfOfficeEvent failed", "email", o.Email, "error", err)
		return fmt.Errorf("set out of office for %s: %w", o.Email, err)
	}
	return nil
}
