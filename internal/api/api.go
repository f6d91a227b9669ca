// Package api provides the HTTP server of SecretaryBot.
//
// It exposes a synchronous activity endpoint, conversation and profile
// inspection, the Twilio WhatsApp webhook and a websocket web chat.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/pilyavetsb/SecretaryBot/internal/bot"
	"github.com/pilyavetsb/SecretaryBot/internal/store"
)

// DefaultAddr is the listen address unless WithAddr says otherwise.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Opts holds configuration options for the server.
type Opts struct {
	Addr           string
	TwilioWebhook  http.Handler
	AllowedOrigins []string
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithTwilioWebhook mounts h at POST /twilio/whatsapp.
func WithTwilioWebhook(h http.Handler) Option {
	return func(o *Opts) {
		o.TwilioWebhook = h
	}
}

// WithAllowedOrigins lists the origins allowed to open the web chat socket.
// Without it only same-origin requests are accepted.
func WithAllowedOrigins(origins ...string) Option {
	return func(o *Opts) {
		o.AllowedOrigins = origins
	}
}

// Server serves the bot over HTTP.
type Server struct {
	bot      *bot.Bot
	st       store.Store
	addr     string
	router   *mux.Router
	upgrader websocket.Upgrader
	started  time.Time
}

// NewServer creates a server for b. st is the store b was created with.
func NewServer(b *bot.Bot, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		bot:     b,
		st:      st,
		addr:    cfg.Addr,
		started: time.Now(),
	}
	if len(cfg.AllowedOrigins) > 0 {
		allowed := make(map[string]bool, len(cfg.AllowedOrigins))
		for _, o := range cfg.AllowedOrigins {
			allowed[o] = true
		}
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
	s.router = s.routes(cfg.TwilioWebhook)
	return s
}

func (s *Server) routes(twilioWebhook http.Handler) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.messagesHandler).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}", s.getConversationHandler).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}", s.resetConversationHandler).Methods(http.MethodDelete)
	api.HandleFunc("/conversations/{id}/ws", s.webChatHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/profile", s.profileHandler).Methods(http.MethodGet)
	api.HandleFunc("/receipts", s.receiptsHandler).Methods(http.MethodGet)
	api.HandleFunc("/responses", s.responsesHandler).Methods(http.MethodGet)
	if twilioWebhook != nil {
		r.Handle("/twilio/whatsapp", twilioWebhook).Methods(http.MethodPost)
	}
	r.Use(logRequests)
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server Run: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("Server Run: stopped")
	return nil
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Server request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
