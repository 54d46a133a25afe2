// Package api provides HTTP handlers and the main API server logic for
// ConnectID.
//
// It exposes the distress signal endpoints, PWID and responder
// registration, the Telegram webhook and a health check. The API
// integrates with the store, dispatch, geo and bot modules.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ConnectID-SG/connectid/internal/dispatch"
	"github.com/ConnectID-SG/connectid/internal/models"
	"github.com/ConnectID-SG/connectid/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// ReadHeaderTimeout bounds slow-header clients.
const ReadHeaderTimeout = 10 * time.Second

// SignalController is the subset of the dispatch controller the handlers
// need.
type SignalController interface {
	CreateSignal(ctx context.Context, name string, location models.Location) (*dispatch.CreateResult, error)
	Sweep(ctx context.Context) (int, error)
}

// Locator resolves a caller location from an IP address.
type Locator interface {
	Locate(ctx context.Context, ip string) (models.Location, error)
}

// UpdateRouter routes decoded Telegram updates.
type UpdateRouter interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr       string
	Store      store.Store
	Controller SignalController
	Locator    Locator
	Router     UpdateRouter
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(o *Opts) { o.Store = s }
}

// WithController sets the dispatch controller.
func WithController(c SignalController) Option {
	return func(o *Opts) { o.Controller = c }
}

// WithLocator sets the IP location resolver.
func WithLocator(l Locator) Option {
	return func(o *Opts) { o.Locator = l }
}

// WithRouter sets the Telegram update router.
func WithRouter(r UpdateRouter) Option {
	return func(o *Opts) { o.Router = r }
}

// Server holds the injected dependencies for the HTTP handlers.
type Server struct {
	addr       string
	st         store.Store
	controller SignalController
	locator    Locator
	router     UpdateRouter
}

// NewServer creates a server with the given options.
func NewServer(opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store must be provided")
	}
	if cfg.Controller == nil {
		return nil, fmt.Errorf("controller must be provided")
	}
	if cfg.Locator == nil {
		return nil, fmt.Errorf("locator must be provided")
	}
	if cfg.Router == nil {
		return nil, fmt.Errorf("router must be provided")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		addr:       cfg.Addr,
		st:         cfg.Store,
		controller: cfg.Controller,
		locator:    cfg.Locator,
		router:     cfg.Router,
	}, nil
}

// Handler returns the route table as an http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sos", s.sosHandler)
	mux.HandleFunc("/process", s.processHandler)
	mux.HandleFunc("/pwid", s.pwidHandler)
	mux.HandleFunc("/pwid/", s.pwidHandler)
	mux.HandleFunc("/responder", s.responderHandler)
	mux.HandleFunc("/responder/", s.responderHandler)
	mux.HandleFunc("/telegram/webhook", s.webhookHandler)
	mux.HandleFunc("/healthcheck", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
	}
	slog.Info("Server.Run: ConnectID API listening", "addr", s.addr)
	return srv.ListenAndServe()
}
