package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/owui-labs/voicegate/pkg/gateway/config"
	"github.com/owui-labs/voicegate/pkg/gateway/handlers"
	"github.com/owui-labs/voicegate/pkg/gateway/lifecycle"
	"github.com/owui-labs/voicegate/pkg/gateway/mw"
	"github.com/owui-labs/voicegate/pkg/gateway/reconcile"
	"github.com/owui-labs/voicegate/pkg/gateway/record"
	"github.com/owui-labs/voicegate/pkg/room"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	rooms      room.Client
	reconciler *reconcile.Reconciler
	records    record.Store
	state      *lifecycle.State
}

func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Timeout: cfg.SubstrateTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			MaxIdleConns:        50,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	rooms, err := room.NewHTTPClient(room.HTTPClientConfig{
		BaseURL:    cfg.SubstrateHTTPURL,
		APIKey:     cfg.APIKey,
		APISecret:  cfg.APISecret,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, err
	}

	records, err := record.Open(cfg.RecordRedisURL, cfg.RecordTTL)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		rooms:  rooms,
		reconciler: reconcile.New(reconcile.Config{
			Client:              rooms,
			AgentName:           cfg.AgentName,
			AgentIdentityPrefix: cfg.AgentIdentityPrefix,
			Logger:              logger,
		}),
		records: records,
		state:   lifecycle.New(),
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{State: s.state})

	authed := func(h http.Handler) http.Handler {
		return mw.Auth(s.cfg.SharedSecret, h)
	}
	s.mux.Handle("/token", authed(handlers.TokenHandler{
		Config:     s.cfg,
		Reconciler: s.reconciler,
		Records:    s.records,
		Logger:     s.logger,
	}))
	s.mux.Handle("/apply", authed(handlers.ApplyHandler{
		Config:     s.cfg,
		Reconciler: s.reconciler,
		Records:    s.records,
		Logger:     s.logger,
	}))
	s.mux.Handle("/rooms/{room}/settings", authed(handlers.SettingsHandler{
		Config:  s.cfg,
		Records: s.records,
		Logger:  s.logger,
	}))

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.state.Track(h)
	h = mw.CORS(s.cfg.CORSAllowedOrigins, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// State exposes the drain flag to the process entry point.
func (s *Server) State() *lifecycle.State { return s.state }

// Close releases the record store.
func (s *Server) Close() error {
	if s.records == nil {
		return nil
	}
	return s.records.Close()
}
