package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/facebookgo/clock"

	"github.com/joeblew999/plat-draw/internal/api"
	"github.com/joeblew999/plat-draw/internal/api/mapview"
	"github.com/joeblew999/plat-draw/internal/config"
	"github.com/joeblew999/plat-draw/internal/db"
	"github.com/joeblew999/plat-draw/internal/humastar"
	"github.com/joeblew999/plat-draw/internal/listing"
	"github.com/joeblew999/plat-draw/internal/metrics"
	"github.com/joeblew999/plat-draw/internal/service"
	"github.com/joeblew999/plat-draw/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host string
	Port string
	// DataDir holds saved areas and the listing database. Empty keeps
	// everything in memory.
	DataDir string
	Draw    *config.Config
	Logger  *slog.Logger

	// Clock and Go override controller timing; tests set them.
	Clock clock.Clock
	Go    func(func())
}

// Server is the drawing HTTP server.
type Server struct {
	config   Config
	log      *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	links    *humastar.Links
	db       *sql.DB
	services *api.Services
	renderer *templates.Renderer
}

// New creates a new drawing server. A database that cannot be opened only
// disables listing search.
func New(cfg Config) (*Server, error) {
	if cfg.Draw == nil {
		cfg.Draw = config.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	log := cfg.Logger

	renderer, err := templates.New()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	mux := http.NewServeMux()
	links := humastar.NewLinks()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-draw API", api.Version)
	humaConfig.Info.Description = "Freehand search-area drawing over a browser map, saved areas and listing search."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:   cfg,
		log:      log,
		mux:      mux,
		humaAPI:  humaAPI,
		links:    links,
		renderer: renderer,
	}

	conn, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "draw"})
	if err != nil {
		log.Warn("database unavailable, listing search disabled", "error", err)
	}
	var store *listing.Store
	if conn != nil {
		store, err = listing.NewStore(context.Background(), conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		s.db = conn
	}

	s.services = &api.Services{
		Sessions: service.NewSessionService(service.SessionOptions{
			Config: cfg.Draw,
			Logger: log,
			Clock:  cfg.Clock,
			Go:     cfg.Go,
		}),
		Areas:    service.NewAreaService(cfg.DataDir),
		Listings: store,
	}

	s.routes()
	s.handler = metrics.Middleware(mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Sessions returns the session service.
func (s *Server) Sessions() *service.SessionService {
	return s.services.Sessions
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close tears down every session and closes the database.
func (s *Server) Close() error {
	s.services.Sessions.CloseAll()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	api.NewInfoHandler(s.config.DataDir, s.db, s.services.Sessions).RegisterRoutes(s.humaAPI)

	// Datastar SSE routes driving the browser map
	mapview.New(s.services.Sessions, s.services.Areas, s.services.Listings, s.renderer, s.config.Draw.Listings.SearchLimit, s.log).
		RegisterRoutes(s.humaAPI)

	s.links.Build(s.humaAPI)

	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-draw",
		"status":  "running",
		"docs":    "/docs",
	})
}
