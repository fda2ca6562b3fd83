// Package admin serves the management surface: JSON CRUD over the
// station list, live and historical connection views, and the embedded
// dashboard. It only reads the Config Store and Connection Registry,
// and mutates configuration exclusively through Store.Replace.
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kroegman/neartrip/internal/config"
	"github.com/kroegman/neartrip/internal/logger"
	"github.com/kroegman/neartrip/internal/registry"
)

//go:embed static
var staticFS embed.FS

// Server is the admin HTTP server.
type Server struct {
	store   *config.Store
	reg     *registry.Registry
	history *registry.History // may be nil
	log     logger.Logger
	version string
	started time.Time
	http    *http.Server
}

// New builds the admin server from the current configuration snapshot.
func New(store *config.Store, reg *registry.Registry, history *registry.History, log logger.Logger, version string) *Server {
	s := &Server{
		store:   store,
		reg:     reg,
		history: history,
		log:     log,
		version: version,
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.basicAuth)

	r.Get("/", s.handleDashboard)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handleReplaceConfig)
		r.Get("/stations", s.handleListStations)
		r.Post("/stations", s.handleCreateStation)
		r.Put("/stations/{mount}", s.handleUpdateStation)
		r.Delete("/stations/{mount}", s.handleDeleteStation)
		r.Get("/connections", s.handleConnections)
		r.Get("/history", s.handleHistory)
		r.Get("/live", s.handleLive)
	})

	cfg := store.Get()
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AdminPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start runs the admin server; blocks until shutdown or error.
func (s *Server) Start() error {
	s.log.Info("admin server listening", logger.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the admin server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "dashboard unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.store.Get()
	writeJSON(w, http.StatusOK, StatusResponse{
		Version:        s.version,
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
		MountPoint:     cfg.MountPoint,
		ActiveSessions: s.reg.CountActive(),
		Stations:       len(cfg.Stations),
	})
}

// handleGetConfig returns the current snapshot with secrets blanked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.store.Get().Clone()
	cfg.AdminPassword = ""
	for i := range cfg.Stations {
		if cfg.Stations[i].Password != "" {
			cfg.Stations[i].Password = "********"
		}
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleReplaceConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid config document: %v", err))
		return
	}
	if err := s.store.Replace(&cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "replaced"})
}

func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Get().Stations)
}

func (s *Server) handleCreateStation(w http.ResponseWriter, r *http.Request) {
	var station config.Station
	if err := json.NewDecoder(r.Body).Decode(&station); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid station: %v", err))
		return
	}

	cfg := s.store.Get().Clone()
	for _, existing := range cfg.Stations {
		if existing.MountPoint == station.MountPoint {
			writeError(w, http.StatusConflict, fmt.Sprintf("mount point %q already exists", station.MountPoint))
			return
		}
	}
	cfg.Stations = append(cfg.Stations, station)

	if err := s.store.Replace(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, station)
}

func (s *Server) handleUpdateStation(w http.ResponseWriter, r *http.Request) {
	mount := chi.URLParam(r, "mount")

	var station config.Station
	if err := json.NewDecoder(r.Body).Decode(&station); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid station: %v", err))
		return
	}

	cfg := s.store.Get().Clone()
	found := false
	for i := range cfg.Stations {
		if cfg.Stations[i].MountPoint == mount {
			cfg.Stations[i] = station
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("station %q not found", mount))
		return
	}

	if err := s.store.Replace(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, station)
}

func (s *Server) handleDeleteStation(w http.ResponseWriter, r *http.Request) {
	mount := chi.URLParam(r, "mount")

	cfg := s.store.Get().Clone()
	kept := cfg.Stations[:0]
	found := false
	for _, station := range cfg.Stations {
		if station.MountPoint == mount {
			found = true
			continue
		}
		kept = append(kept, station)
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("station %q not found", mount))
		return
	}
	cfg.Stations = kept

	if err := s.store.Replace(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.List())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []registry.Session{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sessions, err := s.history.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []registry.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}
