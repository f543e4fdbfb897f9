// Package server exposes the supervised runner and the build/run history
// over a small REST API.
package server

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/forgeworks-io/crossrun/pkg/runner"
	"github.com/forgeworks-io/crossrun/pkg/store"
)

// Controller is the subset of the supervised runner the API drives.
type Controller interface {
	Start(req runner.Request)
	Terminate()
	Status() runner.Status
}

type Server struct {
	logger         *log.Logger
	address        string
	controller     Controller
	store          *store.Store // may be nil
	baseDir        string
	heapMultiplier int
}

func New(address string, logger *log.Logger, controller Controller, st *store.Store, baseDir string, heapMultiplier int) *Server {
	return &Server{
		logger:         logger,
		address:        address,
		controller:     controller,
		store:          st,
		baseDir:        baseDir,
		heapMultiplier: heapMultiplier,
	}
}

// Serve blocks, listening on the configured address.
func (s *Server) Serve() error {
	s.logger.Infof("API listening on %s", s.address)
	return http.ListenAndServe(s.address, s.Handler())
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/stop", s.handleStop)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/history", s.handleHistory)
	return mux
}

type runPayload struct {
	Cmd   string   `json:"cmd"`
	Args  []string `json:"args,omitempty"`
	Label string   `json:"label,omitempty"`
}

// handleRun starts a supervised run, superseding any in-flight one.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	s.logger.Debug("Processing request to start a supervised run...")

	var payload runPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.logger.Debugf("Failed to decode run request: %v", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if payload.Cmd == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if payload.Label == "" {
		payload.Label = payload.Cmd
	}

	s.controller.Start(runner.Request{
		Cmd:            payload.Cmd,
		Dir:            s.baseDir,
		Args:           payload.Args,
		Label:          payload.Label,
		HeapMultiplier: s.heapMultiplier,
	})

	s.logger.Debugf("Dispatched supervised run of %s", payload.Cmd)
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Run dispatched"))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	s.controller.Terminate()
	w.Write([]byte("Run terminated"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.controller.Status()); err != nil {
		s.logger.Debugf("Failed to encode status: %v", err)
	}
}

type historyPayload struct {
	Builds []store.BuildRecord `json:"builds"`
	Runs   []store.RunRecord   `json:"runs"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	builds, err := s.store.RecentBuilds(20)
	if err != nil {
		s.logger.Debugf("Failed to query build history: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	runs, err := s.store.RecentRuns(20)
	if err != nil {
		s.logger.Debugf("Failed to query run history: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(historyPayload{Builds: builds, Runs: runs}); err != nil {
		s.logger.Debugf("Failed to encode history: %v", err)
	}
}
