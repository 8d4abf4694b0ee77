package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"rebellion/internal/game"
	"rebellion/internal/session"
	"rebellion/internal/storage"
)

// Server is the HTTP and websocket front end.
type Server struct {
	mux      *http.ServeMux
	registry *game.Registry
	manager  *session.Manager
	log      logrus.FieldLogger
	tracer   trace.Tracer
}

// New creates a server with all routes. Spans go to the global tracer
// provider.
func New(registry *game.Registry, manager *session.Manager, log logrus.FieldLogger) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		manager:  manager,
		log:      log,
		tracer:   otel.Tracer("rebellion/internal/server"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("GET /api/games/{name}/rules", s.handleGameRules)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{code}", s.handleGetSession)
	s.mux.HandleFunc("GET /api/sessions/{code}/ws", s.handleWebSocket)
	s.mux.HandleFunc("POST /api/sessions/{code}/start", s.handleStartSession)
	s.mux.HandleFunc("GET /api/sessions/{code}/events", s.handleSessionEvents)
	s.mux.HandleFunc("GET /api/players/{id}/stats", s.handlePlayerStats)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleGameRules(w http.ResponseWriter, r *http.Request) {
	g, ok := s.registry.Get(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown game")
		return
	}
	rb, ok := g.(game.Rulebook)
	if !ok {
		writeError(w, http.StatusNotFound, "no rules for this game")
		return
	}
	writeJSON(w, http.StatusOK, rb.Rules())
}

// handleListSessions lists live sessions. ?status=<status> lists stored
// sessions with that status instead, including ones no longer in memory.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		writeJSON(w, http.StatusOK, s.manager.List())
		return
	}
	switch session.Status(status) {
	case session.StatusWaiting, session.StatusPlaying, session.StatusFinished:
	default:
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	rows, err := s.manager.Stored(status)
	if err != nil {
		s.log.WithError(err).WithField("status", status).Error("list stored sessions")
		writeError(w, http.StatusInternalServerError, "could not list sessions")
		return
	}
	if rows == nil {
		rows = []storage.SessionRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type createSessionRequest struct {
	GameType string `json:"gameType"`
	PlayerID string `json:"playerId"`
}

type createSessionResponse struct {
	Code string `json:"code"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.GameType = strings.TrimSpace(req.GameType)
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	if req.GameType == "" || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "gameType and playerId required")
		return
	}

	sess, err := s.manager.Create(req.GameType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.AddPlayer(req.PlayerID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{Code: sess.Code})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Get(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Get(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err := sess.Start(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.afterChange(sess, sess.TakeEvents())
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// handleSessionEvents returns the recorded event log. ?after=<id> returns
// only newer events.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid after")
			return
		}
		after = n
	}
	events, err := s.manager.History(code, after)
	if err != nil {
		s.log.WithError(err).WithField("session", code).Error("list events")
		writeError(w, http.StatusInternalServerError, "could not load events")
		return
	}
	if events == nil {
		if _, ok := s.manager.Get(code); !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		events = []storage.EventRow{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	stats, err := s.manager.Stats(id)
	if err != nil {
		s.log.WithError(err).WithField("player", id).Error("player stats")
		writeError(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// afterChange persists the session and pushes events and fresh state to
// every player.
func (s *Server) afterChange(sess *session.Session, events []game.Event) {
	if err := s.manager.Save(sess); err != nil {
		s.log.WithError(err).WithField("session", sess.Code).Error("save session")
	}
	for _, e := range events {
		msg, err := encodeWSMsg("event", e)
		if err != nil {
			continue
		}
		sess.Broadcast(msg)
	}
	s.broadcastState(sess)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
