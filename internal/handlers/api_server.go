// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sixelasacul/friend-blind-test/internal/game"
)

// Server bundles the game engine with the logger handlers log through.
type Server struct {
	Engine *game.Engine
	Log    *logrus.Logger
}

// NewServer constructs a Server.
func NewServer(engine *game.Engine, log *logrus.Logger) *Server {
	return &Server{Engine: engine, Log: log}
}

// Routes registers every HTTP endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /lobby/create", s.CreateLobbyHandler)
	mux.HandleFunc("POST /lobby/join", s.JoinLobbyHandler)
	mux.HandleFunc("GET /lobby/{id}", s.LobbySnapshotHandler)

	mux.HandleFunc("POST /player/ready", s.ToggleReadyHandler)
	mux.HandleFunc("POST /player/name", s.UpdateNameHandler)
	mux.HandleFunc("POST /player/artists", s.SaveArtistsHandler)
	mux.HandleFunc("GET /player/artists", s.PlayerArtistsHandler)
	mux.HandleFunc("POST /player/guess", s.GuessTrackHandler)
	mux.HandleFunc("POST /player/guess-player", s.GuessPlayerHandler)
	mux.HandleFunc("GET /player/answer", s.PlayerAnswerHandler)

	mux.HandleFunc("GET /presence/ws", s.PresenceWSHandler)

	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.WithError(err).Warn("failed to encode response")
	}
}

// writeGameError maps engine sentinel errors onto HTTP status codes.
func (s *Server) writeGameError(w http.ResponseWriter, err error) {
	switch {
	case game.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, game.ErrLobbyFull):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, game.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.Log.WithError(err).Error("internal error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
