// internal/handlers/player.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sixelasacul/friend-blind-test/internal/auth"
	"github.com/sixelasacul/friend-blind-test/internal/models"
)

// ToggleReadyHandler flips the caller's ready flag. When everyone online is
// ready the game starts loading its playlist.
func (s *Server) ToggleReadyHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromRequest(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if err := s.Engine.ToggleReady(r.Context(), playerID); err != nil {
		s.writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateNameRequest struct {
	Name string `json:"name"`
}

// UpdateNameHandler renames the caller.
func (s *Server) UpdateNameHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromRequest(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var req updateNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad name payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name must not be empty", http.StatusBadRequest)
		return
	}

	if err := s.Engine.UpdateName(r.Context(), playerID, strings.TrimSpace(req.Name)); err != nil {
		s.writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type saveArtistsRequest struct {
	Artists []struct {
		ExternalID string `json:"external_id"`
		Name       string `json:"name"`
	} `json:"artists"`
}

// SaveArtistsHandler replaces the caller's artist picks used to seed the
// playlist.
func (s *Server) SaveArtistsHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromRequest(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var req saveArtistsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad artists payload", http.StatusBadRequest)
		return
	}

	artists := make([]models.Artist, 0, len(req.Artists))
	for _, a := range req.Artists {
		artists = append(artists, models.Artist{ExternalID: a.ExternalID, Name: a.Name})
	}

	if err := s.Engine.SaveArtists(r.Context(), playerID, artists); err != nil {
		s.writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlayerArtistsHandler lists the caller's saved artist picks.
func (s *Server) PlayerArtistsHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromRequest(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	artists, err := s.Engine.PlayerArtists(r.Context(), playerID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, artists)
}

type guessTrackRequest struct {
	Text string `json:"text"`
}

// GuessTrackHandler submits a free-text guess against the current round's
// track name and artists.
func (s *Server) GuessTrackHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromRequest(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var req guessTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad guess payload", http.StatusBadRequest)
		return
	}

	outcome, err := s.Engine.GuessTrack(r.Context(), playerID, req.Text)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

type guessPlayerRequest struct {
	PlayerID uuid.UUID `json:"player_id"`
}

// GuessPlayerHandler submits the caller's one guess at whose pick seeded the
// current track.
func (s *Server) GuessPlayerHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromRequest(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var req guessPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad guess payload", http.StatusBadRequest)
		return
	}
	if req.PlayerID == uuid.Nil {
		http.Error(w, "missing player_id", http.StatusBadRequest)
		return
	}

	outcome, err := s.Engine.GuessPlayer(r.Context(), playerID, req.PlayerID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

// PlayerAnswerHandler returns the caller's progress on the current round.
func (s *Server) PlayerAnswerHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromRequest(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	progress, err := s.Engine.PlayerAnswer(r.Context(), playerID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progress)
}
