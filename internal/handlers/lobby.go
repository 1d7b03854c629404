// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/sixelasacul/friend-blind-test/internal/auth"
	"github.com/sixelasacul/friend-blind-test/internal/models"
)

// CreateLobbyHandler opens a fresh lobby in the waiting state.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	lobby, err := s.Engine.CreateLobby(r.Context())
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, lobby)
}

type joinLobbyRequest struct {
	LobbyID uuid.UUID `json:"lobby_id"`
	Name    string    `json:"name"`
}

type joinLobbyResponse struct {
	Player *models.Player `json:"player"`
	Token  string         `json:"token"`
}

// JoinLobbyHandler adds a player to a lobby and issues the token every later
// request authenticates with.
func (s *Server) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	var req joinLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad join request payload", http.StatusBadRequest)
		return
	}
	if req.LobbyID == uuid.Nil {
		http.Error(w, "missing lobby_id", http.StatusBadRequest)
		return
	}

	player, err := s.Engine.Join(r.Context(), req.LobbyID, req.Name)
	if err != nil {
		s.writeGameError(w, err)
		return
	}

	token, err := auth.CreatePlayerToken(player.ID)
	if err != nil {
		s.Log.WithError(err).Error("failed to issue player token")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusCreated, joinLobbyResponse{Player: player, Token: token})
}

// LobbySnapshotHandler returns the full game view for a lobby: players with
// scores, the obfuscated current round, and revealed past rounds.
func (s *Server) LobbySnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.PlayerIDFromRequest(r); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	lobbyID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid lobby id", http.StatusBadRequest)
		return
	}

	snapshot, err := s.Engine.GameSnapshot(r.Context(), lobbyID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}
