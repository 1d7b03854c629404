// internal/models/player.go
package models

import "github.com/google/uuid"

// Player represents a row in the players table. Ready is only meaningful
// before a round starts; Score never decreases within a game.
type Player struct {
	ID      uuid.UUID `json:"id"`
	LobbyID uuid.UUID `json:"lobbyId"`
	Name    string    `json:"name"`
	Ready   bool      `json:"ready"`
	Online  bool      `json:"online"`
	Score   int       `json:"score"`

	// TimeoutHandle references the outstanding presence-timeout task in the
	// durable scheduler so a fresh heartbeat can cancel it. Empty if none.
	TimeoutHandle string `json:"-"`
}

// Artist is a player's selected artist, used to seed track generation.
type Artist struct {
	ID         uuid.UUID `json:"id"`
	PlayerID   uuid.UUID `json:"playerId"`
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
}
