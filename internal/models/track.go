// internal/models/track.go
package models

import "github.com/google/uuid"

// Track is one round of the game: a playable preview plus the answer terms.
// Immutable once created. Order is the 0-based position within the lobby's
// generated playlist.
type Track struct {
	ID         uuid.UUID `json:"id"`
	LobbyID    uuid.UUID `json:"lobbyId"`
	PlayerID   uuid.UUID `json:"playerId"` // contributing player
	Name       string    `json:"name"`
	Artists    []string  `json:"artists"`
	PreviewURL string    `json:"previewUrl"`
	Order      int       `json:"order"`
}
