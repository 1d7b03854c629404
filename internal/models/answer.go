// internal/models/answer.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Answer tracks one player's progress against one track. Created lazily on the
// player's first interaction with the round, so mid-round joiners get a record
// too.
//
// The three *At fields are write-once: they transition from nil to a timestamp
// exactly once and are never overwritten. GuessedPlayerID records the single
// allowed contributor guess, right or wrong.
type Answer struct {
	ID       uuid.UUID `json:"id"`
	PlayerID uuid.UUID `json:"playerId"`
	TrackID  uuid.UUID `json:"trackId"`

	// PartialAnswer is the cumulative set of guess tokens confirmed to match
	// some portion of the track or artist names, joined with spaces.
	PartialAnswer string `json:"partialAnswer"`

	GuessedPlayerID  *uuid.UUID `json:"guessedPlayerId,omitempty"`
	GuessedTrackAt   *time.Time `json:"guessedTrackAt,omitempty"`
	GuessedArtistsAt *time.Time `json:"guessedArtistsAt,omitempty"`
	GuessedPlayerAt  *time.Time `json:"guessedPlayerAt,omitempty"`
}

// Complete reports whether both the track name and the artists have been found.
func (a *Answer) Complete() bool {
	return a.GuessedTrackAt != nil && a.GuessedArtistsAt != nil
}
