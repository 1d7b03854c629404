// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyStatus enumerates the lifecycle states of a lobby.
// Transitions: waiting -> loading -> (paused <-> playing)* -> finished.
type LobbyStatus string

const (
	// StatusWaiting: players are joining and readying up.
	StatusWaiting LobbyStatus = "waiting"
	// StatusLoading: everyone is ready and the track batch is being generated.
	StatusLoading LobbyStatus = "loading"
	// StatusPaused: between rounds. CurrentTrackID points at the upcoming track,
	// or is nil right before the game ends.
	StatusPaused LobbyStatus = "paused"
	// StatusPlaying: a round is live. CurrentTrackID and StartedTrackAt are both set.
	StatusPlaying LobbyStatus = "playing"
	// StatusFinished is terminal.
	StatusFinished LobbyStatus = "finished"
)

// Lobby represents a row in the lobbies table.
// CurrentTrackID is set while paused or playing; StartedTrackAt only while
// playing.
type Lobby struct {
	ID             uuid.UUID   `json:"id"`
	Status         LobbyStatus `json:"status"`
	CurrentTrackID *uuid.UUID  `json:"currentTrackId,omitempty"`
	StartedTrackAt *time.Time  `json:"startedTrackAt,omitempty"`
}
