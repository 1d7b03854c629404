// internal/game/errors.go
package game

import "errors"

// Domain error taxonomy. Handlers map these onto HTTP status codes; timer-fired
// transitions treat them as fatal to that single transition chain only.
var (
	// ErrLobbyNotFound, ErrPlayerNotFound and ErrTrackNotFound cover requests
	// referencing entities that do not (or no longer) exist.
	ErrLobbyNotFound  = errors.New("lobby not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrTrackNotFound  = errors.New("track not found")

	// ErrLobbyFull is returned before any write when a join would exceed the
	// player cap.
	ErrLobbyFull = errors.New("lobby is full")

	// ErrInvalidState covers actions attempted outside their legal lobby state:
	// guessing with no round active, re-guessing a solved dimension, guessing a
	// contributor twice. No state is mutated.
	ErrInvalidState = errors.New("action not allowed in current state")
)

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLobbyNotFound) ||
		errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrTrackNotFound)
}
