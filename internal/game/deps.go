// internal/game/deps.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sixelasacul/friend-blind-test/internal/models"
)

// Transition names a delayed state-machine re-entry armed through the
// scheduler. The payload carries enough context for the staleness check when
// the timer fires.
type Transition string

const (
	TransitionStartRound      Transition = "round.start"
	TransitionEndRound        Transition = "round.end"
	TransitionEndGame         Transition = "game.end"
	TransitionPresenceTimeout Transition = "presence.timeout"
)

// TaskPayload is the context attached to a scheduled transition. Unused fields
// stay zero.
type TaskPayload struct {
	LobbyID  uuid.UUID `json:"lobbyId,omitempty"`
	TrackID  uuid.UUID `json:"trackId,omitempty"`
	PlayerID uuid.UUID `json:"playerId,omitempty"`
}

// Scheduler arms one-shot delayed transitions. Implementations must be durable:
// rounds outlive any single request, so armed tasks survive the process that
// armed them. Schedule returns an opaque handle usable with Cancel.
type Scheduler interface {
	Schedule(ctx context.Context, delay time.Duration, transition Transition, payload TaskPayload) (string, error)
	Cancel(ctx context.Context, handle string) error
}

// Catalog produces the ordered track batch for a game from the players'
// artist selections. It retries or substitutes candidates internally and may
// take seconds; the engine never calls it while holding a lobby lock.
type Catalog interface {
	GenerateTracks(ctx context.Context, lobbyID uuid.UUID, selections [][]models.Artist) ([]models.Track, error)
}
