// internal/game/players.go
package game

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sixelasacul/friend-blind-test/internal/models"
)

// UpdateName renames a player.
func (e *Engine) UpdateName(ctx context.Context, playerID uuid.UUID, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidState)
	}
	if _, err := e.store.Player(ctx, playerID); err != nil {
		return err
	}
	return e.store.SetPlayerName(ctx, playerID, name)
}

// SaveArtists records the player's artist selections that seed track
// generation. Selections past the cap are silently ignored rather than
// rejected, so a batched save partially applies.
func (e *Engine) SaveArtists(ctx context.Context, playerID uuid.UUID, artists []models.Artist) error {
	if _, err := e.store.Player(ctx, playerID); err != nil {
		return err
	}

	existing, err := e.store.ArtistsByPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	room := e.cfg.MaxArtistPicks - len(existing)
	for i := range artists {
		if room <= 0 {
			break
		}
		a := artists[i]
		if a.Name == "" {
			continue
		}
		id, _ := uuid.NewV7()
		a.ID = id
		a.PlayerID = playerID
		if err := e.store.SaveArtist(ctx, &a); err != nil {
			return fmt.Errorf("save artist: %w", err)
		}
		room--
	}
	return nil
}

// PlayerArtists lists a player's current selections.
func (e *Engine) PlayerArtists(ctx context.Context, playerID uuid.UUID) ([]models.Artist, error) {
	if _, err := e.store.Player(ctx, playerID); err != nil {
		return nil, err
	}
	return e.store.ArtistsByPlayer(ctx, playerID)
}
