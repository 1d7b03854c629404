// internal/database/player.go
package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sixelasacul/friend-blind-test/internal/game"
	"github.com/sixelasacul/friend-blind-test/internal/models"
)

const playerColumns = `id, lobby_id, name, ready, online, score, timeout_handle`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	err := row.Scan(&p.ID, &p.LobbyID, &p.Name, &p.Ready, &p.Online, &p.Score, &p.TimeoutHandle)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePlayer inserts a new player row.
func (s *Store) CreatePlayer(ctx context.Context, p *models.Player) error {
	q := `
	INSERT INTO players (id, lobby_id, name, ready, online, score, timeout_handle)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, q, p.ID, p.LobbyID, p.Name, p.Ready, p.Online, p.Score, p.TimeoutHandle)
	return err
}

// Player fetches a player by ID.
func (s *Store) Player(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`
	return scanPlayer(s.pool.QueryRow(ctx, q, id))
}

// PlayersByLobby lists every player in a lobby.
func (s *Store) PlayersByLobby(ctx context.Context, lobbyID uuid.UUID) ([]models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE lobby_id = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, q, lobbyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.LobbyID, &p.Name, &p.Ready, &p.Online, &p.Score, &p.TimeoutHandle); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// DeletePlayer removes a player row; their artists and answers cascade.
func (s *Store) DeletePlayer(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, id)
	return err
}

// SetPlayerReady updates the ready flag.
func (s *Store) SetPlayerReady(ctx context.Context, id uuid.UUID, ready bool) error {
	return s.updatePlayer(ctx, `UPDATE players SET ready = $2 WHERE id = $1`, id, ready)
}

// ResetReady clears the ready flag for every player in a lobby.
func (s *Store) ResetReady(ctx context.Context, lobbyID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE players SET ready = FALSE WHERE lobby_id = $1`, lobbyID)
	return err
}

// SetPlayerName renames a player.
func (s *Store) SetPlayerName(ctx context.Context, id uuid.UUID, name string) error {
	return s.updatePlayer(ctx, `UPDATE players SET name = $2 WHERE id = $1`, id, name)
}

// SetPlayerPresence updates the online flag and the presence-timeout handle
// together.
func (s *Store) SetPlayerPresence(ctx context.Context, id uuid.UUID, online bool, timeoutHandle string) error {
	return s.updatePlayer(ctx, `UPDATE players SET online = $2, timeout_handle = $3 WHERE id = $1`, id, online, timeoutHandle)
}

// AddPlayerScore increments the score. Deltas are never negative, keeping the
// score monotonically non-decreasing within a game.
func (s *Store) AddPlayerScore(ctx context.Context, id uuid.UUID, delta int) error {
	return s.updatePlayer(ctx, `UPDATE players SET score = score + $2 WHERE id = $1`, id, delta)
}

func (s *Store) updatePlayer(ctx context.Context, q string, args ...any) error {
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return game.ErrPlayerNotFound
	}
	return nil
}

// SaveArtist inserts one artist selection for a player.
func (s *Store) SaveArtist(ctx context.Context, a *models.Artist) error {
	q := `INSERT INTO artists (id, player_id, external_id, name) VALUES ($1, $2, $3, $4)`
	_, err := s.pool.Exec(ctx, q, a.ID, a.PlayerID, a.ExternalID, a.Name)
	return err
}

// ArtistsByPlayer lists a player's artist selections.
func (s *Store) ArtistsByPlayer(ctx context.Context, playerID uuid.UUID) ([]models.Artist, error) {
	q := `SELECT id, player_id, external_id, name FROM artists WHERE player_id = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, q, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artists []models.Artist
	for rows.Next() {
		var a models.Artist
		if err := rows.Scan(&a.ID, &a.PlayerID, &a.ExternalID, &a.Name); err != nil {
			return nil, err
		}
		artists = append(artists, a)
	}
	return artists, rows.Err()
}
