// internal/database/track.go
package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sixelasacul/friend-blind-test/internal/game"
	"github.com/sixelasacul/friend-blind-test/internal/models"
)

const trackColumns = `id, lobby_id, player_id, name, artists, preview_url, ord`

// InsertTracks persists a generated batch in one transaction, so a lobby
// either has its full playlist or none of it.
func (s *Store) InsertTracks(ctx context.Context, tracks []models.Track) error {
	q := `
	INSERT INTO tracks (id, lobby_id, player_id, name, artists, preview_url, ord)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, t := range tracks {
			if _, err := tx.Exec(ctx, q, t.ID, t.LobbyID, t.PlayerID, t.Name, t.Artists, t.PreviewURL, t.Order); err != nil {
				return err
			}
		}
		return nil
	})
}

// Track fetches a track by ID.
func (s *Store) Track(ctx context.Context, id uuid.UUID) (*models.Track, error) {
	q := `SELECT ` + trackColumns + ` FROM tracks WHERE id = $1`
	var t models.Track
	err := s.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.LobbyID, &t.PlayerID, &t.Name, &t.Artists, &t.PreviewURL, &t.Order)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrTrackNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TrackByOrder fetches a lobby's track at a sequence position. Returns
// (nil, nil) when there is no track at that position, which is how the state
// machine detects the end of the playlist.
func (s *Store) TrackByOrder(ctx context.Context, lobbyID uuid.UUID, order int) (*models.Track, error) {
	q := `SELECT ` + trackColumns + ` FROM tracks WHERE lobby_id = $1 AND ord = $2`
	var t models.Track
	err := s.pool.QueryRow(ctx, q, lobbyID, order).Scan(&t.ID, &t.LobbyID, &t.PlayerID, &t.Name, &t.Artists, &t.PreviewURL, &t.Order)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TracksByLobby lists a lobby's playlist in order.
func (s *Store) TracksByLobby(ctx context.Context, lobbyID uuid.UUID) ([]models.Track, error) {
	q := `SELECT ` + trackColumns + ` FROM tracks WHERE lobby_id = $1 ORDER BY ord`
	rows, err := s.pool.Query(ctx, q, lobbyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		var t models.Track
		if err := rows.Scan(&t.ID, &t.LobbyID, &t.PlayerID, &t.Name, &t.Artists, &t.PreviewURL, &t.Order); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}
