// internal/database/lobby.go
package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sixelasacul/friend-blind-test/internal/game"
	"github.com/sixelasacul/friend-blind-test/internal/models"
)

// CreateLobby inserts a fresh lobby in the waiting state.
func (s *Store) CreateLobby(ctx context.Context) (*models.Lobby, error) {
	id, _ := uuid.NewV7()
	lobby := &models.Lobby{ID: id, Status: models.StatusWaiting}

	q := `INSERT INTO lobbies (id, status) VALUES ($1, $2)`
	if _, err := s.pool.Exec(ctx, q, lobby.ID, lobby.Status); err != nil {
		return nil, err
	}
	return lobby, nil
}

// Lobby fetches a lobby by ID.
func (s *Store) Lobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	var l models.Lobby
	q := `SELECT id, status, current_track_id, started_track_at FROM lobbies WHERE id = $1`
	err := s.pool.QueryRow(ctx, q, id).Scan(&l.ID, &l.Status, &l.CurrentTrackID, &l.StartedTrackAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrLobbyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// SetLobbyState updates the status together with the current-track fields in
// one statement, so the pair can never drift apart from the status.
func (s *Store) SetLobbyState(ctx context.Context, id uuid.UUID, status models.LobbyStatus, trackID *uuid.UUID, startedAt *time.Time) error {
	q := `UPDATE lobbies SET status = $2, current_track_id = $3, started_track_at = $4 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, status, trackID, startedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return game.ErrLobbyNotFound
	}
	return nil
}
