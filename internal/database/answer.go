// internal/database/answer.go
package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sixelasacul/friend-blind-test/internal/models"
)

const answerColumns = `id, player_id, track_id, partial_answer, guessed_player_id, guessed_track_at, guessed_artists_at, guessed_player_at`

func scanAnswer(row pgx.Row) (*models.Answer, error) {
	var a models.Answer
	err := row.Scan(&a.ID, &a.PlayerID, &a.TrackID, &a.PartialAnswer, &a.GuessedPlayerID, &a.GuessedTrackAt, &a.GuessedArtistsAt, &a.GuessedPlayerAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AnswerFor fetches the answer for a (player, track) pair, or (nil, nil) if
// the player has not interacted with the round yet.
func (s *Store) AnswerFor(ctx context.Context, playerID, trackID uuid.UUID) (*models.Answer, error) {
	q := `SELECT ` + answerColumns + ` FROM answers WHERE player_id = $1 AND track_id = $2`
	a, err := scanAnswer(s.pool.QueryRow(ctx, q, playerID, trackID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// CreateAnswer inserts a fresh answer record.
func (s *Store) CreateAnswer(ctx context.Context, a *models.Answer) error {
	q := `
	INSERT INTO answers (id, player_id, track_id, partial_answer)
	VALUES ($1, $2, $3, $4)
	`
	_, err := s.pool.Exec(ctx, q, a.ID, a.PlayerID, a.TrackID, a.PartialAnswer)
	return err
}

// RecordGuessProgress persists the accumulated partial answer and stamps the
// write-once timestamps. COALESCE keeps an already-set timestamp, so two
// near-simultaneous guesses can never double-credit a dimension.
func (s *Store) RecordGuessProgress(ctx context.Context, answerID uuid.UUID, partial string, trackAt, artistsAt *time.Time) error {
	q := `
	UPDATE answers
	SET partial_answer = $2,
	    guessed_track_at = COALESCE(guessed_track_at, $3),
	    guessed_artists_at = COALESCE(guessed_artists_at, $4)
	WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, q, answerID, partial, trackAt, artistsAt)
	return err
}

// RecordPlayerGuess stores the one allowed contributor guess. The guessed
// player and the correctness timestamp are both write-once.
func (s *Store) RecordPlayerGuess(ctx context.Context, answerID, guessedPlayerID uuid.UUID, correctAt *time.Time) error {
	q := `
	UPDATE answers
	SET guessed_player_id = COALESCE(guessed_player_id, $2),
	    guessed_player_at = COALESCE(guessed_player_at, $3)
	WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, q, answerID, guessedPlayerID, correctAt)
	return err
}

// AnswersByTrack lists every answer recorded for a track.
func (s *Store) AnswersByTrack(ctx context.Context, trackID uuid.UUID) ([]models.Answer, error) {
	q := `SELECT ` + answerColumns + ` FROM answers WHERE track_id = $1 ORDER BY id`
	return s.queryAnswers(ctx, q, trackID)
}

// AnswersByLobby lists every answer in a lobby across all its rounds.
func (s *Store) AnswersByLobby(ctx context.Context, lobbyID uuid.UUID) ([]models.Answer, error) {
	q := `
	SELECT answers.id, answers.player_id, answers.track_id, answers.partial_answer,
	       answers.guessed_player_id, answers.guessed_track_at, answers.guessed_artists_at, answers.guessed_player_at
	FROM answers
	JOIN tracks ON tracks.id = answers.track_id
	WHERE tracks.lobby_id = $1
	ORDER BY answers.id
	`
	return s.queryAnswers(ctx, q, lobbyID)
}

// CountCompleteAnswers counts answers for a track where both the track name
// and the artists have been found. This is the speed rank of the next player
// to complete the joint match.
func (s *Store) CountCompleteAnswers(ctx context.Context, trackID uuid.UUID) (int, error) {
	q := `
	SELECT COUNT(*) FROM answers
	WHERE track_id = $1 AND guessed_track_at IS NOT NULL AND guessed_artists_at IS NOT NULL
	`
	var n int
	if err := s.pool.QueryRow(ctx, q, trackID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) queryAnswers(ctx context.Context, q string, args ...any) ([]models.Answer, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.PlayerID, &a.TrackID, &a.PartialAnswer, &a.GuessedPlayerID, &a.GuessedTrackAt, &a.GuessedArtistsAt, &a.GuessedPlayerAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
