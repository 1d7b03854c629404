// internal/game/store.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sixelasacul/friend-blind-test/internal/models"
)

// Store is the persistence boundary for the state machine. The pgx
// implementation lives in internal/database; tests use an in-memory fake.
//
// Lookups for entities that may legitimately be absent (AnswerFor,
// TrackByOrder) return (nil, nil) rather than an error.
type Store interface {
	CreateLobby(ctx context.Context) (*models.Lobby, error)
	Lobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error)
	// SetLobbyState updates status together with the current-track fields so
	// the both-present-or-both-absent invariant holds across every write.
	SetLobbyState(ctx context.Context, id uuid.UUID, status models.LobbyStatus, trackID *uuid.UUID, startedAt *time.Time) error

	CreatePlayer(ctx context.Context, p *models.Player) error
	Player(ctx context.Context, id uuid.UUID) (*models.Player, error)
	PlayersByLobby(ctx context.Context, lobbyID uuid.UUID) ([]models.Player, error)
	DeletePlayer(ctx context.Context, id uuid.UUID) error
	SetPlayerReady(ctx context.Context, id uuid.UUID, ready bool) error
	ResetReady(ctx context.Context, lobbyID uuid.UUID) error
	SetPlayerName(ctx context.Context, id uuid.UUID, name string) error
	SetPlayerPresence(ctx context.Context, id uuid.UUID, online bool, timeoutHandle string) error
	AddPlayerScore(ctx context.Context, id uuid.UUID, delta int) error

	SaveArtist(ctx context.Context, a *models.Artist) error
	ArtistsByPlayer(ctx context.Context, playerID uuid.UUID) ([]models.Artist, error)

	InsertTracks(ctx context.Context, tracks []models.Track) error
	Track(ctx context.Context, id uuid.UUID) (*models.Track, error)
	TrackByOrder(ctx context.Context, lobbyID uuid.UUID, order int) (*models.Track, error)
	TracksByLobby(ctx context.Context, lobbyID uuid.UUID) ([]models.Track, error)

	AnswerFor(ctx context.Context, playerID, trackID uuid.UUID) (*models.Answer, error)
	CreateAnswer(ctx context.Context, a *models.Answer) error
	// RecordGuessProgress persists the accumulated partial answer and stamps
	// the write-once timestamps, only where still unset (check-and-set).
	RecordGuessProgress(ctx context.Context, answerID uuid.UUID, partial string, trackAt, artistsAt *time.Time) error
	// RecordPlayerGuess stores the single allowed contributor guess; correctAt
	// is nil for an incorrect guess.
	RecordPlayerGuess(ctx context.Context, answerID, guessedPlayerID uuid.UUID, correctAt *time.Time) error
	AnswersByTrack(ctx context.Context, trackID uuid.UUID) ([]models.Answer, error)
	AnswersByLobby(ctx context.Context, lobbyID uuid.UUID) ([]models.Answer, error)
	// CountCompleteAnswers counts answers for the track that already matched
	// both track name and artists, which is the next answer's speed rank.
	CountCompleteAnswers(ctx context.Context, trackID uuid.UUID) (int, error)
}
