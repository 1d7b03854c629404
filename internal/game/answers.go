// internal/game/answers.go
package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sixelasacul/friend-blind-test/internal/models"
)

// GuessOutcome reports the cumulative state of a player's answer after a
// guess, plus the points the guess earned.
type GuessOutcome struct {
	TrackFound   bool `json:"trackFound"`
	ArtistsFound bool `json:"artistsFound"`
	Points       int  `json:"points"`
}

// PlayerGuessOutcome reports the result of the single allowed contributor
// guess.
type PlayerGuessOutcome struct {
	Correct bool `json:"correct"`
	Points  int  `json:"points"`
}

// AnswerProgress is the player-scoped view of their own current-round answer.
type AnswerProgress struct {
	GuessedTrackAt   *time.Time `json:"guessedTrackAt,omitempty"`
	GuessedArtistsAt *time.Time `json:"guessedArtistsAt,omitempty"`
	GuessedPlayerAt  *time.Time `json:"guessedPlayerAt,omitempty"`
}

// currentRound resolves the lobby's active track for a guessing operation.
// Caller must hold the lobby lock.
func (e *Engine) currentRound(ctx context.Context, lobbyID uuid.UUID) (*models.Track, error) {
	lobby, err := e.store.Lobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if lobby.Status != models.StatusPlaying || lobby.CurrentTrackID == nil {
		return nil, fmt.Errorf("%w: no round in progress", ErrInvalidState)
	}
	return e.store.Track(ctx, *lobby.CurrentTrackID)
}

// answerFor lazily creates the (player, track) answer record on first
// interaction, so players who joined mid-round get one too. Caller must hold
// the lobby lock, which makes the check-then-insert safe.
func (e *Engine) answerFor(ctx context.Context, playerID, trackID uuid.UUID) (*models.Answer, error) {
	answer, err := e.store.AnswerFor(ctx, playerID, trackID)
	if err != nil {
		return nil, err
	}
	if answer != nil {
		return answer, nil
	}
	id, _ := uuid.NewV7()
	answer = &models.Answer{
		ID:       id,
		PlayerID: playerID,
		TrackID:  trackID,
	}
	if err := e.store.CreateAnswer(ctx, answer); err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	return answer, nil
}

// GuessTrack evaluates a free-text guess against the current track's name and
// artists. Matched tokens accumulate in the partial answer across
// submissions; each dimension is awarded once, stamped with a write-once
// timestamp.
func (e *Engine) GuessTrack(ctx context.Context, playerID uuid.UUID, text string) (*GuessOutcome, error) {
	player, err := e.store.Player(ctx, playerID)
	if err != nil {
		return nil, err
	}

	lock := e.lobbyLock(player.LobbyID)
	lock.Lock()
	defer lock.Unlock()

	track, err := e.currentRound(ctx, player.LobbyID)
	if err != nil {
		return nil, err
	}
	answer, err := e.answerFor(ctx, playerID, track.ID)
	if err != nil {
		return nil, err
	}
	if answer.Complete() {
		return nil, fmt.Errorf("%w: answer already found", ErrInvalidState)
	}

	res := Match(text, answer.PartialAnswer, track.Name, track.Artists)

	newlyTrack := res.TrackMatched && answer.GuessedTrackAt == nil
	newlyArtists := res.ArtistsMatched && answer.GuessedArtistsAt == nil

	now := e.now()
	var trackAt, artistsAt *time.Time
	if newlyTrack {
		trackAt = &now
	}
	if newlyArtists {
		artistsAt = &now
	}

	// Joint completion: both dimensions are now found, whether in this guess
	// alone or combined with earlier ones. The speed rank is the number of
	// players who completed before us.
	completedNow := (newlyTrack || answer.GuessedTrackAt != nil) &&
		(newlyArtists || answer.GuessedArtistsAt != nil) &&
		(newlyTrack || newlyArtists)

	rank := 0
	if completedNow {
		rank, err = e.store.CountCompleteAnswers(ctx, track.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := e.store.RecordGuessProgress(ctx, answer.ID, res.PartialAnswer, trackAt, artistsAt); err != nil {
		return nil, fmt.Errorf("record guess: %w", err)
	}

	isOwn := track.PlayerID == playerID
	delta := ComputeScore(isOwn, newlyTrack, newlyArtists, false, rank)
	if completedNow && !(newlyTrack && newlyArtists) {
		// The joint match was completed across separate guesses, so
		// ComputeScore saw only one dimension; add the bonus here.
		delta += speedBonus(rank)
	}
	if delta != 0 {
		if err := e.store.AddPlayerScore(ctx, playerID, delta); err != nil {
			return nil, err
		}
	}

	if newlyTrack || newlyArtists {
		e.log.WithFields(logrus.Fields{
			"player": playerID,
			"track":  track.ID,
			"name":   newlyTrack,
			"artist": newlyArtists,
			"points": delta,
		}).Info("guess matched")
	}

	return &GuessOutcome{
		TrackFound:   newlyTrack || answer.GuessedTrackAt != nil,
		ArtistsFound: newlyArtists || answer.GuessedArtistsAt != nil,
		Points:       delta,
	}, nil
}

// speedBonus is the rank-dependent extra for completing the joint
// track+artists match. Rank 0 is first.
func speedBonus(rank int) int {
	if bonus := maxSpeedBonus - rank; bonus > 0 {
		return bonus
	}
	return 0
}

// GuessPlayer records the player's one allowed guess at who contributed the
// current track. An incorrect guess is not retryable for this track.
func (e *Engine) GuessPlayer(ctx context.Context, playerID, guessedPlayerID uuid.UUID) (*PlayerGuessOutcome, error) {
	player, err := e.store.Player(ctx, playerID)
	if err != nil {
		return nil, err
	}

	lock := e.lobbyLock(player.LobbyID)
	lock.Lock()
	defer lock.Unlock()

	track, err := e.currentRound(ctx, player.LobbyID)
	if err != nil {
		return nil, err
	}
	answer, err := e.answerFor(ctx, playerID, track.ID)
	if err != nil {
		return nil, err
	}
	if answer.GuessedPlayerID != nil {
		return nil, fmt.Errorf("%w: already guessed a player for this track", ErrInvalidState)
	}

	correct := guessedPlayerID == track.PlayerID
	var correctAt *time.Time
	if correct {
		now := e.now()
		correctAt = &now
	}
	if err := e.store.RecordPlayerGuess(ctx, answer.ID, guessedPlayerID, correctAt); err != nil {
		return nil, fmt.Errorf("record player guess: %w", err)
	}

	points := 0
	if correct {
		points = ComputeScore(track.PlayerID == playerID, false, false, true, 0)
		if err := e.store.AddPlayerScore(ctx, playerID, points); err != nil {
			return nil, err
		}
	}

	return &PlayerGuessOutcome{Correct: correct, Points: points}, nil
}

// PlayerAnswer returns the player's own progress for the current round. An
// empty progress is returned between rounds or before any interaction.
func (e *Engine) PlayerAnswer(ctx context.Context, playerID uuid.UUID) (*AnswerProgress, error) {
	player, err := e.store.Player(ctx, playerID)
	if err != nil {
		return nil, err
	}
	lobby, err := e.store.Lobby(ctx, player.LobbyID)
	if err != nil {
		return nil, err
	}
	if lobby.CurrentTrackID == nil {
		return &AnswerProgress{}, nil
	}
	answer, err := e.store.AnswerFor(ctx, playerID, *lobby.CurrentTrackID)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		return &AnswerProgress{}, nil
	}
	return &AnswerProgress{
		GuessedTrackAt:   answer.GuessedTrackAt,
		GuessedArtistsAt: answer.GuessedArtistsAt,
		GuessedPlayerAt:  answer.GuessedPlayerAt,
	}, nil
}
