// internal/game/snapshot.go
package game

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sixelasacul/friend-blind-test/internal/models"
)

// RoundAnswerView is the public, obfuscated view of one player's progress on
// the current round: which dimensions they found, never the answer text.
type RoundAnswerView struct {
	PlayerID       uuid.UUID `json:"playerId"`
	GuessedTrack   bool      `json:"guessedTrack"`
	GuessedArtists bool      `json:"guessedArtists"`
	GuessedPlayer  bool      `json:"guessedPlayer"`
}

// CurrentRoundView exposes only what clients need to play the round. The
// track name, artists and contributor stay hidden until the round is over.
type CurrentRoundView struct {
	TrackID       uuid.UUID         `json:"trackId"`
	PreviewURL    string            `json:"previewUrl"`
	StartedAt     *time.Time        `json:"startedAt,omitempty"`
	PlayerAnswers []RoundAnswerView `json:"playerAnswers"`
}

// RevealedRound is a past round with full detail, including every answer.
type RevealedRound struct {
	Track   models.Track    `json:"track"`
	Answers []models.Answer `json:"answers"`
}

// Snapshot is the full game view for the presentation layer.
type Snapshot struct {
	Lobby models.Lobby `json:"lobby"`
	// Players are ranked by score, highest first.
	Players        []models.Player   `json:"players"`
	CurrentRound   *CurrentRoundView `json:"currentRound,omitempty"`
	PreviousRounds []RevealedRound   `json:"previousRounds"`
}

// GameSnapshot assembles the presentation view of a lobby: ranked players,
// the obfuscated current round, and prior rounds revealed in full.
func (e *Engine) GameSnapshot(ctx context.Context, lobbyID uuid.UUID) (*Snapshot, error) {
	lobby, err := e.store.Lobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	players, err := e.store.PlayersByLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(players, func(i, j int) bool { return players[i].Score > players[j].Score })

	tracks, err := e.store.TracksByLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Lobby: *lobby, Players: players, PreviousRounds: []RevealedRound{}}

	currentOrder := -1
	if lobby.CurrentTrackID != nil {
		for _, t := range tracks {
			if t.ID != *lobby.CurrentTrackID {
				continue
			}
			currentOrder = t.Order
			view := &CurrentRoundView{
				TrackID:       t.ID,
				PreviewURL:    t.PreviewURL,
				StartedAt:     lobby.StartedTrackAt,
				PlayerAnswers: []RoundAnswerView{},
			}
			answers, err := e.store.AnswersByTrack(ctx, t.ID)
			if err != nil {
				return nil, err
			}
			for _, a := range answers {
				view.PlayerAnswers = append(view.PlayerAnswers, RoundAnswerView{
					PlayerID:       a.PlayerID,
					GuessedTrack:   a.GuessedTrackAt != nil,
					GuessedArtists: a.GuessedArtistsAt != nil,
					GuessedPlayer:  a.GuessedPlayerAt != nil,
				})
			}
			snap.CurrentRound = view
			break
		}
	}

	// In the pause between the last round and the game-end reveal there is no
	// current track; every played round stays revealed.
	revealBefore := currentOrder
	if lobby.Status == models.StatusFinished ||
		(lobby.Status == models.StatusPaused && lobby.CurrentTrackID == nil) {
		revealBefore = len(tracks)
	}

	for _, t := range tracks {
		if t.Order >= revealBefore {
			continue
		}
		answers, err := e.store.AnswersByTrack(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		snap.PreviousRounds = append(snap.PreviousRounds, RevealedRound{Track: t, Answers: answers})
	}

	return snap, nil
}
