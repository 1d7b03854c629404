// internal/catalog/generator.go builds the playlist for a game. Each round's
// track starts from one player's picked artists: Last.fm widens the pick to
// similar artists, one of their top tracks gets matched against Spotify, and
// the track ships with a playable preview URL. Any failure along the chain
// retries with another of the player's artists.
package catalog

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sixelasacul/friend-blind-test/internal/models"
)

const (
	similarArtistsLimit = 10
	topTracksLimit      = 10
)

var errArtistsExhausted = errors.New("no artist produced a playable track")

// featuringRegex strips trailing "feat." style credits so titles match both
// the Spotify catalog and player guesses.
var featuringRegex = regexp.MustCompile(`(?i)\(*(?:feat\.|ft\.|featuring) [\w\s]+\)*$`)

// RemoveFeaturings trims a trailing featuring credit from a track name. A
// title that starts with the credit is left alone.
func RemoveFeaturings(trackName string) string {
	loc := featuringRegex.FindStringIndex(trackName)
	if loc == nil || loc[0] <= 0 {
		return trackName
	}
	return strings.TrimSpace(trackName[:loc[0]])
}

// Generator satisfies the engine's catalog dependency.
type Generator struct {
	lastFm     *LastFmClient
	spotify    *SpotifyClient
	httpClient *http.Client
	log        *logrus.Logger

	tracksPerGame int
	intn          func(n int) int
}

// NewGenerator wires the external clients together. tracksPerGame controls
// the playlist length.
func NewGenerator(lastFm *LastFmClient, spotify *SpotifyClient, httpClient *http.Client, log *logrus.Logger, tracksPerGame int) *Generator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Generator{
		lastFm:        lastFm,
		spotify:       spotify,
		httpClient:    httpClient,
		log:           log,
		tracksPerGame: tracksPerGame,
		intn:          rand.Intn,
	}
}

// GenerateTracks produces up to tracksPerGame tracks for a lobby. selections
// holds one artist list per participating player. Slots whose player's
// artists all fail are skipped rather than failing the whole batch.
func (g *Generator) GenerateTracks(ctx context.Context, lobbyID uuid.UUID, selections [][]models.Artist) ([]models.Track, error) {
	var eligible [][]models.Artist
	for _, artists := range selections {
		if len(artists) > 0 {
			eligible = append(eligible, artists)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	playerSlots := g.pickPlayerSlots(len(eligible), g.tracksPerGame)

	tracks := make([]models.Track, 0, g.tracksPerGame)
	for _, playerIndex := range playerSlots {
		track, err := g.generateOne(ctx, eligible[playerIndex])
		if err != nil {
			g.log.WithError(err).WithField("lobby_id", lobbyID).Warn("catalog: skipping track slot")
			continue
		}
		track.ID = uuid.Must(uuid.NewV7())
		track.LobbyID = lobbyID
		track.Order = len(tracks)
		tracks = append(tracks, *track)
	}
	return tracks, nil
}

// generateOne walks one player's artist list in random order until a pick
// yields a Spotify match with a long enough preview.
func (g *Generator) generateOne(ctx context.Context, playerArtists []models.Artist) (*models.Track, error) {
	remaining := make([]models.Artist, len(playerArtists))
	copy(remaining, playerArtists)

	for len(remaining) > 0 {
		idx := g.intn(len(remaining))
		artist := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		track, err := g.tryArtist(ctx, artist)
		if err != nil {
			g.log.WithError(err).WithFields(logrus.Fields{
				"original_artist": artist.Name,
				"player_id":       artist.PlayerID,
			}).Debug("catalog: artist attempt failed")
			continue
		}
		return track, nil
	}
	return nil, errArtistsExhausted
}

func (g *Generator) tryArtist(ctx context.Context, artist models.Artist) (*models.Track, error) {
	similar, err := g.lastFm.SimilarArtists(ctx, artist.Name, similarArtistsLimit)
	if err != nil {
		return nil, err
	}
	// The original pick stays in the pool so well-known artists still show up.
	candidates := append(similar, artist.Name)
	picked := candidates[g.intn(len(candidates))]

	topTracks, err := g.lastFm.TopTracks(ctx, picked, topTracksLimit)
	if err != nil {
		return nil, err
	}
	if len(topTracks) == 0 {
		return nil, errors.New("artist has no top tracks")
	}
	pickedTrack := topTracks[g.intn(len(topTracks))]

	name := RemoveFeaturings(pickedTrack.Name)
	if name == "" {
		return nil, errors.New("track name is empty after sanitizing")
	}

	spotifyTrack, err := g.spotify.SearchTrack(ctx, pickedTrack.Artist, name)
	if err != nil {
		return nil, err
	}
	if spotifyTrack == nil {
		return nil, errors.New("track not found on spotify")
	}
	// Last.fm lumps collaborations under a single artist entry, Spotify
	// credits each contributor, so the Spotify list is what players guess.
	if len(spotifyTrack.Artists) == 0 {
		return nil, errors.New("spotify track has no artists")
	}

	previewURL, err := g.PreviewURL(ctx, spotifyTrack.ExternalURL)
	if err != nil {
		return nil, err
	}
	if previewURL == "" {
		return nil, errors.New("track page has no preview url")
	}

	duration, err := g.previewDuration(ctx, previewURL)
	if err != nil {
		return nil, err
	}
	if duration < previewMinDuration {
		return nil, errors.New("preview is shorter than a full round")
	}

	return &models.Track{
		PlayerID:   artist.PlayerID,
		Name:       name,
		Artists:    spotifyTrack.Artists,
		PreviewURL: previewURL,
	}, nil
}

// pickPlayerSlots assigns a player index to each track slot. With fewer
// players than slots the indices repeat; with more, each player appears at
// most once.
func (g *Generator) pickPlayerSlots(playerCount, slots int) []int {
	allowDuplicates := playerCount <= slots
	picked := make([]int, 0, slots)
	seen := make(map[int]bool, playerCount)

	for len(picked) < slots {
		idx := g.intn(playerCount)
		if !allowDuplicates && seen[idx] {
			continue
		}
		seen[idx] = true
		picked = append(picked, idx)
	}
	return picked
}
