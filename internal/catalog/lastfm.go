// internal/catalog/lastfm.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const lastFmBaseURL = "http://ws.audioscrobbler.com/2.0/"

// LastFmClient wraps the subset of the Last.fm REST API used for track
// generation: similar artists and an artist's top tracks.
type LastFmClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewLastFmClient builds a client with the given API key.
func NewLastFmClient(apiKey string, httpClient *http.Client) *LastFmClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LastFmClient{apiKey: apiKey, httpClient: httpClient, baseURL: lastFmBaseURL}
}

type lastFmArtist struct {
	Name string `json:"name"`
}

type lastFmTrack struct {
	Name   string       `json:"name"`
	Artist lastFmArtist `json:"artist"`
}

type similarArtistsResponse struct {
	SimilarArtists struct {
		Artist []lastFmArtist `json:"artist"`
	} `json:"similarartists"`
}

type topTracksResponse struct {
	TopTracks struct {
		Track []lastFmTrack `json:"track"`
	} `json:"toptracks"`
}

// SimilarArtists returns artist names similar to the given one.
func (c *LastFmClient) SimilarArtists(ctx context.Context, artist string, limit int) ([]string, error) {
	var resp similarArtistsResponse
	if err := c.get(ctx, "artist.getSimilar", artist, limit, &resp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.SimilarArtists.Artist))
	for _, a := range resp.SimilarArtists.Artist {
		names = append(names, a.Name)
	}
	return names, nil
}

// TopTrack pairs a track name with the artist name Last.fm associates to it.
type TopTrack struct {
	Name   string
	Artist string
}

// TopTracks returns the most played tracks for an artist.
func (c *LastFmClient) TopTracks(ctx context.Context, artist string, limit int) ([]TopTrack, error) {
	var resp topTracksResponse
	if err := c.get(ctx, "artist.getTopTracks", artist, limit, &resp); err != nil {
		return nil, err
	}

	tracks := make([]TopTrack, 0, len(resp.TopTracks.Track))
	for _, t := range resp.TopTracks.Track {
		tracks = append(tracks, TopTrack{Name: t.Name, Artist: t.Artist.Name})
	}
	return tracks, nil
}

func (c *LastFmClient) get(ctx context.Context, method, artist string, limit int, out any) error {
	params := url.Values{}
	params.Set("method", method)
	params.Set("format", "json")
	params.Set("api_key", c.apiKey)
	params.Set("artist", artist)
	params.Set("limit", fmt.Sprint(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lastfm %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lastfm %s returned status %d", method, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode lastfm %s response: %w", method, err)
	}
	return nil
}
