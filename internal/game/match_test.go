// internal/game/match_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchExactTitleAndArtist(t *testing.T) {
	res := Match("mr brightside the killers", "", "Mr. Brightside", []string{"The Killers"})

	assert.True(t, res.TrackMatched)
	assert.True(t, res.ArtistsMatched)
}

func TestMatchIgnoresCaseAndPunctuation(t *testing.T) {
	res := Match("MR BRIGHTSIDE", "", "Mr. Brightside", []string{"The Killers"})

	assert.True(t, res.TrackMatched)
	assert.False(t, res.ArtistsMatched)
}

func TestMatchIgnoresDiacritics(t *testing.T) {
	res := Match("beyonce", "", "Halo", []string{"Beyoncé"})

	assert.False(t, res.TrackMatched)
	assert.True(t, res.ArtistsMatched)
}

func TestMatchToleratesOneTypoPerToken(t *testing.T) {
	res := Match("mr brightsid", "", "Mr. Brightside", nil)
	assert.True(t, res.TrackMatched)

	res = Match("mr brightsi", "", "Mr. Brightside", nil)
	assert.False(t, res.TrackMatched)
}

func TestMatchAccumulatesAcrossGuesses(t *testing.T) {
	first := Match("mr", "", "Mr. Brightside", []string{"The Killers"})
	assert.False(t, first.TrackMatched)
	assert.Equal(t, "mr", first.PartialAnswer)

	second := Match("brightside", first.PartialAnswer, "Mr. Brightside", []string{"The Killers"})
	assert.True(t, second.TrackMatched)
	assert.Equal(t, "mr brightside", second.PartialAnswer)
}

func TestMatchRequiresThreshold(t *testing.T) {
	// 4 of 5 tokens is exactly the cutoff.
	res := Match("one two three four", "", "One Two Three Four Five", nil)
	assert.True(t, res.TrackMatched)

	res = Match("one two three", "", "One Two Three Four Five", nil)
	assert.False(t, res.TrackMatched)
}

func TestMatchRepeatedTokensNeedRepeatedGuesses(t *testing.T) {
	// A single "la" may not stand in for both occurrences in the title.
	res := Match("la land", "", "La La Land", nil)
	assert.False(t, res.TrackMatched)

	res = Match("la la land", "", "La La Land", nil)
	assert.True(t, res.TrackMatched)
}

func TestMatchAnyOneArtistSuffices(t *testing.T) {
	res := Match("daft punk", "", "Get Lucky", []string{"Daft Punk", "Pharrell Williams", "Nile Rodgers"})

	assert.True(t, res.ArtistsMatched)
	assert.False(t, res.TrackMatched)
}

func TestMatchArtistTokensDoNotCombineAcrossArtists(t *testing.T) {
	// One token from each of two artists matches neither fully.
	res := Match("daft williams", "", "Get Lucky", []string{"Daft Punk", "Pharrell Williams"})

	assert.False(t, res.ArtistsMatched)
}

func TestMatchEmptyTargetsNeverMatch(t *testing.T) {
	res := Match("anything", "", "", nil)

	assert.False(t, res.TrackMatched)
	assert.False(t, res.ArtistsMatched)
}

func TestMatchPartialAnswerOnlyKeepsContributingTokens(t *testing.T) {
	res := Match("the wrong killers guess", "", "Mr. Brightside", []string{"The Killers"})

	assert.Equal(t, "the killers", res.PartialAnswer)
	assert.True(t, res.ArtistsMatched)
}
