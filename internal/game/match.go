// internal/game/match.go
package game

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// editTolerance is the maximum levenshtein distance between a guess token
	// and a target token that still counts as a match.
	editTolerance = 1
	// matchThreshold is the fraction of a target's tokens that must be matched
	// for that dimension to count as found.
	matchThreshold = 0.8
)

// MatchResult is the outcome of evaluating one guess against a track.
type MatchResult struct {
	// PartialAnswer is the deduplicated set of tokens, from this and prior
	// guesses, that contributed to any match. Always a superset of the
	// previous partial answer.
	PartialAnswer  string
	TrackMatched   bool
	ArtistsMatched bool
}

// stripMarks removes diacritics after NFD decomposition.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeTokens lowercases, strips diacritics and punctuation, and splits
// into whitespace-separated tokens.
func normalizeTokens(s string) []string {
	s = strings.ToLower(s)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
		// punctuation and apostrophes are dropped entirely
	}
	return strings.Fields(b.String())
}

// tokenGroup tracks which tokens of one target (track name, or a single
// artist) have been consumed so far. A target token is consumed at most once
// per evaluation, so two guess tokens can never both take credit for it.
type tokenGroup struct {
	tokens  []string
	used    []bool
	matched int
}

func newTokenGroup(s string) *tokenGroup {
	toks := normalizeTokens(s)
	return &tokenGroup{tokens: toks, used: make([]bool, len(toks))}
}

// consume tries to match candidate against a not-yet-consumed token of the
// group, within editTolerance. Returns true and consumes the token on match.
func (g *tokenGroup) consume(candidate string) bool {
	for i, tok := range g.tokens {
		if g.used[i] {
			continue
		}
		if levenshtein.ComputeDistance(tok, candidate) <= editTolerance {
			g.used[i] = true
			g.matched++
			return true
		}
	}
	return false
}

// reached reports whether the matched fraction meets matchThreshold.
func (g *tokenGroup) reached() bool {
	if len(g.tokens) == 0 {
		return false
	}
	return float64(g.matched)/float64(len(g.tokens)) >= matchThreshold
}

// Match evaluates a free-text guess against the target track name and artist
// names, folding in tokens from the player's previous partial answer so
// guesses accumulate across submissions.
//
// The track counts as matched when matchThreshold of its tokens are matched.
// Artists count as matched when at least one artist reaches the threshold over
// its own tokens, so naming any one contributing artist is enough.
func Match(guess, previousPartial, trackName string, artistNames []string) MatchResult {
	track := newTokenGroup(trackName)
	artists := make([]*tokenGroup, 0, len(artistNames))
	for _, name := range artistNames {
		artists = append(artists, newTokenGroup(name))
	}

	prevTokens := normalizeTokens(previousPartial)
	candidates := append(normalizeTokens(guess), prevTokens...)

	// All prior partial tokens carry over; they proved themselves before.
	contributed := make([]string, 0, len(prevTokens))
	seen := make(map[string]bool, len(prevTokens))
	for _, tok := range prevTokens {
		if !seen[tok] {
			seen[tok] = true
			contributed = append(contributed, tok)
		}
	}

	for _, cand := range candidates {
		hit := track.consume(cand)
		for _, artist := range artists {
			if artist.consume(cand) {
				hit = true
			}
		}
		if hit && !seen[cand] {
			seen[cand] = true
			contributed = append(contributed, cand)
		}
	}

	artistsMatched := false
	for _, artist := range artists {
		if artist.reached() {
			artistsMatched = true
			break
		}
	}

	return MatchResult{
		PartialAnswer:  strings.Join(contributed, " "),
		TrackMatched:   track.reached(),
		ArtistsMatched: artistsMatched,
	}
}
