// internal/game/score.go
package game

// Scoring constants. Each dimension (track name, artists, contributing player)
// is awarded once, at the moment it first flips to matched.
const (
	pointsPerDimension = 5
	// ownTrackMalus is subtracted per dimension when the round's track was
	// submitted by the guessing player themselves.
	ownTrackMalus = 1
	// maxSpeedBonus is the bonus for being first to match both track and
	// artists; each later rank gets one point less.
	maxSpeedBonus = 3
)

// ComputeScore converts newly matched dimensions into a points delta.
//
// answerRank is the 0-based rank of this player among all players who have
// matched both track and artists for the round; it only applies when this
// guess completes that joint match.
func ComputeScore(isOwnTrack, trackMatched, artistsMatched, playerGuessed bool, answerRank int) int {
	score := 0
	malus := 0
	if isOwnTrack {
		malus = ownTrackMalus
	}
	if trackMatched {
		score += pointsPerDimension - malus
	}
	if artistsMatched {
		score += pointsPerDimension - malus
	}
	if playerGuessed {
		score += pointsPerDimension - malus
	}

	if trackMatched && artistsMatched {
		if bonus := maxSpeedBonus - answerRank; bonus > 0 {
			score += bonus
		}
	}

	return score
}
