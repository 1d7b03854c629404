// internal/game/score_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeScoreSingleDimensions(t *testing.T) {
	assert.Equal(t, 5, ComputeScore(false, true, false, false, 0))
	assert.Equal(t, 5, ComputeScore(false, false, true, false, 0))
	assert.Equal(t, 5, ComputeScore(false, false, false, true, 0))
	assert.Equal(t, 0, ComputeScore(false, false, false, false, 0))
}

func TestComputeScoreJointMatchSpeedBonus(t *testing.T) {
	// First to complete gets the full bonus, each later rank one less.
	assert.Equal(t, 13, ComputeScore(false, true, true, false, 0))
	assert.Equal(t, 12, ComputeScore(false, true, true, false, 1))
	assert.Equal(t, 11, ComputeScore(false, true, true, false, 2))
	assert.Equal(t, 10, ComputeScore(false, true, true, false, 3))
	assert.Equal(t, 10, ComputeScore(false, true, true, false, 7))
}

func TestComputeScoreOwnTrackMalus(t *testing.T) {
	assert.Equal(t, 4, ComputeScore(true, true, false, false, 0))
	assert.Equal(t, 4, ComputeScore(true, false, false, true, 0))
	// Malus applies per dimension; the speed bonus is untouched.
	assert.Equal(t, 11, ComputeScore(true, true, true, false, 0))
}

func TestSpeedBonusByRank(t *testing.T) {
	assert.Equal(t, 3, speedBonus(0))
	assert.Equal(t, 2, speedBonus(1))
	assert.Equal(t, 1, speedBonus(2))
	assert.Equal(t, 0, speedBonus(3))
	assert.Equal(t, 0, speedBonus(9))
}
