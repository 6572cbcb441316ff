package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreRules(t *testing.T) {
	start := UserScore{CurrentStreak: 3, LongestStreak: 3, Wins: 5, Losses: 2}

	assert.Equal(t, UserScore{CurrentStreak: 4, LongestStreak: 4, Wins: 6, Losses: 2}, start.Won())
	assert.Equal(t, UserScore{CurrentStreak: 0, LongestStreak: 3, Wins: 5, Losses: 3}, start.Lost())
	assert.Equal(t, UserScore{CurrentStreak: 2, LongestStreak: 3, Wins: 5, Losses: 2}, start.Drew())

	// Longest streak only moves once it is beaten.
	behind := UserScore{CurrentStreak: 1, LongestStreak: 6}
	assert.Equal(t, 6, behind.Won().LongestStreak)
	assert.Equal(t, UserScore{}, UserScore{}.Drew())
}
