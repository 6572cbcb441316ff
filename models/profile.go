package models

import "time"

// UserScore is the win-streak part of a user profile.
type UserScore struct {
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`
}

// Won extends the streak by one and records the win.
func (s UserScore) Won() UserScore {
	s.CurrentStreak++
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.Wins++
	return s
}

// Lost resets the streak. Forfeits count as losses.
func (s UserScore) Lost() UserScore {
	s.CurrentStreak = 0
	s.Losses++
	return s
}

// Drew costs both sides one streak point, floored at zero. Nothing else changes.
func (s UserScore) Drew() UserScore {
	if s.CurrentStreak > 0 {
		s.CurrentStreak--
	}
	return s
}

// UserProfile is the subset of the profile record the engine reads and writes.
type UserProfile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	PostalCode  string    `json:"postal_code"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserScore
}
