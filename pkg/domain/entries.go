package domain

import "github.com/google/uuid"

// RankEntry is one row of an integer-score leaderboard.
type RankEntry struct {
	ID    uuid.UUID
	Name  string
	Score int
}

// ProgressEntry is one row of a collection-progress leaderboard. Progress is
// a percentage in [0, 100] of category members the player has ever obtained.
type ProgressEntry struct {
	ID       uuid.UUID
	Name     string
	Progress float64
}
