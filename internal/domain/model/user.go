package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultRating is the rating assigned to every new user.
const DefaultRating = 1500

type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	HashedPassword string     `json:"-"` // Not exposed
	Role           string     `json:"role"`
	Rating         int        `json:"rating"`
	CurrentStreak  int        `json:"current_streak"`
	LongestStreak  int        `json:"longest_streak"`
	LastSolvedAt   *time.Time `json:"last_solved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type SolvedProblem struct {
	ProblemID string    `json:"problem_id"`
	SolvedAt  time.Time `json:"solved_at"`
}

// ContestHistoryEntry is an append-only record of a finalized contest run.
type ContestHistoryEntry struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ContestID      string    `json:"contest_id"`
	Score          int       `json:"score"`
	Rank           int       `json:"rank"`
	RatingBefore   int       `json:"rating_before"`
	RatingAfter    int       `json:"rating_after"`
	ParticipatedAt time.Time `json:"participated_at"`
}
