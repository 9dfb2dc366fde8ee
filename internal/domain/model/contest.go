package model

import (
	"cmp"
	"slices"
	"time"
)

type ContestKind string
type ContestStatus string

const (
	KindWeekly   ContestKind = "weekly"
	KindBiweekly ContestKind = "biweekly"
	KindMock     ContestKind = "mock"
	KindSpecial  ContestKind = "special"

	StatusUpcoming  ContestStatus = "upcoming"
	StatusLive      ContestStatus = "live"
	StatusCompleted ContestStatus = "completed"
)

type Contest struct {
	ID            string            `json:"id"`
	ContestNumber int               `json:"contest_number"`
	Title         string            `json:"title"`
	Kind          ContestKind       `json:"kind"`
	Difficulty    ProblemDifficulty `json:"difficulty"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	RatingAffects bool              `json:"rating_affects"`
	Finalized     bool              `json:"finalized"`
	Problems      []ContestProblem  `json:"problems,omitempty"`
	Participants  []Participant     `json:"participants,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Status derives the lifecycle phase from the time window.
func (c *Contest) Status(now time.Time) ContestStatus {
	if now.Before(c.StartTime) {
		return StatusUpcoming
	}
	if now.After(c.EndTime) {
		return StatusCompleted
	}
	return StatusLive
}

// Participant is a user's per-contest record. Score and Solved only grow
// while the contest is live; Rank and RatingAfter are set once at
// finalization.
type Participant struct {
	ContestID        string     `json:"contest_id"`
	UserID           string     `json:"user_id"`
	Username         string     `json:"username,omitempty"`
	Score            int        `json:"score"`
	Solved           int        `json:"solved"`
	LastSubmissionAt *time.Time `json:"last_submission_at,omitempty"`
	IsSubmitted      bool       `json:"is_submitted"`
	Rank             *int       `json:"rank,omitempty"`
	RatingBefore     *int       `json:"rating_before,omitempty"`
	RatingAfter      *int       `json:"rating_after,omitempty"`
	JoinedAt         time.Time  `json:"joined_at"`
}

// ScoreboardEntry is the display projection of a ranked participant.
type ScoreboardEntry struct {
	Rank             int        `json:"rank"`
	UserID           string     `json:"user_id"`
	Username         string     `json:"username"`
	Score            int        `json:"score"`
	Solved           int        `json:"solved"`
	LastSubmissionAt *time.Time `json:"last_submission_at,omitempty"`
}

// RankParticipants orders participants by score descending, earlier last
// submission first among ties. Participants who never submitted sort last
// among equal scores. Both the live scoreboard and contest finalization use
// this ordering, so rank 1 on the board is rank 1 in the rating update.
func RankParticipants(participants []Participant) []Participant {
	ranked := make([]Participant, len(participants))
	copy(ranked, participants)

	slices.SortStableFunc(ranked, func(a, b Participant) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return submissionInstant(a).Compare(submissionInstant(b))
	})
	return ranked
}

func submissionInstant(p Participant) time.Time {
	if p.LastSubmissionAt == nil {
		// No submission sorts after any real timestamp.
		return time.Unix(1<<62, 0)
	}
	return *p.LastSubmissionAt
}
