package model

import "time"

type Verdict string

const (
	VerdictAccepted    Verdict = "Accepted"
	VerdictWrongAnswer Verdict = "Wrong Answer"
	VerdictPartial     Verdict = "Partial"
	VerdictManual      Verdict = "Manual"
	VerdictPending     Verdict = "Pending"
)

// Submission is append-only: inserted once, never updated or deleted.
// Exactly one of ProblemID (practice) or ContestProblemID (contest) is set.
type Submission struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	ProblemID        *string   `json:"problem_id,omitempty"`
	ContestProblemID *string   `json:"contest_problem_id,omitempty"`
	ContestID        *string   `json:"contest_id,omitempty"`
	Answer           string    `json:"answer"`
	IsCorrect        bool      `json:"is_correct"`
	Score            int       `json:"score"`
	Verdict          Verdict   `json:"verdict"`
	TimeTakenMs      *int      `json:"time_taken_ms,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
