package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

type ProblemDifficulty string
type InputType string

const (
	DifficultyEasy   ProblemDifficulty = "easy"
	DifficultyMedium ProblemDifficulty = "medium"
	DifficultyHard   ProblemDifficulty = "hard"

	InputSingleChoice InputType = "mcq_single"
	InputNumeric      InputType = "numeric"
	InputManual       InputType = "manual"
)

// DefaultNumericTolerance applies when a numeric problem declares none.
const DefaultNumericTolerance = 1e-3

type ChoiceOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// AnswerScheme declares how a problem is graded. The InputType tag decides
// which of the remaining fields are meaningful: CorrectAnswer holds a choice
// id for single-choice problems and a decimal literal for numeric ones;
// manual problems carry neither and are routed to human review.
type AnswerScheme struct {
	InputType        InputType      `json:"input_type"`
	Options          []ChoiceOption `json:"options,omitempty"`
	CorrectAnswer    string         `json:"correct_answer,omitempty"`
	NumericTolerance float64        `json:"numeric_tolerance"`
	Points           int            `json:"points"`
}

type Problem struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Slug       string            `json:"slug"`
	Statement  string            `json:"statement"`
	Topics     []string          `json:"topics,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Difficulty ProblemDifficulty `json:"difficulty"`
	AnswerScheme
	Solution    string    `json:"solution,omitempty"`
	CreatedByID *string   `json:"created_by_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContestProblem is a problem scoped to one contest. It shares the answer
// scheme shape with Problem but lives in a separate collection so contest
// answers never leak into the practice pool.
type ContestProblem struct {
	ID         string            `json:"id"`
	ContestID  string            `json:"contest_id"`
	Title      string            `json:"title"`
	Statement  string            `json:"statement"`
	Difficulty ProblemDifficulty `json:"difficulty"`
	AnswerScheme
	Solution  string    `json:"solution,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the internal consistency of an answer scheme: the stored
// correct answer must fit the declared input type and tolerance/points must
// be non-negative.
func (s *AnswerScheme) Validate() error {
	if s.NumericTolerance < 0 {
		return errors.New("numeric tolerance must be non-negative")
	}
	if s.Points < 0 {
		return errors.New("points must be non-negative")
	}
	switch s.InputType {
	case InputSingleChoice:
		if len(s.Options) == 0 {
			return errors.New("single-choice problem needs at least one option")
		}
		for _, o := range s.Options {
			if o.ID == s.CorrectAnswer {
				return nil
			}
		}
		return errors.New("correct answer must be one of the option ids")
	case InputNumeric:
		if _, err := strconv.ParseFloat(strings.TrimSpace(s.CorrectAnswer), 64); err != nil {
			return errors.New("numeric problem needs a parseable correct answer")
		}
	case InputManual:
		// Nothing to check; graded by a human.
	default:
		return errors.New("unknown input type")
	}
	return nil
}

// Sanitize strips grading secrets before the problem is shown to solvers.
func (p *Problem) Sanitize() {
	p.CorrectAnswer = ""
	p.Solution = ""
}

func (cp *ContestProblem) Sanitize() {
	cp.CorrectAnswer = ""
	cp.Solution = ""
}
