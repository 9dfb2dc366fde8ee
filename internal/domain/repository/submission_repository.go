package repository

import (
	"context"
	"database/sql"
	"fmt"

	"prep_arena/internal/domain/model"
)

type SubmissionRepository interface {
	// CreateSubmission appends to the submission log; rows are never
	// updated afterwards.
	CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error

	// HasCorrectContestSubmission reports whether the user already has a
	// correct submission for this contest problem. Callers run it inside
	// the same transaction that holds the participant row lock, so the
	// check-then-credit sequence is race-free.
	HasCorrectContestSubmission(ctx context.Context, tx *sql.Tx, userID, contestID, contestProblemID string) (bool, error)

	ListByUser(ctx context.Context, userID string, limit int) ([]model.Submission, error)
	ListForUserProblem(ctx context.Context, userID, problemID string, limit int) ([]model.Submission, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `id, user_id, problem_id, contest_problem_id, contest_id,
	answer, is_correct, score, verdict, time_taken_ms, created_at`

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, problem_id, contest_problem_id, contest_id,
	            answer, is_correct, score, verdict, time_taken_ms, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := executor(r.db, tx).ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.ProblemID, sub.ContestProblemID, sub.ContestID,
		sub.Answer, sub.IsCorrect, sub.Score, sub.Verdict, sub.TimeTakenMs, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) HasCorrectContestSubmission(ctx context.Context, tx *sql.Tx, userID, contestID, contestProblemID string) (bool, error) {
	query := `SELECT EXISTS (
	            SELECT 1 FROM submissions
	            WHERE user_id = $1 AND contest_id = $2 AND contest_problem_id = $3 AND is_correct
	          )`
	var exists bool
	err := executor(r.db, tx).QueryRowContext(ctx, query, userID, contestID, contestProblemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.HasCorrectContestSubmission: %w", err)
	}
	return exists, nil
}

func (r *pgSubmissionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
	          WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, userID, limit)
}

func (r *pgSubmissionRepository) ListForUserProblem(ctx context.Context, userID, problemID string, limit int) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
	          WHERE user_id = $1 AND (problem_id = $2 OR contest_problem_id = $2)
	          ORDER BY created_at DESC LIMIT $3`
	return r.list(ctx, query, userID, problemID, limit)
}

func (r *pgSubmissionRepository) list(ctx context.Context, query string, args ...any) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.list: %w", err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var s model.Submission
		err := rows.Scan(
			&s.ID, &s.UserID, &s.ProblemID, &s.ContestProblemID, &s.ContestID,
			&s.Answer, &s.IsCorrect, &s.Score, &s.Verdict, &s.TimeTakenMs, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.list scan: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
