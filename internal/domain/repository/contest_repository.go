package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"prep_arena/internal/common"
	"prep_arena/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ContestRepository interface {
	CreateContest(ctx context.Context, c *model.Contest) error
	FindContestByID(ctx context.Context, id string) (*model.Contest, error)
	// FindContestByIDForUpdate locks the contest row; finalization checks
	// and flips the finalized flag under this lock.
	FindContestByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error)
	ListContests(ctx context.Context) ([]model.Contest, error)
	SetFinalized(ctx context.Context, tx *sql.Tx, contestID string) error

	CreateContestProblem(ctx context.Context, cp *model.ContestProblem) error
	FindContestProblemByID(ctx context.Context, id string) (*model.ContestProblem, error)
	ListContestProblems(ctx context.Context, contestID string) ([]model.ContestProblem, error)

	AddParticipant(ctx context.Context, p *model.Participant) error
	FindParticipant(ctx context.Context, contestID, userID string) (*model.Participant, error)
	// FindParticipantForUpdate locks the participant row, serializing all of
	// one user's submissions to one contest.
	FindParticipantForUpdate(ctx context.Context, tx *sql.Tx, contestID, userID string) (*model.Participant, error)
	UpdateParticipantProgress(ctx context.Context, tx *sql.Tx, p *model.Participant) error
	UpdateParticipantResult(ctx context.Context, tx *sql.Tx, contestID, userID string, rank, ratingBefore, ratingAfter int) error
	ListParticipants(ctx context.Context, tx *sql.Tx, contestID string) ([]model.Participant, error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

const contestColumns = `id, contest_number, title, kind, difficulty, start_time, end_time,
	rating_affects, finalized, created_at, updated_at`

func scanContest(row rowScanner) (*model.Contest, error) {
	c := &model.Contest{}
	err := row.Scan(
		&c.ID, &c.ContestNumber, &c.Title, &c.Kind, &c.Difficulty, &c.StartTime, &c.EndTime,
		&c.RatingAffects, &c.Finalized, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *pgContestRepository) CreateContest(ctx context.Context, c *model.Contest) error {
	query := `INSERT INTO contests (id, contest_number, title, kind, difficulty, start_time, end_time, rating_affects)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.ContestNumber, c.Title, c.Kind, c.Difficulty, c.StartTime, c.EndTime, c.RatingAffects,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("contest number already taken: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.CreateContest: %w", err)
	}
	return nil
}

func (r *pgContestRepository) FindContestByID(ctx context.Context, id string) (*model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE id = $1`
	c, err := scanContest(r.db.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgContestRepository.FindContestByID: %w", err)
	}
	return c, err
}

func (r *pgContestRepository) FindContestByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE id = $1 FOR UPDATE`
	c, err := scanContest(executor(r.db, tx).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgContestRepository.FindContestByIDForUpdate: %w", err)
	}
	return c, err
}

func (r *pgContestRepository) ListContests(ctx context.Context) ([]model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContests: %w", err)
	}
	defer rows.Close()

	var contests []model.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListContests scan: %w", err)
		}
		contests = append(contests, *c)
	}
	return contests, rows.Err()
}

func (r *pgContestRepository) SetFinalized(ctx context.Context, tx *sql.Tx, contestID string) error {
	query := `UPDATE contests SET finalized = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := executor(r.db, tx).ExecContext(ctx, query, contestID); err != nil {
		return fmt.Errorf("pgContestRepository.SetFinalized: %w", err)
	}
	return nil
}

const contestProblemColumns = `id, contest_id, title, statement, difficulty,
	input_type, options, correct_answer, numeric_tolerance, points, solution, created_at, updated_at`

func scanContestProblem(row rowScanner) (*model.ContestProblem, error) {
	cp := &model.ContestProblem{}
	var options []byte
	err := row.Scan(
		&cp.ID, &cp.ContestID, &cp.Title, &cp.Statement, &cp.Difficulty,
		&cp.InputType, &options, &cp.CorrectAnswer, &cp.NumericTolerance, &cp.Points, &cp.Solution,
		&cp.CreatedAt, &cp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(options, &cp.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return cp, nil
}

func (r *pgContestRepository) CreateContestProblem(ctx context.Context, cp *model.ContestProblem) error {
	options, _ := json.Marshal(cp.Options)
	query := `INSERT INTO contest_problems (id, contest_id, title, statement, difficulty,
	            input_type, options, correct_answer, numeric_tolerance, points, solution)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		cp.ID, cp.ContestID, cp.Title, cp.Statement, cp.Difficulty,
		cp.InputType, options, cp.CorrectAnswer, cp.NumericTolerance, cp.Points, cp.Solution,
	)
	if err != nil {
		return fmt.Errorf("pgContestRepository.CreateContestProblem: %w", err)
	}
	return nil
}

func (r *pgContestRepository) FindContestProblemByID(ctx context.Context, id string) (*model.ContestProblem, error) {
	query := `SELECT ` + contestProblemColumns + ` FROM contest_problems WHERE id = $1`
	cp, err := scanContestProblem(r.db.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgContestRepository.FindContestProblemByID: %w", err)
	}
	return cp, err
}

func (r *pgContestRepository) ListContestProblems(ctx context.Context, contestID string) ([]model.ContestProblem, error) {
	query := `SELECT ` + contestProblemColumns + ` FROM contest_problems WHERE contest_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContestProblems: %w", err)
	}
	defer rows.Close()

	var problems []model.ContestProblem
	for rows.Next() {
		cp, err := scanContestProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListContestProblems scan: %w", err)
		}
		problems = append(problems, *cp)
	}
	return problems, rows.Err()
}

const participantColumns = `cp.contest_id, cp.user_id, u.username, cp.score, cp.solved,
	cp.last_submission_at, cp.is_submitted, cp.rank, cp.rating_before, cp.rating_after, cp.joined_at`

func scanParticipant(row rowScanner) (*model.Participant, error) {
	p := &model.Participant{}
	err := row.Scan(
		&p.ContestID, &p.UserID, &p.Username, &p.Score, &p.Solved,
		&p.LastSubmissionAt, &p.IsSubmitted, &p.Rank, &p.RatingBefore, &p.RatingAfter, &p.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *pgContestRepository) AddParticipant(ctx context.Context, p *model.Participant) error {
	query := `INSERT INTO contest_participants (contest_id, user_id, score, solved, rating_before)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, p.ContestID, p.UserID, p.Score, p.Solved, p.RatingBefore)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("already registered for this contest: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.AddParticipant: %w", err)
	}
	return nil
}

func (r *pgContestRepository) FindParticipant(ctx context.Context, contestID, userID string) (*model.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM contest_participants cp
	          JOIN users u ON cp.user_id = u.id
	          WHERE cp.contest_id = $1 AND cp.user_id = $2`
	p, err := scanParticipant(r.db.QueryRowContext(ctx, query, contestID, userID))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgContestRepository.FindParticipant: %w", err)
	}
	return p, err
}

func (r *pgContestRepository) FindParticipantForUpdate(ctx context.Context, tx *sql.Tx, contestID, userID string) (*model.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM contest_participants cp
	          JOIN users u ON cp.user_id = u.id
	          WHERE cp.contest_id = $1 AND cp.user_id = $2
	          FOR UPDATE OF cp`
	p, err := scanParticipant(executor(r.db, tx).QueryRowContext(ctx, query, contestID, userID))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgContestRepository.FindParticipantForUpdate: %w", err)
	}
	return p, err
}

func (r *pgContestRepository) UpdateParticipantProgress(ctx context.Context, tx *sql.Tx, p *model.Participant) error {
	query := `UPDATE contest_participants
	          SET score = $1, solved = $2, last_submission_at = $3, is_submitted = $4
	          WHERE contest_id = $5 AND user_id = $6`
	_, err := executor(r.db, tx).ExecContext(ctx, query,
		p.Score, p.Solved, p.LastSubmissionAt, p.IsSubmitted, p.ContestID, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("pgContestRepository.UpdateParticipantProgress: %w", err)
	}
	return nil
}

func (r *pgContestRepository) UpdateParticipantResult(ctx context.Context, tx *sql.Tx, contestID, userID string, rank, ratingBefore, ratingAfter int) error {
	query := `UPDATE contest_participants
	          SET rank = $1, rating_before = $2, rating_after = $3
	          WHERE contest_id = $4 AND user_id = $5`
	if _, err := executor(r.db, tx).ExecContext(ctx, query, rank, ratingBefore, ratingAfter, contestID, userID); err != nil {
		return fmt.Errorf("pgContestRepository.UpdateParticipantResult: %w", err)
	}
	return nil
}

func (r *pgContestRepository) ListParticipants(ctx context.Context, tx *sql.Tx, contestID string) ([]model.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM contest_participants cp
	          JOIN users u ON cp.user_id = u.id
	          WHERE cp.contest_id = $1`
	rows, err := executor(r.db, tx).QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListParticipants: %w", err)
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListParticipants scan: %w", err)
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}
