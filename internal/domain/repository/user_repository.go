package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prep_arena/internal/common"
	"prep_arena/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByIDForUpdate locks the user row for the duration of tx. The
	// streak and rating writers go through this so concurrent submissions
	// for one user serialize.
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error)

	UpdateStreak(ctx context.Context, tx *sql.Tx, userID string, current, longest int, lastSolvedAt time.Time) error
	AddSolvedProblem(ctx context.Context, tx *sql.Tx, userID, problemID string, solvedAt time.Time) error
	CountSolved(ctx context.Context, userID string) (int, error)

	UpdateRating(ctx context.Context, tx *sql.Tx, userID string, rating int) error
	AppendContestHistory(ctx context.Context, tx *sql.Tx, entry *model.ContestHistoryEntry) error
	ListContestHistory(ctx context.Context, userID string) ([]model.ContestHistoryEntry, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, username, email, hashed_password, role, rating,
	current_streak, longest_streak, last_solved_at, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.Role, &user.Rating,
		&user.CurrentStreak, &user.LongestStreak, &user.LastSolvedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, hashed_password, role, rating)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.HashedPassword, user.Role, user.Rating)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint violation
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgUserRepository.FindByEmail: %w", err)
	}
	return user, err
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgUserRepository.FindByUsername: %w", err)
	}
	return user, err
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	return user, err
}

func (r *pgUserRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	user, err := scanUser(executor(r.db, tx).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgUserRepository.FindByIDForUpdate: %w", err)
	}
	return user, err
}

func (r *pgUserRepository) UpdateStreak(ctx context.Context, tx *sql.Tx, userID string, current, longest int, lastSolvedAt time.Time) error {
	query := `UPDATE users SET current_streak = $1, longest_streak = $2, last_solved_at = $3,
	          updated_at = CURRENT_TIMESTAMP WHERE id = $4`
	if _, err := executor(r.db, tx).ExecContext(ctx, query, current, longest, lastSolvedAt, userID); err != nil {
		return fmt.Errorf("pgUserRepository.UpdateStreak: %w", err)
	}
	return nil
}

func (r *pgUserRepository) AddSolvedProblem(ctx context.Context, tx *sql.Tx, userID, problemID string, solvedAt time.Time) error {
	// Re-solving must not duplicate the entry.
	query := `INSERT INTO solved_problems (user_id, problem_id, solved_at)
	          VALUES ($1, $2, $3) ON CONFLICT (user_id, problem_id) DO NOTHING`
	if _, err := executor(r.db, tx).ExecContext(ctx, query, userID, problemID, solvedAt); err != nil {
		return fmt.Errorf("pgUserRepository.AddSolvedProblem: %w", err)
	}
	return nil
}

func (r *pgUserRepository) CountSolved(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM solved_problems WHERE user_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgUserRepository.CountSolved: %w", err)
	}
	return count, nil
}

func (r *pgUserRepository) UpdateRating(ctx context.Context, tx *sql.Tx, userID string, rating int) error {
	query := `UPDATE users SET rating = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	if _, err := executor(r.db, tx).ExecContext(ctx, query, rating, userID); err != nil {
		return fmt.Errorf("pgUserRepository.UpdateRating: %w", err)
	}
	return nil
}

func (r *pgUserRepository) AppendContestHistory(ctx context.Context, tx *sql.Tx, entry *model.ContestHistoryEntry) error {
	query := `INSERT INTO contest_history (id, user_id, contest_id, score, rank, rating_before, rating_after, participated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := executor(r.db, tx).ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.ContestID, entry.Score, entry.Rank,
		entry.RatingBefore, entry.RatingAfter, entry.ParticipatedAt,
	)
	if err != nil {
		return fmt.Errorf("pgUserRepository.AppendContestHistory: %w", err)
	}
	return nil
}

func (r *pgUserRepository) ListContestHistory(ctx context.Context, userID string) ([]model.ContestHistoryEntry, error) {
	query := `SELECT id, user_id, contest_id, score, rank, rating_before, rating_after, participated_at
	          FROM contest_history WHERE user_id = $1 ORDER BY participated_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.ListContestHistory: %w", err)
	}
	defer rows.Close()

	var entries []model.ContestHistoryEntry
	for rows.Next() {
		var e model.ContestHistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ContestID, &e.Score, &e.Rank, &e.RatingBefore, &e.RatingAfter, &e.ParticipatedAt); err != nil {
			return nil, fmt.Errorf("pgUserRepository.ListContestHistory: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
