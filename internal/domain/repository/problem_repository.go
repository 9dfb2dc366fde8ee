package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"prep_arena/internal/common"
	"prep_arena/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ProblemFilter struct {
	Difficulty model.ProblemDifficulty
	Topic      string
	Tag        string
	Limit      int
	Offset     int
}

type ProblemRepository interface {
	CreateProblem(ctx context.Context, p *model.Problem) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error)
	ListProblems(ctx context.Context, filter ProblemFilter) ([]model.Problem, int, error)

	// ToggleBookmark flips the bookmark for (user, problem) and reports
	// whether it is now set.
	ToggleBookmark(ctx context.Context, userID, problemID string) (bool, error)
	ListBookmarks(ctx context.Context, userID string) ([]string, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

const problemColumns = `id, title, slug, statement, topics, tags, difficulty,
	input_type, options, correct_answer, numeric_tolerance, points, solution,
	created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProblem(row rowScanner) (*model.Problem, error) {
	p := &model.Problem{}
	var topics, tags, options []byte
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Statement, &topics, &tags, &p.Difficulty,
		&p.InputType, &options, &p.CorrectAnswer, &p.NumericTolerance, &p.Points, &p.Solution,
		&p.CreatedByID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(topics, &p.Topics); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	if err := json.Unmarshal(tags, &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal(options, &p.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) CreateProblem(ctx context.Context, p *model.Problem) error {
	topics, _ := json.Marshal(p.Topics)
	tags, _ := json.Marshal(p.Tags)
	options, _ := json.Marshal(p.Options)

	query := `INSERT INTO problems (id, title, slug, statement, topics, tags, difficulty,
	            input_type, options, correct_answer, numeric_tolerance, points, solution, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Title, p.Slug, p.Statement, topics, tags, p.Difficulty,
		p.InputType, options, p.CorrectAnswer, p.NumericTolerance, p.Points, p.Solution, p.CreatedByID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems WHERE id = $1`
	p, err := scanProblem(r.db.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID: %w", err)
	}
	return p, err
}

func (r *pgProblemRepository) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems WHERE slug = $1`
	p, err := scanProblem(r.db.QueryRowContext(ctx, query, slug))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgProblemRepository.FindProblemBySlug: %w", err)
	}
	return p, err
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, filter ProblemFilter) ([]model.Problem, int, error) {
	var conditions []string
	var args []any

	addArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Difficulty != "" {
		conditions = append(conditions, "difficulty = "+addArg(filter.Difficulty))
	}
	if filter.Topic != "" {
		member, _ := json.Marshal([]string{filter.Topic})
		conditions = append(conditions, "topics @> "+addArg(member))
	}
	if filter.Tag != "" {
		member, _ := json.Marshal([]string{filter.Tag})
		conditions = append(conditions, "tags @> "+addArg(member))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM problems` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems count: %w", err)
	}

	query := `SELECT ` + problemColumns + ` FROM problems` + where +
		` ORDER BY created_at DESC LIMIT ` + addArg(filter.Limit) + ` OFFSET ` + addArg(filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems: %w", err)
	}
	defer rows.Close()

	var problems []model.Problem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, *p)
	}
	return problems, total, rows.Err()
}

func (r *pgProblemRepository) ToggleBookmark(ctx context.Context, userID, problemID string) (bool, error) {
	insert := `INSERT INTO bookmarks (user_id, problem_id) VALUES ($1, $2)
	           ON CONFLICT (user_id, problem_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, insert, userID, problemID)
	if err != nil {
		return false, fmt.Errorf("pgProblemRepository.ToggleBookmark: %w", err)
	}
	if added, _ := res.RowsAffected(); added > 0 {
		return true, nil
	}

	remove := `DELETE FROM bookmarks WHERE user_id = $1 AND problem_id = $2`
	if _, err := r.db.ExecContext(ctx, remove, userID, problemID); err != nil {
		return false, fmt.Errorf("pgProblemRepository.ToggleBookmark: %w", err)
	}
	return false, nil
}

func (r *pgProblemRepository) ListBookmarks(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT problem_id FROM bookmarks WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListBookmarks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListBookmarks: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
