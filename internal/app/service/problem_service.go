package service

import (
	"context"
	"errors"
	"fmt"

	"prep_arena/internal/common"
	"prep_arena/internal/domain/model"
	"prep_arena/internal/domain/repository"
	"prep_arena/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	log         *zap.SugaredLogger
}

func NewProblemService(problemRepo repository.ProblemRepository) *ProblemService {
	return &ProblemService{
		problemRepo: problemRepo,
		log:         logger.NewNamedLogger("problem-service"),
	}
}

type CreateProblemRequest struct {
	Title            string                  `json:"title"`
	Statement        string                  `json:"statement"`
	Topics           []string                `json:"topics,omitempty"`
	Tags             []string                `json:"tags,omitempty"`
	Difficulty       model.ProblemDifficulty `json:"difficulty"`
	InputType        model.InputType         `json:"input_type"`
	Options          []model.ChoiceOption    `json:"options,omitempty"`
	CorrectAnswer    AnswerValue             `json:"correct_answer"`
	NumericTolerance float64                 `json:"numeric_tolerance"`
	Points           int                     `json:"points"`
	Solution         string                  `json:"solution,omitempty"`
}

func (s *ProblemService) CreateProblem(ctx context.Context, createdBy string, req CreateProblemRequest) (*model.Problem, error) {
	if req.Title == "" || req.Statement == "" {
		return nil, fmt.Errorf("title and statement are required: %w", common.ErrValidation)
	}
	if req.InputType == "" {
		req.InputType = model.InputSingleChoice
	}
	if req.Difficulty == "" {
		req.Difficulty = model.DifficultyMedium
	}
	if req.Points == 0 {
		req.Points = 1
	}
	if req.NumericTolerance == 0 {
		req.NumericTolerance = model.DefaultNumericTolerance
	}

	scheme := model.AnswerScheme{
		InputType:        req.InputType,
		Options:          req.Options,
		CorrectAnswer:    string(req.CorrectAnswer),
		NumericTolerance: req.NumericTolerance,
		Points:           req.Points,
	}
	if err := scheme.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), common.ErrValidation)
	}

	problem := &model.Problem{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Slug:         slug.Make(req.Title),
		Statement:    req.Statement,
		Topics:       req.Topics,
		Tags:         req.Tags,
		Difficulty:   req.Difficulty,
		AnswerScheme: scheme,
		Solution:     req.Solution,
		CreatedByID:  &createdBy,
	}
	if err := s.problemRepo.CreateProblem(ctx, problem); err != nil {
		return nil, err
	}
	s.log.Infow("problem created", "problem_id", problem.ID, "slug", problem.Slug)
	return problem, nil
}

type ProblemListResponse struct {
	Problems []model.Problem `json:"problems"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	Limit    int             `json:"limit"`
}

func (s *ProblemService) ListProblems(ctx context.Context, difficulty, topic, tag string, page, limit int) (*ProblemListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := repository.ProblemFilter{
		Difficulty: model.ProblemDifficulty(difficulty),
		Topic:      topic,
		Tag:        tag,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}
	problems, total, err := s.problemRepo.ListProblems(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range problems {
		problems[i].Sanitize()
	}
	return &ProblemListResponse{Problems: problems, Total: total, Page: page, Limit: limit}, nil
}

func (s *ProblemService) GetProblem(ctx context.Context, id string, isAdmin bool) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("problem not found: %w", common.ErrNotFound)
		}
		return nil, err
	}
	if !isAdmin {
		problem.Sanitize()
	}
	return problem, nil
}

// ToggleBookmark flips the caller's bookmark on a problem and reports the
// new state.
func (s *ProblemService) ToggleBookmark(ctx context.Context, userID, problemID string) (bool, error) {
	if _, err := s.problemRepo.FindProblemByID(ctx, problemID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, fmt.Errorf("problem not found: %w", common.ErrNotFound)
		}
		return false, err
	}
	return s.problemRepo.ToggleBookmark(ctx, userID, problemID)
}

func (s *ProblemService) ListBookmarks(ctx context.Context, userID string) ([]string, error) {
	return s.problemRepo.ListBookmarks(ctx, userID)
}
