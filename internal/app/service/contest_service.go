package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prep_arena/internal/common"
	"prep_arena/internal/domain/model"
	"prep_arena/internal/domain/repository"
	"prep_arena/internal/platform/cache"
	"prep_arena/internal/platform/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ContestService struct {
	contestRepo repository.ContestRepository
	userRepo    repository.UserRepository
	sbCache     *cache.ScoreboardCache
	log         *zap.SugaredLogger
}

func NewContestService(
	contestRepo repository.ContestRepository,
	userRepo repository.UserRepository,
	sbCache *cache.ScoreboardCache,
) *ContestService {
	return &ContestService{
		contestRepo: contestRepo,
		userRepo:    userRepo,
		sbCache:     sbCache,
		log:         logger.NewNamedLogger("contest-service"),
	}
}

type CreateContestRequest struct {
	ContestNumber int                     `json:"contest_number"`
	Title         string                  `json:"title"`
	Kind          model.ContestKind       `json:"kind"`
	Difficulty    model.ProblemDifficulty `json:"difficulty"`
	StartTime     time.Time               `json:"start_time"`
	EndTime       time.Time               `json:"end_time"`
	RatingAffects *bool                   `json:"rating_affects,omitempty"`
}

func (s *ContestService) CreateContest(ctx context.Context, req CreateContestRequest) (*model.Contest, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("title is required: %w", common.ErrValidation)
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, fmt.Errorf("start time must be before end time: %w", common.ErrValidation)
	}
	if req.Kind == "" {
		req.Kind = model.KindWeekly
	}
	if req.Difficulty == "" {
		req.Difficulty = model.DifficultyMedium
	}
	ratingAffects := true
	if req.RatingAffects != nil {
		ratingAffects = *req.RatingAffects
	}

	contest := &model.Contest{
		ID:            uuid.NewString(),
		ContestNumber: req.ContestNumber,
		Title:         req.Title,
		Kind:          req.Kind,
		Difficulty:    req.Difficulty,
		StartTime:     req.StartTime.UTC(),
		EndTime:       req.EndTime.UTC(),
		RatingAffects: ratingAffects,
	}
	if err := s.contestRepo.CreateContest(ctx, contest); err != nil {
		return nil, err
	}
	s.log.Infow("contest created", "contest_id", contest.ID, "title", contest.Title)
	return contest, nil
}

type CreateContestProblemRequest struct {
	Title            string                  `json:"title"`
	Statement        string                  `json:"statement"`
	Difficulty       model.ProblemDifficulty `json:"difficulty"`
	InputType        model.InputType         `json:"input_type"`
	Options          []model.ChoiceOption    `json:"options,omitempty"`
	CorrectAnswer    AnswerValue             `json:"correct_answer"`
	NumericTolerance float64                 `json:"numeric_tolerance"`
	Points           int                     `json:"points"`
	Solution         string                  `json:"solution,omitempty"`
}

func (s *ContestService) AddContestProblem(ctx context.Context, contestID string, req CreateContestProblemRequest) (*model.ContestProblem, error) {
	if _, err := s.contestRepo.FindContestByID(ctx, contestID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("contest not found: %w", common.ErrNotFound)
		}
		return nil, err
	}
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

	problem := &model.ContestProblem{
		ID:           uuid.NewString(),
		ContestID:    contestID,
		Title:        req.Title,
		Statement:    req.Statement,
		Difficulty:   req.Difficulty,
		AnswerScheme: scheme,
		Solution:     req.Solution,
	}
	if err := s.contestRepo.CreateContestProblem(ctx, problem); err != nil {
		return nil, err
	}
	return problem, nil
}

// Register creates the caller's participant record with zeroed counters and
// a rating snapshot. Registering twice is reported as a conflict by the
// storage layer's uniqueness constraint.
func (s *ContestService) Register(ctx context.Context, contestID, userID string) error {
	contest, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("contest not found: %w", common.ErrNotFound)
		}
		return err
	}
	if time.Now().UTC().After(contest.EndTime) {
		return fmt.Errorf("contest has ended: %w", common.ErrInvalidState)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	participant := &model.Participant{
		ContestID:    contestID,
		UserID:       userID,
		RatingBefore: &user.Rating,
	}
	return s.contestRepo.AddParticipant(ctx, participant)
}

func (s *ContestService) ListContests(ctx context.Context) ([]model.Contest, error) {
	return s.contestRepo.ListContests(ctx)
}

// GetContest returns a contest with its participants, and its problems once
// the contest has started. Answer schemes are stripped for non-admins.
func (s *ContestService) GetContest(ctx context.Context, contestID string, isAdmin bool) (*model.Contest, error) {
	contest, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("contest not found: %w", common.ErrNotFound)
		}
		return nil, err
	}

	participants, err := s.contestRepo.ListParticipants(ctx, nil, contestID)
	if err != nil {
		return nil, err
	}
	contest.Participants = participants

	now := time.Now().UTC()
	if isAdmin || !now.Before(contest.StartTime) {
		problems, err := s.contestRepo.ListContestProblems(ctx, contestID)
		if err != nil {
			return nil, err
		}
		if !isAdmin {
			for i := range problems {
				problems[i].Sanitize()
			}
		}
		contest.Problems = problems
	}
	return contest, nil
}

// Scoreboard projects the ranked standings of a contest. It never mutates
// rank or rating fields; ordering matches finalization exactly.
func (s *ContestService) Scoreboard(ctx context.Context, contestID string) ([]model.ScoreboardEntry, error) {
	if entries, ok := s.sbCache.Get(ctx, contestID); ok {
		return entries, nil
	}

	if _, err := s.contestRepo.FindContestByID(ctx, contestID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("contest not found: %w", common.ErrNotFound)
		}
		return nil, err
	}

	participants, err := s.contestRepo.ListParticipants(ctx, nil, contestID)
	if err != nil {
		return nil, err
	}

	ranked := model.RankParticipants(participants)
	entries := make([]model.ScoreboardEntry, len(ranked))
	for i, p := range ranked {
		entries[i] = model.ScoreboardEntry{
			Rank:             i + 1,
			UserID:           p.UserID,
			Username:         p.Username,
			Score:            p.Score,
			Solved:           p.Solved,
			LastSubmissionAt: p.LastSubmissionAt,
		}
	}

	s.sbCache.Set(ctx, contestID, entries)
	return entries, nil
}
