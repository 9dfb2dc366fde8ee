package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prep_arena/internal/app/grading"
	"prep_arena/internal/common"
	"prep_arena/internal/domain/model"
	"prep_arena/internal/domain/repository"
	"prep_arena/internal/platform/cache"
	"prep_arena/internal/platform/database"
	"prep_arena/internal/platform/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnswerValue accepts any JSON scalar and keeps its text form, mirroring the
// answer's polymorphic shape: a choice id or free text arrives as a string,
// a numeric answer may arrive as either a JSON number or a string.
type AnswerValue string

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = AnswerValue(s)
		return nil
	}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	*a = AnswerValue(data)
	return nil
}

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	contestRepo    repository.ContestRepository
	userRepo       repository.UserRepository
	tx             database.TxRunner
	sbCache        *cache.ScoreboardCache
	log            *zap.SugaredLogger
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	contestRepo repository.ContestRepository,
	userRepo repository.UserRepository,
	tx database.TxRunner,
	sbCache *cache.ScoreboardCache,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		contestRepo:    contestRepo,
		userRepo:       userRepo,
		tx:             tx,
		sbCache:        sbCache,
		log:            logger.NewNamedLogger("submission-service"),
	}
}

type SubmitRequest struct {
	ProblemID   string      `json:"problem_id"`
	ContestID   *string     `json:"contest_id,omitempty"`
	Answer      AnswerValue `json:"answer"`
	TimeTakenMs *int        `json:"time_taken_ms,omitempty"`
}

type SubmitResult struct {
	Correct bool          `json:"correct"`
	Score   int           `json:"score"`
	Manual  bool          `json:"manual"`
	Verdict model.Verdict `json:"verdict"`
}

// Submit grades one answer and applies every resulting state change in a
// single transaction: the submission insert, then either the streak and
// solved-set update (practice) or the participant update (contest). A
// failure anywhere rolls back all of it.
func (s *SubmissionService) Submit(ctx context.Context, userID string, req SubmitRequest) (*SubmitResult, error) {
	if req.ProblemID == "" {
		return nil, fmt.Errorf("problem_id is required: %w", common.ErrValidation)
	}
	if req.ContestID != nil && *req.ContestID == "" {
		req.ContestID = nil
	}

	if req.ContestID == nil {
		return s.submitPractice(ctx, userID, req)
	}
	return s.submitContest(ctx, userID, *req.ContestID, req)
}

func (s *SubmissionService) submitPractice(ctx context.Context, userID string, req SubmitRequest) (*SubmitResult, error) {
	problem, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("practice problem not found: %w", common.ErrNotFound)
		}
		return nil, err
	}

	res := grading.Grade(&problem.AnswerScheme, string(req.Answer))
	now := time.Now().UTC()

	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		sub := &model.Submission{
			ID:          uuid.NewString(),
			UserID:      userID,
			ProblemID:   &problem.ID,
			Answer:      string(req.Answer),
			IsCorrect:   res.Correct,
			Score:       res.Score,
			Verdict:     grading.VerdictFor(res),
			TimeTakenMs: req.TimeTakenMs,
			CreatedAt:   now,
		}
		if err := s.submissionRepo.CreateSubmission(ctx, tx, sub); err != nil {
			return err
		}
		if !res.Correct {
			return nil
		}

		user, err := s.userRepo.FindByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		current, longest := grading.AdvanceStreak(user.CurrentStreak, user.LongestStreak, user.LastSolvedAt, now)
		if err := s.userRepo.UpdateStreak(ctx, tx, userID, current, longest, now); err != nil {
			return err
		}
		return s.userRepo.AddSolvedProblem(ctx, tx, userID, problem.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("practice submission recorded", "user_id", userID, "problem_id", problem.ID, "correct", res.Correct)
	return &SubmitResult{Correct: res.Correct, Score: res.Score, Manual: res.Manual, Verdict: grading.VerdictFor(res)}, nil
}

func (s *SubmissionService) submitContest(ctx context.Context, userID, contestID string, req SubmitRequest) (*SubmitResult, error) {
	contest, now, err := s.liveContest(ctx, contestID)
	if err != nil {
		return nil, err
	}

	problem, err := s.contestRepo.FindContestProblemByID(ctx, req.ProblemID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if problem == nil || problem.ContestID != contest.ID {
		return nil, fmt.Errorf("contest problem not found: %w", common.ErrNotFound)
	}

	res := grading.Grade(&problem.AnswerScheme, string(req.Answer))

	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		participant, err := s.lockParticipant(ctx, tx, contest.ID, userID)
		if err != nil {
			return err
		}

		// Decided under the participant row lock, so two concurrent correct
		// submissions cannot both pass the first-correct check.
		alreadySolved, err := s.submissionRepo.HasCorrectContestSubmission(ctx, tx, userID, contest.ID, problem.ID)
		if err != nil {
			return err
		}

		sub := &model.Submission{
			ID:               uuid.NewString(),
			UserID:           userID,
			ContestProblemID: &problem.ID,
			ContestID:        &contest.ID,
			Answer:           string(req.Answer),
			IsCorrect:        res.Correct,
			Score:            res.Score,
			Verdict:          grading.VerdictFor(res),
			TimeTakenMs:      req.TimeTakenMs,
			CreatedAt:        now,
		}
		if err := s.submissionRepo.CreateSubmission(ctx, tx, sub); err != nil {
			return err
		}

		participant.LastSubmissionAt = &now
		if !alreadySolved && res.Correct {
			participant.Score += res.Score
			participant.Solved++
		}
		return s.contestRepo.UpdateParticipantProgress(ctx, tx, participant)
	})
	if err != nil {
		return nil, err
	}

	s.sbCache.Invalidate(ctx, contest.ID)
	s.log.Infow("contest submission recorded", "user_id", userID, "contest_id", contest.ID, "problem_id", problem.ID, "correct", res.Correct)
	return &SubmitResult{Correct: res.Correct, Score: res.Score, Manual: res.Manual, Verdict: grading.VerdictFor(res)}, nil
}

type BulkSubmissionItem struct {
	ProblemID string      `json:"problem_id"`
	Answer    AnswerValue `json:"answer"`
}

type BulkSubmitRequest struct {
	ContestID   string               `json:"contest_id"`
	Submissions []BulkSubmissionItem `json:"submissions"`
}

// SubmitBulk grades a batch of contest answers in one transaction. Items
// the user already solved correctly are skipped; the participant's score and
// solved counters receive the aggregated delta exactly once at the end. Any
// failure aborts the whole batch.
func (s *SubmissionService) SubmitBulk(ctx context.Context, userID string, req BulkSubmitRequest) error {
	if req.ContestID == "" || req.Submissions == nil {
		return fmt.Errorf("invalid payload: %w", common.ErrValidation)
	}

	contest, now, err := s.liveContest(ctx, req.ContestID)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		participant, err := s.lockParticipant(ctx, tx, contest.ID, userID)
		if err != nil {
			return err
		}

		totalScore := 0
		totalSolved := 0

		for _, item := range req.Submissions {
			if item.ProblemID == "" {
				continue
			}
			problem, err := s.contestRepo.FindContestProblemByID(ctx, item.ProblemID)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					continue
				}
				return err
			}
			if problem.ContestID != contest.ID {
				continue
			}

			alreadySolved, err := s.submissionRepo.HasCorrectContestSubmission(ctx, tx, userID, contest.ID, problem.ID)
			if err != nil {
				return err
			}
			if alreadySolved {
				continue
			}

			res := grading.Grade(&problem.AnswerScheme, string(item.Answer))
			sub := &model.Submission{
				ID:               uuid.NewString(),
				UserID:           userID,
				ContestProblemID: &problem.ID,
				ContestID:        &contest.ID,
				Answer:           string(item.Answer),
				IsCorrect:        res.Correct,
				Score:            res.Score,
				Verdict:          grading.VerdictFor(res),
				CreatedAt:        now,
			}
			if err := s.submissionRepo.CreateSubmission(ctx, tx, sub); err != nil {
				return err
			}
			if res.Correct {
				totalScore += res.Score
				totalSolved++
			}
		}

		participant.Score += totalScore
		participant.Solved += totalSolved
		participant.LastSubmissionAt = &now
		participant.IsSubmitted = true
		return s.contestRepo.UpdateParticipantProgress(ctx, tx, participant)
	})
	if err != nil {
		return err
	}

	s.sbCache.Invalidate(ctx, contest.ID)
	s.log.Infow("bulk submission recorded", "user_id", userID, "contest_id", contest.ID, "items", len(req.Submissions))
	return nil
}

// liveContest resolves a contest and verifies it is inside its time window.
func (s *SubmissionService) liveContest(ctx context.Context, contestID string) (*model.Contest, time.Time, error) {
	now := time.Now().UTC()

	contest, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, now, fmt.Errorf("contest not found: %w", common.ErrNotFound)
		}
		return nil, now, err
	}
	if now.Before(contest.StartTime) {
		return nil, now, fmt.Errorf("contest has not started yet: %w", common.ErrInvalidState)
	}
	if now.After(contest.EndTime) {
		return nil, now, fmt.Errorf("contest has ended: %w", common.ErrInvalidState)
	}
	return contest, now, nil
}

func (s *SubmissionService) lockParticipant(ctx context.Context, tx *sql.Tx, contestID, userID string) (*model.Participant, error) {
	participant, err := s.contestRepo.FindParticipantForUpdate(ctx, tx, contestID, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("join contest before submitting: %w", common.ErrForbidden)
		}
		return nil, err
	}
	return participant, nil
}

func (s *SubmissionService) ListMySubmissions(ctx context.Context, userID string, limit int) ([]model.Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.submissionRepo.ListByUser(ctx, userID, limit)
}

func (s *SubmissionService) ListMySubmissionsForProblem(ctx context.Context, userID, problemID string) ([]model.Submission, error) {
	return s.submissionRepo.ListForUserProblem(ctx, userID, problemID, 100)
}
