package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"prep_arena/internal/common"
	"prep_arena/internal/domain/model"
	"prep_arena/internal/domain/repository"
	"prep_arena/internal/platform/cache"
	"prep_arena/internal/platform/database"
	"prep_arena/internal/platform/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RatingService finalizes contests: it computes final ranks, applies rating
// deltas, and writes each participant's contest history. Finalization is a
// one-way transition guarded by the contest's finalized flag.
type RatingService struct {
	contestRepo repository.ContestRepository
	userRepo    repository.UserRepository
	tx          database.TxRunner
	sbCache     *cache.ScoreboardCache
	ratingK     int
	log         *zap.SugaredLogger
}

func NewRatingService(
	contestRepo repository.ContestRepository,
	userRepo repository.UserRepository,
	tx database.TxRunner,
	sbCache *cache.ScoreboardCache,
	ratingK int,
) *RatingService {
	return &RatingService{
		contestRepo: contestRepo,
		userRepo:    userRepo,
		tx:          tx,
		sbCache:     sbCache,
		ratingK:     ratingK,
		log:         logger.NewNamedLogger("rating-service"),
	}
}

// RatingDelta is the per-participant rating change for finishing at `rank`
// out of `total`. It decreases monotonically with rank and is bounded by k:
// rank 1 gains k, the last rank gains 0. The linear shape is a policy
// choice; an ELO-style scheme could replace it without touching the
// finalization contract.
func RatingDelta(rank, total, k int) int {
	return int(math.Round(float64(total-rank) / math.Max(1, float64(total-1)) * float64(k)))
}

// FinalizeContest ranks participants, applies rating deltas, appends contest
// history, and flips the finalized flag, all in one transaction. A second
// call observes the flag under the contest row lock and fails with
// ErrInvalidState, leaving the first call's state untouched.
func (s *RatingService) FinalizeContest(ctx context.Context, contestID string) error {
	now := time.Now().UTC()

	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		contest, err := s.contestRepo.FindContestByIDForUpdate(ctx, tx, contestID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("contest not found: %w", common.ErrNotFound)
			}
			return err
		}
		if contest.Finalized {
			return fmt.Errorf("contest already finalized: %w", common.ErrInvalidState)
		}

		if !contest.RatingAffects {
			return s.contestRepo.SetFinalized(ctx, tx, contestID)
		}

		participants, err := s.contestRepo.ListParticipants(ctx, tx, contestID)
		if err != nil {
			return err
		}
		ranked := model.RankParticipants(participants)
		total := len(ranked)

		for i, p := range ranked {
			rank := i + 1

			user, err := s.userRepo.FindByIDForUpdate(ctx, tx, p.UserID)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					continue
				}
				return err
			}

			// Prefer the snapshot taken at join time; fall back to the
			// user's current rating.
			ratingBefore := user.Rating
			if p.RatingBefore != nil {
				ratingBefore = *p.RatingBefore
			}
			ratingAfter := ratingBefore + RatingDelta(rank, total, s.ratingK)

			if err := s.contestRepo.UpdateParticipantResult(ctx, tx, contestID, p.UserID, rank, ratingBefore, ratingAfter); err != nil {
				return err
			}
			if err := s.userRepo.UpdateRating(ctx, tx, p.UserID, ratingAfter); err != nil {
				return err
			}

			entry := &model.ContestHistoryEntry{
				ID:             uuid.NewString(),
				UserID:         p.UserID,
				ContestID:      contestID,
				Score:          p.Score,
				Rank:           rank,
				RatingBefore:   ratingBefore,
				RatingAfter:    ratingAfter,
				ParticipatedAt: now,
			}
			if err := s.userRepo.AppendContestHistory(ctx, tx, entry); err != nil {
				return err
			}
		}

		return s.contestRepo.SetFinalized(ctx, tx, contestID)
	})
	if err != nil {
		return err
	}

	s.sbCache.Invalidate(ctx, contestID)
	s.log.Infow("contest finalized", "contest_id", contestID)
	return nil
}
