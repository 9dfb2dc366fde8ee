package model_test

import (
	"testing"
	"time"

	"prep_arena/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participant(userID string, score int, lastSubmission *time.Time) model.Participant {
	return model.Participant{
		ContestID:        "c1",
		UserID:           userID,
		Score:            score,
		LastSubmissionAt: lastSubmission,
	}
}

func TestRankParticipantsScoreDescending(t *testing.T) {
	t1 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	ranked := model.RankParticipants([]model.Participant{
		participant("low", 10, &t1),
		participant("high", 30, &t1),
		participant("mid", 20, &t1),
	})

	require.Len(t, ranked, 3)
	assert.Equal(t, "high", ranked[0].UserID)
	assert.Equal(t, "mid", ranked[1].UserID)
	assert.Equal(t, "low", ranked[2].UserID)
}

func TestRankParticipantsEarlierSubmissionBreaksTie(t *testing.T) {
	early := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	late := early.Add(5 * time.Minute)

	ranked := model.RankParticipants([]model.Participant{
		participant("late", 50, &late),
		participant("early", 50, &early),
	})

	assert.Equal(t, "early", ranked[0].UserID)
	assert.Equal(t, "late", ranked[1].UserID)
}

func TestRankParticipantsNoSubmissionSortsLast(t *testing.T) {
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	ranked := model.RankParticipants([]model.Participant{
		participant("idle", 0, nil),
		participant("active", 0, &at),
	})

	assert.Equal(t, "active", ranked[0].UserID)
	assert.Equal(t, "idle", ranked[1].UserID)
}

func TestRankParticipantsDoesNotMutateInput(t *testing.T) {
	t1 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	input := []model.Participant{
		participant("b", 10, &t1),
		participant("a", 20, &t1),
	}

	model.RankParticipants(input)
	assert.Equal(t, "b", input[0].UserID)
}

func TestContestStatus(t *testing.T) {
	contest := model.Contest{
		StartTime: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, model.StatusUpcoming, contest.Status(contest.StartTime.Add(-time.Hour)))
	assert.Equal(t, model.StatusLive, contest.Status(contest.StartTime.Add(time.Hour)))
	assert.Equal(t, model.StatusCompleted, contest.Status(contest.EndTime.Add(time.Minute)))
}
