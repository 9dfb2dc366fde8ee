package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"prep_arena/internal/app/service"
	"prep_arena/internal/common"
	"prep_arena/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submissionFixture struct {
	svc      *service.SubmissionService
	subs     *fakeSubmissionRepo
	problems *fakeProblemRepo
	contests *fakeContestRepo
	users    *fakeUserRepo
	tx       *fakeTxRunner
}

func newSubmissionFixture() *submissionFixture {
	f := &submissionFixture{
		subs:     &fakeSubmissionRepo{},
		problems: newFakeProblemRepo(),
		contests: newFakeContestRepo(),
		users:    newFakeUserRepo(),
		tx:       &fakeTxRunner{},
	}
	f.svc = service.NewSubmissionService(f.subs, f.problems, f.contests, f.users, f.tx, nil)
	return f
}

func (f *submissionFixture) withUser(id string) *submissionFixture {
	f.users.add(&model.User{ID: id, Username: id, Rating: model.DefaultRating})
	return f
}

func (f *submissionFixture) withPracticeProblem(id string, points int) *submissionFixture {
	f.problems.add(&model.Problem{
		ID:         id,
		Title:      id,
		Slug:       id,
		Difficulty: model.DifficultyEasy,
		AnswerScheme: model.AnswerScheme{
			InputType:     model.InputSingleChoice,
			Options:       []model.ChoiceOption{{ID: "a"}, {ID: "b"}},
			CorrectAnswer: "a",
			Points:        points,
		},
	})
	return f
}

// withLiveContest registers a contest whose window surrounds the wall clock.
func (f *submissionFixture) withLiveContest(id string) *submissionFixture {
	now := time.Now().UTC()
	f.contests.addContest(&model.Contest{
		ID:            id,
		Title:         id,
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(time.Hour),
		RatingAffects: true,
	})
	return f
}

func (f *submissionFixture) withContestProblem(id, contestID string, points int) *submissionFixture {
	f.contests.addProblem(&model.ContestProblem{
		ID:        id,
		ContestID: contestID,
		Title:     id,
		AnswerScheme: model.AnswerScheme{
			InputType:     model.InputSingleChoice,
			Options:       []model.ChoiceOption{{ID: "a"}, {ID: "b"}},
			CorrectAnswer: "a",
			Points:        points,
		},
	})
	return f
}

func (f *submissionFixture) withParticipant(contestID, userID string) *submissionFixture {
	f.contests.addParticipant(&model.Participant{ContestID: contestID, UserID: userID})
	return f
}

func strPtr(s string) *string { return &s }

func TestAnswerValueUnmarshal(t *testing.T) {
	var req service.SubmitRequest

	require.NoError(t, json.Unmarshal([]byte(`{"problem_id":"p1","answer":"a"}`), &req))
	assert.Equal(t, "a", string(req.Answer))

	require.NoError(t, json.Unmarshal([]byte(`{"problem_id":"p1","answer":3.14}`), &req))
	assert.Equal(t, "3.14", string(req.Answer))

	require.NoError(t, json.Unmarshal([]byte(`{"problem_id":"p1","answer":null}`), &req))
	assert.Equal(t, "", string(req.Answer))
}

func TestSubmitRequiresProblemID(t *testing.T) {
	f := newSubmissionFixture()

	_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSubmitPracticeCorrect(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").withPracticeProblem("p1", 10)

	res, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{ProblemID: "p1", Answer: "a"})
	require.NoError(t, err)

	assert.True(t, res.Correct)
	assert.Equal(t, 10, res.Score)
	assert.Equal(t, model.VerdictAccepted, res.Verdict)

	require.Len(t, f.subs.subs, 1)
	assert.Equal(t, "p1", *f.subs.subs[0].ProblemID)
	assert.Nil(t, f.subs.subs[0].ContestID)

	user := f.users.users["u1"]
	assert.Equal(t, 1, user.CurrentStreak)
	assert.Equal(t, 1, user.LongestStreak)
	assert.True(t, f.users.solved["u1"]["p1"])
	assert.Equal(t, 1, f.tx.calls)
}

func TestSubmitPracticeWrong(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").withPracticeProblem("p1", 10)

	res, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{ProblemID: "p1", Answer: "b"})
	require.NoError(t, err)

	assert.False(t, res.Correct)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, model.VerdictWrongAnswer, res.Verdict)

	// The submission is logged, but nothing else changes.
	require.Len(t, f.subs.subs, 1)
	assert.Equal(t, 0, f.users.users["u1"].CurrentStreak)
	assert.Empty(t, f.users.solved["u1"])
}

func TestSubmitPracticeSameDayTwiceKeepsStreak(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").withPracticeProblem("p1", 10).withPracticeProblem("p2", 5)

	_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{ProblemID: "p1", Answer: "a"})
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), "u1", service.SubmitRequest{ProblemID: "p2", Answer: "a"})
	require.NoError(t, err)

	user := f.users.users["u1"]
	assert.Equal(t, 1, user.CurrentStreak, "two solves on one day count once")
	assert.Len(t, f.users.solved["u1"], 2)
}

func TestSubmitPracticeResolveIsIdempotentOnSolvedSet(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").withPracticeProblem("p1", 10)

	for range 3 {
		_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{ProblemID: "p1", Answer: "a"})
		require.NoError(t, err)
	}

	assert.Len(t, f.subs.subs, 3, "every attempt is logged")
	assert.Len(t, f.users.solved["u1"], 1, "the solved set holds the problem once")
}

func TestSubmitPracticeUnknownProblem(t *testing.T) {
	f := newSubmissionFixture().withUser("u1")

	_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{ProblemID: "nope", Answer: "a"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSubmitContestFirstCorrectCredits(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").
		withLiveContest("c1").withContestProblem("cp1", "c1", 100).withParticipant("c1", "u1")

	res, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{
		ProblemID: "cp1", ContestID: strPtr("c1"), Answer: "a",
	})
	require.NoError(t, err)
	assert.True(t, res.Correct)

	p := f.contests.participants[participantKey("c1", "u1")]
	assert.Equal(t, 100, p.Score)
	assert.Equal(t, 1, p.Solved)
	require.NotNil(t, p.LastSubmissionAt)
}

func TestSubmitContestResolveDoesNotDoubleCredit(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").
		withLiveContest("c1").withContestProblem("cp1", "c1", 100).withParticipant("c1", "u1")

	_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{
		ProblemID: "cp1", ContestID: strPtr("c1"), Answer: "a",
	})
	require.NoError(t, err)
	first := *f.contests.participants[participantKey("c1", "u1")].LastSubmissionAt

	res, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{
		ProblemID: "cp1", ContestID: strPtr("c1"), Answer: "a",
	})
	require.NoError(t, err)
	assert.True(t, res.Correct, "the grade itself is still reported")

	p := f.contests.participants[participantKey("c1", "u1")]
	assert.Equal(t, 100, p.Score, "only the first correct submission scores")
	assert.Equal(t, 1, p.Solved)
	assert.False(t, p.LastSubmissionAt.Before(first), "the tiebreak timestamp still moves")
	assert.Len(t, f.subs.subs, 2, "both attempts are logged")
}

func TestSubmitContestWrongThenCorrect(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").
		withLiveContest("c1").withContestProblem("cp1", "c1", 100).withParticipant("c1", "u1")

	_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{
		ProblemID: "cp1", ContestID: strPtr("c1"), Answer: "b",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.contests.participants[participantKey("c1", "u1")].Score)

	_, err = f.svc.Submit(context.Background(), "u1", service.SubmitRequest{
		ProblemID: "cp1", ContestID: strPtr("c1"), Answer: "a",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, f.contests.participants[participantKey("c1", "u1")].Score)
}

func TestSubmitContestRequiresRegistration(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").
		withLiveContest("c1").withContestProblem("cp1", "c1", 100)

	_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{
		ProblemID: "cp1", ContestID: strPtr("c1"), Answer: "a",
	})
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.Empty(t, f.subs.subs, "nothing is recorded outside the membership check")
}

func TestSubmitContestOutsideWindow(t *testing.T) {
	now := time.Now().UTC()

	t.Run("not started", func(t *testing.T) {
		f := newSubmissionFixture().withUser("u1").withParticipant("c1", "u1")
		f.contests.addContest(&model.Contest{
			ID: "c1", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour),
		})
		f.withContestProblem("cp1", "c1", 100)

		_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{
			ProblemID: "cp1", ContestID: strPtr("c1"), Answer: "a",
		})
		assert.ErrorIs(t, err, common.ErrInvalidState)
	})

	t.Run("already ended", func(t *testing.T) {
		f := newSubmissionFixture().withUser("u1").withParticipant("c1", "u1")
		f.contests.addContest(&model.Contest{
			ID: "c1", StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour),
		})
		f.withContestProblem("cp1", "c1", 100)

		_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{
			ProblemID: "cp1", ContestID: strPtr("c1"), Answer: "a",
		})
		assert.ErrorIs(t, err, common.ErrInvalidState)
	})
}

func TestSubmitContestRejectsForeignProblem(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").
		withLiveContest("c1").withLiveContest("c2").
		withContestProblem("cp-other", "c2", 100).withParticipant("c1", "u1")

	_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{
		ProblemID: "cp-other", ContestID: strPtr("c1"), Answer: "a",
	})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSubmitBulkAggregatesOnce(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").
		withLiveContest("c1").
		withContestProblem("cp1", "c1", 100).
		withContestProblem("cp2", "c1", 50).
		withContestProblem("cp3", "c1", 25).
		withParticipant("c1", "u1")

	err := f.svc.SubmitBulk(context.Background(), "u1", service.BulkSubmitRequest{
		ContestID: "c1",
		Submissions: []service.BulkSubmissionItem{
			{ProblemID: "cp1", Answer: "a"},
			{ProblemID: "cp2", Answer: "b"},
			{ProblemID: "cp3", Answer: "a"},
		},
	})
	require.NoError(t, err)

	p := f.contests.participants[participantKey("c1", "u1")]
	assert.Equal(t, 125, p.Score)
	assert.Equal(t, 2, p.Solved)
	assert.True(t, p.IsSubmitted)
	require.NotNil(t, p.LastSubmissionAt)
	assert.Len(t, f.subs.subs, 3)
	assert.Equal(t, 1, f.tx.calls, "the whole batch runs in one transaction")
}

func TestSubmitBulkSkipsSolvedAndUnknown(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").
		withLiveContest("c1").
		withContestProblem("cp1", "c1", 100).
		withContestProblem("cp2", "c1", 50).
		withParticipant("c1", "u1")

	// Solve cp1 up front via a single submission.
	_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{
		ProblemID: "cp1", ContestID: strPtr("c1"), Answer: "a",
	})
	require.NoError(t, err)

	err = f.svc.SubmitBulk(context.Background(), "u1", service.BulkSubmitRequest{
		ContestID: "c1",
		Submissions: []service.BulkSubmissionItem{
			{ProblemID: "cp1", Answer: "a"},    // already solved, skipped
			{ProblemID: "missing", Answer: "a"}, // unknown, skipped
			{ProblemID: "", Answer: "a"},        // empty, skipped
			{ProblemID: "cp2", Answer: "a"},
		},
	})
	require.NoError(t, err)

	p := f.contests.participants[participantKey("c1", "u1")]
	assert.Equal(t, 150, p.Score, "cp1 scored once, cp2 once")
	assert.Equal(t, 2, p.Solved)
	assert.Len(t, f.subs.subs, 2, "skipped items leave no submission row")
}

func TestSubmitBulkEmptyListStillMarksSubmitted(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").
		withLiveContest("c1").withParticipant("c1", "u1")

	err := f.svc.SubmitBulk(context.Background(), "u1", service.BulkSubmitRequest{
		ContestID:   "c1",
		Submissions: []service.BulkSubmissionItem{},
	})
	require.NoError(t, err)

	p := f.contests.participants[participantKey("c1", "u1")]
	assert.True(t, p.IsSubmitted)
	assert.Equal(t, 0, p.Score)
}

func TestSubmitBulkValidation(t *testing.T) {
	f := newSubmissionFixture()

	err := f.svc.SubmitBulk(context.Background(), "u1", service.BulkSubmitRequest{})
	assert.ErrorIs(t, err, common.ErrValidation)

	err = f.svc.SubmitBulk(context.Background(), "u1", service.BulkSubmitRequest{ContestID: "c1"})
	assert.ErrorIs(t, err, common.ErrValidation, "a nil submission list is rejected")
}

func TestListMySubmissionsClampsLimit(t *testing.T) {
	f := newSubmissionFixture().withUser("u1").withPracticeProblem("p1", 10)

	_, err := f.svc.Submit(context.Background(), "u1", service.SubmitRequest{ProblemID: "p1", Answer: "a"})
	require.NoError(t, err)

	subs, err := f.svc.ListMySubmissions(context.Background(), "u1", -5)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}
