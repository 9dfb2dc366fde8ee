package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"prep_arena/internal/common"
	"prep_arena/internal/domain/model"
	"prep_arena/internal/domain/repository"
)

// fakeTxRunner invokes the closure with a nil transaction handle; the fake
// repositories below ignore the handle, so service logic runs against plain
// in-memory state.
type fakeTxRunner struct {
	beginErr error
	calls    int
}

func (r *fakeTxRunner) WithinTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	if r.beginErr != nil {
		return r.beginErr
	}
	r.calls++
	return fn(nil)
}

type fakeUserRepo struct {
	users   map[string]*model.User
	solved  map[string]map[string]bool
	history []model.ContestHistoryEntry
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		solved: make(map[string]map[string]bool),
	}
}

func (r *fakeUserRepo) add(u *model.User) { r.users[u.ID] = u }

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindByIDForUpdate(ctx context.Context, _ *sql.Tx, id string) (*model.User, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeUserRepo) UpdateStreak(_ context.Context, _ *sql.Tx, userID string, current, longest int, lastSolvedAt time.Time) error {
	u, ok := r.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	u.CurrentStreak = current
	u.LongestStreak = longest
	u.LastSolvedAt = &lastSolvedAt
	return nil
}

func (r *fakeUserRepo) AddSolvedProblem(_ context.Context, _ *sql.Tx, userID, problemID string, _ time.Time) error {
	if r.solved[userID] == nil {
		r.solved[userID] = make(map[string]bool)
	}
	r.solved[userID][problemID] = true
	return nil
}

func (r *fakeUserRepo) CountSolved(_ context.Context, userID string) (int, error) {
	return len(r.solved[userID]), nil
}

func (r *fakeUserRepo) UpdateRating(_ context.Context, _ *sql.Tx, userID string, rating int) error {
	u, ok := r.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	u.Rating = rating
	return nil
}

func (r *fakeUserRepo) AppendContestHistory(_ context.Context, _ *sql.Tx, entry *model.ContestHistoryEntry) error {
	r.history = append(r.history, *entry)
	return nil
}

func (r *fakeUserRepo) ListContestHistory(_ context.Context, userID string) ([]model.ContestHistoryEntry, error) {
	var out []model.ContestHistoryEntry
	for _, e := range r.history {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeProblemRepo struct {
	problems  map[string]*model.Problem
	bookmarks map[string]map[string]bool
}

func newFakeProblemRepo() *fakeProblemRepo {
	return &fakeProblemRepo{
		problems:  make(map[string]*model.Problem),
		bookmarks: make(map[string]map[string]bool),
	}
}

func (r *fakeProblemRepo) add(p *model.Problem) { r.problems[p.ID] = p }

func (r *fakeProblemRepo) CreateProblem(_ context.Context, p *model.Problem) error {
	for _, existing := range r.problems {
		if existing.Slug == p.Slug {
			return fmt.Errorf("duplicate slug: %w", common.ErrConflict)
		}
	}
	r.problems[p.ID] = p
	return nil
}

func (r *fakeProblemRepo) FindProblemByID(_ context.Context, id string) (*model.Problem, error) {
	p, ok := r.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProblemRepo) FindProblemBySlug(_ context.Context, slug string) (*model.Problem, error) {
	for _, p := range r.problems {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeProblemRepo) ListProblems(_ context.Context, filter repository.ProblemFilter) ([]model.Problem, int, error) {
	var out []model.Problem
	for _, p := range r.problems {
		if filter.Difficulty != "" && p.Difficulty != filter.Difficulty {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *fakeProblemRepo) ToggleBookmark(_ context.Context, userID, problemID string) (bool, error) {
	if _, ok := r.problems[problemID]; !ok {
		return false, common.ErrNotFound
	}
	if r.bookmarks[userID] == nil {
		r.bookmarks[userID] = make(map[string]bool)
	}
	if r.bookmarks[userID][problemID] {
		delete(r.bookmarks[userID], problemID)
		return false, nil
	}
	r.bookmarks[userID][problemID] = true
	return true, nil
}

func (r *fakeProblemRepo) ListBookmarks(_ context.Context, userID string) ([]string, error) {
	var out []string
	for id := range r.bookmarks[userID] {
		out = append(out, id)
	}
	return out, nil
}

type fakeContestRepo struct {
	contests        map[string]*model.Contest
	contestProblems map[string]*model.ContestProblem
	participants    map[string]*model.Participant
}

func newFakeContestRepo() *fakeContestRepo {
	return &fakeContestRepo{
		contests:        make(map[string]*model.Contest),
		contestProblems: make(map[string]*model.ContestProblem),
		participants:    make(map[string]*model.Participant),
	}
}

func participantKey(contestID, userID string) string { return contestID + "/" + userID }

func (r *fakeContestRepo) addContest(c *model.Contest)        { r.contests[c.ID] = c }
func (r *fakeContestRepo) addProblem(p *model.ContestProblem) { r.contestProblems[p.ID] = p }

func (r *fakeContestRepo) addParticipant(p *model.Participant) {
	r.participants[participantKey(p.ContestID, p.UserID)] = p
}

func (r *fakeContestRepo) CreateContest(_ context.Context, c *model.Contest) error {
	r.contests[c.ID] = c
	return nil
}

func (r *fakeContestRepo) FindContestByID(_ context.Context, id string) (*model.Contest, error) {
	c, ok := r.contests[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeContestRepo) FindContestByIDForUpdate(ctx context.Context, _ *sql.Tx, id string) (*model.Contest, error) {
	return r.FindContestByID(ctx, id)
}

func (r *fakeContestRepo) ListContests(_ context.Context) ([]model.Contest, error) {
	var out []model.Contest
	for _, c := range r.contests {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeContestRepo) SetFinalized(_ context.Context, _ *sql.Tx, contestID string) error {
	c, ok := r.contests[contestID]
	if !ok {
		return common.ErrNotFound
	}
	c.Finalized = true
	return nil
}

func (r *fakeContestRepo) CreateContestProblem(_ context.Context, cp *model.ContestProblem) error {
	r.contestProblems[cp.ID] = cp
	return nil
}

func (r *fakeContestRepo) FindContestProblemByID(_ context.Context, id string) (*model.ContestProblem, error) {
	p, ok := r.contestProblems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeContestRepo) ListContestProblems(_ context.Context, contestID string) ([]model.ContestProblem, error) {
	var out []model.ContestProblem
	for _, p := range r.contestProblems {
		if p.ContestID == contestID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeContestRepo) AddParticipant(_ context.Context, p *model.Participant) error {
	key := participantKey(p.ContestID, p.UserID)
	if _, ok := r.participants[key]; ok {
		return fmt.Errorf("already registered for contest: %w", common.ErrConflict)
	}
	r.participants[key] = p
	return nil
}

func (r *fakeContestRepo) FindParticipant(_ context.Context, contestID, userID string) (*model.Participant, error) {
	p, ok := r.participants[participantKey(contestID, userID)]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeContestRepo) FindParticipantForUpdate(ctx context.Context, _ *sql.Tx, contestID, userID string) (*model.Participant, error) {
	return r.FindParticipant(ctx, contestID, userID)
}

func (r *fakeContestRepo) UpdateParticipantProgress(_ context.Context, _ *sql.Tx, p *model.Participant) error {
	key := participantKey(p.ContestID, p.UserID)
	if _, ok := r.participants[key]; !ok {
		return common.ErrNotFound
	}
	cp := *p
	r.participants[key] = &cp
	return nil
}

func (r *fakeContestRepo) UpdateParticipantResult(_ context.Context, _ *sql.Tx, contestID, userID string, rank, ratingBefore, ratingAfter int) error {
	p, ok := r.participants[participantKey(contestID, userID)]
	if !ok {
		return common.ErrNotFound
	}
	p.Rank = &rank
	p.RatingBefore = &ratingBefore
	p.RatingAfter = &ratingAfter
	return nil
}

func (r *fakeContestRepo) ListParticipants(_ context.Context, _ *sql.Tx, contestID string) ([]model.Participant, error) {
	var out []model.Participant
	for _, p := range r.participants {
		if p.ContestID == contestID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeSubmissionRepo struct {
	subs []model.Submission
}

func (r *fakeSubmissionRepo) CreateSubmission(_ context.Context, _ *sql.Tx, sub *model.Submission) error {
	r.subs = append(r.subs, *sub)
	return nil
}

func (r *fakeSubmissionRepo) HasCorrectContestSubmission(_ context.Context, _ *sql.Tx, userID, contestID, contestProblemID string) (bool, error) {
	for _, s := range r.subs {
		if s.UserID == userID && s.IsCorrect &&
			s.ContestID != nil && *s.ContestID == contestID &&
			s.ContestProblemID != nil && *s.ContestProblemID == contestProblemID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSubmissionRepo) ListByUser(_ context.Context, userID string, limit int) ([]model.Submission, error) {
	var out []model.Submission
	for _, s := range r.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) ListForUserProblem(_ context.Context, userID, problemID string, limit int) ([]model.Submission, error) {
	var out []model.Submission
	for _, s := range r.subs {
		matches := (s.ProblemID != nil && *s.ProblemID == problemID) ||
			(s.ContestProblemID != nil && *s.ContestProblemID == problemID)
		if s.UserID == userID && matches {
			out = append(out, s)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
