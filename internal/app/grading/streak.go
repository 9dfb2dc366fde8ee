package grading

import "time"

// AdvanceStreak folds a correct practice solve at `now` into a user's streak
// counters and returns the updated pair. Calendar days are compared in UTC,
// so the boundary is the same for every user regardless of server locale.
//
// Solving again on the same calendar day leaves the streak untouched;
// solving on the next day extends it; anything else (first solve ever, or a
// gap) restarts it at 1. The longest streak never decreases.
func AdvanceStreak(current, longest int, lastSolvedAt *time.Time, now time.Time) (int, int) {
	today := utcDate(now)

	switch {
	case lastSolvedAt == nil:
		current = 1
	case utcDate(*lastSolvedAt).Equal(today):
		// Already counted today.
	case utcDate(*lastSolvedAt).AddDate(0, 0, 1).Equal(today):
		current++
	default:
		current = 1
	}

	if current > longest {
		longest = current
	}
	return current, longest
}

func utcDate(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
