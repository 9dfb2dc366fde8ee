// Package grading holds the pure grading core: answer comparison and daily
// streak arithmetic. Nothing here touches storage or the clock.
package grading

import (
	"math"
	"strconv"
	"strings"

	"prep_arena/internal/domain/model"
)

type Result struct {
	Correct bool
	Score   int
	Manual  bool
}

// Grade compares a submitted answer against a problem's answer scheme.
//
// Single-choice answers match on trimmed, case-sensitive equality with the
// stored choice id. Numeric answers are parsed as floats and accepted when
// the absolute difference is within the scheme's tolerance, boundary
// inclusive; anything unparseable is simply wrong, never an error. Any other
// input type needs human review and is reported with Manual set.
//
// A nil scheme grades as incorrect; validating problem existence is the
// caller's job.
func Grade(scheme *model.AnswerScheme, answer string) Result {
	if scheme == nil {
		return Result{}
	}

	switch scheme.InputType {
	case model.InputSingleChoice:
		correct := strings.TrimSpace(answer) == strings.TrimSpace(scheme.CorrectAnswer)
		return Result{Correct: correct, Score: scoreIf(correct, scheme.Points)}

	case model.InputNumeric:
		submitted, errSub := strconv.ParseFloat(strings.TrimSpace(answer), 64)
		expected, errExp := strconv.ParseFloat(strings.TrimSpace(scheme.CorrectAnswer), 64)
		if errSub != nil || errExp != nil || math.IsInf(submitted, 0) || math.IsInf(expected, 0) {
			return Result{}
		}
		tolerance := scheme.NumericTolerance
		if tolerance <= 0 {
			tolerance = model.DefaultNumericTolerance
		}
		correct := math.Abs(submitted-expected) <= tolerance
		return Result{Correct: correct, Score: scoreIf(correct, scheme.Points)}

	default:
		return Result{Manual: true}
	}
}

// VerdictFor derives the submission verdict from a grading result.
func VerdictFor(res Result) model.Verdict {
	if res.Manual {
		return model.VerdictManual
	}
	if res.Correct {
		return model.VerdictAccepted
	}
	return model.VerdictWrongAnswer
}

func scoreIf(correct bool, points int) int {
	if correct {
		return points
	}
	return 0
}
