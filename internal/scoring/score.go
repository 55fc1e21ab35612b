// Package scoring aggregates per-question face scores into a submission score.
package scoring

import (
	"errors"
	"fmt"
)

const (
	// MinScore is the lowest accepted face score.
	MinScore = 0
	// MaxScore is the highest accepted face score.
	MaxScore = 100
)

var (
	// ErrEmptyInput is returned when there is nothing to average.
	ErrEmptyInput = errors.New("no scores to aggregate")
	// ErrScoreOutOfRange is returned for a score outside [MinScore, MaxScore].
	ErrScoreOutOfRange = errors.New("score out of range")
)

// InRange reports whether score is an acceptable face score.
func InRange(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// MeanRound returns the arithmetic mean of scores rounded to the nearest
// integer. Exact halves round to the even neighbour, so [80, 81] yields 80
// and [81, 82] yields 82.
func MeanRound(scores []int) (int, error) {
	if len(scores) == 0 {
		return 0, ErrEmptyInput
	}

	sum := 0
	for i, score := range scores {
		if !InRange(score) {
			return 0, fmt.Errorf("score %d at position %d: %w", score, i, ErrScoreOutOfRange)
		}
		sum += score
	}

	n := len(scores)
	quotient, remainder := sum/n, sum%n
	switch twice := 2 * remainder; {
	case twice > n:
		quotient++
	case twice == n && quotient%2 == 1:
		quotient++
	}

	return quotient, nil
}
