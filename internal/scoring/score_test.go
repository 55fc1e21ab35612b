package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMeanRound(t *testing.T) {
	cases := []struct {
		name   string
		scores []int
		want   int
	}{
		{name: "exact mean", scores: []int{80, 81, 80, 80, 79}, want: 80},
		{name: "rounds down below half", scores: []int{70, 71, 70, 70, 70}, want: 70},
		{name: "rounds up above half", scores: []int{70, 73, 70, 70, 70}, want: 71},
		{name: "half rounds to even down", scores: []int{80, 81}, want: 80},
		{name: "half rounds to even up", scores: []int{81, 82}, want: 82},
		{name: "boundaries", scores: []int{0, 100, 0, 100, 0, 100}, want: 50},
		{name: "all zero", scores: []int{0, 0, 0, 0, 0}, want: 0},
		{name: "all max", scores: []int{100, 100, 100, 100, 100}, want: 100},
		{name: "single", scores: []int{42}, want: 42},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MeanRound(tc.scores)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMeanRoundRejectsEmptyInput(t *testing.T) {
	_, err := MeanRound(nil)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestMeanRoundRejectsOutOfRange(t *testing.T) {
	_, err := MeanRound([]int{50, 101})
	require.ErrorIs(t, err, ErrScoreOutOfRange)

	_, err = MeanRound([]int{-1, 50})
	require.ErrorIs(t, err, ErrScoreOutOfRange)
}

func TestInRangeBoundaries(t *testing.T) {
	require.True(t, InRange(0))
	require.True(t, InRange(100))
	require.False(t, InRange(-1))
	require.False(t, InRange(101))
}
