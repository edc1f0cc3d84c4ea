package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-ledger/internal/models"
)

func TestEvaluateRankThresholds(t *testing.T) {
	e := DefaultRankEvaluator()

	cases := []struct {
		volume string
		want   models.Rank
	}{
		{"0", models.RankStarter},
		{"1499999.99", models.RankStarter},
		{"1500000", models.RankManager},
		{"4999999.99", models.RankManager},
		{"5000000", models.RankSeniorManager},
		{"10000000", models.RankDirector},
		{"250000000", models.RankDirector},
	}
	for _, tc := range cases {
		tier, err := e.EvaluateRank(dec(tc.volume))
		require.NoError(t, err)
		assert.Equal(t, tc.want, tier.Rank, "volume %s", tc.volume)
	}
}

func TestEvaluateRankIsMonotonic(t *testing.T) {
	e := DefaultRankEvaluator()
	order := map[models.Rank]int{}
	for i, tier := range e.Tiers() {
		order[tier.Rank] = i
	}

	step := decimal.NewFromInt(250_000)
	prev := -1
	for v := decimal.Zero; v.LessThanOrEqual(decimal.NewFromInt(12_000_000)); v = v.Add(step) {
		tier, err := e.EvaluateRank(v)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, order[tier.Rank], prev, "rank fell at volume %s", v)
		prev = order[tier.Rank]
	}
}

func TestEvaluateRankRejectsNegativeVolume(t *testing.T) {
	_, err := DefaultRankEvaluator().EvaluateRank(dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestNewRankEvaluatorValidatesTiers(t *testing.T) {
	_, err := NewRankEvaluator(nil)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = NewRankEvaluator([]RankTier{
		{Rank: models.RankStarter, Name: "Starter", MinVolume: dec("100")},
		{Rank: models.RankManager, Name: "Manager", MinVolume: dec("100")},
	})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = NewRankEvaluator([]RankTier{{Rank: models.RankStarter, Name: "Starter", MinVolume: dec("-5")}})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestEvaluateRankBelowLowestTierFallsBackToLowest(t *testing.T) {
	e, err := NewRankEvaluator([]RankTier{
		{Rank: models.RankManager, Name: "Manager", MinVolume: dec("100")},
		{Rank: models.RankDirector, Name: "Director", MinVolume: dec("1000")},
	})
	require.NoError(t, err)

	tier, err := e.EvaluateRank(dec("50"))
	require.NoError(t, err)
	assert.Equal(t, models.RankManager, tier.Rank)
}

func TestNextTier(t *testing.T) {
	e := DefaultRankEvaluator()

	next, remaining, err := e.NextTier(dec("1000000"))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, models.RankManager, next.Rank)
	requireDecimal(t, "500000", remaining)

	next, remaining, err = e.NextTier(dec("10000000"))
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.True(t, remaining.IsZero())
}
