package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"referral-ledger/internal/models"
)

type RankTier struct {
	Rank      models.Rank     `json:"rank"`
	Name      string          `json:"name"`
	MinVolume decimal.Decimal `json:"min_volume"`
}

var DefaultRankTiers = []RankTier{
	{Rank: models.RankStarter, Name: "Starter", MinVolume: decimal.Zero},
	{Rank: models.RankManager, Name: "Manager", MinVolume: decimal.NewFromInt(1_500_000)},
	{Rank: models.RankSeniorManager, Name: "Senior Manager", MinVolume: decimal.NewFromInt(5_000_000)},
	{Rank: models.RankDirector, Name: "Director", MinVolume: decimal.NewFromInt(10_000_000)},
}

// RankEvaluator maps team volume to a tier. It holds no state beyond its tier table.
type RankEvaluator struct {
	tiers []RankTier
}

// NewRankEvaluator validates that tiers are non-empty, strictly ascending and non-negative.
func NewRankEvaluator(tiers []RankTier) (*RankEvaluator, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("rank tiers empty: %w", ErrInvalidState)
	}
	for i, tier := range tiers {
		if tier.MinVolume.IsNegative() {
			return nil, fmt.Errorf("rank tier %s has negative min volume: %w", tier.Name, ErrInvalidState)
		}
		if i > 0 && !tier.MinVolume.GreaterThan(tiers[i-1].MinVolume) {
			return nil, fmt.Errorf("rank tier %s is not above %s: %w", tier.Name, tiers[i-1].Name, ErrInvalidState)
		}
	}

	owned := make([]RankTier, len(tiers))
	copy(owned, tiers)
	return &RankEvaluator{tiers: owned}, nil
}

func DefaultRankEvaluator() *RankEvaluator {
	e, _ := NewRankEvaluator(DefaultRankTiers)
	return e
}

func (e *RankEvaluator) Tiers() []RankTier {
	out := make([]RankTier, len(e.tiers))
	copy(out, e.tiers)
	return out
}

// EvaluateRank picks the tier with the greatest MinVolume not above teamVolume.
// Volumes under the lowest threshold get the lowest tier.
func (e *RankEvaluator) EvaluateRank(teamVolume decimal.Decimal) (RankTier, error) {
	if teamVolume.IsNegative() {
		return RankTier{}, fmt.Errorf("team volume %s: %w", teamVolume, ErrInvalidState)
	}
	for i := len(e.tiers) - 1; i >= 0; i-- {
		if e.tiers[i].MinVolume.LessThanOrEqual(teamVolume) {
			return e.tiers[i], nil
		}
	}
	return e.tiers[0], nil
}

// NextTier returns the tier after the current one and the volume still missing to reach it.
// At the top tier it returns nil.
func (e *RankEvaluator) NextTier(teamVolume decimal.Decimal) (*RankTier, decimal.Decimal, error) {
	if teamVolume.IsNegative() {
		return nil, decimal.Zero, fmt.Errorf("team volume %s: %w", teamVolume, ErrInvalidState)
	}
	for _, tier := range e.tiers {
		if tier.MinVolume.GreaterThan(teamVolume) {
			next := tier
			return &next, tier.MinVolume.Sub(teamVolume), nil
		}
	}
	return nil, decimal.Zero, nil
}
