package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"referral-ledger/internal/models"
)

type LevelStat struct {
	Level      int             `json:"level"`
	Count      int             `json:"count"`
	Active     int             `json:"active"`
	Volume     decimal.Decimal `json:"volume"`
	Commission decimal.Decimal `json:"commission"`
	Percent    string          `json:"percent"`
}

type NetworkTotals struct {
	Members    int             `json:"members"`
	Active     int             `json:"active"`
	Volume     decimal.Decimal `json:"volume"`
	Commission decimal.Decimal `json:"commission"`
}

type NetworkSummary struct {
	UserId   int             `json:"user_id"`
	Levels   []LevelStat     `json:"levels"`
	Totals   NetworkTotals   `json:"totals"`
	Rank     RankTier        `json:"rank"`
	NextRank *RankTier       `json:"next_rank,omitempty"`
	ToNext   decimal.Decimal `json:"volume_to_next_rank"`
}

// childrenFunc returns the direct referrals of every id in a frontier.
type childrenFunc func(ids []int) ([]Member, error)

// aggregateLevels walks the downline of root breadth first and always returns MaxLevels rows.
func aggregateLevels(root int, children childrenFunc) ([]LevelStat, error) {
	stats := make([]LevelStat, 0, MaxLevels)
	frontier := []int{root}

	for level := 1; level <= MaxLevels; level++ {
		stat := LevelStat{
			Level:      level,
			Volume:     decimal.Zero,
			Commission: decimal.Zero,
			Percent:    LevelPercent(level),
		}

		if len(frontier) > 0 {
			downlines, err := children(frontier)
			if err != nil {
				return nil, fmt.Errorf("level %d: %w", level, err)
			}

			next := make([]int, 0, len(downlines))
			for _, m := range downlines {
				stat.Count++
				if m.TotalInvested.IsPositive() {
					stat.Active++
				}
				stat.Volume = stat.Volume.Add(m.TotalInvested)
				next = append(next, m.Id)
			}
			stat.Commission = CommissionFor(stat.Volume, level)
			frontier = next
		}

		stats = append(stats, stat)
	}
	return stats, nil
}

func SumLevels(stats []LevelStat) NetworkTotals {
	totals := NetworkTotals{Volume: decimal.Zero, Commission: decimal.Zero}
	for _, s := range stats {
		totals.Members += s.Count
		totals.Active += s.Active
		totals.Volume = totals.Volume.Add(s.Volume)
		totals.Commission = totals.Commission.Add(s.Commission)
	}
	return totals
}

type NetworkService struct {
	DB    *gorm.DB
	Tree  *ReferralTree
	Ranks *RankEvaluator
}

func NewNetworkService(db *gorm.DB, tree *ReferralTree, ranks *RankEvaluator) *NetworkService {
	return &NetworkService{DB: db, Tree: tree, Ranks: ranks}
}

// ComputeNetworkStats aggregates levels 1..5 below userId and upserts the cached rows.
func (s *NetworkService) ComputeNetworkStats(ctx context.Context, userId int) ([]LevelStat, error) {
	if err := s.Tree.mustExist(ctx, userId); err != nil {
		return nil, err
	}

	stats, err := aggregateLevels(userId, func(ids []int) ([]Member, error) {
		return s.Tree.ChildrenOf(ctx, ids)
	})
	if err != nil {
		return nil, err
	}

	if err := saveLevelStats(s.DB.WithContext(ctx), userId, stats); err != nil {
		// the rows are a cache; the caller still gets fresh numbers
		logrus.WithError(err).WithField("user_id", userId).Warn("Failed to store network level stats")
	}
	return stats, nil
}

func (s *NetworkService) NetworkSummary(ctx context.Context, userId int) (*NetworkSummary, error) {
	stats, err := s.ComputeNetworkStats(ctx, userId)
	if err != nil {
		return nil, err
	}

	totals := SumLevels(stats)
	tier, err := s.Ranks.EvaluateRank(totals.Volume)
	if err != nil {
		return nil, err
	}
	next, toNext, err := s.Ranks.NextTier(totals.Volume)
	if err != nil {
		return nil, err
	}

	return &NetworkSummary{
		UserId:   userId,
		Levels:   stats,
		Totals:   totals,
		Rank:     tier,
		NextRank: next,
		ToNext:   toNext,
	}, nil
}

// GetLevelStats reads the cached rows without recomputing them.
func (s *NetworkService) GetLevelStats(ctx context.Context, userId int) ([]models.NetworkLevelStat, error) {
	var rows []models.NetworkLevelStat
	err := s.DB.WithContext(ctx).Where("user_id = ?", userId).Order("level").Find(&rows).Error
	return rows, err
}

func levelStatRow(userId int, stat LevelStat, now time.Time) models.NetworkLevelStat {
	return models.NetworkLevelStat{
		UserId:     userId,
		Level:      stat.Level,
		Count:      stat.Count,
		Active:     stat.Active,
		Volume:     stat.Volume,
		Commission: stat.Commission,
		Percent:    stat.Percent,
		UpdatedAt:  now,
	}
}

// saveLevelStats upserts by (user_id, level).
func saveLevelStats(db *gorm.DB, userId int, stats []LevelStat) error {
	if len(stats) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]models.NetworkLevelStat, len(stats))
	for i, stat := range stats {
		rows[i] = levelStatRow(userId, stat, now)
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "level"}},
		DoUpdates: clause.AssignmentColumns([]string{"count", "active", "volume", "commission", "percent", "updated_at"}),
	}).Create(&rows).Error
}
