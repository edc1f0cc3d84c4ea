package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"referral-ledger/internal/models"
)

// MaxLevels bounds every walk of the referral tree, upward or downward.
const MaxLevels = 5

// Member is a downline user as seen by the aggregator.
type Member struct {
	Id            int
	TotalInvested decimal.Decimal
}

// ReferralTree reads sponsor and downline links straight from the users table.
type ReferralTree struct {
	DB *gorm.DB
}

func NewReferralTree(db *gorm.DB) *ReferralTree {
	return &ReferralTree{DB: db}
}

// WithTx returns a tree bound to tx, for reads that must share the caller's transaction.
func (t *ReferralTree) WithTx(tx *gorm.DB) *ReferralTree {
	return &ReferralTree{DB: tx}
}

// Parent returns the sponsor of userId, or nil for an organic signup.
func (t *ReferralTree) Parent(ctx context.Context, userId int) (*int, error) {
	var user models.User
	err := t.DB.WithContext(ctx).
		Model(&models.User{}).
		Select("id", "referred_by_id").
		Where("id = ?", userId).
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", userId, ErrNotFound)
		}
		return nil, err
	}
	return user.ReferredById, nil
}

// Children returns the direct referrals of userId.
func (t *ReferralTree) Children(ctx context.Context, userId int) ([]int, error) {
	if err := t.mustExist(ctx, userId); err != nil {
		return nil, err
	}

	var ids []int
	err := t.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("referred_by_id = ?", userId).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

// childLookupChunk caps the ids bound into one IN clause.
var childLookupChunk = reconcileBatchSize

// ChildrenOf fetches one whole level of the downline, chunking wide levels.
func (t *ReferralTree) ChildrenOf(ctx context.Context, ids []int) ([]Member, error) {
	var members []Member
	for start := 0; start < len(ids); start += childLookupChunk {
		end := min(start+childLookupChunk, len(ids))

		var users []models.User
		err := t.DB.WithContext(ctx).
			Select("id", "total_invested").
			Where("referred_by_id IN ?", ids[start:end]).
			Find(&users).Error
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			members = append(members, Member{Id: u.ID, TotalInvested: u.TotalInvested})
		}
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Id < members[j].Id })
	return members, nil
}

// Ancestors returns up to depth sponsors of userId, nearest first. depth is capped at MaxLevels.
func (t *ReferralTree) Ancestors(ctx context.Context, userId, depth int) ([]int, error) {
	if depth > MaxLevels {
		depth = MaxLevels
	}

	ancestors := make([]int, 0, depth)
	current := userId
	for len(ancestors) < depth {
		parent, err := t.Parent(ctx, current)
		if err != nil {
			return ancestors, err
		}
		if parent == nil {
			break
		}
		ancestors = append(ancestors, *parent)
		current = *parent
	}
	return ancestors, nil
}

func (t *ReferralTree) mustExist(ctx context.Context, userId int) error {
	var count int64
	if err := t.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userId).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("user %d: %w", userId, ErrNotFound)
	}
	return nil
}
