package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NetworkLevelStat caches one level of a user's downline. Rows are rebuilt from the
// referral tree and never read back as a source of truth.
type NetworkLevelStat struct {
	ID         int             `gorm:"primaryKey;autoIncrement" json:"-"`
	UserId     int             `gorm:"column:user_id;not null;uniqueIndex:idx_level_stat_user_level" json:"user_id"`
	Level      int             `gorm:"column:level;not null;uniqueIndex:idx_level_stat_user_level" json:"level"`
	Count      int             `gorm:"column:count;not null;default:0" json:"count"`
	Active     int             `gorm:"column:active;not null;default:0" json:"active"`
	Volume     decimal.Decimal `gorm:"column:volume;type:decimal(20,2);not null;default:0" json:"volume"`
	Commission decimal.Decimal `gorm:"column:commission;type:decimal(20,2);not null;default:0" json:"commission"`
	Percent    string          `gorm:"column:percent;size:10;not null" json:"percent"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (NetworkLevelStat) TableName() string {
	return "network_level_stats"
}
