package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserStatus string

const (
	UserStatusInactive UserStatus = "INACTIVE"
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusBanned   UserStatus = "BANNED"
)

type Rank string

const (
	RankStarter       Rank = "STARTER"
	RankManager       Rank = "MANAGER"
	RankSeniorManager Rank = "SENIOR_MANAGER"
	RankDirector      Rank = "DIRECTOR"
)

// User holds identity plus the cached financial and network aggregates. WalletBalance is
// authoritative in storage; TotalInvested, TeamVolume, the team counters and Rank are
// caches rebuilt by reconciliation.
type User struct {
	ID                     int             `gorm:"primaryKey;autoIncrement" json:"id"`
	Username               string          `gorm:"column:username;size:100;not null;uniqueIndex" json:"username"`
	ReferredById           *int            `gorm:"column:referred_by_id;index" json:"referred_by_id"`
	WalletBalance          decimal.Decimal `gorm:"column:wallet_balance;type:decimal(20,2);not null;default:0" json:"wallet_balance"`
	TotalInvested          decimal.Decimal `gorm:"column:total_invested;type:decimal(20,2);not null;default:0" json:"total_invested"`
	TeamVolume             decimal.Decimal `gorm:"column:team_volume;type:decimal(20,2);not null;default:0" json:"team_volume"`
	TotalTeamMembers       int             `gorm:"column:total_team_members;not null;default:0" json:"total_team_members"`
	TotalActiveTeamMembers int             `gorm:"column:total_active_team_members;not null;default:0" json:"total_active_team_members"`
	TotalTeamCommission    decimal.Decimal `gorm:"column:total_team_commission;type:decimal(20,2);not null;default:0" json:"total_team_commission"`
	Rank                   Rank            `gorm:"column:rank;size:30;not null;default:STARTER" json:"rank"`
	Status                 UserStatus      `gorm:"column:status;size:20;not null;default:INACTIVE" json:"status"`
	CreatedAt              time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
