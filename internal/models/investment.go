package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "ACTIVE"
	InvestmentCancelled InvestmentStatus = "CANCELLED"
)

type Investment struct {
	ID             int              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId         int              `gorm:"column:user_id;not null;index" json:"user_id"`
	ProjectId      int              `gorm:"column:project_id;not null;index" json:"project_id"`
	Amount         decimal.Decimal  `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Status         InvestmentStatus `gorm:"column:status;size:20;not null;default:ACTIVE;index" json:"status"`
	ExpectedReturn decimal.Decimal  `gorm:"column:expected_return;type:decimal(20,2);not null;default:0" json:"expected_return"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Investment) TableName() string {
	return "investments"
}
