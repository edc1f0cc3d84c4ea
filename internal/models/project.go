package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectComingSoon ProjectStatus = "COMING_SOON"
	ProjectOpen       ProjectStatus = "OPEN"
	ProjectFunded     ProjectStatus = "FUNDED"
	ProjectCompleted  ProjectStatus = "COMPLETED"
)

type Project struct {
	ID           int             `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string          `gorm:"column:name;size:200;not null" json:"name"`
	TargetAmount decimal.Decimal `gorm:"column:target_amount;type:decimal(20,2);not null" json:"target_amount"`
	RaisedAmount decimal.Decimal `gorm:"column:raised_amount;type:decimal(20,2);not null;default:0" json:"raised_amount"`
	ReturnRate   decimal.Decimal `gorm:"column:return_rate;type:decimal(8,4);not null;default:0" json:"return_rate"`
	Status       ProjectStatus   `gorm:"column:status;size:20;not null;default:COMING_SOON" json:"status"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}
