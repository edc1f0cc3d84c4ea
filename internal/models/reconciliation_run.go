package models

import (
	"time"
)

type ReconciliationRun struct {
	ID                int        `gorm:"primaryKey;autoIncrement" json:"id"`
	RunId             string     `gorm:"column:run_id;size:36;not null;uniqueIndex" json:"run_id"`
	Trigger           string     `gorm:"column:run_trigger;size:20;not null" json:"trigger"` // cron, operator or worker
	UsersCorrected    int        `gorm:"column:users_corrected;not null;default:0" json:"users_corrected"`
	ProjectsCorrected int        `gorm:"column:projects_corrected;not null;default:0" json:"projects_corrected"`
	DriftReported     int        `gorm:"column:drift_reported;not null;default:0" json:"drift_reported"`
	Failures          int        `gorm:"column:failures;not null;default:0" json:"failures"`
	StartedAt         time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt        *time.Time `gorm:"column:finished_at" json:"finished_at"`
}

func (ReconciliationRun) TableName() string {
	return "reconciliation_runs"
}
