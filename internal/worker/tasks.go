package worker

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"referral-ledger/internal/consumers"
)

// Task Types
const (
	TypeReconcile            = "network:reconcile"
	TypeDistributeCommission = "network:distribute-commission"
	TypeRefreshStats         = "network:refresh-stats"
)

const reconcileUniqueFor = 10 * time.Minute

// Task Creators

// NewReconcileTask is unique for ten minutes so repeated operator clicks queue one run.
func NewReconcileTask(payload consumers.ReconcileDTO) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReconcile, data, asynq.Queue("low"), asynq.Unique(reconcileUniqueFor), asynq.MaxRetry(3)), nil
}

func NewDistributeCommissionTask(payload consumers.DistributeCommissionDTO) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDistributeCommission, data, asynq.Queue("critical")), nil
}

func NewRefreshStatsTask(payload consumers.RefreshStatsDTO) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRefreshStats, data), nil
}
