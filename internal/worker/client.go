package worker

import (
	"context"

	"github.com/hibiken/asynq"

	"referral-ledger/internal/consumers"
	"referral-ledger/internal/services"
)

// TaskEnqueuer is the part of *asynq.Client the producers use.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client queues network jobs from the API process.
type Client struct {
	enqueuer TaskEnqueuer
}

func NewClient(enqueuer TaskEnqueuer) *Client {
	return &Client{enqueuer: enqueuer}
}

// EnqueueReconciliation returns the queued task id.
func (c *Client) EnqueueReconciliation(ctx context.Context, requestedBy string) (string, error) {
	task, err := NewReconcileTask(consumers.ReconcileDTO{Trigger: services.TriggerWorker, RequestedBy: requestedBy})
	if err != nil {
		return "", err
	}
	info, err := c.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// RetryCommission queues a distribution retry for an investment.
func (c *Client) RetryCommission(ctx context.Context, investmentId int) error {
	task, err := NewDistributeCommissionTask(consumers.DistributeCommissionDTO{InvestmentId: investmentId})
	if err != nil {
		return err
	}
	_, err = c.enqueuer.EnqueueContext(ctx, task)
	return err
}

func (c *Client) EnqueueRefreshStats(ctx context.Context, userId int) error {
	task, err := NewRefreshStatsTask(consumers.RefreshStatsDTO{UserId: userId})
	if err != nil {
		return err
	}
	_, err = c.enqueuer.EnqueueContext(ctx, task)
	return err
}
