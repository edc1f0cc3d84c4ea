package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"referral-ledger/internal/consumers"
	"referral-ledger/internal/services"
)

type Worker struct {
	Processor *consumers.LedgerProcessor
}

func NewWorker(processor *consumers.LedgerProcessor) *Worker {
	return &Worker{
		Processor: processor,
	}
}

// retryable stops asynq from retrying errors that a retry cannot fix.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrInvalidState) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func (w *Worker) HandleReconcile(ctx context.Context, t *asynq.Task) error {
	var p consumers.ReconcileDTO
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return retryable(w.Processor.ProcessReconcile(ctx, p))
}

func (w *Worker) HandleDistributeCommission(ctx context.Context, t *asynq.Task) error {
	var p consumers.DistributeCommissionDTO
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return retryable(w.Processor.ProcessDistributeCommission(ctx, p))
}

func (w *Worker) HandleRefreshStats(ctx context.Context, t *asynq.Task) error {
	var p consumers.RefreshStatsDTO
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return retryable(w.Processor.ProcessRefreshStats(ctx, p))
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReconcile, w.HandleReconcile)
	mux.HandleFunc(TypeDistributeCommission, w.HandleDistributeCommission)
	mux.HandleFunc(TypeRefreshStats, w.HandleRefreshStats)
	return mux
}

func StartWorker(redisOpt asynq.RedisClientOpt, processor *consumers.LedgerProcessor) error {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: logrus.StandardLogger(),
		},
	)

	if err := srv.Run(NewWorker(processor).Mux()); err != nil {
		return fmt.Errorf("could not run worker: %w", err)
	}
	return nil
}
