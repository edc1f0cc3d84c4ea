package consumers

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"referral-ledger/internal/services"
)

// LedgerProcessor runs the background variants of the network operations.
type LedgerProcessor struct {
	Reconciliation *services.ReconciliationService
	Commission     *services.CommissionService
	Network        *services.NetworkService
}

func NewLedgerProcessor(reconciliation *services.ReconciliationService, commission *services.CommissionService, network *services.NetworkService) *LedgerProcessor {
	return &LedgerProcessor{
		Reconciliation: reconciliation,
		Commission:     commission,
		Network:        network,
	}
}

// --- DTOs ---

type ReconcileDTO struct {
	Trigger     string `json:"trigger"`
	RequestedBy string `json:"requested_by"`
}

type DistributeCommissionDTO struct {
	InvestmentId int `json:"investment_id"`
}

type RefreshStatsDTO struct {
	UserId int `json:"user_id"`
}

// ProcessReconcile treats a run held by another instance as done.
func (p *LedgerProcessor) ProcessReconcile(ctx context.Context, data ReconcileDTO) error {
	trigger := data.Trigger
	if trigger == "" {
		trigger = services.TriggerWorker
	}
	log := logrus.WithFields(logrus.Fields{"trigger": trigger, "requested_by": data.RequestedBy})

	summary, err := p.Reconciliation.RunReconciliation(ctx, trigger)
	if errors.Is(err, services.ErrJobRunning) {
		log.Info("Reconciliation already running elsewhere, dropping job")
		return nil
	}
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"run_id":             summary.RunId,
		"users_corrected":    summary.UsersCorrected,
		"projects_corrected": summary.ProjectsCorrected,
	}).Info("Queued reconciliation complete")
	return nil
}

func (p *LedgerProcessor) ProcessDistributeCommission(ctx context.Context, data DistributeCommissionDTO) error {
	shares, err := p.Commission.DistributeForInvestment(ctx, data.InvestmentId)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"investment_id": data.InvestmentId, "levels": len(shares)}).Info("Commission retry processed")
	return nil
}

func (p *LedgerProcessor) ProcessRefreshStats(ctx context.Context, data RefreshStatsDTO) error {
	_, err := p.Network.ComputeNetworkStats(ctx, data.UserId)
	return err
}
