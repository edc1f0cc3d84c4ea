package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"referral-ledger/internal/metrics"
	"referral-ledger/internal/models"
)

// expectedBalances folds APPROVED transactions into the balance the ledger implies.
// A nil userId covers every user.
func expectedBalances(db *gorm.DB, userId *int) (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal)

	query := db.Model(&models.Transaction{}).
		Select("id", "user_id", "type", "amount").
		Where("status = ?", models.TransactionApproved)
	if userId != nil {
		query = query.Where("user_id = ?", *userId)
	}

	var batch []models.Transaction
	res := query.FindInBatches(&batch, reconcileBatchSize, func(tx *gorm.DB, n int) error {
		for _, trx := range batch {
			balance := valueOrZero(out, trx.UserId)
			if trx.Type.Credits() {
				out[trx.UserId] = balance.Add(trx.Amount)
			} else {
				out[trx.UserId] = balance.Sub(trx.Amount)
			}
		}
		return nil
	})
	return out, res.Error
}

// AuditWallets compares every stored balance with the ledger. It only reads.
func (s *ReconciliationService) AuditWallets(ctx context.Context) ([]DriftReport, error) {
	db := s.DB.WithContext(ctx)

	expected, err := expectedBalances(db, nil)
	if err != nil {
		return nil, err
	}

	var users []models.User
	if err := db.Select("id", "wallet_balance").Order("id").Find(&users).Error; err != nil {
		return nil, err
	}

	reports := []DriftReport{}
	for _, u := range users {
		want := valueOrZero(expected, u.ID)
		if !drifted(u.WalletBalance, want) {
			continue
		}
		report := newDriftReport(u.ID, u.WalletBalance, want)
		reports = append(reports, report)
		logrus.WithFields(logrus.Fields{
			"user_id":  u.ID,
			"stored":   report.Stored.String(),
			"expected": report.Expected.String(),
		}).Warn("Wallet balance drift detected")
	}

	metrics.WalletDrift.Set(float64(len(reports)))
	return reports, nil
}

// AuditUserWallet returns the comparison for one wallet, with a *DriftError when it is off.
func (s *ReconciliationService) AuditUserWallet(ctx context.Context, userId int) (DriftReport, error) {
	db := s.DB.WithContext(ctx)

	stored, err := storedBalance(db, userId)
	if err != nil {
		return DriftReport{}, err
	}
	expected, err := expectedBalances(db, &userId)
	if err != nil {
		return DriftReport{}, err
	}

	report := newDriftReport(userId, stored, valueOrZero(expected, userId))
	if drifted(report.Stored, report.Expected) {
		return report, &DriftError{Reports: []DriftReport{report}}
	}
	return report, nil
}

// CorrectWalletDrift moves the stored balance onto the ledger expectation by an atomic delta.
// It is only ever called by an operator.
func (s *ReconciliationService) CorrectWalletDrift(ctx context.Context, userId int, operator string) (DriftReport, error) {
	var report DriftReport
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored, err := storedBalance(tx, userId)
		if err != nil {
			return err
		}
		expected, err := expectedBalances(tx, &userId)
		if err != nil {
			return err
		}

		report = newDriftReport(userId, stored, valueOrZero(expected, userId))
		if !drifted(report.Stored, report.Expected) {
			return nil
		}

		delta := report.Expected.Sub(report.Stored)
		return tx.Model(&models.User{}).
			Where("id = ?", userId).
			UpdateColumn("wallet_balance", gorm.Expr("wallet_balance + ?", delta)).Error
	})
	if err != nil {
		return DriftReport{}, err
	}

	if drifted(report.Stored, report.Expected) {
		logrus.WithFields(logrus.Fields{
			"user_id":  userId,
			"operator": operator,
			"from":     report.Stored.String(),
			"to":       report.Expected.String(),
		}).Warn("Wallet drift corrected")
	}
	return report, nil
}

func storedBalance(db *gorm.DB, userId int) (decimal.Decimal, error) {
	var user models.User
	if err := db.Select("id", "wallet_balance").Take(&user, userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, fmt.Errorf("user %d: %w", userId, ErrNotFound)
		}
		return decimal.Zero, err
	}
	return user.WalletBalance, nil
}
