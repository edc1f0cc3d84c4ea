package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"referral-ledger/internal/models"
	"referral-ledger/pkg/common"
)

type WalletService struct {
	DB                  *gorm.DB
	Helper              *HelperService
	ActivationThreshold decimal.Decimal
}

func NewWalletService(db *gorm.DB, helper *HelperService, activationThreshold decimal.Decimal) *WalletService {
	return &WalletService{DB: db, Helper: helper, ActivationThreshold: activationThreshold}
}

type DepositRequestDTO struct {
	UserId        int             `json:"-"`
	Amount        decimal.Decimal `json:"amount"`
	BankReference string          `json:"bank_reference"`
	Description   string          `json:"description"`
}

// RequestDeposit records a PENDING deposit. The wallet moves only on approval.
func (s *WalletService) RequestDeposit(ctx context.Context, data DepositRequestDTO) (*models.Transaction, error) {
	user, err := s.Helper.GetUser(ctx, data.UserId)
	if err != nil {
		return nil, err
	}
	if user.Status == models.UserStatusBanned {
		return nil, fmt.Errorf("user %d is banned: %w", user.ID, ErrInvalidState)
	}

	var bankRef *string
	if data.BankReference != "" {
		bankRef = &data.BankReference
	}
	description := data.Description
	if description == "" {
		description = "Wallet deposit"
	}

	return s.Helper.SaveTransaction(s.DB.WithContext(ctx), TransactionData{
		UserId:        user.ID,
		Type:          models.TransactionDeposit,
		Amount:        data.Amount,
		Status:        models.TransactionPending,
		Description:   description,
		BankReference: bankRef,
	})
}

type WithdrawalRequestDTO struct {
	UserId      int             `json:"-"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// RequestWithdrawal records a PENDING withdrawal the current balance can cover.
func (s *WalletService) RequestWithdrawal(ctx context.Context, data WithdrawalRequestDTO) (*models.Transaction, error) {
	user, err := s.Helper.GetUser(ctx, data.UserId)
	if err != nil {
		return nil, err
	}
	if user.Status == models.UserStatusBanned {
		return nil, fmt.Errorf("user %d is banned: %w", user.ID, ErrInvalidState)
	}
	if user.WalletBalance.LessThan(data.Amount) {
		return nil, fmt.Errorf("balance %s below %s: %w", user.WalletBalance, data.Amount, ErrInsufficientFunds)
	}

	description := data.Description
	if description == "" {
		description = "Wallet withdrawal"
	}

	return s.Helper.SaveTransaction(s.DB.WithContext(ctx), TransactionData{
		UserId:      user.ID,
		Type:        models.TransactionWithdrawal,
		Amount:      data.Amount,
		Status:      models.TransactionPending,
		Description: description,
	})
}

// ApproveTransaction settles a PENDING deposit or withdrawal against the wallet.
func (s *WalletService) ApproveTransaction(ctx context.Context, transactionId int) (*models.Transaction, error) {
	var trx models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(tx, transactionId, models.TransactionApproved, ""); err != nil {
			return err
		}
		if err := tx.Take(&trx, transactionId).Error; err != nil {
			return err
		}

		switch trx.Type {
		case models.TransactionDeposit:
			if err := s.Helper.CreditWallet(tx, trx.UserId, trx.Amount); err != nil {
				return err
			}
			return s.activateIfEligible(tx, trx.UserId)
		case models.TransactionWithdrawal:
			return s.Helper.DebitWallet(tx, trx.UserId, trx.Amount)
		default:
			return fmt.Errorf("%s transactions are not approved manually: %w", trx.Type, ErrInvalidState)
		}
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": trx.ID,
		"user_id":        trx.UserId,
		"type":           trx.Type,
		"amount":         trx.Amount.String(),
	}).Info("Transaction approved")
	return &trx, nil
}

func (s *WalletService) RejectTransaction(ctx context.Context, transactionId int, reason string) (*models.Transaction, error) {
	var trx models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(tx, transactionId, models.TransactionRejected, reason); err != nil {
			return err
		}
		return tx.Take(&trx, transactionId).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"transaction_id": trx.ID, "user_id": trx.UserId, "reason": reason}).Info("Transaction rejected")
	return &trx, nil
}

// transition moves a transaction out of PENDING exactly once.
func (s *WalletService) transition(tx *gorm.DB, transactionId int, to models.TransactionStatus, reason string) error {
	updates := map[string]interface{}{"status": to}
	if reason != "" {
		updates["description"] = reason
	}

	res := tx.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", transactionId, models.TransactionPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var trx models.Transaction
	if err := tx.Select("id", "status").Take(&trx, transactionId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("transaction %d: %w", transactionId, ErrNotFound)
		}
		return err
	}
	return fmt.Errorf("transaction %d is %s: %w", transactionId, trx.Status, ErrInvalidState)
}

// activateIfEligible flips INACTIVE to ACTIVE once approved deposits reach the threshold.
func (s *WalletService) activateIfEligible(tx *gorm.DB, userId int) error {
	var deposits []models.Transaction
	err := tx.Select("id", "amount").
		Where("user_id = ? AND type = ? AND status = ?", userId, models.TransactionDeposit, models.TransactionApproved).
		Find(&deposits).Error
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, d := range deposits {
		total = total.Add(d.Amount)
	}
	if total.LessThan(s.ActivationThreshold) {
		return nil
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND status = ?", userId, models.UserStatusInactive).
		UpdateColumn("status", models.UserStatusActive)
	if res.Error == nil && res.RowsAffected > 0 {
		logrus.WithFields(logrus.Fields{"user_id": userId, "deposits": total.String()}).Info("User activated")
	}
	return res.Error
}

// OverrideBalance sets a wallet directly. No ledger row is written, so the audit reports the
// difference until an operator corrects it.
func (s *WalletService) OverrideBalance(ctx context.Context, userId int, balance decimal.Decimal, note string) (*models.User, error) {
	if balance.IsNegative() {
		return nil, fmt.Errorf("override balance %s: %w", balance, ErrInvalidState)
	}

	user, err := s.Helper.GetUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	previous := user.WalletBalance

	err = s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userId).
		UpdateColumn("wallet_balance", balance).Error
	if err != nil {
		return nil, err
	}
	user.WalletBalance = balance

	logrus.WithFields(logrus.Fields{
		"user_id": userId,
		"from":    previous.String(),
		"to":      balance.String(),
		"note":    note,
	}).Warn("Wallet balance overridden")
	return user, nil
}

func (s *WalletService) GetBalance(ctx context.Context, userId int) (decimal.Decimal, error) {
	user, err := s.Helper.GetUser(ctx, userId)
	if err != nil {
		return decimal.Zero, err
	}
	return user.WalletBalance, nil
}

type UserTransactionDTO struct {
	UserId    int
	Type      string
	Status    string
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

func (s *WalletService) GetUserTransactions(ctx context.Context, data UserTransactionDTO) (common.PaginationResult, error) {
	if _, err := s.Helper.GetUser(ctx, data.UserId); err != nil {
		return common.PaginationResult{}, err
	}
	page, limit, offset := common.NormalizePage(data.Page, data.Limit)

	query := s.DB.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", data.UserId)
	if data.Type != "" {
		query = query.Where("type = ?", data.Type)
	}
	if data.Status != "" {
		query = query.Where("status = ?", data.Status)
	}
	if data.StartDate != "" {
		query = query.Where("DATE(created_at) >= ?", data.StartDate)
	}
	if data.EndDate != "" {
		query = query.Where("DATE(created_at) <= ?", data.EndDate)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return common.PaginationResult{}, err
	}

	var transactions []models.Transaction
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&transactions).Error; err != nil {
		return common.PaginationResult{}, err
	}

	return common.PaginateResponse(transactions, total, page, limit, "Successful"), nil
}
