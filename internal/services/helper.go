package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"referral-ledger/internal/models"
	"referral-ledger/pkg/common"
)

// HelperService holds the ledger primitives shared by the wallet, investment and
// commission flows. Methods taking a tx run inside the caller's transaction.
type HelperService struct {
	DB *gorm.DB
}

func NewHelperService(db *gorm.DB) *HelperService {
	return &HelperService{DB: db}
}

type TransactionData struct {
	UserId        int
	Type          models.TransactionType
	Amount        decimal.Decimal
	Status        models.TransactionStatus
	Description   string
	BankReference *string
	InvestmentId  *int
	Level         int
	SourceUserId  *int
}

var referencePrefix = map[models.TransactionType]string{
	models.TransactionDeposit:    "DEP",
	models.TransactionWithdrawal: "WDR",
	models.TransactionInvestment: "INV",
	models.TransactionCommission: "COM",
	models.TransactionRefund:     "REF",
}

// SaveTransaction appends one ledger row.
func (s *HelperService) SaveTransaction(tx *gorm.DB, data TransactionData) (*models.Transaction, error) {
	if !data.Amount.IsPositive() {
		return nil, fmt.Errorf("transaction amount %s: %w", data.Amount, ErrInvalidState)
	}
	status := data.Status
	if status == "" {
		status = models.TransactionPending
	}

	trx := models.Transaction{
		Reference:     common.GenerateReference(referencePrefix[data.Type]),
		UserId:        data.UserId,
		Type:          data.Type,
		Amount:        data.Amount,
		Status:        status,
		Description:   data.Description,
		BankReference: data.BankReference,
		InvestmentId:  data.InvestmentId,
		Level:         data.Level,
		SourceUserId:  data.SourceUserId,
	}
	if err := tx.Create(&trx).Error; err != nil {
		return nil, err
	}
	return &trx, nil
}

// CreditWallet adds amount to the user's wallet with a single atomic increment.
func (s *HelperService) CreditWallet(tx *gorm.DB, userId int, amount decimal.Decimal) error {
	res := tx.Model(&models.User{}).
		Where("id = ?", userId).
		UpdateColumn("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userId, ErrNotFound)
	}
	return nil
}

// DebitWallet subtracts amount only if the balance covers it.
func (s *HelperService) DebitWallet(tx *gorm.DB, userId int, amount decimal.Decimal) error {
	res := tx.Model(&models.User{}).
		Where("id = ? AND wallet_balance >= ?", userId, amount).
		UpdateColumn("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.findUser(tx, userId); err != nil {
			return err
		}
		return fmt.Errorf("user %d debit %s: %w", userId, amount, ErrInsufficientFunds)
	}
	return nil
}

// AddTotalInvested moves the cached total_invested by delta. Reconciliation owns the value.
func (s *HelperService) AddTotalInvested(tx *gorm.DB, userId int, delta decimal.Decimal) error {
	return tx.Model(&models.User{}).
		Where("id = ?", userId).
		UpdateColumn("total_invested", gorm.Expr("total_invested + ?", delta)).Error
}

func (s *HelperService) GetUser(ctx context.Context, userId int) (*models.User, error) {
	return s.findUser(s.DB.WithContext(ctx), userId)
}

func (s *HelperService) findUser(db *gorm.DB, userId int) (*models.User, error) {
	var user models.User
	if err := db.Take(&user, userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", userId, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}
