package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	TransactionInvestment TransactionType = "INVESTMENT"
	TransactionCommission TransactionType = "COMMISSION"
	TransactionRefund     TransactionType = "REFUND"
)

type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "PENDING"
	TransactionApproved TransactionStatus = "APPROVED"
	TransactionRejected TransactionStatus = "REJECTED"
)

type Transaction struct {
	ID            int               `gorm:"primaryKey;autoIncrement" json:"id"`
	Reference     string            `gorm:"column:reference;size:64;not null;uniqueIndex" json:"reference"`
	UserId        int               `gorm:"column:user_id;not null;index:idx_trx_user_status" json:"user_id"`
	Type          TransactionType   `gorm:"column:type;size:20;not null;uniqueIndex:idx_trx_investment_level_type,priority:3" json:"type"`
	Amount        decimal.Decimal   `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Status        TransactionStatus `gorm:"column:status;size:20;not null;default:PENDING;index:idx_trx_user_status" json:"status"`
	Description   string            `gorm:"column:description;type:text" json:"description"`
	BankReference *string           `gorm:"column:bank_reference;size:100" json:"bank_reference,omitempty"`
	InvestmentId  *int              `gorm:"column:investment_id;index;uniqueIndex:idx_trx_investment_level_type,priority:1" json:"investment_id,omitempty"`
	Level         int               `gorm:"column:level;not null;default:0;uniqueIndex:idx_trx_investment_level_type,priority:2" json:"level"` // commission level, 0 otherwise
	SourceUserId  *int              `gorm:"column:source_user_id" json:"source_user_id,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Credits reports whether an approved row of this type adds to the wallet balance.
func (t TransactionType) Credits() bool {
	switch t {
	case TransactionDeposit, TransactionCommission, TransactionRefund:
		return true
	}
	return false
}
