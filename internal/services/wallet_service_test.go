package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-ledger/internal/models"
)

func TestDepositApprovalCreditsAndActivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "u", nil)

	first, err := f.wallet.RequestDeposit(ctx, DepositRequestDTO{UserId: u.ID, Amount: dec("600"), BankReference: "BNK-1"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, first.Status)
	require.NotNil(t, first.BankReference)
	assert.Equal(t, "BNK-1", *first.BankReference)
	requireDecimal(t, "0", f.reload(t, u.ID).WalletBalance, "pending deposits do not move the wallet")

	approved, err := f.wallet.ApproveTransaction(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionApproved, approved.Status)

	got := f.reload(t, u.ID)
	requireDecimal(t, "600", got.WalletBalance)
	assert.Equal(t, models.UserStatusInactive, got.Status, "below the activation threshold")

	f.fund(t, u, "400")
	got = f.reload(t, u.ID)
	requireDecimal(t, "1000", got.WalletBalance)
	assert.Equal(t, models.UserStatusActive, got.Status)
}

func TestTransactionsTransitionOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "u", nil)

	trx, err := f.wallet.RequestDeposit(ctx, DepositRequestDTO{UserId: u.ID, Amount: dec("50")})
	require.NoError(t, err)
	_, err = f.wallet.ApproveTransaction(ctx, trx.ID)
	require.NoError(t, err)

	_, err = f.wallet.ApproveTransaction(ctx, trx.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.wallet.RejectTransaction(ctx, trx.ID, "late")
	assert.ErrorIs(t, err, ErrInvalidState)
	requireDecimal(t, "50", f.reload(t, u.ID).WalletBalance)

	_, err = f.wallet.ApproveTransaction(ctx, 123456)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRejectDepositLeavesWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "u", nil)

	trx, err := f.wallet.RequestDeposit(ctx, DepositRequestDTO{UserId: u.ID, Amount: dec("5000")})
	require.NoError(t, err)

	rejected, err := f.wallet.RejectTransaction(ctx, trx.ID, "bank reference not found")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionRejected, rejected.Status)
	assert.Equal(t, "bank reference not found", rejected.Description)
	requireDecimal(t, "0", f.reload(t, u.ID).WalletBalance)
}

func TestWithdrawalLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "u", nil)
	f.fund(t, u, "300")

	_, err := f.wallet.RequestWithdrawal(ctx, WithdrawalRequestDTO{UserId: u.ID, Amount: dec("301")})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	first, err := f.wallet.RequestWithdrawal(ctx, WithdrawalRequestDTO{UserId: u.ID, Amount: dec("200")})
	require.NoError(t, err)
	second, err := f.wallet.RequestWithdrawal(ctx, WithdrawalRequestDTO{UserId: u.ID, Amount: dec("200")})
	require.NoError(t, err)

	_, err = f.wallet.ApproveTransaction(ctx, first.ID)
	require.NoError(t, err)
	requireDecimal(t, "100", f.reload(t, u.ID).WalletBalance)

	_, err = f.wallet.ApproveTransaction(ctx, second.ID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	var still models.Transaction
	require.NoError(t, f.db.Take(&still, second.ID).Error)
	assert.Equal(t, models.TransactionPending, still.Status, "a failed approval rolls back the status change")
	requireDecimal(t, "100", f.reload(t, u.ID).WalletBalance)
}

func TestRequestsRejectNonPositiveAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "u", nil)

	_, err := f.wallet.RequestDeposit(ctx, DepositRequestDTO{UserId: u.ID, Amount: dec("0")})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.wallet.RequestDeposit(ctx, DepositRequestDTO{UserId: u.ID, Amount: dec("-5")})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.wallet.RequestWithdrawal(ctx, WithdrawalRequestDTO{UserId: u.ID, Amount: dec("0")})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.wallet.RequestDeposit(ctx, DepositRequestDTO{UserId: 999, Amount: dec("5")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOverrideBalanceWritesNoLedgerRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "u", nil)

	updated, err := f.wallet.OverrideBalance(ctx, u.ID, dec("42.50"), "migration")
	require.NoError(t, err)
	requireDecimal(t, "42.50", updated.WalletBalance)
	requireDecimal(t, "42.50", f.reload(t, u.ID).WalletBalance)

	var count int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("user_id = ?", u.ID).Count(&count).Error)
	assert.Zero(t, count)

	_, err = f.wallet.OverrideBalance(ctx, u.ID, dec("-1"), "nope")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGetUserTransactionsPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "u", nil)
	for i := 0; i < 5; i++ {
		f.fund(t, u, "10")
	}
	_, err := f.wallet.RequestDeposit(ctx, DepositRequestDTO{UserId: u.ID, Amount: dec("1")})
	require.NoError(t, err)

	page, err := f.wallet.GetUserTransactions(ctx, UserTransactionDTO{UserId: u.ID, Page: 1, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(6), page.Count)
	assert.Equal(t, 2, page.LastPage)
	assert.Equal(t, 2, page.NextPage)
	assert.Len(t, page.Data.([]models.Transaction), 4)

	pending, err := f.wallet.GetUserTransactions(ctx, UserTransactionDTO{UserId: u.ID, Status: string(models.TransactionPending)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	balance, err := f.wallet.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	requireDecimal(t, "50", balance)

	_, err = f.wallet.GetUserTransactions(ctx, UserTransactionDTO{UserId: 404})
	assert.ErrorIs(t, err, ErrNotFound)
}
