package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"referral-ledger/internal/database"
	"referral-ledger/internal/models"
)

// newTestDB opens a private in-memory database. A single connection keeps every query
// on the same memory store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type fixture struct {
	db             *gorm.DB
	helper         *HelperService
	tree           *ReferralTree
	ranks          *RankEvaluator
	commission     *CommissionService
	network        *NetworkService
	wallet         *WalletService
	investments    *InvestmentService
	users          *UserService
	reconciliation *ReconciliationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	helper := NewHelperService(db)
	tree := NewReferralTree(db)
	ranks := DefaultRankEvaluator()
	commission := NewCommissionService(db, helper, tree)

	return &fixture{
		db:             db,
		helper:         helper,
		tree:           tree,
		ranks:          ranks,
		commission:     commission,
		network:        NewNetworkService(db, tree, ranks),
		wallet:         NewWalletService(db, helper, decimal.NewFromInt(1000)),
		investments:    NewInvestmentService(db, helper, commission, nil),
		users:          NewUserService(db, helper),
		reconciliation: NewReconciliationService(db, ranks, nil),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// requireDecimal compares at cent precision; SQLite hands numerics back as floats.
func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.True(t, dec(want).Equal(got.Round(2)), append([]interface{}{fmt.Sprintf("want %s, got %s", want, got)}, msgAndArgs...)...)
}

func (f *fixture) register(t *testing.T, username string, sponsor *models.User) *models.User {
	t.Helper()

	dto := RegisterUserDTO{Username: username}
	if sponsor != nil {
		dto.ReferredById = &sponsor.ID
	}
	u, err := f.users.Register(context.Background(), dto)
	require.NoError(t, err)
	return u
}

// chain registers n users, each sponsored by the previous one. chain[0] is the root.
func (f *fixture) chain(t *testing.T, n int) []*models.User {
	t.Helper()

	users := make([]*models.User, 0, n)
	var sponsor *models.User
	for i := 0; i < n; i++ {
		u := f.register(t, fmt.Sprintf("chain-%d", i), sponsor)
		users = append(users, u)
		sponsor = u
	}
	return users
}

// fund deposits and approves amount for u.
func (f *fixture) fund(t *testing.T, u *models.User, amount string) {
	t.Helper()

	ctx := context.Background()
	trx, err := f.wallet.RequestDeposit(ctx, DepositRequestDTO{UserId: u.ID, Amount: dec(amount)})
	require.NoError(t, err)
	_, err = f.wallet.ApproveTransaction(ctx, trx.ID)
	require.NoError(t, err)
}

func (f *fixture) openProject(t *testing.T, target string) *models.Project {
	t.Helper()

	p, err := f.investments.CreateProject(context.Background(), CreateProjectDTO{
		Name:         "Project " + uuid.NewString()[:8],
		TargetAmount: dec(target),
		ReturnRate:   dec("0.12"),
		Status:       models.ProjectOpen,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) invest(t *testing.T, u *models.User, p *models.Project, amount string) *InvestResult {
	t.Helper()

	res, err := f.investments.Invest(context.Background(), InvestDTO{UserId: u.ID, ProjectId: p.ID, Amount: dec(amount)})
	require.NoError(t, err)
	return res
}

func (f *fixture) reload(t *testing.T, id int) models.User {
	t.Helper()

	var u models.User
	require.NoError(t, f.db.Take(&u, id).Error)
	return u
}

func (f *fixture) reloadProject(t *testing.T, id int) models.Project {
	t.Helper()

	var p models.Project
	require.NoError(t, f.db.Take(&p, id).Error)
	return p
}

func (f *fixture) countTransactions(t *testing.T, typ models.TransactionType) int64 {
	t.Helper()

	var n int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("type = ?", typ).Count(&n).Error)
	return n
}
