package services

import (
	"context"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-ledger/internal/models"
)

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sponsor := f.register(t, "sponsor", nil)
	u, err := f.users.Register(ctx, RegisterUserDTO{Username: "  newbie ", ReferredById: &sponsor.ID})
	require.NoError(t, err)
	assert.Equal(t, "newbie", u.Username)
	require.NotNil(t, u.ReferredById)
	assert.Equal(t, sponsor.ID, *u.ReferredById)
	assert.Equal(t, models.RankStarter, u.Rank)
	assert.Equal(t, models.UserStatusInactive, u.Status)

	got, err := f.users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	requireDecimal(t, "0", got.WalletBalance)
}

func TestRegisterUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing := 404
	_, err := f.users.Register(ctx, RegisterUserDTO{Username: "orphan", ReferredById: &missing})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.users.Register(ctx, RegisterUserDTO{Username: "   "})
	assert.ErrorIs(t, err, ErrInvalidState)

	f.register(t, "taken", nil)
	_, err = f.users.Register(ctx, RegisterUserDTO{Username: "taken"})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.users.GetUser(ctx, 777)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "u", nil)

	banned, err := f.users.SetStatus(ctx, u.ID, models.UserStatusBanned)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusBanned, banned.Status)
	assert.Equal(t, models.UserStatusBanned, f.reload(t, u.ID).Status)

	_, err = f.wallet.RequestDeposit(ctx, DepositRequestDTO{UserId: u.ID, Amount: dec("10")})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.users.SetStatus(ctx, u.ID, "SUSPENDED")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRegisterLogsSponsorId(t *testing.T) {
	f := newFixture(t)
	hook := logtest.NewGlobal()
	t.Cleanup(hook.Reset)

	sponsor := f.register(t, "sponsor", nil)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.NotContains(t, entry.Data, "referred_by_id", "organic signups log no sponsor")

	u := f.register(t, "child", sponsor)
	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, u.ID, entry.Data["user_id"])
	assert.Equal(t, sponsor.ID, entry.Data["referred_by_id"])
}
