package grpc

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"referral-ledger/internal/database"
	"referral-ledger/internal/models"
	"referral-ledger/internal/services"
)

// testClient calls network.NetworkService the way a remote caller would.
type testClient struct {
	conn grpc.ClientConnInterface
}

func (c *testClient) call(ctx context.Context, method string, req map[string]interface{}) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *testClient) ComputeNetworkStats(ctx context.Context, userId int) (*structpb.Struct, error) {
	return c.call(ctx, "ComputeNetworkStats", map[string]interface{}{"user_id": userId})
}

func (c *testClient) PreviewCommissions(ctx context.Context, userId int, amount string) (*structpb.Struct, error) {
	return c.call(ctx, "PreviewCommissions", map[string]interface{}{"user_id": userId, "amount": amount})
}

func (c *testClient) EvaluateRank(ctx context.Context, teamVolume string) (*structpb.Struct, error) {
	return c.call(ctx, "EvaluateRank", map[string]interface{}{"team_volume": teamVolume})
}

func (c *testClient) RunReconciliation(ctx context.Context, trigger string) (*structpb.Struct, error) {
	return c.call(ctx, "RunReconciliation", map[string]interface{}{"trigger": trigger})
}

func newTestClient(t *testing.T) (*testClient, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	helper := services.NewHelperService(db)
	tree := services.NewReferralTree(db)
	ranks := services.DefaultRankEvaluator()

	lis := bufconn.Listen(1024 * 1024)
	s := NewGRPCServer(&Server{
		Network:        services.NewNetworkService(db, tree, ranks),
		Commission:     services.NewCommissionService(db, helper, tree),
		Ranks:          ranks,
		Reconciliation: services.NewReconciliationService(db, ranks, nil),
	})
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &testClient{conn: conn}, db
}

func seedChain(t *testing.T, db *gorm.DB) (root, leaf int) {
	t.Helper()
	top := models.User{Username: "root"}
	require.NoError(t, db.Create(&top).Error)
	child := models.User{Username: "leaf", ReferredById: &top.ID}
	require.NoError(t, db.Create(&child).Error)
	return top.ID, child.ID
}

func TestComputeNetworkStatsOverGRPC(t *testing.T) {
	client, db := newTestClient(t)
	root, _ := seedChain(t, db)

	res, err := client.ComputeNetworkStats(context.Background(), root)
	require.NoError(t, err)

	levels := res.GetFields()["levels"].GetListValue().GetValues()
	require.Len(t, levels, services.MaxLevels)
	first := levels[0].GetStructValue().GetFields()
	assert.Equal(t, float64(1), first["level"].GetNumberValue())
	assert.Equal(t, float64(1), first["count"].GetNumberValue())
	assert.Equal(t, "5%", first["percent"].GetStringValue())

	var stored int64
	require.NoError(t, db.Model(&models.NetworkLevelStat{}).Where("user_id = ?", root).Count(&stored).Error)
	assert.Equal(t, int64(services.MaxLevels), stored)
}

func TestPreviewCommissionsOverGRPC(t *testing.T) {
	client, db := newTestClient(t)
	root, leaf := seedChain(t, db)

	res, err := client.PreviewCommissions(context.Background(), leaf, "10000")
	require.NoError(t, err)

	shares := res.GetFields()["shares"].GetListValue().GetValues()
	require.Len(t, shares, 1)
	share := shares[0].GetStructValue().GetFields()
	assert.Equal(t, float64(root), share["sponsor_id"].GetNumberValue())
	assert.Equal(t, "500", share["amount"].GetStringValue())
}

func TestEvaluateRankOverGRPC(t *testing.T) {
	client, _ := newTestClient(t)

	res, err := client.EvaluateRank(context.Background(), "1500000")
	require.NoError(t, err)
	rank := res.GetFields()["rank"].GetStructValue().GetFields()
	assert.Equal(t, string(models.RankManager), rank["rank"].GetStringValue())

	_, err = client.EvaluateRank(context.Background(), "-10")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.EvaluateRank(context.Background(), "abc")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRunReconciliationOverGRPC(t *testing.T) {
	client, db := newTestClient(t)
	seedChain(t, db)

	res, err := client.RunReconciliation(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, services.TriggerOperator, res.GetFields()["trigger"].GetStringValue())
	assert.NotEmpty(t, res.GetFields()["run_id"].GetStringValue())
}

func TestUnknownUserMapsToNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.ComputeNetworkStats(context.Background(), 999)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.Aborted, status.Code(toStatus(services.ErrJobRunning)))
	assert.Equal(t, codes.FailedPrecondition, status.Code(toStatus(fmt.Errorf("x: %w", services.ErrInsufficientFunds))))
	assert.Equal(t, codes.Internal, status.Code(toStatus(fmt.Errorf("boom"))))
}
