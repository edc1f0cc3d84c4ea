package main

import (
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"referral-ledger/internal/config"
	"referral-ledger/internal/consumers"
	"referral-ledger/internal/database"
	"referral-ledger/internal/lock"
	"referral-ledger/internal/services"
	"referral-ledger/internal/worker"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()
	cfg.ConfigureLogger()

	// Connect DB
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logrus.Fatalf("Database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	// Init Services
	helperService := services.NewHelperService(db)
	tree := services.NewReferralTree(db)
	ranks := services.DefaultRankEvaluator()

	processor := consumers.NewLedgerProcessor(
		services.NewReconciliationService(db, ranks, lock.NewRedisLocker(redisClient)),
		services.NewCommissionService(db, helperService, tree),
		services.NewNetworkService(db, tree, ranks),
	)

	logrus.Info("Starting Asynq Worker...")
	if err := worker.StartWorker(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, processor); err != nil {
		logrus.Fatal(err)
	}
}
