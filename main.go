package main

import (
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"referral-ledger/internal/config"
	"referral-ledger/internal/database"
	grpcServer "referral-ledger/internal/grpc"
	"referral-ledger/internal/handlers"
	"referral-ledger/internal/lock"
	"referral-ledger/internal/services"
	"referral-ledger/internal/worker"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()
	cfg.ConfigureLogger()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Initialize Database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logrus.Fatalf("Database: %v", err)
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logrus.Fatalf("Database: %v", err)
		}
	}

	// Redis: job lock and asynq client
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer asynqClient.Close()
	jobs := worker.NewClient(asynqClient)

	// Init Services
	helperService := services.NewHelperService(db)
	tree := services.NewReferralTree(db)
	ranks := services.DefaultRankEvaluator()
	commissionService := services.NewCommissionService(db, helperService, tree)
	networkService := services.NewNetworkService(db, tree, ranks)
	reconciliationService := services.NewReconciliationService(db, ranks, lock.NewRedisLocker(redisClient))

	h := &handlers.Handler{
		Users:          services.NewUserService(db, helperService),
		Wallet:         services.NewWalletService(db, helperService, cfg.ActivationThreshold),
		Investments:    services.NewInvestmentService(db, helperService, commissionService, jobs),
		Commission:     commissionService,
		Network:        networkService,
		Ranks:          ranks,
		Reconciliation: reconciliationService,
		Jobs:           jobs,
	}

	// Start gRPC server
	go func() {
		err := grpcServer.StartGRPCServer(cfg.GrpcPort, &grpcServer.Server{
			Network:        networkService,
			Commission:     commissionService,
			Ranks:          ranks,
			Reconciliation: reconciliationService,
		})
		if err != nil {
			logrus.Fatalf("gRPC server: %v", err)
		}
	}()

	// Start Cron Scheduler
	scheduler, err := reconciliationService.StartScheduler(cfg.ReconcileCron)
	if err != nil {
		logrus.Fatalf("Reconciliation scheduler: %v", err)
	}
	defer scheduler.Stop()

	r := handlers.NewRouter(h)

	logrus.Infof("HTTP Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logrus.Fatal("Failed to start server: ", err)
	}
}
