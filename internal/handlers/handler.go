package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"referral-ledger/internal/metrics"
	"referral-ledger/internal/services"
	"referral-ledger/pkg/common"
)

// JobQueue hands long-running work to the background worker.
type JobQueue interface {
	EnqueueReconciliation(ctx context.Context, requestedBy string) (string, error)
}

type Handler struct {
	Users          *services.UserService
	Wallet         *services.WalletService
	Investments    *services.InvestmentService
	Commission     *services.CommissionService
	Network        *services.NetworkService
	Ranks          *services.RankEvaluator
	Reconciliation *services.ReconciliationService
	Jobs           JobQueue
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), metrics.GinMiddleware())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome To Referral Ledger service"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h.Register(r)
	return r
}

func (h *Handler) Register(r gin.IRouter) {
	users := r.Group("/users")
	users.POST("", h.RegisterUser)
	users.GET("/:id", h.GetUser)
	users.GET("/:id/balance", h.GetBalance)
	users.GET("/:id/transactions", h.GetUserTransactions)
	users.POST("/:id/deposits", h.RequestDeposit)
	users.POST("/:id/withdrawals", h.RequestWithdrawal)
	users.POST("/:id/investments", h.Invest)
	users.GET("/:id/network", h.GetNetwork)

	r.POST("/transactions/:id/approve", h.ApproveTransaction)
	r.POST("/transactions/:id/reject", h.RejectTransaction)

	r.POST("/projects", h.CreateProject)
	r.GET("/projects", h.ListProjects)
	r.GET("/projects/:id", h.GetProject)
	r.PATCH("/projects/:id/status", h.UpdateProjectStatus)

	r.POST("/investments/:id/cancel", h.CancelInvestment)

	r.GET("/commissions/preview", h.PreviewCommissions)
	r.GET("/ranks/evaluate", h.EvaluateRank)

	admin := r.Group("/admin")
	admin.POST("/reconciliation", h.RunReconciliation)
	admin.GET("/reconciliation/runs", h.ListReconciliationRuns)
	admin.GET("/wallet-audit", h.AuditWallets)
	admin.GET("/users/:id/wallet-audit", h.AuditUserWallet)
	admin.POST("/users/:id/wallet-correction", h.CorrectWallet)
	admin.POST("/users/:id/balance-override", h.OverrideBalance)
	admin.PATCH("/users/:id/status", h.SetUserStatus)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		entry := logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		entry.Debug("request served")
	}
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var drift *services.DriftError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrInsufficientFunds):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrJobRunning):
		status = http.StatusConflict
	case errors.As(err, &drift):
		c.JSON(http.StatusConflict, common.NewErrorResponse(err.Error(), drift.Reports, http.StatusConflict))
		return
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal error"
	}
	c.JSON(status, common.NewErrorResponse(message, nil, status))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, common.NewErrorResponse(message, nil, http.StatusBadRequest))
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "Invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return fallback
}

// operator names whoever triggered an admin action, for the logs.
func operator(c *gin.Context) string {
	if op := c.GetHeader("X-Operator"); op != "" {
		return op
	}
	return "unknown"
}
