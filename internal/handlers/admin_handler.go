package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"referral-ledger/internal/models"
	"referral-ledger/internal/services"
	"referral-ledger/pkg/common"
)

// RunReconciliation runs the job inline, or queues it with ?async=true.
func (h *Handler) RunReconciliation(c *gin.Context) {
	op := operator(c)

	if c.Query("async") == "true" {
		if h.Jobs == nil {
			c.JSON(http.StatusServiceUnavailable, common.NewErrorResponse("Job queue not configured", nil, http.StatusServiceUnavailable))
			return
		}
		taskId, err := h.Jobs.EnqueueReconciliation(c.Request.Context(), op)
		if err != nil {
			respondError(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{"operator": op, "task_id": taskId}).Info("Reconciliation queued")
		c.JSON(http.StatusAccepted, common.SuccessResponse{
			Status:  http.StatusAccepted,
			Success: true,
			Message: "Reconciliation queued",
			Data:    gin.H{"task_id": taskId},
		})
		return
	}

	logrus.WithField("operator", op).Info("Reconciliation requested")
	summary, err := h.Reconciliation.RunReconciliation(c.Request.Context(), services.TriggerOperator)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(summary, "Reconciliation complete"))
}

func (h *Handler) ListReconciliationRuns(c *gin.Context) {
	runs, err := h.Reconciliation.RecentRuns(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(runs, "Reconciliation runs"))
}

func (h *Handler) AuditWallets(c *gin.Context) {
	reports, err := h.Reconciliation.AuditWallets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(reports, "Wallet audit"))
}

// AuditUserWallet answers 409 with the drift report when the stored balance disagrees with
// the ledger.
func (h *Handler) AuditUserWallet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	report, err := h.Reconciliation.AuditUserWallet(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(report, "Wallet balanced"))
}

func (h *Handler) CorrectWallet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	report, err := h.Reconciliation.CorrectWalletDrift(c.Request.Context(), id, operator(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(report, "Wallet corrected"))
}

type balanceOverrideRequest struct {
	Balance decimal.Decimal `json:"balance"`
	Note    string          `json:"note" binding:"required"`
}

func (h *Handler) OverrideBalance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req balanceOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.Wallet.OverrideBalance(c.Request.Context(), id, req.Balance, req.Note+" (by "+operator(c)+")")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(user, "Balance overridden"))
}

type userStatusRequest struct {
	Status models.UserStatus `json:"status" binding:"required"`
}

func (h *Handler) SetUserStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req userStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.Users.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(user, "User status updated"))
}
