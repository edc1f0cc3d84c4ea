package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"referral-ledger/internal/services"
	"referral-ledger/pkg/common"
)

func (h *Handler) RequestDeposit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req services.DepositRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.UserId = id

	trx, err := h.Wallet.RequestDeposit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewCreatedResponse(trx, "Deposit request received"))
}

func (h *Handler) RequestWithdrawal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req services.WithdrawalRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.UserId = id

	trx, err := h.Wallet.RequestWithdrawal(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewCreatedResponse(trx, "Withdrawal request received"))
}

func (h *Handler) ApproveTransaction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	trx, err := h.Wallet.ApproveTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Transaction approved"))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectTransaction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	trx, err := h.Wallet.RejectTransaction(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Transaction rejected"))
}

func (h *Handler) GetBalance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	balance, err := h.Wallet.GetBalance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"user_id": id, "wallet_balance": balance}, "Balance fetched"))
}

func (h *Handler) GetUserTransactions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	res, err := h.Wallet.GetUserTransactions(c.Request.Context(), services.UserTransactionDTO{
		UserId:    id,
		Type:      c.Query("type"),
		Status:    c.Query("status"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Page:      queryInt(c, "page", 1),
		Limit:     queryInt(c, "limit", common.DefaultPageLimit),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
