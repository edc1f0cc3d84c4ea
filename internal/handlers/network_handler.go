package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"referral-ledger/pkg/common"
)

func (h *Handler) PreviewCommissions(c *gin.Context) {
	userId, err := strconv.Atoi(c.Query("user_id"))
	if err != nil {
		badRequest(c, "Invalid user_id")
		return
	}
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		badRequest(c, "Invalid amount")
		return
	}

	shares, err := h.Commission.PreviewCommissions(c.Request.Context(), userId, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(shares, "Commission preview"))
}

func (h *Handler) EvaluateRank(c *gin.Context) {
	volume, err := decimal.NewFromString(c.Query("team_volume"))
	if err != nil {
		badRequest(c, "Invalid team_volume")
		return
	}

	tier, err := h.Ranks.EvaluateRank(volume)
	if err != nil {
		respondError(c, err)
		return
	}
	next, remaining, err := h.Ranks.NextTier(volume)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{
		"rank":                tier,
		"next_rank":           next,
		"volume_to_next_rank": remaining,
	}, "Rank evaluated"))
}
