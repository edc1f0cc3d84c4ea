package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"referral-ledger/internal/services"
	"referral-ledger/pkg/common"
)

func (h *Handler) RegisterUser(c *gin.Context) {
	var req services.RegisterUserDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.Users.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewCreatedResponse(user, "User registered"))
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	user, err := h.Users.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(user, "User fetched"))
}

func (h *Handler) GetNetwork(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	summary, err := h.Network.NetworkSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(summary, "Network fetched"))
}
