package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"referral-ledger/internal/models"
	"referral-ledger/internal/services"
	"referral-ledger/pkg/common"
)

func (h *Handler) CreateProject(c *gin.Context) {
	var req services.CreateProjectDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	project, err := h.Investments.CreateProject(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewCreatedResponse(project, "Project created"))
}

func (h *Handler) ListProjects(c *gin.Context) {
	res, err := h.Investments.ListProjects(c.Request.Context(), c.Query("status"), queryInt(c, "page", 1), queryInt(c, "limit", common.DefaultPageLimit))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetProject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	project, err := h.Investments.GetProject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(project, "Project fetched"))
}

type projectStatusRequest struct {
	Status models.ProjectStatus `json:"status" binding:"required"`
}

func (h *Handler) UpdateProjectStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req projectStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	project, err := h.Investments.UpdateProjectStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(project, "Project status updated"))
}

func (h *Handler) Invest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req services.InvestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.UserId = id

	res, err := h.Investments.Invest(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewCreatedResponse(res, "Investment recorded"))
}

func (h *Handler) CancelInvestment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	investment, err := h.Investments.CancelInvestment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(investment, "Investment cancelled"))
}
