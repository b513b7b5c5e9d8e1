package handler

import (
	"net/http"

	"finops-backend/internal/middleware"
	"finops-backend/internal/service"
	"finops-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type AlignmentHandler struct {
	alignmentService service.AlignmentService
}

func NewAlignmentHandler(alignmentService service.AlignmentService) *AlignmentHandler {
	return &AlignmentHandler{alignmentService: alignmentService}
}

func (h *AlignmentHandler) RegisterRoutes(router *gin.RouterGroup) {
	aligned := router.Group("/api/budgets/:id/categories/:categoryId/aligned-amounts")
	{
		aligned.POST("", middleware.RequireRole("admin", "manager", "staff"), h.Submit)
		aligned.POST("/:alignedId/approve", middleware.RequireRole("admin", "manager"), h.Approve)
		aligned.POST("/:alignedId/reject", middleware.RequireRole("admin", "manager"), h.Reject)
		aligned.DELETE("/:alignedId", middleware.RequireRole("admin"), h.Remove)
	}
}

// Submit records a pending re-allocation proposal against a budget item
func (h *AlignmentHandler) Submit(c *gin.Context) {
	var req service.SubmitAlignedAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	aligned, err := h.alignmentService.Submit(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("categoryId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, aligned))
}

// Approve applies a pending proposal to the ledger and records the approver
func (h *AlignmentHandler) Approve(c *gin.Context) {
	aligned, err := h.alignmentService.Approve(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("categoryId"), c.Param("alignedId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, aligned))
}

// Reject marks a pending proposal rejected with a reason. The ledger is not
// touched.
func (h *AlignmentHandler) Reject(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	aligned, err := h.alignmentService.Reject(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("categoryId"), c.Param("alignedId"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, aligned))
}

// Remove deletes a proposal record. Approved proposals stay applied; this is
// an administrative cleanup, not a reversal.
func (h *AlignmentHandler) Remove(c *gin.Context) {
	if err := h.alignmentService.Remove(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("categoryId"), c.Param("alignedId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}
