package handler

import (
	"net/http"

	"finops-backend/internal/middleware"
	"finops-backend/internal/service"
	"finops-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/api/reports")
	{
		reports.GET("/budgets/:id", middleware.RequireRole("admin", "manager", "staff"), h.GetBudgetReport)
	}
}

// GetBudgetReport returns per-category utilisation plus the spend recorded
// by procurement and logistics against the budget
func (h *ReportHandler) GetBudgetReport(c *gin.Context) {
	report, err := h.reportService.GetBudgetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}
