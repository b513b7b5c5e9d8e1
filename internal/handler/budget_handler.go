package handler

import (
	"net/http"

	"finops-backend/internal/middleware"
	"finops-backend/internal/service"
	"finops-backend/pkg/pagination"
	"finops-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type BudgetHandler struct {
	budgetService service.BudgetService
}

func NewBudgetHandler(budgetService service.BudgetService) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService}
}

func (h *BudgetHandler) RegisterRoutes(router *gin.RouterGroup) {
	budgets := router.Group("/api/budgets")
	{
		budgets.GET("", middleware.RequireRole("admin", "manager", "staff"), h.ListBudgets)
		budgets.POST("", middleware.RequireRole("admin", "manager"), h.CreateBudget)
		budgets.GET("/:id", middleware.RequireRole("admin", "manager", "staff"), h.GetBudget)
		budgets.PATCH("/:id/status", middleware.RequireRole("admin", "manager"), h.UpdateStatus)

		budgets.POST("/:id/categories", middleware.RequireRole("admin", "manager"), h.AddCategory)
		budgets.DELETE("/:id/categories/:categoryId", middleware.RequireRole("admin", "manager"), h.RemoveCategory)

		budgets.POST("/:id/categories/:categoryId/items", middleware.RequireRole("admin", "manager"), h.AddItem)
		budgets.PUT("/:id/categories/:categoryId/items/:itemId", middleware.RequireRole("admin", "manager"), h.UpdateItem)
		budgets.DELETE("/:id/categories/:categoryId/items/:itemId", middleware.RequireRole("admin", "manager"), h.RemoveItem)
	}
}

// ListBudgets returns paginated budget summaries without nested categories
func (h *BudgetHandler) ListBudgets(c *gin.Context) {
	params := pagination.Parse(c)

	budgets, total, err := h.budgetService.ListBudgets(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"budgets": budgets,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	}))
}

// CreateBudget creates a budget with its full category/item tree
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	var req service.CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	budget, err := h.budgetService.CreateBudget(c.Request.Context(), middleware.ActorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, budget))
}

// GetBudget returns a single budget with all nested categories, items and
// aligned amounts
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	budget, err := h.budgetService.GetBudget(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, budget))
}

// UpdateStatus advances the budget lifecycle status
func (h *BudgetHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	budget, err := h.budgetService.UpdateStatus(c.Request.Context(), middleware.ActorID(c), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, budget))
}

func (h *BudgetHandler) AddCategory(c *gin.Context) {
	var req service.BudgetCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	budget, err := h.budgetService.AddCategory(c.Request.Context(), middleware.ActorID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, budget))
}

func (h *BudgetHandler) RemoveCategory(c *gin.Context) {
	budget, err := h.budgetService.RemoveCategory(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("categoryId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, budget))
}

func (h *BudgetHandler) AddItem(c *gin.Context) {
	var req service.BudgetItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	budget, err := h.budgetService.AddItem(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("categoryId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, budget))
}

func (h *BudgetHandler) UpdateItem(c *gin.Context) {
	var req service.UpdateBudgetItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	budget, err := h.budgetService.UpdateItem(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("categoryId"), c.Param("itemId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, budget))
}

func (h *BudgetHandler) RemoveItem(c *gin.Context) {
	budget, err := h.budgetService.RemoveItem(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("categoryId"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, budget))
}
