package handler

import (
	"net/http"

	"finops-backend/internal/middleware"
	"finops-backend/internal/service"
	"finops-backend/pkg/pagination"
	"finops-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProcurementHandler struct {
	procurementService service.ProcurementService
}

func NewProcurementHandler(procurementService service.ProcurementService) *ProcurementHandler {
	return &ProcurementHandler{procurementService: procurementService}
}

func (h *ProcurementHandler) RegisterRoutes(router *gin.RouterGroup) {
	procurements := router.Group("/api/procurements")
	{
		procurements.GET("", middleware.RequireRole("admin", "manager", "staff"), h.ListProcurements)
		procurements.POST("", middleware.RequireRole("admin", "manager"), h.CreateProcurement)
		procurements.GET("/:id", middleware.RequireRole("admin", "manager", "staff"), h.GetProcurement)
		procurements.POST("/:id/process", middleware.RequireRole("admin", "manager"), h.ProcessRequest)

		procurements.POST("/:id/items/:itemId/receive", middleware.RequireRole("admin", "manager", "staff"), h.ReceiveItem)
		procurements.POST("/:id/items/:itemId/reject", middleware.RequireRole("admin", "manager", "staff"), h.RejectItem)
		procurements.POST("/:id/items/:itemId/inventory", middleware.RequireRole("admin", "manager"), h.AddItemToInventory)
		procurements.PUT("/:id/items/:itemId/inventory", middleware.RequireRole("admin", "manager"), h.UpdateInventory)
	}
}

func (h *ProcurementHandler) ListProcurements(c *gin.Context) {
	params := pagination.Parse(c)

	procurements, total, err := h.procurementService.ListProcurements(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"procurements": procurements,
		"total":        total,
		"page":         params.Page,
		"limit":        params.Limit,
	}))
}

func (h *ProcurementHandler) CreateProcurement(c *gin.Context) {
	var req service.CreateProcurementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	procurement, err := h.procurementService.CreateProcurement(c.Request.Context(), middleware.ActorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, procurement))
}

func (h *ProcurementHandler) GetProcurement(c *gin.Context) {
	procurement, err := h.procurementService.GetProcurement(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, procurement))
}

// ProcessRequest prices the requested items against vendor inventory and the
// funding budget, then marks the procurement PROCESSED
func (h *ProcurementHandler) ProcessRequest(c *gin.Context) {
	var input service.ProcessRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	procurement, err := h.procurementService.ProcessRequest(c.Request.Context(), middleware.ActorID(c), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, procurement))
}

// ReceiveItem accepts a delivered item and debits its cost from the ledger
func (h *ProcurementHandler) ReceiveItem(c *gin.Context) {
	procurement, err := h.procurementService.ReceiveItem(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, procurement))
}

// RejectItem declines a delivered item without any ledger movement
func (h *ProcurementHandler) RejectItem(c *gin.Context) {
	procurement, err := h.procurementService.RejectItem(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, procurement))
}

type inventoryQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// AddItemToInventory pushes an accepted item into warehouse stock
func (h *ProcurementHandler) AddItemToInventory(c *gin.Context) {
	var req inventoryQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	procurement, err := h.procurementService.AddItemToInventory(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("itemId"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, procurement))
}

// UpdateInventory adjusts the stocked quantity for an item already added
func (h *ProcurementHandler) UpdateInventory(c *gin.Context) {
	var req inventoryQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	procurement, err := h.procurementService.UpdateInventory(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("itemId"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, procurement))
}
