package handler

import (
	"net/http"

	"finops-backend/internal/middleware"
	"finops-backend/internal/service"
	"finops-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type LogisticsHandler struct {
	logisticsService service.LogisticsService
}

func NewLogisticsHandler(logisticsService service.LogisticsService) *LogisticsHandler {
	return &LogisticsHandler{logisticsService: logisticsService}
}

func (h *LogisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	logistics := router.Group("/api/logistics")
	{
		logistics.POST("", middleware.RequireRole("admin", "manager"), h.CreateLogistics)
		logistics.GET("/:id", middleware.RequireRole("admin", "manager", "staff"), h.GetLogistics)

		// PUT with an empty trailing id is the create path for sub-items
		logistics.PUT("/:id/transportations", middleware.RequireRole("admin", "manager", "staff"), h.UpdateTransportation)
		logistics.PUT("/:id/transportations/:itemId", middleware.RequireRole("admin", "manager", "staff"), h.UpdateTransportation)
		logistics.DELETE("/:id/transportations/:itemId", middleware.RequireRole("admin", "manager"), h.DeleteTransportation)

		logistics.PUT("/:id/accommodations", middleware.RequireRole("admin", "manager", "staff"), h.UpdateAccommodation)
		logistics.PUT("/:id/accommodations/:itemId", middleware.RequireRole("admin", "manager", "staff"), h.UpdateAccommodation)
		logistics.DELETE("/:id/accommodations/:itemId", middleware.RequireRole("admin", "manager"), h.DeleteAccommodation)

		logistics.PUT("/:id/expenses", middleware.RequireRole("admin", "manager", "staff"), h.UpdateExpense)
		logistics.PUT("/:id/expenses/:itemId", middleware.RequireRole("admin", "manager", "staff"), h.UpdateExpense)
		logistics.DELETE("/:id/expenses/:itemId", middleware.RequireRole("admin", "manager"), h.DeleteExpense)
	}
}

// CreateLogistics opens an empty logistics sheet against a budget
func (h *LogisticsHandler) CreateLogistics(c *gin.Context) {
	var req service.CreateLogisticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	logistics, err := h.logisticsService.CreateLogistics(c.Request.Context(), middleware.ActorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, logistics))
}

func (h *LogisticsHandler) GetLogistics(c *gin.Context) {
	logistics, err := h.logisticsService.GetLogistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, logistics))
}

// UpdateTransportation upserts a transportation leg; a committal status
// transition debits the trip's price from the funding budget
func (h *LogisticsHandler) UpdateTransportation(c *gin.Context) {
	var patch service.TransportationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	logistics, err := h.logisticsService.UpdateTransportationItem(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("itemId"), patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, logistics))
}

func (h *LogisticsHandler) DeleteTransportation(c *gin.Context) {
	logistics, err := h.logisticsService.DeleteTransportationItem(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, logistics))
}

func (h *LogisticsHandler) UpdateAccommodation(c *gin.Context) {
	var patch service.AccommodationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	logistics, err := h.logisticsService.UpdateAccommodationItem(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("itemId"), patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, logistics))
}

func (h *LogisticsHandler) DeleteAccommodation(c *gin.Context) {
	logistics, err := h.logisticsService.DeleteAccommodationItem(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, logistics))
}

func (h *LogisticsHandler) UpdateExpense(c *gin.Context) {
	var patch service.ExpensePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	logistics, err := h.logisticsService.UpdateExpenseItem(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("itemId"), patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, logistics))
}

func (h *LogisticsHandler) DeleteExpense(c *gin.Context) {
	logistics, err := h.logisticsService.DeleteExpenseItem(c.Request.Context(), middleware.ActorID(c), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, logistics))
}
