package service

import (
	"context"
	"fmt"
	"time"

	"finops-backend/internal/model"
	"finops-backend/internal/repository"
	ws "finops-backend/internal/websocket"
	"finops-backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateProcurementRequest struct {
	BudgetID string `json:"budget_id" binding:"required"`
	FlowID   string `json:"flow_id"`
}

type ProcurementItemRequest struct {
	ItemName          string `json:"item_name" binding:"required"`
	Quantity          int    `json:"quantity" binding:"required,gt=0"`
	UnitPrice         string `json:"unit_price"` // Decimal string; required without a vendor inventory reference
	Vendor            string `json:"vendor"`
	VendorInventoryID string `json:"vendor_inventory_id"`
	BudgetItemID      string `json:"budget_item_id" binding:"required"`
}

type ProcessRequestInput struct {
	Items []ProcurementItemRequest `json:"items" binding:"required,min=1,dive"`
}

type ProcurementItemResponse struct {
	ID               string `json:"id"`
	ItemName         string `json:"item_name"`
	Quantity         int    `json:"quantity"`
	UnitPrice        string `json:"unit_price"`
	Amount           string `json:"amount"`
	ActualAmount     string `json:"actual_amount"`
	Vendor           string `json:"vendor"`
	BudgetItemID     string `json:"budget_item_id"`
	AddedToInventory bool   `json:"added_to_inventory"`
	Status           string `json:"status"`
}

type ProcurementResponse struct {
	ID              string                    `json:"id"`
	BudgetID        string                    `json:"budget_id"`
	FlowID          string                    `json:"flow_id"`
	Status          string                    `json:"status"`
	TotalCost       string                    `json:"total_cost"`
	ActualTotalCost string                    `json:"actual_total_cost"`
	Items           []ProcurementItemResponse `json:"items"`
	CreatedAt       string                    `json:"created_at"`
}

// --- Interface ---

// ProcurementService turns a procurement request into committed costs
// against the budget's PROCUREMENT category. Processing is a
// read-validate-write unit; receiving an item debits the ledger and flips
// the item status in one transaction.
type ProcurementService interface {
	CreateProcurement(ctx context.Context, actorID string, req CreateProcurementRequest) (ProcurementResponse, error)
	GetProcurement(ctx context.Context, id string) (ProcurementResponse, error)
	ListProcurements(ctx context.Context, page, limit int) ([]ProcurementResponse, int64, error)
	ProcessRequest(ctx context.Context, actorID, procurementID string, input ProcessRequestInput) (ProcurementResponse, error)
	ReceiveItem(ctx context.Context, actorID, procurementID, itemID string) (ProcurementResponse, error)
	RejectItem(ctx context.Context, actorID, procurementID, itemID string) (ProcurementResponse, error)
	AddItemToInventory(ctx context.Context, actorID, procurementID, itemID string, quantity int) (ProcurementResponse, error)
	UpdateInventory(ctx context.Context, actorID, procurementID, itemID string, quantity int) (ProcurementResponse, error)
}

type procurementService struct {
	procurementRepo repository.ProcurementRepository
	budgetRepo      repository.BudgetRepository
	inventoryRepo   repository.InventoryRepository
	auditRepo       repository.AuditRepository
	txManager       repository.TransactionManager
	hub             *ws.Hub
	logger          *zap.Logger
}

func NewProcurementService(
	procurementRepo repository.ProcurementRepository,
	budgetRepo repository.BudgetRepository,
	inventoryRepo repository.InventoryRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
	logger *zap.Logger,
) ProcurementService {
	return &procurementService{
		procurementRepo: procurementRepo,
		budgetRepo:      budgetRepo,
		inventoryRepo:   inventoryRepo,
		auditRepo:       auditRepo,
		txManager:       txManager,
		hub:             hub,
		logger:          logger,
	}
}

// --- Implementation ---

func (s *procurementService) CreateProcurement(ctx context.Context, actorID string, req CreateProcurementRequest) (ProcurementResponse, error) {
	if _, err := s.budgetRepo.Get(ctx, req.BudgetID); err != nil {
		return ProcurementResponse{}, err
	}
	budgetID, err := uuid.Parse(req.BudgetID)
	if err != nil {
		return ProcurementResponse{}, &apperr.ValidationError{Field: "budget_id", Message: "invalid budget id"}
	}

	procurement := model.Procurement{
		BudgetID: budgetID,
		FlowID:   req.FlowID,
		Status:   model.ProcurementStatusPending,
	}
	if createErr := s.procurementRepo.Create(ctx, &procurement); createErr != nil {
		return ProcurementResponse{}, fmt.Errorf("failed to create procurement: %w", createErr)
	}
	return toProcurementResponse(procurement), nil
}

func (s *procurementService) GetProcurement(ctx context.Context, id string) (ProcurementResponse, error) {
	procurement, err := s.procurementRepo.Get(ctx, id)
	if err != nil {
		return ProcurementResponse{}, err
	}
	return toProcurementResponse(*procurement), nil
}

func (s *procurementService) ListProcurements(ctx context.Context, page, limit int) ([]ProcurementResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	procurements, total, err := s.procurementRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]ProcurementResponse, 0, len(procurements))
	for _, p := range procurements {
		res = append(res, toProcurementResponse(p))
	}
	return res, total, nil
}

// ProcessRequest validates and prices every submitted line against the
// budget's PROCUREMENT category. Any failure aborts the whole batch with no
// partial item update.
func (s *procurementService) ProcessRequest(ctx context.Context, actorID, procurementID string, input ProcessRequestInput) (ProcurementResponse, error) {
	var result model.Procurement
	err := runWithRetry(ctx, s.txManager, func(txCtx context.Context) error {
		procurement, loadErr := s.procurementRepo.Get(txCtx, procurementID)
		if loadErr != nil {
			return loadErr
		}
		budget, loadErr := s.budgetRepo.Get(txCtx, procurement.BudgetID.String())
		if loadErr != nil {
			return loadErr
		}
		if budget.Status != model.BudgetStatusApproved {
			return &apperr.ConflictError{Entity: "budget", ID: budget.ID.String(),
				Message: "budget is " + budget.Status + ", procurement requires an approved budget"}
		}
		category := budget.CategoryByRole(model.CategoryRoleProcurement)
		if category == nil {
			return &apperr.NotFoundError{Entity: "procurement category for budget", ID: budget.ID.String()}
		}

		items := make([]model.ProcurementItem, 0, len(input.Items))
		totalCost := decimal.Zero
		for i, itemReq := range input.Items {
			budgetItemID, parseErr := uuid.Parse(itemReq.BudgetItemID)
			if parseErr != nil {
				return &apperr.ValidationError{Field: fmt.Sprintf("items[%d].budget_item_id", i), Message: "invalid budget item id"}
			}
			budgetItem := category.Item(budgetItemID)
			if budgetItem == nil {
				return &apperr.NotFoundError{Entity: "budget item in procurement category", ID: itemReq.BudgetItemID}
			}

			unitPrice, vendorInvID, priceErr := s.resolveUnitPrice(txCtx, itemReq, i)
			if priceErr != nil {
				return priceErr
			}

			amount := unitPrice.Mul(decimal.NewFromInt(int64(itemReq.Quantity)))
			if budgetItem.Amount.LessThan(amount) {
				return &apperr.InsufficientFundsError{
					BudgetItemID: budgetItem.ID.String(),
					Requested:    amount,
					Available:    budgetItem.Amount,
				}
			}
			totalCost = totalCost.Add(amount)

			items = append(items, model.ProcurementItem{
				ItemName:          itemReq.ItemName,
				Quantity:          itemReq.Quantity,
				UnitPrice:         unitPrice,
				Amount:            amount,
				ActualAmount:      amount,
				Vendor:            itemReq.Vendor,
				VendorInventoryID: vendorInvID,
				BudgetItemID:      budgetItem.ID,
				Status:            model.ProcurementItemPending,
			})
		}

		if category.Amount.LessThan(totalCost) {
			return &apperr.InsufficientFundsError{
				BudgetItemID: category.ID.String(),
				Requested:    totalCost,
				Available:    category.Amount,
			}
		}

		if replaceErr := s.procurementRepo.ReplaceItems(txCtx, procurement, items); replaceErr != nil {
			return fmt.Errorf("failed to store procurement items: %w", replaceErr)
		}
		procurement.TotalCost = totalCost
		procurement.Status = model.ProcurementStatusProcessed
		if saveErr := s.procurementRepo.Save(txCtx, procurement); saveErr != nil {
			return fmt.Errorf("failed to save procurement: %w", saveErr)
		}

		result = *procurement
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:   parseActor(actorID),
			Action:   model.ActionProcessProcurement,
			EntityID: procurement.ID.String(),
			Details: mustJSON(map[string]interface{}{
				"budget_id":  budget.ID.String(),
				"items":      len(items),
				"total_cost": totalCost.String(),
			}),
		})
	})
	if err != nil {
		return ProcurementResponse{}, err
	}

	return toProcurementResponse(result), nil
}

// resolveUnitPrice pulls the price from vendor inventory when referenced
// (verifying available stock) and otherwise requires an explicit positive
// unit price.
func (s *procurementService) resolveUnitPrice(ctx context.Context, itemReq ProcurementItemRequest, index int) (decimal.Decimal, *uuid.UUID, error) {
	if itemReq.VendorInventoryID != "" {
		vendorInv, err := s.inventoryRepo.GetVendorInventory(ctx, itemReq.VendorInventoryID)
		if err != nil {
			return decimal.Zero, nil, err
		}
		if vendorInv.Quantity < itemReq.Quantity {
			return decimal.Zero, nil, &apperr.ValidationError{
				Field: fmt.Sprintf("items[%d].quantity", index),
				Message: fmt.Sprintf("vendor stock for %s is %d, requested %d",
					vendorInv.ItemName, vendorInv.Quantity, itemReq.Quantity),
			}
		}
		id := vendorInv.ID
		return vendorInv.UnitPrice, &id, nil
	}

	unitPrice, err := parseRequiredAmount(fmt.Sprintf("items[%d].unit_price", index), itemReq.UnitPrice)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if !unitPrice.IsPositive() {
		return decimal.Zero, nil, &apperr.ValidationError{
			Field:   fmt.Sprintf("items[%d].unit_price", index),
			Message: "unit price must be greater than zero",
		}
	}
	return unitPrice, nil, nil
}

// ReceiveItem debits the referenced budget item by the item's actual amount
// and marks the item accepted. Both writes commit together or not at all.
func (s *procurementService) ReceiveItem(ctx context.Context, actorID, procurementID, itemID string) (ProcurementResponse, error) {
	var result model.Procurement
	var debited decimal.Decimal
	err := runWithRetry(ctx, s.txManager, func(txCtx context.Context) error {
		procurement, item, loadErr := s.loadPendingItem(txCtx, procurementID, itemID)
		if loadErr != nil {
			return loadErr
		}

		budget, loadErr := s.budgetRepo.Get(txCtx, procurement.BudgetID.String())
		if loadErr != nil {
			return loadErr
		}
		category := budget.CategoryByRole(model.CategoryRoleProcurement)
		if category == nil {
			return &apperr.NotFoundError{Entity: "procurement category for budget", ID: budget.ID.String()}
		}
		budgetItem := category.Item(item.BudgetItemID)
		if budgetItem == nil {
			return &apperr.NotFoundError{Entity: "budget item", ID: item.BudgetItemID.String()}
		}
		if budgetItem.Amount.LessThan(item.ActualAmount) {
			return &apperr.InsufficientFundsError{
				BudgetItemID: budgetItem.ID.String(),
				Requested:    item.ActualAmount,
				Available:    budgetItem.Amount,
			}
		}

		budgetItem.Amount = budgetItem.Amount.Sub(item.ActualAmount)
		category.Recalculate()
		if saveErr := s.budgetRepo.Save(txCtx, budget); saveErr != nil {
			return saveErr
		}

		item.Status = model.ProcurementItemAccepted
		procurement.ActualTotalCost = procurement.ActualTotalCost.Add(item.ActualAmount)
		if saveErr := s.procurementRepo.Save(txCtx, procurement); saveErr != nil {
			return fmt.Errorf("failed to save procurement: %w", saveErr)
		}

		result = *procurement
		debited = item.ActualAmount
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     parseActor(actorID),
			Action:     model.ActionReceiveItem,
			EntityID:   item.ID.String(),
			EntityName: item.ItemName,
			Details: mustJSON(map[string]interface{}{
				"procurement_id": procurementID,
				"budget_item_id": item.BudgetItemID.String(),
				"debited":        item.ActualAmount.String(),
			}),
		})
	})
	if err != nil {
		return ProcurementResponse{}, err
	}

	s.logger.Info("procurement item received",
		zap.String("procurement_id", procurementID),
		zap.String("item_id", itemID),
		zap.String("debited", debited.String()))
	broadcast(s.hub, "budget.debited", map[string]interface{}{
		"source":         "procurement",
		"procurement_id": procurementID,
		"item_id":        itemID,
		"amount":         debited.String(),
	})

	return toProcurementResponse(result), nil
}

// RejectItem marks a pending item rejected; the ledger is untouched.
func (s *procurementService) RejectItem(ctx context.Context, actorID, procurementID, itemID string) (ProcurementResponse, error) {
	var result model.Procurement
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		procurement, item, loadErr := s.loadPendingItem(txCtx, procurementID, itemID)
		if loadErr != nil {
			return loadErr
		}

		item.Status = model.ProcurementItemRejected
		if saveErr := s.procurementRepo.SaveItem(txCtx, item); saveErr != nil {
			return fmt.Errorf("failed to save procurement item: %w", saveErr)
		}

		result = *procurement
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     parseActor(actorID),
			Action:     model.ActionRejectItem,
			EntityID:   item.ID.String(),
			EntityName: item.ItemName,
			Details:    mustJSON(map[string]interface{}{"procurement_id": procurementID}),
		})
	})
	if err != nil {
		return ProcurementResponse{}, err
	}
	return toProcurementResponse(result), nil
}

// AddItemToInventory upserts a company stock record for an accepted item.
// The flag is one-way: a second add is a conflict, never a double count.
func (s *procurementService) AddItemToInventory(ctx context.Context, actorID, procurementID, itemID string, quantity int) (ProcurementResponse, error) {
	return s.stockMutation(ctx, actorID, procurementID, itemID, quantity, false)
}

// UpdateInventory adjusts the stock record of an item that was already added
func (s *procurementService) UpdateInventory(ctx context.Context, actorID, procurementID, itemID string, quantity int) (ProcurementResponse, error) {
	return s.stockMutation(ctx, actorID, procurementID, itemID, quantity, true)
}

func (s *procurementService) stockMutation(ctx context.Context, actorID, procurementID, itemID string, quantity int, requireAdded bool) (ProcurementResponse, error) {
	var result model.Procurement
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		procurement, loadErr := s.procurementRepo.Get(txCtx, procurementID)
		if loadErr != nil {
			return loadErr
		}
		parsed, parseErr := uuid.Parse(itemID)
		if parseErr != nil {
			return &apperr.ValidationError{Field: "item_id", Message: "invalid procurement item id"}
		}
		item := procurement.Item(parsed)
		if item == nil {
			return &apperr.NotFoundError{Entity: "procurement item", ID: itemID}
		}
		if item.Status != model.ProcurementItemAccepted {
			return &apperr.ConflictError{Entity: "procurement item", ID: itemID,
				Message: "only accepted items can enter inventory (status " + item.Status + ")"}
		}
		if !requireAdded && item.AddedToInventory {
			return &apperr.ConflictError{Entity: "procurement item", ID: itemID,
				Message: "already added to inventory"}
		}
		if requireAdded && !item.AddedToInventory {
			return &apperr.ConflictError{Entity: "procurement item", ID: itemID,
				Message: "not yet added to inventory"}
		}

		if quantity <= 0 {
			quantity = item.Quantity
		}
		if _, upsertErr := s.inventoryRepo.UpsertStockItem(txCtx, item.ItemName, quantity, parseActor(actorID)); upsertErr != nil {
			return upsertErr
		}

		item.AddedToInventory = true
		if saveErr := s.procurementRepo.SaveItem(txCtx, item); saveErr != nil {
			return fmt.Errorf("failed to save procurement item: %w", saveErr)
		}

		result = *procurement
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     parseActor(actorID),
			Action:     model.ActionAddToInventory,
			EntityID:   item.ID.String(),
			EntityName: item.ItemName,
			Details: mustJSON(map[string]interface{}{
				"procurement_id": procurementID,
				"quantity":       quantity,
			}),
		})
	})
	if err != nil {
		return ProcurementResponse{}, err
	}
	return toProcurementResponse(result), nil
}

func (s *procurementService) loadPendingItem(ctx context.Context, procurementID, itemID string) (*model.Procurement, *model.ProcurementItem, error) {
	procurement, err := s.procurementRepo.Get(ctx, procurementID)
	if err != nil {
		return nil, nil, err
	}
	parsed, err := uuid.Parse(itemID)
	if err != nil {
		return nil, nil, &apperr.ValidationError{Field: "item_id", Message: "invalid procurement item id"}
	}
	item := procurement.Item(parsed)
	if item == nil {
		return nil, nil, &apperr.NotFoundError{Entity: "procurement item", ID: itemID}
	}
	if item.Status != model.ProcurementItemPending {
		return nil, nil, &apperr.ConflictError{Entity: "procurement item", ID: itemID,
			Message: "already " + item.Status}
	}
	return procurement, item, nil
}

// --- Mappers ---

func toProcurementResponse(p model.Procurement) ProcurementResponse {
	res := ProcurementResponse{
		ID:              p.ID.String(),
		BudgetID:        p.BudgetID.String(),
		FlowID:          p.FlowID,
		Status:          p.Status,
		TotalCost:       p.TotalCost.String(),
		ActualTotalCost: p.ActualTotalCost.String(),
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
	for _, item := range p.Items {
		res.Items = append(res.Items, ProcurementItemResponse{
			ID:               item.ID.String(),
			ItemName:         item.ItemName,
			Quantity:         item.Quantity,
			UnitPrice:        item.UnitPrice.String(),
			Amount:           item.Amount.String(),
			ActualAmount:     item.ActualAmount.String(),
			Vendor:           item.Vendor,
			BudgetItemID:     item.BudgetItemID.String(),
			AddedToInventory: item.AddedToInventory,
			Status:           item.Status,
		})
	}
	return res
}
