package service

import (
	"context"
	"fmt"
	"time"

	"finops-backend/internal/model"
	"finops-backend/internal/repository"
	"finops-backend/pkg/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type BudgetItemRequest struct {
	ItemName           string `json:"item_name" binding:"required"`
	Amount             string `json:"amount" binding:"required"` // Decimal string
	BudgetedItemAmount string `json:"budgeted_item_amount"`      // Defaults to amount
}

type BudgetCategoryRequest struct {
	Title string              `json:"title" binding:"required"`
	Role  string              `json:"role" binding:"omitempty,oneof=GENERAL PROCUREMENT LOGISTICS"`
	Items []BudgetItemRequest `json:"items" binding:"dive"`
}

type CreateBudgetRequest struct {
	Title      string                  `json:"title" binding:"required"`
	StartDate  time.Time               `json:"start_date" binding:"required"`
	EndDate    time.Time               `json:"end_date" binding:"required"`
	Categories []BudgetCategoryRequest `json:"categories" binding:"dive"`
}

type UpdateBudgetItemRequest struct {
	ItemName           string `json:"item_name"`
	Amount             string `json:"amount"`
	BudgetedItemAmount string `json:"budgeted_item_amount"`
}

type BudgetItemResponse struct {
	ID                 string `json:"id"`
	ItemName           string `json:"item_name"`
	Amount             string `json:"amount"`
	BudgetedItemAmount string `json:"budgeted_item_amount"`
}

type AlignedApprovalResponse struct {
	ID         string `json:"id"`
	ApprovedBy string `json:"approved_by"`
	Date       string `json:"date"`
}

type AlignedAmountResponse struct {
	ID           string                    `json:"id"`
	BudgetItemID string                    `json:"budget_item_id"`
	Amount       string                    `json:"amount"`
	Personnel    string                    `json:"personnel"`
	Comment      string                    `json:"comment"`
	Date         string                    `json:"date"`
	Status       string                    `json:"status"`
	Approvals    []AlignedApprovalResponse `json:"approvals"`
}

type BudgetCategoryResponse struct {
	ID             string                  `json:"id"`
	Title          string                  `json:"title"`
	Role           string                  `json:"role"`
	Amount         string                  `json:"amount"`
	BudgetedAmount string                  `json:"budgeted_amount"`
	Items          []BudgetItemResponse    `json:"budget_items"`
	AlignedAmounts []AlignedAmountResponse `json:"aligned_amounts"`
}

type BudgetResponse struct {
	ID         string                   `json:"id"`
	Title      string                   `json:"title"`
	StartDate  string                   `json:"start_date"`
	EndDate    string                   `json:"end_date"`
	Status     string                   `json:"status"`
	Version    int64                    `json:"version"`
	Categories []BudgetCategoryResponse `json:"categories"`
}

type BudgetSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
}

// --- Interface ---

// BudgetService owns the ledger aggregate: every structural mutation
// recomputes the owning category's derived totals before persisting.
type BudgetService interface {
	CreateBudget(ctx context.Context, actorID string, req CreateBudgetRequest) (BudgetResponse, error)
	GetBudget(ctx context.Context, id string) (BudgetResponse, error)
	ListBudgets(ctx context.Context, page, limit int) ([]BudgetSummary, int64, error)
	UpdateStatus(ctx context.Context, actorID, budgetID, status string) (BudgetResponse, error)
	AddCategory(ctx context.Context, actorID, budgetID string, req BudgetCategoryRequest) (BudgetResponse, error)
	RemoveCategory(ctx context.Context, actorID, budgetID, categoryID string) (BudgetResponse, error)
	AddItem(ctx context.Context, actorID, budgetID, categoryID string, req BudgetItemRequest) (BudgetResponse, error)
	UpdateItem(ctx context.Context, actorID, budgetID, categoryID, itemID string, req UpdateBudgetItemRequest) (BudgetResponse, error)
	RemoveItem(ctx context.Context, actorID, budgetID, categoryID, itemID string) (BudgetResponse, error)
}

type budgetService struct {
	budgetRepo repository.BudgetRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	logger     *zap.Logger
}

func NewBudgetService(
	budgetRepo repository.BudgetRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	logger *zap.Logger,
) BudgetService {
	return &budgetService{
		budgetRepo: budgetRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		logger:     logger,
	}
}

// --- Implementation ---

func (s *budgetService) CreateBudget(ctx context.Context, actorID string, req CreateBudgetRequest) (BudgetResponse, error) {
	if !req.EndDate.After(req.StartDate) {
		return BudgetResponse{}, &apperr.ValidationError{Field: "end_date", Message: "period end must be after period start"}
	}

	budget := model.Budget{
		Title:     req.Title,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    model.BudgetStatusPending,
		CreatedBy: parseActor(actorID),
		Version:   1,
	}

	roleSeen := map[string]bool{}
	for i, categoryReq := range req.Categories {
		category, err := buildCategory(categoryReq, i)
		if err != nil {
			return BudgetResponse{}, err
		}
		if category.Role != model.CategoryRoleGeneral {
			if roleSeen[category.Role] {
				return BudgetResponse{}, &apperr.ValidationError{
					Field:   fmt.Sprintf("categories[%d].role", i),
					Message: "only one category may serve role " + category.Role,
				}
			}
			roleSeen[category.Role] = true
		}
		budget.Categories = append(budget.Categories, category)
	}
	budget.Recalculate()

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.budgetRepo.Create(txCtx, &budget); createErr != nil {
			return fmt.Errorf("failed to create budget: %w", createErr)
		}
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     parseActor(actorID),
			Action:     model.ActionCreateBudget,
			EntityID:   budget.ID.String(),
			EntityName: budget.Title,
			Details:    mustJSON(map[string]interface{}{"categories": len(budget.Categories)}),
		})
	})
	if err != nil {
		return BudgetResponse{}, err
	}

	return toBudgetResponse(budget), nil
}

func (s *budgetService) GetBudget(ctx context.Context, id string) (BudgetResponse, error) {
	budget, err := s.budgetRepo.Get(ctx, id)
	if err != nil {
		return BudgetResponse{}, err
	}
	if verifyErr := s.verifyAggregates(budget); verifyErr != nil {
		return BudgetResponse{}, verifyErr
	}
	return toBudgetResponse(*budget), nil
}

func (s *budgetService) ListBudgets(ctx context.Context, page, limit int) ([]BudgetSummary, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	budgets, total, err := s.budgetRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]BudgetSummary, 0, len(budgets))
	for _, b := range budgets {
		res = append(res, BudgetSummary{
			ID:        b.ID.String(),
			Title:     b.Title,
			StartDate: b.StartDate.Format(time.RFC3339),
			EndDate:   b.EndDate.Format(time.RFC3339),
			Status:    b.Status,
		})
	}
	return res, total, nil
}

func (s *budgetService) UpdateStatus(ctx context.Context, actorID, budgetID, status string) (BudgetResponse, error) {
	switch status {
	case model.BudgetStatusPending, model.BudgetStatusApproved, model.BudgetStatusRejected, model.BudgetStatusCompleted:
	default:
		return BudgetResponse{}, &apperr.ValidationError{Field: "status", Message: "unknown budget status: " + status}
	}

	return s.mutate(ctx, budgetID, actorID, "status change", func(budget *model.Budget) error {
		budget.Status = status
		return nil
	})
}

func (s *budgetService) AddCategory(ctx context.Context, actorID, budgetID string, req BudgetCategoryRequest) (BudgetResponse, error) {
	category, err := buildCategory(req, 0)
	if err != nil {
		return BudgetResponse{}, err
	}

	return s.mutate(ctx, budgetID, actorID, "add category", func(budget *model.Budget) error {
		if category.Role != model.CategoryRoleGeneral && budget.CategoryByRole(category.Role) != nil {
			return &apperr.ValidationError{Field: "role", Message: "budget already has a category serving role " + category.Role}
		}
		category.BudgetID = budget.ID
		budget.Categories = append(budget.Categories, category)
		budget.Recalculate()
		return nil
	})
}

func (s *budgetService) RemoveCategory(ctx context.Context, actorID, budgetID, categoryID string) (BudgetResponse, error) {
	id, err := uuid.Parse(categoryID)
	if err != nil {
		return BudgetResponse{}, &apperr.ValidationError{Field: "category_id", Message: "invalid category id"}
	}

	return s.mutateWith(ctx, budgetID, actorID, "remove category", func(txCtx context.Context, budget *model.Budget) error {
		category := budget.Category(id)
		if category == nil {
			return &apperr.NotFoundError{Entity: "category", ID: categoryID}
		}
		if deleteErr := s.budgetRepo.DeleteCategory(txCtx, category); deleteErr != nil {
			return fmt.Errorf("failed to delete category: %w", deleteErr)
		}
		kept := budget.Categories[:0]
		for _, c := range budget.Categories {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		budget.Categories = kept
		return nil
	})
}

func (s *budgetService) AddItem(ctx context.Context, actorID, budgetID, categoryID string, req BudgetItemRequest) (BudgetResponse, error) {
	id, err := uuid.Parse(categoryID)
	if err != nil {
		return BudgetResponse{}, &apperr.ValidationError{Field: "category_id", Message: "invalid category id"}
	}
	item, err := buildItem(req, "items[0]")
	if err != nil {
		return BudgetResponse{}, err
	}

	return s.mutate(ctx, budgetID, actorID, "add item", func(budget *model.Budget) error {
		category := budget.Category(id)
		if category == nil {
			return &apperr.NotFoundError{Entity: "category", ID: categoryID}
		}
		item.CategoryID = category.ID
		category.Items = append(category.Items, item)
		category.Recalculate()
		return nil
	})
}

// UpdateItem preserves the budgeted ceiling unless the caller supplies a
// larger one; the ceiling never shrinks through this path.
func (s *budgetService) UpdateItem(ctx context.Context, actorID, budgetID, categoryID, itemID string, req UpdateBudgetItemRequest) (BudgetResponse, error) {
	catID, err := uuid.Parse(categoryID)
	if err != nil {
		return BudgetResponse{}, &apperr.ValidationError{Field: "category_id", Message: "invalid category id"}
	}
	itmID, err := uuid.Parse(itemID)
	if err != nil {
		return BudgetResponse{}, &apperr.ValidationError{Field: "item_id", Message: "invalid item id"}
	}

	return s.mutate(ctx, budgetID, actorID, "update item", func(budget *model.Budget) error {
		category := budget.Category(catID)
		if category == nil {
			return &apperr.NotFoundError{Entity: "category", ID: categoryID}
		}
		item := category.Item(itmID)
		if item == nil {
			return &apperr.NotFoundError{Entity: "budget item", ID: itemID}
		}

		if req.ItemName != "" {
			item.ItemName = req.ItemName
		}
		if req.Amount != "" {
			amount, parseErr := parseRequiredAmount("amount", req.Amount)
			if parseErr != nil {
				return parseErr
			}
			item.Amount = amount
		}
		if req.BudgetedItemAmount != "" {
			budgeted, parseErr := parseRequiredAmount("budgeted_item_amount", req.BudgetedItemAmount)
			if parseErr != nil {
				return parseErr
			}
			if budgeted.GreaterThan(item.BudgetedItemAmount) {
				item.BudgetedItemAmount = budgeted
			}
		}

		category.Recalculate()
		return nil
	})
}

func (s *budgetService) RemoveItem(ctx context.Context, actorID, budgetID, categoryID, itemID string) (BudgetResponse, error) {
	catID, err := uuid.Parse(categoryID)
	if err != nil {
		return BudgetResponse{}, &apperr.ValidationError{Field: "category_id", Message: "invalid category id"}
	}
	itmID, err := uuid.Parse(itemID)
	if err != nil {
		return BudgetResponse{}, &apperr.ValidationError{Field: "item_id", Message: "invalid item id"}
	}

	return s.mutateWith(ctx, budgetID, actorID, "remove item", func(txCtx context.Context, budget *model.Budget) error {
		category := budget.Category(catID)
		if category == nil {
			return &apperr.NotFoundError{Entity: "category", ID: categoryID}
		}
		item := category.Item(itmID)
		if item == nil {
			return &apperr.NotFoundError{Entity: "budget item", ID: itemID}
		}
		if deleteErr := s.budgetRepo.DeleteItem(txCtx, item); deleteErr != nil {
			return fmt.Errorf("failed to delete budget item: %w", deleteErr)
		}
		kept := category.Items[:0]
		for _, i := range category.Items {
			if i.ID != itmID {
				kept = append(kept, i)
			}
		}
		category.Items = kept
		category.Recalculate()
		return nil
	})
}

// mutate loads the aggregate, applies fn, and saves under the version guard,
// retrying lost races.
func (s *budgetService) mutate(ctx context.Context, budgetID, actorID, action string, fn func(budget *model.Budget) error) (BudgetResponse, error) {
	return s.mutateWith(ctx, budgetID, actorID, action, func(_ context.Context, budget *model.Budget) error {
		return fn(budget)
	})
}

func (s *budgetService) mutateWith(ctx context.Context, budgetID, actorID, action string, fn func(txCtx context.Context, budget *model.Budget) error) (BudgetResponse, error) {
	var result model.Budget
	err := runWithRetry(ctx, s.txManager, func(txCtx context.Context) error {
		budget, loadErr := s.budgetRepo.Get(txCtx, budgetID)
		if loadErr != nil {
			return loadErr
		}
		if fnErr := fn(txCtx, budget); fnErr != nil {
			return fnErr
		}
		budget.LastUpdatedBy = parseActor(actorID)
		if saveErr := s.budgetRepo.Save(txCtx, budget); saveErr != nil {
			return saveErr
		}
		if auditErr := s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     parseActor(actorID),
			Action:     model.ActionUpdateLedger,
			EntityID:   budget.ID.String(),
			EntityName: budget.Title,
			Details:    mustJSON(map[string]interface{}{"operation": action}),
		}); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		result = *budget
		return nil
	})
	if err != nil {
		return BudgetResponse{}, err
	}
	return toBudgetResponse(result), nil
}

// verifyAggregates cross-checks stored category totals against recomputed
// ones. A mismatch is a bug and is reported, never patched over.
func (s *budgetService) verifyAggregates(budget *model.Budget) error {
	for i := range budget.Categories {
		category := &budget.Categories[i]
		computed := model.BudgetCategory{Items: category.Items}
		computed.Recalculate()

		if !category.Amount.Equal(computed.Amount) {
			s.logger.Error("category amount disagrees with item sum",
				zap.String("budget_id", budget.ID.String()),
				zap.String("category_id", category.ID.String()),
				zap.String("stored", category.Amount.String()),
				zap.String("computed", computed.Amount.String()))
			return &apperr.InvariantViolationError{
				Entity: "category", ID: category.ID.String(),
				Field: "amount", Stored: category.Amount, Computed: computed.Amount,
			}
		}
		if !category.BudgetedAmount.Equal(computed.BudgetedAmount) {
			s.logger.Error("category budgeted amount disagrees with item sum",
				zap.String("budget_id", budget.ID.String()),
				zap.String("category_id", category.ID.String()),
				zap.String("stored", category.BudgetedAmount.String()),
				zap.String("computed", computed.BudgetedAmount.String()))
			return &apperr.InvariantViolationError{
				Entity: "category", ID: category.ID.String(),
				Field: "budgeted_amount", Stored: category.BudgetedAmount, Computed: computed.BudgetedAmount,
			}
		}
	}
	return nil
}

// --- Builders & mappers ---

func buildCategory(req BudgetCategoryRequest, index int) (model.BudgetCategory, error) {
	if req.Title == "" {
		return model.BudgetCategory{}, &apperr.ValidationError{
			Field:   fmt.Sprintf("categories[%d].title", index),
			Message: "category title is required",
		}
	}
	role := req.Role
	if role == "" {
		role = model.CategoryRoleGeneral
	}

	category := model.BudgetCategory{Title: req.Title, Role: role}
	for j, itemReq := range req.Items {
		item, err := buildItem(itemReq, fmt.Sprintf("categories[%d].items[%d]", index, j))
		if err != nil {
			return model.BudgetCategory{}, err
		}
		category.Items = append(category.Items, item)
	}
	category.Recalculate()
	return category, nil
}

func buildItem(req BudgetItemRequest, field string) (model.BudgetItem, error) {
	if req.ItemName == "" {
		return model.BudgetItem{}, &apperr.ValidationError{Field: field + ".item_name", Message: "item name is required"}
	}
	amount, err := parseRequiredAmount(field+".amount", req.Amount)
	if err != nil {
		return model.BudgetItem{}, err
	}

	budgeted := amount
	if req.BudgetedItemAmount != "" {
		budgeted, err = parseRequiredAmount(field+".budgeted_item_amount", req.BudgetedItemAmount)
		if err != nil {
			return model.BudgetItem{}, err
		}
	}

	return model.BudgetItem{ItemName: req.ItemName, Amount: amount, BudgetedItemAmount: budgeted}, nil
}

func toBudgetResponse(b model.Budget) BudgetResponse {
	res := BudgetResponse{
		ID:        b.ID.String(),
		Title:     b.Title,
		StartDate: b.StartDate.Format(time.RFC3339),
		EndDate:   b.EndDate.Format(time.RFC3339),
		Status:    b.Status,
		Version:   b.Version,
	}
	for _, c := range b.Categories {
		res.Categories = append(res.Categories, toCategoryResponse(c))
	}
	return res
}

func toCategoryResponse(c model.BudgetCategory) BudgetCategoryResponse {
	res := BudgetCategoryResponse{
		ID:             c.ID.String(),
		Title:          c.Title,
		Role:           c.Role,
		Amount:         c.Amount.String(),
		BudgetedAmount: c.BudgetedAmount.String(),
	}
	for _, i := range c.Items {
		res.Items = append(res.Items, BudgetItemResponse{
			ID:                 i.ID.String(),
			ItemName:           i.ItemName,
			Amount:             i.Amount.String(),
			BudgetedItemAmount: i.BudgetedItemAmount.String(),
		})
	}
	for _, a := range c.AlignedAmounts {
		res.AlignedAmounts = append(res.AlignedAmounts, toAlignedResponse(a))
	}
	return res
}

func toAlignedResponse(a model.AlignedAmount) AlignedAmountResponse {
	res := AlignedAmountResponse{
		ID:           a.ID.String(),
		BudgetItemID: a.BudgetItemID.String(),
		Amount:       a.Amount.String(),
		Personnel:    a.Personnel,
		Comment:      a.Comment,
		Date:         a.Date.Format(time.RFC3339),
		Status:       a.Status,
	}
	for _, approval := range a.Approvals {
		res.Approvals = append(res.Approvals, AlignedApprovalResponse{
			ID:         approval.ID.String(),
			ApprovedBy: approval.ApprovedBy.String(),
			Date:       approval.Date.Format(time.RFC3339),
		})
	}
	return res
}
