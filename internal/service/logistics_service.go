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

type TransportationPatch struct {
	BudgetItemID  string     `json:"budget_item_id"`
	Mode          string     `json:"mode"`
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	DepartureDate *time.Time `json:"departure_date"`
	Price         string     `json:"price"` // Decimal string
	Status        string     `json:"status"`
}

type AccommodationPatch struct {
	BudgetItemID string     `json:"budget_item_id"`
	Location     string     `json:"location"`
	CheckIn      *time.Time `json:"check_in"`
	CheckOut     *time.Time `json:"check_out"`
	Price        string     `json:"price"` // Decimal string
	Status       string     `json:"status"`
}

type ExpensePatch struct {
	BudgetItemID string `json:"budget_item_id"`
	Description  string `json:"description"`
	Amount       string `json:"amount"` // Decimal string
	Status       string `json:"status"`
}

type CreateLogisticsRequest struct {
	BudgetID string `json:"budget_id" binding:"required"`
	Title    string `json:"title"`
}

type StatusChangeResponse struct {
	Status string `json:"status"`
	Date   string `json:"date"`
}

type TransportationResponse struct {
	ID            string                 `json:"id"`
	BudgetItemID  string                 `json:"budget_item_id"`
	Mode          string                 `json:"mode"`
	Origin        string                 `json:"origin"`
	Destination   string                 `json:"destination"`
	Price         string                 `json:"price"`
	Status        string                 `json:"status"`
	StatusHistory []StatusChangeResponse `json:"status_history"`
}

type AccommodationResponse struct {
	ID            string                 `json:"id"`
	BudgetItemID  string                 `json:"budget_item_id"`
	Location      string                 `json:"location"`
	Price         string                 `json:"price"`
	Status        string                 `json:"status"`
	StatusHistory []StatusChangeResponse `json:"status_history"`
}

type ExpenseResponse struct {
	ID            string                 `json:"id"`
	BudgetItemID  string                 `json:"budget_item_id"`
	Description   string                 `json:"description"`
	Amount        string                 `json:"amount"`
	Status        string                 `json:"status"`
	StatusHistory []StatusChangeResponse `json:"status_history"`
}

type LogisticsResponse struct {
	ID                    string                   `json:"id"`
	BudgetID              string                   `json:"budget_id"`
	Title                 string                   `json:"title"`
	TransportationTotal   string                   `json:"transportation_total"`
	AccommodationTotal    string                   `json:"accommodation_total"`
	ExpensesTotal         string                   `json:"expenses_total"`
	GrandTotal            string                   `json:"grand_total"`
	TransportationDetails []TransportationResponse `json:"transportation_details"`
	AccommodationDetails  []AccommodationResponse  `json:"accommodation_details"`
	AdditionalExpenses    []ExpenseResponse        `json:"additional_expenses"`
}

// --- Interface ---

// LogisticsService applies sub-record status transitions. A transition into
// a collection's committal status (booked / confirmed / paid) debits the
// referenced budget item of the budget's LOGISTICS category inside the same
// transaction as the logistics write. Deleting a sub-item recomputes totals
// but performs no ledger reversal.
type LogisticsService interface {
	CreateLogistics(ctx context.Context, actorID string, req CreateLogisticsRequest) (LogisticsResponse, error)
	GetLogistics(ctx context.Context, id string) (LogisticsResponse, error)
	UpdateTransportationItem(ctx context.Context, actorID, logisticsID, itemID string, patch TransportationPatch) (LogisticsResponse, error)
	UpdateAccommodationItem(ctx context.Context, actorID, logisticsID, itemID string, patch AccommodationPatch) (LogisticsResponse, error)
	UpdateExpenseItem(ctx context.Context, actorID, logisticsID, itemID string, patch ExpensePatch) (LogisticsResponse, error)
	DeleteTransportationItem(ctx context.Context, actorID, logisticsID, itemID string) (LogisticsResponse, error)
	DeleteAccommodationItem(ctx context.Context, actorID, logisticsID, itemID string) (LogisticsResponse, error)
	DeleteExpenseItem(ctx context.Context, actorID, logisticsID, itemID string) (LogisticsResponse, error)
}

type logisticsService struct {
	logisticsRepo repository.LogisticsRepository
	budgetRepo    repository.BudgetRepository
	auditRepo     repository.AuditRepository
	txManager     repository.TransactionManager
	hub           *ws.Hub
	logger        *zap.Logger
}

func NewLogisticsService(
	logisticsRepo repository.LogisticsRepository,
	budgetRepo repository.BudgetRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
	logger *zap.Logger,
) LogisticsService {
	return &logisticsService{
		logisticsRepo: logisticsRepo,
		budgetRepo:    budgetRepo,
		auditRepo:     auditRepo,
		txManager:     txManager,
		hub:           hub,
		logger:        logger,
	}
}

var (
	transportationStatuses = []string{model.TransportationPending, model.TransportationBooked, model.TransportationCancelled}
	accommodationStatuses  = []string{model.AccommodationPending, model.AccommodationConfirmed, model.AccommodationCancelled}
	expenseStatuses        = []string{model.ExpensePending, model.ExpensePaid, model.ExpenseCancelled}
)

// --- Implementation ---

func (s *logisticsService) CreateLogistics(ctx context.Context, actorID string, req CreateLogisticsRequest) (LogisticsResponse, error) {
	if _, err := s.budgetRepo.Get(ctx, req.BudgetID); err != nil {
		return LogisticsResponse{}, err
	}
	budgetID, err := uuid.Parse(req.BudgetID)
	if err != nil {
		return LogisticsResponse{}, &apperr.ValidationError{Field: "budget_id", Message: "invalid budget id"}
	}

	logistics := model.Logistics{
		BudgetID: budgetID,
		Title:    req.Title,
	}
	logistics.RecalculateTotals()
	if createErr := s.logisticsRepo.Create(ctx, &logistics); createErr != nil {
		return LogisticsResponse{}, fmt.Errorf("failed to create logistics record: %w", createErr)
	}
	return toLogisticsResponse(logistics), nil
}

func (s *logisticsService) GetLogistics(ctx context.Context, id string) (LogisticsResponse, error) {
	logistics, err := s.logisticsRepo.Get(ctx, id)
	if err != nil {
		return LogisticsResponse{}, err
	}
	return toLogisticsResponse(*logistics), nil
}

// UpdateTransportationItem patches (or, with an empty item id, appends) a
// transportation detail. BOOKED is the committal status.
func (s *logisticsService) UpdateTransportationItem(ctx context.Context, actorID, logisticsID, itemID string, patch TransportationPatch) (LogisticsResponse, error) {
	if err := validateStatus(patch.Status, transportationStatuses); err != nil {
		return LogisticsResponse{}, err
	}
	price, budgetItemID, err := parsePatchMoney(patch.Price, patch.BudgetItemID)
	if err != nil {
		return LogisticsResponse{}, err
	}

	return s.update(ctx, actorID, logisticsID, func(txCtx context.Context, logistics *model.Logistics) error {
		var detail *model.TransportationDetail
		if itemID == "" {
			logistics.TransportationDetails = append(logistics.TransportationDetails, model.TransportationDetail{
				LogisticsID: logistics.ID,
				Status:      model.TransportationPending,
			})
			detail = &logistics.TransportationDetails[len(logistics.TransportationDetails)-1]
		} else {
			parsed, parseErr := uuid.Parse(itemID)
			if parseErr != nil {
				return &apperr.ValidationError{Field: "item_id", Message: "invalid transportation item id"}
			}
			for i := range logistics.TransportationDetails {
				if logistics.TransportationDetails[i].ID == parsed {
					detail = &logistics.TransportationDetails[i]
					break
				}
			}
			if detail == nil {
				return &apperr.NotFoundError{Entity: "transportation detail", ID: itemID}
			}
		}

		if budgetItemID != nil {
			detail.BudgetItemID = *budgetItemID
		}
		if patch.Mode != "" {
			detail.Mode = patch.Mode
		}
		if patch.Origin != "" {
			detail.Origin = patch.Origin
		}
		if patch.Destination != "" {
			detail.Destination = patch.Destination
		}
		if patch.DepartureDate != nil {
			detail.DepartureDate = patch.DepartureDate
		}
		if price != nil {
			detail.Price = *price
		}

		if patch.Status != "" && patch.Status != detail.Status {
			if patch.Status == model.TransportationBooked {
				if debitErr := s.debit(txCtx, logistics.BudgetID, detail.BudgetItemID, detail.Price); debitErr != nil {
					return debitErr
				}
			}
			detail.Status = patch.Status
			detail.StatusHistory = append(detail.StatusHistory, model.StatusChange{Status: patch.Status, Date: time.Now()})
		}
		return nil
	})
}

// UpdateAccommodationItem patches (or appends) an accommodation detail.
// CONFIRMED is the committal status.
func (s *logisticsService) UpdateAccommodationItem(ctx context.Context, actorID, logisticsID, itemID string, patch AccommodationPatch) (LogisticsResponse, error) {
	if err := validateStatus(patch.Status, accommodationStatuses); err != nil {
		return LogisticsResponse{}, err
	}
	price, budgetItemID, err := parsePatchMoney(patch.Price, patch.BudgetItemID)
	if err != nil {
		return LogisticsResponse{}, err
	}

	return s.update(ctx, actorID, logisticsID, func(txCtx context.Context, logistics *model.Logistics) error {
		var detail *model.AccommodationDetail
		if itemID == "" {
			logistics.AccommodationDetails = append(logistics.AccommodationDetails, model.AccommodationDetail{
				LogisticsID: logistics.ID,
				Status:      model.AccommodationPending,
			})
			detail = &logistics.AccommodationDetails[len(logistics.AccommodationDetails)-1]
		} else {
			parsed, parseErr := uuid.Parse(itemID)
			if parseErr != nil {
				return &apperr.ValidationError{Field: "item_id", Message: "invalid accommodation item id"}
			}
			for i := range logistics.AccommodationDetails {
				if logistics.AccommodationDetails[i].ID == parsed {
					detail = &logistics.AccommodationDetails[i]
					break
				}
			}
			if detail == nil {
				return &apperr.NotFoundError{Entity: "accommodation detail", ID: itemID}
			}
		}

		if budgetItemID != nil {
			detail.BudgetItemID = *budgetItemID
		}
		if patch.Location != "" {
			detail.Location = patch.Location
		}
		if patch.CheckIn != nil {
			detail.CheckIn = patch.CheckIn
		}
		if patch.CheckOut != nil {
			detail.CheckOut = patch.CheckOut
		}
		if price != nil {
			detail.Price = *price
		}

		if patch.Status != "" && patch.Status != detail.Status {
			if patch.Status == model.AccommodationConfirmed {
				if debitErr := s.debit(txCtx, logistics.BudgetID, detail.BudgetItemID, detail.Price); debitErr != nil {
					return debitErr
				}
			}
			detail.Status = patch.Status
			detail.StatusHistory = append(detail.StatusHistory, model.StatusChange{Status: patch.Status, Date: time.Now()})
		}
		return nil
	})
}

// UpdateExpenseItem patches (or appends) an additional expense. PAID is the
// committal status and the debit amount is the expense amount.
func (s *logisticsService) UpdateExpenseItem(ctx context.Context, actorID, logisticsID, itemID string, patch ExpensePatch) (LogisticsResponse, error) {
	if err := validateStatus(patch.Status, expenseStatuses); err != nil {
		return LogisticsResponse{}, err
	}
	amount, budgetItemID, err := parsePatchMoney(patch.Amount, patch.BudgetItemID)
	if err != nil {
		return LogisticsResponse{}, err
	}

	return s.update(ctx, actorID, logisticsID, func(txCtx context.Context, logistics *model.Logistics) error {
		var expense *model.AdditionalExpense
		if itemID == "" {
			logistics.AdditionalExpenses = append(logistics.AdditionalExpenses, model.AdditionalExpense{
				LogisticsID: logistics.ID,
				Status:      model.ExpensePending,
			})
			expense = &logistics.AdditionalExpenses[len(logistics.AdditionalExpenses)-1]
		} else {
			parsed, parseErr := uuid.Parse(itemID)
			if parseErr != nil {
				return &apperr.ValidationError{Field: "item_id", Message: "invalid expense item id"}
			}
			for i := range logistics.AdditionalExpenses {
				if logistics.AdditionalExpenses[i].ID == parsed {
					expense = &logistics.AdditionalExpenses[i]
					break
				}
			}
			if expense == nil {
				return &apperr.NotFoundError{Entity: "additional expense", ID: itemID}
			}
		}

		if budgetItemID != nil {
			expense.BudgetItemID = *budgetItemID
		}
		if patch.Description != "" {
			expense.Description = patch.Description
		}
		if amount != nil {
			expense.Amount = *amount
		}

		if patch.Status != "" && patch.Status != expense.Status {
			if patch.Status == model.ExpensePaid {
				if debitErr := s.debit(txCtx, logistics.BudgetID, expense.BudgetItemID, expense.Amount); debitErr != nil {
					return debitErr
				}
			}
			expense.Status = patch.Status
			expense.StatusHistory = append(expense.StatusHistory, model.StatusChange{Status: patch.Status, Date: time.Now()})
		}
		return nil
	})
}

// Deleting a committed sub-item does not credit the ledger back; the debit
// stands and only the sheet totals are recomputed.

func (s *logisticsService) DeleteTransportationItem(ctx context.Context, actorID, logisticsID, itemID string) (LogisticsResponse, error) {
	parsed, err := uuid.Parse(itemID)
	if err != nil {
		return LogisticsResponse{}, &apperr.ValidationError{Field: "item_id", Message: "invalid transportation item id"}
	}

	return s.update(ctx, actorID, logisticsID, func(txCtx context.Context, logistics *model.Logistics) error {
		var removed *model.TransportationDetail
		for i := range logistics.TransportationDetails {
			if logistics.TransportationDetails[i].ID == parsed {
				removed = &logistics.TransportationDetails[i]
				break
			}
		}
		if removed == nil {
			return &apperr.NotFoundError{Entity: "transportation detail", ID: itemID}
		}
		if deleteErr := s.logisticsRepo.DeleteTransportation(txCtx, removed); deleteErr != nil {
			return fmt.Errorf("failed to delete transportation detail: %w", deleteErr)
		}
		kept := logistics.TransportationDetails[:0]
		for _, d := range logistics.TransportationDetails {
			if d.ID != parsed {
				kept = append(kept, d)
			}
		}
		logistics.TransportationDetails = kept
		return nil
	})
}

func (s *logisticsService) DeleteAccommodationItem(ctx context.Context, actorID, logisticsID, itemID string) (LogisticsResponse, error) {
	parsed, err := uuid.Parse(itemID)
	if err != nil {
		return LogisticsResponse{}, &apperr.ValidationError{Field: "item_id", Message: "invalid accommodation item id"}
	}

	return s.update(ctx, actorID, logisticsID, func(txCtx context.Context, logistics *model.Logistics) error {
		var removed *model.AccommodationDetail
		for i := range logistics.AccommodationDetails {
			if logistics.AccommodationDetails[i].ID == parsed {
				removed = &logistics.AccommodationDetails[i]
				break
			}
		}
		if removed == nil {
			return &apperr.NotFoundError{Entity: "accommodation detail", ID: itemID}
		}
		if deleteErr := s.logisticsRepo.DeleteAccommodation(txCtx, removed); deleteErr != nil {
			return fmt.Errorf("failed to delete accommodation detail: %w", deleteErr)
		}
		kept := logistics.AccommodationDetails[:0]
		for _, d := range logistics.AccommodationDetails {
			if d.ID != parsed {
				kept = append(kept, d)
			}
		}
		logistics.AccommodationDetails = kept
		return nil
	})
}

func (s *logisticsService) DeleteExpenseItem(ctx context.Context, actorID, logisticsID, itemID string) (LogisticsResponse, error) {
	parsed, err := uuid.Parse(itemID)
	if err != nil {
		return LogisticsResponse{}, &apperr.ValidationError{Field: "item_id", Message: "invalid expense item id"}
	}

	return s.update(ctx, actorID, logisticsID, func(txCtx context.Context, logistics *model.Logistics) error {
		var removed *model.AdditionalExpense
		for i := range logistics.AdditionalExpenses {
			if logistics.AdditionalExpenses[i].ID == parsed {
				removed = &logistics.AdditionalExpenses[i]
				break
			}
		}
		if removed == nil {
			return &apperr.NotFoundError{Entity: "additional expense", ID: itemID}
		}
		if deleteErr := s.logisticsRepo.DeleteExpense(txCtx, removed); deleteErr != nil {
			return fmt.Errorf("failed to delete additional expense: %w", deleteErr)
		}
		kept := logistics.AdditionalExpenses[:0]
		for _, e := range logistics.AdditionalExpenses {
			if e.ID != parsed {
				kept = append(kept, e)
			}
		}
		logistics.AdditionalExpenses = kept
		return nil
	})
}

// update loads the logistics record, applies fn, recomputes the three
// collection totals and the grand total from scratch, and persists
// everything in one transaction.
func (s *logisticsService) update(ctx context.Context, actorID, logisticsID string, fn func(txCtx context.Context, logistics *model.Logistics) error) (LogisticsResponse, error) {
	var result model.Logistics
	err := runWithRetry(ctx, s.txManager, func(txCtx context.Context) error {
		logistics, loadErr := s.logisticsRepo.Get(txCtx, logisticsID)
		if loadErr != nil {
			return loadErr
		}
		if fnErr := fn(txCtx, logistics); fnErr != nil {
			return fnErr
		}

		logistics.RecalculateTotals()
		if saveErr := s.logisticsRepo.Save(txCtx, logistics); saveErr != nil {
			return fmt.Errorf("failed to save logistics record: %w", saveErr)
		}

		result = *logistics
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:   parseActor(actorID),
			Action:   model.ActionUpdateLogisticsItem,
			EntityID: logistics.ID.String(),
			Details: mustJSON(map[string]interface{}{
				"grand_total": logistics.GrandTotal.String(),
			}),
		})
	})
	if err != nil {
		return LogisticsResponse{}, err
	}
	return toLogisticsResponse(result), nil
}

// debit subtracts amount from the referenced item of the budget's LOGISTICS
// category and persists the budget aggregate under its version guard.
func (s *logisticsService) debit(ctx context.Context, budgetID, budgetItemID uuid.UUID, amount decimal.Decimal) error {
	if budgetItemID == uuid.Nil {
		return &apperr.ValidationError{Field: "budget_item_id", Message: "a budget item is required for a committal status"}
	}

	budget, err := s.budgetRepo.Get(ctx, budgetID.String())
	if err != nil {
		return err
	}
	category := budget.CategoryByRole(model.CategoryRoleLogistics)
	if category == nil {
		return &apperr.NotFoundError{Entity: "logistics category for budget", ID: budgetID.String()}
	}
	item := category.Item(budgetItemID)
	if item == nil {
		return &apperr.NotFoundError{Entity: "budget item", ID: budgetItemID.String()}
	}
	if item.Amount.LessThan(amount) {
		return &apperr.InsufficientFundsError{
			BudgetItemID: item.ID.String(),
			Requested:    amount,
			Available:    item.Amount,
		}
	}

	item.Amount = item.Amount.Sub(amount)
	category.Recalculate()
	if err := s.budgetRepo.Save(ctx, budget); err != nil {
		return err
	}

	s.logger.Info("logistics committal debited budget item",
		zap.String("budget_id", budgetID.String()),
		zap.String("budget_item_id", budgetItemID.String()),
		zap.String("amount", amount.String()))
	broadcast(s.hub, "budget.debited", map[string]interface{}{
		"source":         "logistics",
		"budget_id":      budgetID.String(),
		"budget_item_id": budgetItemID.String(),
		"amount":         amount.String(),
	})
	return nil
}

func validateStatus(status string, valid []string) error {
	if status == "" {
		return nil
	}
	for _, v := range valid {
		if status == v {
			return nil
		}
	}
	return &apperr.ValidationError{Field: "status", Message: "unknown status: " + status}
}

// parsePatchMoney parses the optional decimal and budget item id of a patch
func parsePatchMoney(amount, budgetItemID string) (*decimal.Decimal, *uuid.UUID, error) {
	var parsedAmount *decimal.Decimal
	if amount != "" {
		value, err := parseRequiredAmount("price", amount)
		if err != nil {
			return nil, nil, err
		}
		parsedAmount = &value
	}

	var parsedID *uuid.UUID
	if budgetItemID != "" {
		value, err := uuid.Parse(budgetItemID)
		if err != nil {
			return nil, nil, &apperr.ValidationError{Field: "budget_item_id", Message: "invalid budget item id"}
		}
		parsedID = &value
	}
	return parsedAmount, parsedID, nil
}

// --- Mappers ---

func toLogisticsResponse(l model.Logistics) LogisticsResponse {
	res := LogisticsResponse{
		ID:                  l.ID.String(),
		BudgetID:            l.BudgetID.String(),
		Title:               l.Title,
		TransportationTotal: l.TransportationTotal.String(),
		AccommodationTotal:  l.AccommodationTotal.String(),
		ExpensesTotal:       l.ExpensesTotal.String(),
		GrandTotal:          l.GrandTotal.String(),
	}
	for _, d := range l.TransportationDetails {
		res.TransportationDetails = append(res.TransportationDetails, TransportationResponse{
			ID:            d.ID.String(),
			BudgetItemID:  d.BudgetItemID.String(),
			Mode:          d.Mode,
			Origin:        d.Origin,
			Destination:   d.Destination,
			Price:         d.Price.String(),
			Status:        d.Status,
			StatusHistory: toHistoryResponse(d.StatusHistory),
		})
	}
	for _, d := range l.AccommodationDetails {
		res.AccommodationDetails = append(res.AccommodationDetails, AccommodationResponse{
			ID:            d.ID.String(),
			BudgetItemID:  d.BudgetItemID.String(),
			Location:      d.Location,
			Price:         d.Price.String(),
			Status:        d.Status,
			StatusHistory: toHistoryResponse(d.StatusHistory),
		})
	}
	for _, e := range l.AdditionalExpenses {
		res.AdditionalExpenses = append(res.AdditionalExpenses, ExpenseResponse{
			ID:            e.ID.String(),
			BudgetItemID:  e.BudgetItemID.String(),
			Description:   e.Description,
			Amount:        e.Amount.String(),
			Status:        e.Status,
			StatusHistory: toHistoryResponse(e.StatusHistory),
		})
	}
	return res
}

func toHistoryResponse(history model.StatusHistory) []StatusChangeResponse {
	res := make([]StatusChangeResponse, 0, len(history))
	for _, change := range history {
		res = append(res, StatusChangeResponse{
			Status: change.Status,
			Date:   change.Date.Format(time.RFC3339),
		})
	}
	return res
}
