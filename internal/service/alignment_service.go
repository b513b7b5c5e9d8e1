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
	"go.uber.org/zap"
)

// --- DTOs ---

type SubmitAlignedAmountRequest struct {
	BudgetItemID string `json:"budget_item_id" binding:"required"`
	Amount       string `json:"amount" binding:"required"` // Decimal string
	Personnel    string `json:"personnel"`
	Comment      string `json:"comment" binding:"required"`
}

// --- Interface ---

// AlignmentService runs the re-allocation state machine. A pending proposal
// transitions exactly once: approval credits the target item's spendable
// amount and ceiling in the same transaction that records the approval;
// rejection records a reason and leaves the ledger untouched.
type AlignmentService interface {
	Submit(ctx context.Context, actorID, budgetID, categoryID string, req SubmitAlignedAmountRequest) (AlignedAmountResponse, error)
	Approve(ctx context.Context, actorID, budgetID, categoryID, alignedID string) (AlignedAmountResponse, error)
	Reject(ctx context.Context, actorID, budgetID, categoryID, alignedID, reason string) (AlignedAmountResponse, error)
	Remove(ctx context.Context, actorID, budgetID, categoryID, alignedID string) error
}

type alignmentService struct {
	budgetRepo repository.BudgetRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	hub        *ws.Hub
	logger     *zap.Logger
}

func NewAlignmentService(
	budgetRepo repository.BudgetRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
	logger *zap.Logger,
) AlignmentService {
	return &alignmentService{
		budgetRepo: budgetRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		hub:        hub,
		logger:     logger,
	}
}

// --- Implementation ---

func (s *alignmentService) Submit(ctx context.Context, actorID, budgetID, categoryID string, req SubmitAlignedAmountRequest) (AlignedAmountResponse, error) {
	catID, err := uuid.Parse(categoryID)
	if err != nil {
		return AlignedAmountResponse{}, &apperr.ValidationError{Field: "category_id", Message: "invalid category id"}
	}
	itemID, err := uuid.Parse(req.BudgetItemID)
	if err != nil {
		return AlignedAmountResponse{}, &apperr.ValidationError{Field: "budget_item_id", Message: "invalid budget item id"}
	}
	amount, err := parseRequiredAmount("amount", req.Amount)
	if err != nil {
		return AlignedAmountResponse{}, err
	}
	if !amount.IsPositive() {
		return AlignedAmountResponse{}, &apperr.ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	}
	if req.Comment == "" {
		return AlignedAmountResponse{}, &apperr.ValidationError{Field: "comment", Message: "comment is required"}
	}

	var result model.AlignedAmount
	err = runWithRetry(ctx, s.txManager, func(txCtx context.Context) error {
		budget, loadErr := s.budgetRepo.Get(txCtx, budgetID)
		if loadErr != nil {
			return loadErr
		}
		category := budget.Category(catID)
		if category == nil {
			return &apperr.NotFoundError{Entity: "category", ID: categoryID}
		}
		if category.Item(itemID) == nil {
			return &apperr.NotFoundError{Entity: "budget item", ID: req.BudgetItemID}
		}

		proposal := model.AlignedAmount{
			CategoryID:   category.ID,
			BudgetItemID: itemID,
			Amount:       amount,
			Personnel:    req.Personnel,
			Comment:      req.Comment,
			Date:         time.Now(),
			Status:       model.AlignedStatusPending,
		}
		category.AlignedAmounts = append(category.AlignedAmounts, proposal)

		if saveErr := s.budgetRepo.Save(txCtx, budget); saveErr != nil {
			return saveErr
		}

		result = category.AlignedAmounts[len(category.AlignedAmounts)-1]
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     parseActor(actorID),
			Action:     model.ActionSubmitAligned,
			EntityID:   result.ID.String(),
			EntityName: budget.Title,
			Details: mustJSON(map[string]interface{}{
				"budget_id":      budgetID,
				"budget_item_id": req.BudgetItemID,
				"amount":         amount.String(),
			}),
		})
	})
	if err != nil {
		return AlignedAmountResponse{}, err
	}

	return toAlignedResponse(result), nil
}

func (s *alignmentService) Approve(ctx context.Context, actorID, budgetID, categoryID, alignedID string) (AlignedAmountResponse, error) {
	approver := parseActor(actorID)
	if approver == nil {
		return AlignedAmountResponse{}, &apperr.ValidationError{Field: "actor_id", Message: "an approving actor is required"}
	}

	catID, alID, err := parseAlignedIDs(categoryID, alignedID)
	if err != nil {
		return AlignedAmountResponse{}, err
	}

	var result model.AlignedAmount
	err = runWithRetry(ctx, s.txManager, func(txCtx context.Context) error {
		budget, loadErr := s.budgetRepo.Get(txCtx, budgetID)
		if loadErr != nil {
			return loadErr
		}
		category := budget.Category(catID)
		if category == nil {
			return &apperr.NotFoundError{Entity: "category", ID: categoryID}
		}
		proposal := category.Aligned(alID)
		if proposal == nil {
			return &apperr.NotFoundError{Entity: "aligned amount", ID: alignedID}
		}
		if proposal.Status != model.AlignedStatusPending {
			return &apperr.ConflictError{Entity: "aligned amount", ID: alignedID,
				Message: "already " + proposal.Status}
		}
		item := category.Item(proposal.BudgetItemID)
		if item == nil {
			return &apperr.NotFoundError{Entity: "budget item", ID: proposal.BudgetItemID.String()}
		}

		// Credit the target item and re-derive the category aggregate.
		item.Amount = item.Amount.Add(proposal.Amount)
		item.BudgetedItemAmount = item.BudgetedItemAmount.Add(proposal.Amount)
		category.Recalculate()

		proposal.Status = model.AlignedStatusApproved
		proposal.Approvals = append(proposal.Approvals, model.AlignedApproval{
			AlignedAmountID: proposal.ID,
			ApprovedBy:      *approver,
			Date:            time.Now(),
		})

		if saveErr := s.budgetRepo.Save(txCtx, budget); saveErr != nil {
			return saveErr
		}

		result = *proposal
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     approver,
			Action:     model.ActionApproveAligned,
			EntityID:   proposal.ID.String(),
			EntityName: budget.Title,
			Details: mustJSON(map[string]interface{}{
				"budget_id":      budgetID,
				"budget_item_id": proposal.BudgetItemID.String(),
				"amount":         proposal.Amount.String(),
			}),
		})
	})
	if err != nil {
		return AlignedAmountResponse{}, err
	}

	s.logger.Info("aligned amount approved",
		zap.String("aligned_id", alignedID),
		zap.String("budget_id", budgetID),
		zap.String("amount", result.Amount.String()))
	broadcast(s.hub, "alignment.approved", map[string]interface{}{
		"budget_id":  budgetID,
		"aligned_id": alignedID,
		"amount":     result.Amount.String(),
	})

	return toAlignedResponse(result), nil
}

func (s *alignmentService) Reject(ctx context.Context, actorID, budgetID, categoryID, alignedID, reason string) (AlignedAmountResponse, error) {
	if reason == "" {
		return AlignedAmountResponse{}, &apperr.ValidationError{Field: "reason", Message: "a rejection reason is required"}
	}

	catID, alID, err := parseAlignedIDs(categoryID, alignedID)
	if err != nil {
		return AlignedAmountResponse{}, err
	}

	var result model.AlignedAmount
	err = runWithRetry(ctx, s.txManager, func(txCtx context.Context) error {
		budget, loadErr := s.budgetRepo.Get(txCtx, budgetID)
		if loadErr != nil {
			return loadErr
		}
		category := budget.Category(catID)
		if category == nil {
			return &apperr.NotFoundError{Entity: "category", ID: categoryID}
		}
		proposal := category.Aligned(alID)
		if proposal == nil {
			return &apperr.NotFoundError{Entity: "aligned amount", ID: alignedID}
		}
		if proposal.Status != model.AlignedStatusPending {
			return &apperr.ConflictError{Entity: "aligned amount", ID: alignedID,
				Message: "already " + proposal.Status}
		}

		// No ledger change on rejection.
		proposal.Status = model.AlignedStatusRejected
		proposal.Comment = reason

		if saveErr := s.budgetRepo.Save(txCtx, budget); saveErr != nil {
			return saveErr
		}

		result = *proposal
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     parseActor(actorID),
			Action:     model.ActionRejectAligned,
			EntityID:   proposal.ID.String(),
			EntityName: budget.Title,
			Details: mustJSON(map[string]interface{}{
				"budget_id": budgetID,
				"reason":    reason,
			}),
		})
	})
	if err != nil {
		return AlignedAmountResponse{}, err
	}

	return toAlignedResponse(result), nil
}

// Remove is administrative only. It never reverses the ledger effect of an
// already-applied approval.
func (s *alignmentService) Remove(ctx context.Context, actorID, budgetID, categoryID, alignedID string) error {
	catID, alID, err := parseAlignedIDs(categoryID, alignedID)
	if err != nil {
		return err
	}

	return runWithRetry(ctx, s.txManager, func(txCtx context.Context) error {
		budget, loadErr := s.budgetRepo.Get(txCtx, budgetID)
		if loadErr != nil {
			return loadErr
		}
		category := budget.Category(catID)
		if category == nil {
			return &apperr.NotFoundError{Entity: "category", ID: categoryID}
		}
		proposal := category.Aligned(alID)
		if proposal == nil {
			return &apperr.NotFoundError{Entity: "aligned amount", ID: alignedID}
		}

		if deleteErr := s.budgetRepo.DeleteAlignedAmount(txCtx, proposal); deleteErr != nil {
			return fmt.Errorf("failed to delete aligned amount: %w", deleteErr)
		}
		kept := category.AlignedAmounts[:0]
		for _, a := range category.AlignedAmounts {
			if a.ID != alID {
				kept = append(kept, a)
			}
		}
		category.AlignedAmounts = kept

		if saveErr := s.budgetRepo.Save(txCtx, budget); saveErr != nil {
			return saveErr
		}

		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     parseActor(actorID),
			Action:     model.ActionRemoveAligned,
			EntityID:   alignedID,
			EntityName: budget.Title,
			Details:    mustJSON(map[string]interface{}{"budget_id": budgetID}),
		})
	})
}

func parseAlignedIDs(categoryID, alignedID string) (uuid.UUID, uuid.UUID, error) {
	catID, err := uuid.Parse(categoryID)
	if err != nil {
		return uuid.Nil, uuid.Nil, &apperr.ValidationError{Field: "category_id", Message: "invalid category id"}
	}
	alID, err := uuid.Parse(alignedID)
	if err != nil {
		return uuid.Nil, uuid.Nil, &apperr.ValidationError{Field: "aligned_id", Message: "invalid aligned amount id"}
	}
	return catID, alID, nil
}
