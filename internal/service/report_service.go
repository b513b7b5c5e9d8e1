package service

import (
	"context"

	"finops-backend/internal/model"
	"finops-backend/internal/repository"

	"github.com/shopspring/decimal"
)

type CategoryUtilization struct {
	CategoryID string `json:"category_id"`
	Title      string `json:"title"`
	Role       string `json:"role"`
	Allocated  string `json:"allocated"` // budgeted ceiling
	Remaining  string `json:"remaining"` // spendable balance
	Committed  string `json:"committed"` // allocated - remaining
}

type BudgetReport struct {
	BudgetID           string                `json:"budget_id"`
	Title              string                `json:"title"`
	Status             string                `json:"status"`
	Categories         []CategoryUtilization `json:"categories"`
	PendingAlignments  int                   `json:"pending_alignments"`
	ProcurementSpend   string                `json:"procurement_spend"` // sum of accepted item actual amounts
	LogisticsCommitted string                `json:"logistics_committed"`
}

type ReportService interface {
	GetBudgetReport(ctx context.Context, budgetID string) (BudgetReport, error)
}

type reportService struct {
	budgetRepo repository.BudgetRepository
	procRepo   repository.ProcurementRepository
	logRepo    repository.LogisticsRepository
}

func NewReportService(
	budgetRepo repository.BudgetRepository,
	procRepo repository.ProcurementRepository,
	logRepo repository.LogisticsRepository,
) ReportService {
	return &reportService{budgetRepo: budgetRepo, procRepo: procRepo, logRepo: logRepo}
}

// GetBudgetReport summarizes utilisation across the ledger and the records
// that debit it. All figures derive from the same loaded aggregates, so the
// report is internally consistent for one read.
func (s *reportService) GetBudgetReport(ctx context.Context, budgetID string) (BudgetReport, error) {
	budget, err := s.budgetRepo.Get(ctx, budgetID)
	if err != nil {
		return BudgetReport{}, err
	}

	report := BudgetReport{
		BudgetID: budget.ID.String(),
		Title:    budget.Title,
		Status:   budget.Status,
	}

	for _, category := range budget.Categories {
		committed := category.BudgetedAmount.Sub(category.Amount)
		report.Categories = append(report.Categories, CategoryUtilization{
			CategoryID: category.ID.String(),
			Title:      category.Title,
			Role:       category.Role,
			Allocated:  category.BudgetedAmount.String(),
			Remaining:  category.Amount.String(),
			Committed:  committed.String(),
		})
		for _, aligned := range category.AlignedAmounts {
			if aligned.Status == model.AlignedStatusPending {
				report.PendingAlignments++
			}
		}
	}

	procurementSpend, err := s.procurementSpend(ctx, budgetID)
	if err != nil {
		return BudgetReport{}, err
	}
	report.ProcurementSpend = procurementSpend.String()

	logisticsCommitted, err := s.logisticsCommitted(ctx, budgetID)
	if err != nil {
		return BudgetReport{}, err
	}
	report.LogisticsCommitted = logisticsCommitted.String()

	return report, nil
}

func (s *reportService) procurementSpend(ctx context.Context, budgetID string) (decimal.Decimal, error) {
	procurements, err := s.procRepo.ListByBudget(ctx, budgetID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, procurement := range procurements {
		for _, item := range procurement.Items {
			if item.Status == model.ProcurementItemAccepted {
				total = total.Add(item.ActualAmount)
			}
		}
	}
	return total, nil
}

func (s *reportService) logisticsCommitted(ctx context.Context, budgetID string) (decimal.Decimal, error) {
	records, err := s.logRepo.ListByBudget(ctx, budgetID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, record := range records {
		for _, d := range record.TransportationDetails {
			if d.Status == model.TransportationBooked {
				total = total.Add(d.Price)
			}
		}
		for _, d := range record.AccommodationDetails {
			if d.Status == model.AccommodationConfirmed {
				total = total.Add(d.Price)
			}
		}
		for _, e := range record.AdditionalExpenses {
			if e.Status == model.ExpensePaid {
				total = total.Add(e.Amount)
			}
		}
	}
	return total, nil
}
