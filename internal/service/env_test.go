package service_test

import (
	"context"
	"testing"
	"time"

	"finops-backend/internal/database"
	"finops-backend/internal/repository"
	"finops-backend/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testEnv struct {
	db           *gorm.DB
	budgets      service.BudgetService
	alignments   service.AlignmentService
	procurements service.ProcurementService
	logistics    service.LogisticsService
	audits       service.AuditService
	reports      service.ReportService

	budgetRepo    repository.BudgetRepository
	inventoryRepo repository.InventoryRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	txManager := repository.NewTransactionManager(db)
	budgetRepo := repository.NewBudgetRepository(db)
	procurementRepo := repository.NewProcurementRepository(db)
	logisticsRepo := repository.NewLogisticsRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	log := zap.NewNop()

	return &testEnv{
		db:            db,
		budgets:       service.NewBudgetService(budgetRepo, auditRepo, txManager, log),
		alignments:    service.NewAlignmentService(budgetRepo, auditRepo, txManager, nil, log),
		procurements:  service.NewProcurementService(procurementRepo, budgetRepo, inventoryRepo, auditRepo, txManager, nil, log),
		logistics:     service.NewLogisticsService(logisticsRepo, budgetRepo, auditRepo, txManager, nil, log),
		audits:        service.NewAuditService(auditRepo),
		reports:       service.NewReportService(budgetRepo, procurementRepo, logisticsRepo),
		budgetRepo:    budgetRepo,
		inventoryRepo: inventoryRepo,
	}
}

// seedBudget creates a budget with a general, a procurement and a logistics
// category, one item each, and moves it to APPROVED.
func seedBudget(t *testing.T, env *testEnv, actorID string) service.BudgetResponse {
	t.Helper()

	created, err := env.budgets.CreateBudget(context.Background(), actorID, service.CreateBudgetRequest{
		Title:     "Operations FY26",
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Categories: []service.BudgetCategoryRequest{
			{
				Title: "General",
				Role:  "GENERAL",
				Items: []service.BudgetItemRequest{{ItemName: "Office supplies", Amount: "500"}},
			},
			{
				Title: "Procurement",
				Role:  "PROCUREMENT",
				Items: []service.BudgetItemRequest{{ItemName: "Hardware", Amount: "1000"}},
			},
			{
				Title: "Logistics",
				Role:  "LOGISTICS",
				Items: []service.BudgetItemRequest{{ItemName: "Travel", Amount: "800"}},
			},
		},
	})
	require.NoError(t, err)

	approved, err := env.budgets.UpdateStatus(context.Background(), actorID, created.ID, "APPROVED")
	require.NoError(t, err)
	return approved
}

func categoryByRole(t *testing.T, budget service.BudgetResponse, role string) service.BudgetCategoryResponse {
	t.Helper()
	for _, c := range budget.Categories {
		if c.Role == role {
			return c
		}
	}
	t.Fatalf("budget has no %s category", role)
	return service.BudgetCategoryResponse{}
}
