package service_test

import (
	"context"
	"errors"
	"testing"

	"finops-backend/internal/model"
	"finops-backend/internal/service"
	"finops-backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcurement(t *testing.T, env *testEnv, budgetID string) service.ProcurementResponse {
	t.Helper()
	procurement, err := env.procurements.CreateProcurement(context.Background(), uuid.NewString(), service.CreateProcurementRequest{
		BudgetID: budgetID,
		FlowID:   "REQ-2026-001",
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", procurement.Status)
	return procurement
}

func TestProcurementService_ProcessRequest_RequiresApprovedBudget(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	procurement := newProcurement(t, env, budget.ID)

	_, err := env.budgets.UpdateStatus(context.Background(), actor, budget.ID, "PENDING")
	require.NoError(t, err)

	procItem := categoryByRole(t, budget, "PROCUREMENT").Items[0]
	_, err = env.procurements.ProcessRequest(context.Background(), actor, procurement.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{
			{ItemName: "Router", Quantity: 1, UnitPrice: "100", BudgetItemID: procItem.ID},
		},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestProcurementService_ProcessRequest_PricesAndProcesses(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	procurement := newProcurement(t, env, budget.ID)
	procItem := categoryByRole(t, budget, "PROCUREMENT").Items[0]

	processed, err := env.procurements.ProcessRequest(context.Background(), actor, procurement.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{
			{ItemName: "Router", Quantity: 2, UnitPrice: "150", Vendor: "NetCorp", BudgetItemID: procItem.ID},
			{ItemName: "Switch", Quantity: 1, UnitPrice: "400", Vendor: "NetCorp", BudgetItemID: procItem.ID},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "PROCESSED", processed.Status)
	assert.Equal(t, "700", processed.TotalCost)
	require.Len(t, processed.Items, 2)
	for _, item := range processed.Items {
		assert.Equal(t, "PENDING", item.Status)
	}

	// Processing only prices; nothing is debited yet.
	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000", categoryByRole(t, loaded, "PROCUREMENT").Items[0].Amount)
}

func TestProcurementService_ProcessRequest_UsesVendorInventoryPrice(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	procurement := newProcurement(t, env, budget.ID)
	procItem := categoryByRole(t, budget, "PROCUREMENT").Items[0]

	vendorStock := &model.VendorInventory{
		Vendor:    "NetCorp",
		ItemName:  "Router",
		UnitPrice: decimal.RequireFromString("120"),
		Quantity:  5,
	}
	require.NoError(t, env.inventoryRepo.CreateVendorInventory(context.Background(), vendorStock))

	processed, err := env.procurements.ProcessRequest(context.Background(), actor, procurement.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{
			{ItemName: "Router", Quantity: 3, VendorInventoryID: vendorStock.ID.String(), Vendor: "NetCorp", BudgetItemID: procItem.ID},
		},
	})
	require.NoError(t, err)

	require.Len(t, processed.Items, 1)
	assert.Equal(t, "120", processed.Items[0].UnitPrice)
	assert.Equal(t, "360", processed.Items[0].Amount)
}

func TestProcurementService_ProcessRequest_RejectsVendorStockShortage(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	procurement := newProcurement(t, env, budget.ID)
	procItem := categoryByRole(t, budget, "PROCUREMENT").Items[0]

	vendorStock := &model.VendorInventory{
		Vendor:    "NetCorp",
		ItemName:  "Router",
		UnitPrice: decimal.RequireFromString("120"),
		Quantity:  2,
	}
	require.NoError(t, env.inventoryRepo.CreateVendorInventory(context.Background(), vendorStock))

	_, err := env.procurements.ProcessRequest(context.Background(), actor, procurement.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{
			{ItemName: "Router", Quantity: 3, VendorInventoryID: vendorStock.ID.String(), BudgetItemID: procItem.ID},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestProcurementService_ProcessRequest_InsufficientFundsAbortsBatch(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	procurement := newProcurement(t, env, budget.ID)
	procItem := categoryByRole(t, budget, "PROCUREMENT").Items[0]

	_, err := env.procurements.ProcessRequest(context.Background(), actor, procurement.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{
			{ItemName: "Router", Quantity: 1, UnitPrice: "900", BudgetItemID: procItem.ID},
			{ItemName: "Rack", Quantity: 1, UnitPrice: "200", BudgetItemID: procItem.ID},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds))

	// The whole batch aborted; the procurement is untouched.
	reloaded, err := env.procurements.GetProcurement(context.Background(), procurement.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", reloaded.Status)
	assert.Empty(t, reloaded.Items)
}

func TestProcurementService_ReceiveItem_DebitsLedgerAndAccepts(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	procurement := newProcurement(t, env, budget.ID)
	procItem := categoryByRole(t, budget, "PROCUREMENT").Items[0]

	processed, err := env.procurements.ProcessRequest(context.Background(), actor, procurement.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{
			{ItemName: "Router", Quantity: 2, UnitPrice: "150", BudgetItemID: procItem.ID},
		},
	})
	require.NoError(t, err)

	received, err := env.procurements.ReceiveItem(context.Background(), actor, procurement.ID, processed.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", received.Items[0].Status)
	assert.Equal(t, "300", received.ActualTotalCost)

	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	got := categoryByRole(t, loaded, "PROCUREMENT")
	assert.Equal(t, "700", got.Items[0].Amount)
	assert.Equal(t, "700", got.Amount)
	// The ceiling is untouched by spend.
	assert.Equal(t, "1000", got.Items[0].BudgetedItemAmount)

	// Receiving again is a conflict and must not debit twice.
	_, err = env.procurements.ReceiveItem(context.Background(), actor, procurement.ID, processed.Items[0].ID)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	loaded, err = env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "700", categoryByRole(t, loaded, "PROCUREMENT").Items[0].Amount)
}

func TestProcurementService_ReceiveItem_InsufficientFundsLeavesBothUnchanged(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	procItem := categoryByRole(t, budget, "PROCUREMENT").Items[0]

	first := newProcurement(t, env, budget.ID)
	second := newProcurement(t, env, budget.ID)

	processedFirst, err := env.procurements.ProcessRequest(context.Background(), actor, first.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{{ItemName: "Router", Quantity: 1, UnitPrice: "800", BudgetItemID: procItem.ID}},
	})
	require.NoError(t, err)
	processedSecond, err := env.procurements.ProcessRequest(context.Background(), actor, second.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{{ItemName: "Rack", Quantity: 1, UnitPrice: "600", BudgetItemID: procItem.ID}},
	})
	require.NoError(t, err)

	// First receipt drains the budget item to 200.
	_, err = env.procurements.ReceiveItem(context.Background(), actor, first.ID, processedFirst.Items[0].ID)
	require.NoError(t, err)

	// The second receipt no longer fits.
	_, err = env.procurements.ReceiveItem(context.Background(), actor, second.ID, processedSecond.Items[0].ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds))

	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "200", categoryByRole(t, loaded, "PROCUREMENT").Items[0].Amount)

	reloaded, err := env.procurements.GetProcurement(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", reloaded.Items[0].Status)
	assert.Equal(t, "0", reloaded.ActualTotalCost)
}

func TestProcurementService_RejectItem_NoLedgerMovement(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	procurement := newProcurement(t, env, budget.ID)
	procItem := categoryByRole(t, budget, "PROCUREMENT").Items[0]

	processed, err := env.procurements.ProcessRequest(context.Background(), actor, procurement.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{{ItemName: "Router", Quantity: 1, UnitPrice: "150", BudgetItemID: procItem.ID}},
	})
	require.NoError(t, err)

	rejected, err := env.procurements.RejectItem(context.Background(), actor, procurement.ID, processed.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", rejected.Items[0].Status)
	assert.Equal(t, "0", rejected.ActualTotalCost)

	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000", categoryByRole(t, loaded, "PROCUREMENT").Items[0].Amount)
}

func TestProcurementService_AddItemToInventory_OneWayFlag(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	procurement := newProcurement(t, env, budget.ID)
	procItem := categoryByRole(t, budget, "PROCUREMENT").Items[0]

	processed, err := env.procurements.ProcessRequest(context.Background(), actor, procurement.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{{ItemName: "Router", Quantity: 4, UnitPrice: "100", BudgetItemID: procItem.ID}},
	})
	require.NoError(t, err)
	itemID := processed.Items[0].ID

	// Pending items cannot enter inventory.
	_, err = env.procurements.AddItemToInventory(context.Background(), actor, procurement.ID, itemID, 0)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	_, err = env.procurements.ReceiveItem(context.Background(), actor, procurement.ID, itemID)
	require.NoError(t, err)

	added, err := env.procurements.AddItemToInventory(context.Background(), actor, procurement.ID, itemID, 0)
	require.NoError(t, err)
	assert.True(t, added.Items[0].AddedToInventory)

	stock, total, err := env.inventoryRepo.ListStockItems(context.Background(), 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "Router", stock[0].ItemName)
	assert.Equal(t, 4, stock[0].Quantity) // defaults to the full item quantity

	// Adding a second time is a conflict; adjusting goes through UpdateInventory.
	_, err = env.procurements.AddItemToInventory(context.Background(), actor, procurement.ID, itemID, 2)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	_, err = env.procurements.UpdateInventory(context.Background(), actor, procurement.ID, itemID, 2)
	require.NoError(t, err)

	stock, _, err = env.inventoryRepo.ListStockItems(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, stock[0].Quantity)
}
