package service_test

import (
	"context"
	"testing"

	"finops-backend/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportService_GetBudgetReport_ReflectsSpend(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)

	// One accepted procurement item worth 300.
	procurement := newProcurement(t, env, budget.ID)
	procItem := categoryByRole(t, budget, "PROCUREMENT").Items[0]
	processed, err := env.procurements.ProcessRequest(context.Background(), actor, procurement.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{{ItemName: "Router", Quantity: 2, UnitPrice: "150", BudgetItemID: procItem.ID}},
	})
	require.NoError(t, err)
	_, err = env.procurements.ReceiveItem(context.Background(), actor, procurement.ID, processed.Items[0].ID)
	require.NoError(t, err)

	// One paid logistics expense worth 120.
	sheet := newLogisticsSheet(t, env, budget.ID)
	travelItem := categoryByRole(t, budget, "LOGISTICS").Items[0]
	_, err = env.logistics.UpdateExpenseItem(context.Background(), actor, sheet.ID, "", service.ExpensePatch{
		BudgetItemID: travelItem.ID,
		Description:  "Visa fees",
		Amount:       "120",
		Status:       "PAID",
	})
	require.NoError(t, err)

	// One pending re-allocation proposal.
	general := categoryByRole(t, budget, "GENERAL")
	_, err = env.alignments.Submit(context.Background(), actor, budget.ID, general.ID, service.SubmitAlignedAmountRequest{
		BudgetItemID: general.Items[0].ID,
		Amount:       "50",
		Comment:      "Supplies top-up",
	})
	require.NoError(t, err)

	report, err := env.reports.GetBudgetReport(context.Background(), budget.ID)
	require.NoError(t, err)

	assert.Equal(t, budget.ID, report.BudgetID)
	assert.Equal(t, "APPROVED", report.Status)
	assert.Equal(t, 1, report.PendingAlignments)
	assert.Equal(t, "300", report.ProcurementSpend)
	assert.Equal(t, "120", report.LogisticsCommitted)

	byRole := map[string]service.CategoryUtilization{}
	for _, c := range report.Categories {
		byRole[c.Role] = c
	}
	assert.Equal(t, "700", byRole["PROCUREMENT"].Remaining)
	assert.Equal(t, "300", byRole["PROCUREMENT"].Committed)
	assert.Equal(t, "680", byRole["LOGISTICS"].Remaining)
	assert.Equal(t, "0", byRole["GENERAL"].Committed)
}

func TestReportService_GetBudgetReport_ScopedToBudget(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	other := seedBudget(t, env, actor)

	// Spend against the other budget only.
	procurement := newProcurement(t, env, other.ID)
	procItem := categoryByRole(t, other, "PROCUREMENT").Items[0]
	processed, err := env.procurements.ProcessRequest(context.Background(), actor, procurement.ID, service.ProcessRequestInput{
		Items: []service.ProcurementItemRequest{{ItemName: "Switch", Quantity: 1, UnitPrice: "250", BudgetItemID: procItem.ID}},
	})
	require.NoError(t, err)
	_, err = env.procurements.ReceiveItem(context.Background(), actor, procurement.ID, processed.Items[0].ID)
	require.NoError(t, err)

	sheet := newLogisticsSheet(t, env, other.ID)
	travelItem := categoryByRole(t, other, "LOGISTICS").Items[0]
	_, err = env.logistics.UpdateExpenseItem(context.Background(), actor, sheet.ID, "", service.ExpensePatch{
		BudgetItemID: travelItem.ID,
		Description:  "Fuel",
		Amount:       "90",
		Status:       "PAID",
	})
	require.NoError(t, err)

	report, err := env.reports.GetBudgetReport(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "0", report.ProcurementSpend)
	assert.Equal(t, "0", report.LogisticsCommitted)

	otherReport, err := env.reports.GetBudgetReport(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, "250", otherReport.ProcurementSpend)
	assert.Equal(t, "90", otherReport.LogisticsCommitted)
}
