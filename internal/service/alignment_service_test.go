package service_test

import (
	"context"
	"errors"
	"testing"

	"finops-backend/internal/repository"
	"finops-backend/internal/service"
	"finops-backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitProposal(t *testing.T, env *testEnv, budget service.BudgetResponse, amount string) (service.BudgetCategoryResponse, service.AlignedAmountResponse) {
	t.Helper()
	general := categoryByRole(t, budget, "GENERAL")

	proposal, err := env.alignments.Submit(context.Background(), uuid.NewString(), budget.ID, general.ID, service.SubmitAlignedAmountRequest{
		BudgetItemID: general.Items[0].ID,
		Amount:       amount,
		Personnel:    "Finance team",
		Comment:      "Extra allocation for supplies",
	})
	require.NoError(t, err)
	return general, proposal
}

func TestAlignmentService_Submit_PendingAndLedgerUntouched(t *testing.T) {
	env := newTestEnv(t)
	budget := seedBudget(t, env, uuid.NewString())

	_, proposal := submitProposal(t, env, budget, "200")
	assert.Equal(t, "PENDING", proposal.Status)

	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	general := categoryByRole(t, loaded, "GENERAL")
	assert.Equal(t, "500", general.Items[0].Amount)
	assert.Equal(t, "500", general.Items[0].BudgetedItemAmount)
	require.Len(t, general.AlignedAmounts, 1)
}

func TestAlignmentService_Submit_RequiresComment(t *testing.T) {
	env := newTestEnv(t)
	budget := seedBudget(t, env, uuid.NewString())
	general := categoryByRole(t, budget, "GENERAL")

	_, err := env.alignments.Submit(context.Background(), "", budget.ID, general.ID, service.SubmitAlignedAmountRequest{
		BudgetItemID: general.Items[0].ID,
		Amount:       "100",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestAlignmentService_Submit_RejectsZeroAmount(t *testing.T) {
	env := newTestEnv(t)
	budget := seedBudget(t, env, uuid.NewString())
	general := categoryByRole(t, budget, "GENERAL")

	_, err := env.alignments.Submit(context.Background(), "", budget.ID, general.ID, service.SubmitAlignedAmountRequest{
		BudgetItemID: general.Items[0].ID,
		Amount:       "0",
		Comment:      "zero",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestAlignmentService_Approve_CreditsItemExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	approver := uuid.NewString()
	budget := seedBudget(t, env, uuid.NewString())
	general, proposal := submitProposal(t, env, budget, "200")

	approved, err := env.alignments.Approve(context.Background(), approver, budget.ID, general.ID, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", approved.Status)
	require.Len(t, approved.Approvals, 1)
	assert.Equal(t, approver, approved.Approvals[0].ApprovedBy)

	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	got := categoryByRole(t, loaded, "GENERAL")
	assert.Equal(t, "700", got.Items[0].Amount)
	assert.Equal(t, "700", got.Items[0].BudgetedItemAmount)
	assert.Equal(t, "700", got.Amount)

	// A second approval is a conflict and must not double-credit.
	_, err = env.alignments.Approve(context.Background(), approver, budget.ID, general.ID, proposal.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	loaded, err = env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "700", categoryByRole(t, loaded, "GENERAL").Items[0].Amount)
}

func TestAlignmentService_Approve_RequiresActor(t *testing.T) {
	env := newTestEnv(t)
	budget := seedBudget(t, env, uuid.NewString())
	general, proposal := submitProposal(t, env, budget, "200")

	_, err := env.alignments.Approve(context.Background(), "", budget.ID, general.ID, proposal.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestAlignmentService_Reject_StoresReasonNoLedgerChange(t *testing.T) {
	env := newTestEnv(t)
	budget := seedBudget(t, env, uuid.NewString())
	general, proposal := submitProposal(t, env, budget, "200")

	rejected, err := env.alignments.Reject(context.Background(), uuid.NewString(), budget.ID, general.ID, proposal.ID, "insufficient justification")
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", rejected.Status)
	assert.Equal(t, "insufficient justification", rejected.Comment)

	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "500", categoryByRole(t, loaded, "GENERAL").Items[0].Amount)

	// Terminal status cannot be approved afterwards.
	_, err = env.alignments.Approve(context.Background(), uuid.NewString(), budget.ID, general.ID, proposal.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestAlignmentService_Reject_RequiresReason(t *testing.T) {
	env := newTestEnv(t)
	budget := seedBudget(t, env, uuid.NewString())
	general, proposal := submitProposal(t, env, budget, "200")

	_, err := env.alignments.Reject(context.Background(), "", budget.ID, general.ID, proposal.ID, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestAlignmentService_Remove_NeverReversesAppliedApproval(t *testing.T) {
	env := newTestEnv(t)
	approver := uuid.NewString()
	budget := seedBudget(t, env, uuid.NewString())
	general, proposal := submitProposal(t, env, budget, "150")

	_, err := env.alignments.Approve(context.Background(), approver, budget.ID, general.ID, proposal.ID)
	require.NoError(t, err)

	require.NoError(t, env.alignments.Remove(context.Background(), approver, budget.ID, general.ID, proposal.ID))

	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	got := categoryByRole(t, loaded, "GENERAL")
	assert.Empty(t, got.AlignedAmounts)
	assert.Equal(t, "650", got.Items[0].Amount) // credit stands
}

func TestAlignmentService_Approve_WritesAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	approver := uuid.NewString()
	budget := seedBudget(t, env, uuid.NewString())
	general, proposal := submitProposal(t, env, budget, "100")

	_, err := env.alignments.Approve(context.Background(), approver, budget.ID, general.ID, proposal.ID)
	require.NoError(t, err)

	logs, total, err := env.audits.GetAuditLogs(context.Background(), repository.AuditFilter{
		Action: "APPROVE_ALIGNED_AMOUNT",
		Page:   1,
		Limit:  10,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, proposal.ID, logs[0].EntityID)
	assert.Equal(t, approver, logs[0].UserID)
}
