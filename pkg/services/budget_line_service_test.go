package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/apperrors"
	"github.com/grantsops/grants-engine/pkg/audit"
	"github.com/grantsops/grants-engine/pkg/auth"
	"github.com/grantsops/grants-engine/pkg/models"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func date(s string) *models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func ptr[T any](v T) *T { return &v }

type bliFixture struct {
	svc    BudgetLineItemService
	repo   *mockBudgetLineItemRepo
	crs    *mockChangeRequestRepo
	cans   *mockCANRepo
	agrs   *mockAgreementRepo
	audits *mockAuditService
}

func newBLIFixture(t *testing.T) *bliFixture {
	t.Helper()

	crs := newMockChangeRequestRepo()
	repo := newMockBudgetLineItemRepo(crs)
	cans := newMockCANRepo()
	agrs := newMockAgreementRepo()
	audits := &mockAuditService{}

	_ = agrs.Create(context.Background(), &models.Agreement{ID: 3, Name: "Imaging modernization"})
	_ = cans.Create(context.Background(), &models.CAN{ID: 1, Number: "G99XXX1"})
	_ = cans.Create(context.Background(), &models.CAN{ID: 2, Number: "G99XXX2"})
	cans.divisionByCAN[1] = 6
	cans.divisionByCAN[2] = 6

	svc := NewBudgetLineItemService(
		&fakeTxRunner{},
		repo, crs, cans, agrs, newMockServicesComponentRepo(),
		audits,
		audit.NewSecurityAuditor(zap.NewNop()),
		zap.NewNop(),
	)
	return &bliFixture{svc: svc, repo: repo, crs: crs, cans: cans, agrs: agrs, audits: audits}
}

func (f *bliFixture) seedPlanned() *models.BudgetLineItem {
	bli := &models.BudgetLineItem{
		ID:              15,
		AgreementID:     ptr(int64(3)),
		CANID:           ptr(int64(1)),
		LineDescription: "x-ray machine",
		Amount:          dec("111.11"),
		Status:          models.StatusPlanned,
	}
	f.repo.items[15] = bli
	return bli
}

func actorCtx() context.Context {
	return auth.SetActor(context.Background(), 42)
}

func TestCreateDefaultsToDraft(t *testing.T) {
	f := newBLIFixture(t)

	created, err := f.svc.Create(actorCtx(), &models.BudgetLineItem{
		AgreementID: ptr(int64(3)),
		Amount:      dec("50.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusDraft, created.Status)
	assert.Equal(t, int64(42), *created.CreatedBy)
	require.Len(t, f.audits.byEvent("NEW"), 1)
	assert.Equal(t, "BudgetLineItem", f.audits.byEvent("NEW")[0].after.ClassName)
}

func TestCreateRejectsBadValues(t *testing.T) {
	f := newBLIFixture(t)

	_, err := f.svc.Create(actorCtx(), &models.BudgetLineItem{
		Status: "CANCELLED",
		Amount: dec("-5"),
		CANID:  ptr(int64(99)),
	})

	ve, ok := apperrors.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "status")
	assert.Contains(t, ve.Fields, "amount")
	assert.Contains(t, ve.Fields, "can_id")
	assert.Empty(t, f.audits.calls)
}

func TestUpdateDraftAppliesDirectly(t *testing.T) {
	f := newBLIFixture(t)
	f.repo.items[10] = &models.BudgetLineItem{
		ID:          10,
		AgreementID: ptr(int64(3)),
		Amount:      dec("100.00"),
		Status:      models.StatusDraft,
	}

	result, err := f.svc.Update(actorCtx(), 10, &BudgetLineItemPatch{Amount: dec("250.00")}, false)
	require.NoError(t, err)

	assert.False(t, result.Pending())
	assert.True(t, result.BudgetLineItem.Amount.Equal(decimal.RequireFromString("250.00")))
	assert.Empty(t, f.crs.created, "draft edits never stage change requests")
	assert.Len(t, f.audits.byEvent("UPDATED"), 1)
}

func TestUpdateDraftNoOpWritesNothing(t *testing.T) {
	f := newBLIFixture(t)
	f.repo.items[10] = &models.BudgetLineItem{
		ID:     10,
		Amount: dec("100.00"),
		Status: models.StatusDraft,
	}

	result, err := f.svc.Update(actorCtx(), 10, &BudgetLineItemPatch{Amount: dec("100.00")}, false)
	require.NoError(t, err)

	assert.False(t, result.Pending())
	assert.Empty(t, f.repo.updated)
	assert.Empty(t, f.audits.calls, "a no-op save leaves no audit trail")
}

// The core staged-change scenario: a PATCH touching three budget fields on a
// PLANNED item produces three independent change requests and leaves the item
// untouched.
func TestUpdatePlannedStagesBudgetFields(t *testing.T) {
	f := newBLIFixture(t)
	f.seedPlanned()

	result, err := f.svc.Update(actorCtx(), 15, &BudgetLineItemPatch{
		Amount:     dec("222.22"),
		CANID:      ptr(int64(2)),
		DateNeeded: date("2032-02-02"),
	}, false)
	require.NoError(t, err)

	assert.True(t, result.Pending())
	require.Len(t, result.ChangeRequests, 3)

	// One request per field, in allow-list order.
	assert.Equal(t, map[string]any{"amount": 222.22}, result.ChangeRequests[0].RequestedChangeData)
	assert.Equal(t, map[string]any{"can_id": int64(2)}, result.ChangeRequests[1].RequestedChangeData)
	assert.Equal(t, map[string]any{"date_needed": "2032-02-02"}, result.ChangeRequests[2].RequestedChangeData)

	for _, cr := range result.ChangeRequests {
		assert.Equal(t, models.TypeBudgetLineItemChangeRequest, cr.Type)
		assert.Equal(t, models.ChangeRequestInReview, cr.Status)
		assert.Equal(t, int64(15), *cr.BudgetLineItemID)
		assert.Equal(t, int64(3), *cr.AgreementID)
		assert.Equal(t, int64(6), *cr.ManagingDivisionID)
		assert.Equal(t, int64(42), *cr.CreatedBy)
	}

	amountDiff := result.ChangeRequests[0].RequestedChangeDiff["amount"].(map[string]any)
	assert.Equal(t, 222.22, amountDiff["new"])
	assert.Equal(t, 111.11, amountDiff["old"])

	// The line item itself did not move.
	stored := f.repo.items[15]
	assert.True(t, stored.Amount.Equal(decimal.RequireFromString("111.11")))
	assert.Equal(t, int64(1), *stored.CANID)
	assert.Nil(t, stored.DateNeeded)
	assert.True(t, result.BudgetLineItem.InReview())

	assert.Len(t, f.audits.byEvent("IN_REVIEW"), 3)
	assert.Empty(t, f.audits.byEvent("UPDATED"), "no direct change happened")
}

func TestUpdatePlannedAppliesNonBudgetFieldsDirectly(t *testing.T) {
	f := newBLIFixture(t)
	f.seedPlanned()

	result, err := f.svc.Update(actorCtx(), 15, &BudgetLineItemPatch{
		Comments: ptr("now urgent"),
		Amount:   dec("222.22"),
	}, false)
	require.NoError(t, err)

	assert.True(t, result.Pending())
	require.Len(t, result.ChangeRequests, 1)

	stored := f.repo.items[15]
	assert.Equal(t, "now urgent", stored.Comments, "non-budget fields bypass review")
	assert.True(t, stored.Amount.Equal(decimal.RequireFromString("111.11")))
	assert.Len(t, f.audits.byEvent("UPDATED"), 1)
	assert.Len(t, f.audits.byEvent("IN_REVIEW"), 1)
}

func TestUpdateLockedWhileInReview(t *testing.T) {
	f := newBLIFixture(t)
	bli := f.seedPlanned()

	cr, err := models.NewBudgetLineItemChangeRequest(bli.ID, bli.AgreementID, "amount", 222.22, 111.11)
	require.NoError(t, err)
	require.NoError(t, f.crs.Create(context.Background(), cr))

	_, err = f.svc.Update(actorCtx(), 15, &BudgetLineItemPatch{Comments: ptr("nope")}, false)
	assert.ErrorIs(t, err, apperrors.ErrEditLocked)
}

func TestUpdateNotFound(t *testing.T) {
	f := newBLIFixture(t)

	_, err := f.svc.Update(actorCtx(), 999, &BudgetLineItemPatch{}, false)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateFullReplaceRequiresAgreement(t *testing.T) {
	f := newBLIFixture(t)
	f.seedPlanned()

	_, err := f.svc.Update(actorCtx(), 15, &BudgetLineItemPatch{Amount: dec("222.22")}, true)
	ve, ok := apperrors.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "agreement_id")
}

func TestUpdateStagingRequiresAgreement(t *testing.T) {
	f := newBLIFixture(t)
	f.repo.items[20] = &models.BudgetLineItem{
		ID:     20,
		CANID:  ptr(int64(1)),
		Amount: dec("100.00"),
		Status: models.StatusPlanned,
	}

	_, err := f.svc.Update(actorCtx(), 20, &BudgetLineItemPatch{Amount: dec("200.00")}, false)
	ve, ok := apperrors.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "agreement_id")
	assert.Empty(t, f.crs.created)
}

func TestDeleteDraftOnly(t *testing.T) {
	f := newBLIFixture(t)
	f.repo.items[10] = &models.BudgetLineItem{ID: 10, Status: models.StatusDraft}
	f.seedPlanned()

	require.NoError(t, f.svc.Delete(actorCtx(), 10))
	assert.Equal(t, []int64{10}, f.repo.deleted)
	assert.Len(t, f.audits.byEvent("DELETED"), 1)

	err := f.svc.Delete(actorCtx(), 15)
	assert.ErrorIs(t, err, apperrors.ErrEditLocked)
}
