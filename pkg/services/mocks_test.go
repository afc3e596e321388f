package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/grantsops/grants-engine/pkg/audit"
	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
	"github.com/grantsops/grants-engine/pkg/repositories"
)

var errTransient = errors.New("connection reset")

// fakeTxRunner stands in for the real transaction runner: it injects a scope
// with a fresh transaction id and runs the function inline.
type fakeTxRunner struct {
	txIDs []uuid.UUID
}

func (r *fakeTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := database.GetTxScope(ctx); ok {
		return fn(ctx)
	}
	scope := &database.TxScope{TxID: uuid.New()}
	r.txIDs = append(r.txIDs, scope.TxID)
	return fn(database.SetTxScope(ctx, scope))
}

type mockChangeRequestRepo struct {
	requests  map[uuid.UUID]*models.ChangeRequest
	created   []*models.ChangeRequest
	createErr error
}

func newMockChangeRequestRepo() *mockChangeRequestRepo {
	return &mockChangeRequestRepo{requests: make(map[uuid.UUID]*models.ChangeRequest)}
}

func (m *mockChangeRequestRepo) Create(ctx context.Context, cr *models.ChangeRequest) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.requests[cr.ID] = cr
	m.created = append(m.created, cr)
	return nil
}

func (m *mockChangeRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error) {
	return m.requests[id], nil
}

func (m *mockChangeRequestRepo) UpdateReview(ctx context.Context, cr *models.ChangeRequest) error {
	m.requests[cr.ID] = cr
	return nil
}

func (m *mockChangeRequestRepo) ListInReviewForReviewer(ctx context.Context, userID int64, limit, offset int) ([]*models.ChangeRequest, error) {
	var out []*models.ChangeRequest
	for _, cr := range m.created {
		if cr.Status == models.ChangeRequestInReview {
			out = append(out, cr)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockChangeRequestRepo) ListInReviewByBudgetLineItem(ctx context.Context, bliID int64) ([]*models.ChangeRequest, error) {
	var out []*models.ChangeRequest
	for _, cr := range m.created {
		if cr.Status == models.ChangeRequestInReview && cr.BudgetLineItemID != nil && *cr.BudgetLineItemID == bliID {
			out = append(out, cr)
		}
	}
	return out, nil
}

var _ repositories.ChangeRequestRepository = (*mockChangeRequestRepo)(nil)

type mockBudgetLineItemRepo struct {
	items     map[int64]*models.BudgetLineItem
	crs       *mockChangeRequestRepo
	updated   []*models.BudgetLineItem
	deleted   []int64
	nextID    int64
	updateErr error
}

func newMockBudgetLineItemRepo(crs *mockChangeRequestRepo) *mockBudgetLineItemRepo {
	return &mockBudgetLineItemRepo{items: make(map[int64]*models.BudgetLineItem), crs: crs, nextID: 100}
}

func (m *mockBudgetLineItemRepo) Create(ctx context.Context, bli *models.BudgetLineItem) error {
	m.nextID++
	bli.ID = m.nextID
	m.items[bli.ID] = bli.Clone()
	return nil
}

func (m *mockBudgetLineItemRepo) GetByID(ctx context.Context, id int64) (*models.BudgetLineItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	clone := item.Clone()
	clone.ChangeRequestsInReview, _ = m.crs.ListInReviewByBudgetLineItem(ctx, id)
	return clone, nil
}

func (m *mockBudgetLineItemRepo) List(ctx context.Context, filter repositories.BudgetLineItemFilter) ([]*models.BudgetLineItem, error) {
	var out []*models.BudgetLineItem
	for _, item := range m.items {
		out = append(out, item.Clone())
	}
	return out, nil
}

func (m *mockBudgetLineItemRepo) Update(ctx context.Context, bli *models.BudgetLineItem) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.items[bli.ID] = bli.Clone()
	m.updated = append(m.updated, bli.Clone())
	return nil
}

func (m *mockBudgetLineItemRepo) Delete(ctx context.Context, id int64) error {
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

var _ repositories.BudgetLineItemRepository = (*mockBudgetLineItemRepo)(nil)

type mockCANRepo struct {
	cans          map[int64]*models.CAN
	divisionByCAN map[int64]int64
}

func newMockCANRepo() *mockCANRepo {
	return &mockCANRepo{cans: make(map[int64]*models.CAN), divisionByCAN: make(map[int64]int64)}
}

func (m *mockCANRepo) Create(ctx context.Context, can *models.CAN) error {
	m.cans[can.ID] = can
	return nil
}

func (m *mockCANRepo) GetByID(ctx context.Context, id int64) (*models.CAN, error) {
	return m.cans[id], nil
}

func (m *mockCANRepo) ManagingDivisionID(ctx context.Context, canID int64) (*int64, error) {
	if id, ok := m.divisionByCAN[canID]; ok {
		return &id, nil
	}
	return nil, nil
}

var _ repositories.CANRepository = (*mockCANRepo)(nil)

type mockAgreementRepo struct {
	agreements map[int64]*models.Agreement
}

func newMockAgreementRepo() *mockAgreementRepo {
	return &mockAgreementRepo{agreements: make(map[int64]*models.Agreement)}
}

func (m *mockAgreementRepo) Create(ctx context.Context, a *models.Agreement) error {
	if a.ID == 0 {
		a.ID = int64(len(m.agreements) + 1)
	}
	m.agreements[a.ID] = a
	return nil
}

func (m *mockAgreementRepo) GetByID(ctx context.Context, id int64) (*models.Agreement, error) {
	return m.agreements[id], nil
}

func (m *mockAgreementRepo) Update(ctx context.Context, a *models.Agreement) error {
	m.agreements[a.ID] = a
	return nil
}

func (m *mockAgreementRepo) Exists(ctx context.Context, id int64) (bool, error) {
	_, ok := m.agreements[id]
	return ok, nil
}

func (m *mockAgreementRepo) SetTeamMembers(ctx context.Context, agreementID int64, userIDs []int64) error {
	return nil
}

var _ repositories.AgreementRepository = (*mockAgreementRepo)(nil)

type mockServicesComponentRepo struct {
	components map[int64]*models.ServicesComponent
}

func newMockServicesComponentRepo() *mockServicesComponentRepo {
	return &mockServicesComponentRepo{components: make(map[int64]*models.ServicesComponent)}
}

func (m *mockServicesComponentRepo) Create(ctx context.Context, sc *models.ServicesComponent) error {
	m.components[sc.ID] = sc
	return nil
}

func (m *mockServicesComponentRepo) GetByID(ctx context.Context, id int64) (*models.ServicesComponent, error) {
	return m.components[id], nil
}

func (m *mockServicesComponentRepo) ListByAgreement(ctx context.Context, agreementID int64) ([]*models.ServicesComponent, error) {
	return nil, nil
}

var _ repositories.ServicesComponentRepository = (*mockServicesComponentRepo)(nil)

type mockDivisionRepo struct {
	// reviewers maps division id to the users allowed to review for it.
	reviewers map[int64]map[int64]bool
}

func newMockDivisionRepo() *mockDivisionRepo {
	return &mockDivisionRepo{reviewers: make(map[int64]map[int64]bool)}
}

func (m *mockDivisionRepo) allow(divisionID, userID int64) {
	if m.reviewers[divisionID] == nil {
		m.reviewers[divisionID] = make(map[int64]bool)
	}
	m.reviewers[divisionID][userID] = true
}

func (m *mockDivisionRepo) CreateDivision(ctx context.Context, d *models.Division) error { return nil }

func (m *mockDivisionRepo) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	return nil
}

func (m *mockDivisionRepo) GetDivisionByID(ctx context.Context, id int64) (*models.Division, error) {
	return nil, nil
}

func (m *mockDivisionRepo) IsDirectorOrDeputy(ctx context.Context, userID, divisionID int64) (bool, error) {
	return m.reviewers[divisionID][userID], nil
}

var _ repositories.DivisionRepository = (*mockDivisionRepo)(nil)

type mockUserRepo struct {
	users map[int64]*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*models.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, u *models.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) GetFullNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			names[id] = u.FullName
		}
	}
	return names, nil
}

var _ repositories.UserRepository = (*mockUserRepo)(nil)

// auditCall captures one recorded audit event for assertions.
type auditCall struct {
	event  string
	before *audit.Snapshot
	after  *audit.Snapshot
	err    error
}

type mockAuditService struct {
	calls []auditCall
}

func (m *mockAuditService) RecordCreate(ctx context.Context, snap *audit.Snapshot) error {
	m.calls = append(m.calls, auditCall{event: "NEW", after: snap})
	return nil
}

func (m *mockAuditService) RecordUpdate(ctx context.Context, before, after *audit.Snapshot) error {
	if len(audit.Diff(before, after, false).Changes) == 0 {
		return nil
	}
	m.calls = append(m.calls, auditCall{event: "UPDATED", before: before, after: after})
	return nil
}

func (m *mockAuditService) RecordDelete(ctx context.Context, snap *audit.Snapshot) error {
	m.calls = append(m.calls, auditCall{event: "DELETED", after: snap})
	return nil
}

func (m *mockAuditService) RecordInReview(ctx context.Context, snap *audit.Snapshot) error {
	m.calls = append(m.calls, auditCall{event: "IN_REVIEW", after: snap})
	return nil
}

func (m *mockAuditService) RecordError(ctx context.Context, snap *audit.Snapshot, cause error) {
	m.calls = append(m.calls, auditCall{event: "ERROR", after: snap, err: cause})
}

func (m *mockAuditService) byEvent(event string) []auditCall {
	var out []auditCall
	for _, c := range m.calls {
		if c.event == event {
			out = append(out, c)
		}
	}
	return out
}

var _ AuditService = (*mockAuditService)(nil)

type mockAuditRecordRepo struct {
	records       []*models.AuditRecord
	isolated      []*models.AuditRecord
	isolatedFails int
}

func (m *mockAuditRecordRepo) Create(ctx context.Context, record *models.AuditRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *mockAuditRecordRepo) CreateIsolated(ctx context.Context, record *models.AuditRecord) error {
	if m.isolatedFails > 0 {
		m.isolatedFails--
		return errTransient
	}
	m.isolated = append(m.isolated, record)
	return nil
}

func (m *mockAuditRecordRepo) ListByAgreement(ctx context.Context, agreementID int64, limit, offset int) ([]*models.AuditRecord, error) {
	return m.records, nil
}

func (m *mockAuditRecordRepo) ListByClassRowKey(ctx context.Context, className, rowKey string) ([]*models.AuditRecord, error) {
	var out []*models.AuditRecord
	for _, r := range m.records {
		if r.ClassName == className && r.RowKey == rowKey {
			out = append(out, r)
		}
	}
	return out, nil
}

var _ repositories.AuditRecordRepository = (*mockAuditRecordRepo)(nil)
