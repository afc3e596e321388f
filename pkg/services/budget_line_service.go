package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/apperrors"
	"github.com/grantsops/grants-engine/pkg/audit"
	"github.com/grantsops/grants-engine/pkg/auth"
	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
	"github.com/grantsops/grants-engine/pkg/repositories"
)

// BudgetLineItemPatch carries the fields of an update request. Nil means "not
// provided" on a partial update and "clear" on a full replace.
type BudgetLineItemPatch struct {
	AgreementID           *int64
	CANID                 *int64
	ServicesComponentID   *int64
	LineDescription       *string
	Comments              *string
	Amount                *decimal.Decimal
	ProcShopFeePercentage *decimal.Decimal
	DateNeeded            *models.Date
}

// UpdateResult is the outcome of an update: either the changes were applied
// directly, or some were staged as change requests and the line item is now
// under review.
type UpdateResult struct {
	BudgetLineItem *models.BudgetLineItem
	ChangeRequests []*models.ChangeRequest
}

// Pending reports whether any of the requested changes await review.
func (r *UpdateResult) Pending() bool {
	return len(r.ChangeRequests) > 0
}

// BudgetLineItemService owns the budget line item lifecycle, including the
// staged-change workflow: edits to funding fields on items past DRAFT become
// per-field change requests instead of direct writes.
type BudgetLineItemService interface {
	// Create inserts a new line item. Status defaults to DRAFT.
	Create(ctx context.Context, bli *models.BudgetLineItem) (*models.BudgetLineItem, error)

	// Get returns a line item with its pending change requests.
	// Returns apperrors.ErrNotFound when it does not exist.
	Get(ctx context.Context, id int64) (*models.BudgetLineItem, error)

	// List returns line items matching the filter.
	List(ctx context.Context, filter repositories.BudgetLineItemFilter) ([]*models.BudgetLineItem, error)

	// Update edits a line item. full selects replace semantics (PUT) over
	// merge semantics (PATCH). DRAFT items are edited in place; on items past
	// DRAFT, budget-field changes are staged for review and everything else
	// applies immediately. Returns apperrors.ErrEditLocked when the item is
	// already under review.
	Update(ctx context.Context, id int64, patch *BudgetLineItemPatch, full bool) (*UpdateResult, error)

	// Delete removes a DRAFT line item. Items past DRAFT cannot be deleted.
	Delete(ctx context.Context, id int64) error
}

type budgetLineItemService struct {
	db       database.TxRunner
	repo     repositories.BudgetLineItemRepository
	crRepo   repositories.ChangeRequestRepository
	canRepo  repositories.CANRepository
	agrRepo  repositories.AgreementRepository
	scRepo   repositories.ServicesComponentRepository
	audits   AuditService
	security *audit.SecurityAuditor
	logger   *zap.Logger
}

// NewBudgetLineItemService creates a new BudgetLineItemService.
func NewBudgetLineItemService(
	db database.TxRunner,
	repo repositories.BudgetLineItemRepository,
	crRepo repositories.ChangeRequestRepository,
	canRepo repositories.CANRepository,
	agrRepo repositories.AgreementRepository,
	scRepo repositories.ServicesComponentRepository,
	audits AuditService,
	security *audit.SecurityAuditor,
	logger *zap.Logger,
) BudgetLineItemService {
	return &budgetLineItemService{
		db:       db,
		repo:     repo,
		crRepo:   crRepo,
		canRepo:  canRepo,
		agrRepo:  agrRepo,
		scRepo:   scRepo,
		audits:   audits,
		security: security,
		logger:   logger.Named("budget_line_items"),
	}
}

var _ BudgetLineItemService = (*budgetLineItemService)(nil)

func (s *budgetLineItemService) Create(ctx context.Context, bli *models.BudgetLineItem) (*models.BudgetLineItem, error) {
	if bli.Status == "" {
		bli.Status = models.StatusDraft
	}

	ve := apperrors.NewValidationError()
	if !bli.Status.Valid() {
		ve.Add("status", fmt.Sprintf("unknown status %q", bli.Status))
	}
	s.validateValues(ctx, &BudgetLineItemPatch{
		AgreementID:           bli.AgreementID,
		CANID:                 bli.CANID,
		ServicesComponentID:   bli.ServicesComponentID,
		Amount:                bli.Amount,
		ProcShopFeePercentage: bli.ProcShopFeePercentage,
	}, ve)
	if ve.HasErrors() {
		return nil, ve
	}

	s.screenFreeText(ctx, bli)
	bli.CreatedBy = auth.ActorID(ctx)

	err := s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, bli); err != nil {
			return err
		}
		return s.audits.RecordCreate(ctx, bli.AuditSnapshot())
	})
	if err != nil {
		s.recordFailure(ctx, bli.AuditSnapshot(), err)
		return nil, err
	}
	return bli, nil
}

func (s *budgetLineItemService) Get(ctx context.Context, id int64) (*models.BudgetLineItem, error) {
	bli, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bli == nil {
		return nil, fmt.Errorf("budget line item %d: %w", id, apperrors.ErrNotFound)
	}
	return bli, nil
}

func (s *budgetLineItemService) List(ctx context.Context, filter repositories.BudgetLineItemFilter) ([]*models.BudgetLineItem, error) {
	return s.repo.List(ctx, filter)
}

func (s *budgetLineItemService) Update(ctx context.Context, id int64, patch *BudgetLineItemPatch, full bool) (*UpdateResult, error) {
	bli, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ve := apperrors.NewValidationError()
	if full && patch.AgreementID == nil {
		ve.Add("agreement_id", "agreement_id is required")
	}
	s.validateValues(ctx, patch, ve)
	if ve.HasErrors() {
		return nil, ve
	}

	before := bli.Clone()
	next := applyPatch(before, patch, full)
	s.screenFreeText(ctx, next)

	if bli.Status == models.StatusDraft {
		return s.applyDirect(ctx, before, next)
	}

	if bli.InReview() {
		return nil, fmt.Errorf("budget line item %d: %w", id, apperrors.ErrEditLocked)
	}
	return s.stageForReview(ctx, before, next)
}

// applyDirect writes the edit in place. DRAFT items take every field without
// review.
func (s *budgetLineItemService) applyDirect(ctx context.Context, before, next *models.BudgetLineItem) (*UpdateResult, error) {
	d := audit.Diff(before.AuditSnapshot(), next.AuditSnapshot(), false)
	if len(d.Changes) == 0 {
		return &UpdateResult{BudgetLineItem: before}, nil
	}

	err := s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, next); err != nil {
			return err
		}
		return s.audits.RecordUpdate(ctx, before.AuditSnapshot(), next.AuditSnapshot())
	})
	if err != nil {
		s.recordFailure(ctx, next.AuditSnapshot(), err)
		return nil, err
	}
	return &UpdateResult{BudgetLineItem: next}, nil
}

// stageForReview splits the edit: budget fields become one change request
// each, everything else applies immediately. The whole split commits in one
// unit of work so the staged requests and the direct changes share a
// transaction id.
func (s *budgetLineItemService) stageForReview(ctx context.Context, before, next *models.BudgetLineItem) (*UpdateResult, error) {
	staged := stagedBudgetChanges(before, next)

	// Revert budget fields on the directly-applied copy; they only move once
	// a reviewer approves.
	direct := next.Clone()
	direct.Amount = before.Amount
	direct.CANID = before.CANID
	direct.DateNeeded = before.DateNeeded
	direct.ProcShopFeePercentage = before.ProcShopFeePercentage

	if len(staged) > 0 && before.AgreementID == nil {
		return nil, apperrors.NewValidationError().
			Add("agreement_id", "line item must belong to an agreement before budget changes can be reviewed")
	}

	var divisionID *int64
	if len(staged) > 0 {
		var err error
		divisionID, err = s.resolveManagingDivision(ctx, before, next)
		if err != nil {
			return nil, err
		}
	}

	directDiff := audit.Diff(before.AuditSnapshot(), direct.AuditSnapshot(), false)

	var requests []*models.ChangeRequest
	err := s.db.RunInTx(ctx, func(ctx context.Context) error {
		if len(directDiff.Changes) > 0 {
			if err := s.repo.Update(ctx, direct); err != nil {
				return err
			}
			if err := s.audits.RecordUpdate(ctx, before.AuditSnapshot(), direct.AuditSnapshot()); err != nil {
				return err
			}
		}

		for _, change := range staged {
			cr, err := models.NewBudgetLineItemChangeRequest(before.ID, before.AgreementID, change.field, change.newValue, change.oldValue)
			if err != nil {
				return err
			}
			cr.ManagingDivisionID = divisionID
			cr.CreatedBy = auth.ActorID(ctx)
			cr.RequestedChangeInfo = map[string]any{
				"target_class_name":   "BudgetLineItem",
				"target_display_name": before.DisplayName(),
			}
			if err := s.crRepo.Create(ctx, cr); err != nil {
				return err
			}
			if err := s.audits.RecordInReview(ctx, cr.AuditSnapshot()); err != nil {
				return err
			}
			requests = append(requests, cr)
		}
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, next.AuditSnapshot(), err)
		return nil, err
	}

	reloaded, err := s.Get(ctx, before.ID)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{BudgetLineItem: reloaded, ChangeRequests: requests}, nil
}

func (s *budgetLineItemService) Delete(ctx context.Context, id int64) error {
	bli, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if bli.Status != models.StatusDraft || bli.InReview() {
		return fmt.Errorf("budget line item %d: %w", id, apperrors.ErrEditLocked)
	}

	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.audits.RecordDelete(ctx, bli.AuditSnapshot())
	})
	if err != nil {
		s.recordFailure(ctx, bli.AuditSnapshot(), err)
		return err
	}
	return nil
}

// validateValues checks field values and referenced entities, accumulating
// failures so the caller sees every problem at once.
func (s *budgetLineItemService) validateValues(ctx context.Context, patch *BudgetLineItemPatch, ve *apperrors.ValidationError) {
	if patch.Amount != nil && !patch.Amount.IsPositive() {
		ve.Add("amount", "amount must be greater than zero")
	}
	if patch.ProcShopFeePercentage != nil {
		fee := *patch.ProcShopFeePercentage
		if fee.IsNegative() || fee.GreaterThan(decimal.NewFromInt(100)) {
			ve.Add("proc_shop_fee_percentage", "fee percentage must be between 0 and 100")
		}
	}
	if patch.AgreementID != nil {
		exists, err := s.agrRepo.Exists(ctx, *patch.AgreementID)
		if err == nil && !exists {
			ve.Add("agreement_id", fmt.Sprintf("agreement %d does not exist", *patch.AgreementID))
		}
	}
	if patch.CANID != nil {
		can, err := s.canRepo.GetByID(ctx, *patch.CANID)
		if err == nil && can == nil {
			ve.Add("can_id", fmt.Sprintf("CAN %d does not exist", *patch.CANID))
		}
	}
	if patch.ServicesComponentID != nil {
		sc, err := s.scRepo.GetByID(ctx, *patch.ServicesComponentID)
		if err == nil && sc == nil {
			ve.Add("services_component_id", fmt.Sprintf("services component %d does not exist", *patch.ServicesComponentID))
		}
	}
}

// screenFreeText runs the free-text fields through injection detection.
// Matches are logged for the security trail, never rejected: legitimate prose
// can trip the detector.
func (s *budgetLineItemService) screenFreeText(ctx context.Context, bli *models.BudgetLineItem) {
	for field, value := range map[string]string{
		"line_description": bli.LineDescription,
		"comments":         bli.Comments,
	} {
		if result := audit.CheckFieldForInjection(field, value); result != nil {
			s.security.LogInjectionAttempt(ctx, result)
		}
	}
}

// resolveManagingDivision walks CAN -> portfolio -> division to find who
// reviews this item's budget changes. The proposed CAN wins over the current
// one so a reassignment is reviewed by the receiving division.
func (s *budgetLineItemService) resolveManagingDivision(ctx context.Context, before, next *models.BudgetLineItem) (*int64, error) {
	canID := next.CANID
	if canID == nil {
		canID = before.CANID
	}
	if canID == nil {
		return nil, nil
	}
	return s.canRepo.ManagingDivisionID(ctx, *canID)
}

func (s *budgetLineItemService) recordFailure(ctx context.Context, snap *audit.Snapshot, err error) {
	if database.IsPersistenceError(err) {
		s.audits.RecordError(ctx, snap, err)
	}
}

// applyPatch produces the desired post-edit state. Full replace clears fields
// the patch leaves nil; merge keeps them.
func applyPatch(bli *models.BudgetLineItem, p *BudgetLineItemPatch, full bool) *models.BudgetLineItem {
	next := bli.Clone()
	if full {
		next.AgreementID = p.AgreementID
		next.CANID = p.CANID
		next.ServicesComponentID = p.ServicesComponentID
		next.Amount = p.Amount
		next.ProcShopFeePercentage = p.ProcShopFeePercentage
		next.DateNeeded = p.DateNeeded
		next.LineDescription = ""
		next.Comments = ""
		if p.LineDescription != nil {
			next.LineDescription = *p.LineDescription
		}
		if p.Comments != nil {
			next.Comments = *p.Comments
		}
		return next
	}

	if p.AgreementID != nil {
		next.AgreementID = p.AgreementID
	}
	if p.CANID != nil {
		next.CANID = p.CANID
	}
	if p.ServicesComponentID != nil {
		next.ServicesComponentID = p.ServicesComponentID
	}
	if p.LineDescription != nil {
		next.LineDescription = *p.LineDescription
	}
	if p.Comments != nil {
		next.Comments = *p.Comments
	}
	if p.Amount != nil {
		next.Amount = p.Amount
	}
	if p.ProcShopFeePercentage != nil {
		next.ProcShopFeePercentage = p.ProcShopFeePercentage
	}
	if p.DateNeeded != nil {
		next.DateNeeded = p.DateNeeded
	}
	return next
}

type stagedChange struct {
	field    string
	newValue any
	oldValue any
}

// stagedBudgetChanges lists the budget fields whose normalized values differ,
// in the allow-list's stable order.
func stagedBudgetChanges(before, next *models.BudgetLineItem) []stagedChange {
	beforeFields := before.AuditSnapshot().Fields
	nextFields := next.AuditSnapshot().Fields

	var staged []stagedChange
	for _, field := range models.BudgetFieldNames {
		oldValue := audit.NormalizeValue(beforeFields[field])
		newValue := audit.NormalizeValue(nextFields[field])
		if audit.ValuesEqual(oldValue, newValue) {
			continue
		}
		staged = append(staged, stagedChange{field: field, newValue: newValue, oldValue: oldValue})
	}
	return staged
}
