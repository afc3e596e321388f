package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/apperrors"
	"github.com/grantsops/grants-engine/pkg/audit"
	"github.com/grantsops/grants-engine/pkg/auth"
	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
	"github.com/grantsops/grants-engine/pkg/repositories"
)

// ChangeReviewService resolves staged change requests. Only a director or
// deputy director of the request's managing division may review it, each
// request is reviewed exactly once, and an approval applies the requested
// values in the same unit of work that records the verdict.
type ChangeReviewService interface {
	// Review approves or rejects a pending change request. Returns
	// apperrors.ErrAlreadyReviewed when the request already has a verdict and
	// apperrors.ErrReviewForbidden when the acting user may not review it.
	Review(ctx context.Context, id uuid.UUID, approve bool) (*models.ChangeRequest, error)

	// ListForReviewer returns a page of the pending change requests the acting
	// user may review, oldest first.
	ListForReviewer(ctx context.Context, limit, offset int) ([]*models.ChangeRequest, error)
}

type changeReviewService struct {
	db           database.TxRunner
	crRepo       repositories.ChangeRequestRepository
	bliRepo      repositories.BudgetLineItemRepository
	canRepo      repositories.CANRepository
	divisionRepo repositories.DivisionRepository
	audits       AuditService
	security     *audit.SecurityAuditor
	logger       *zap.Logger
}

// NewChangeReviewService creates a new ChangeReviewService.
func NewChangeReviewService(
	db database.TxRunner,
	crRepo repositories.ChangeRequestRepository,
	bliRepo repositories.BudgetLineItemRepository,
	canRepo repositories.CANRepository,
	divisionRepo repositories.DivisionRepository,
	audits AuditService,
	security *audit.SecurityAuditor,
	logger *zap.Logger,
) ChangeReviewService {
	return &changeReviewService{
		db:           db,
		crRepo:       crRepo,
		bliRepo:      bliRepo,
		canRepo:      canRepo,
		divisionRepo: divisionRepo,
		audits:       audits,
		security:     security,
		logger:       logger.Named("change_review"),
	}
}

var _ ChangeReviewService = (*changeReviewService)(nil)

func (s *changeReviewService) Review(ctx context.Context, id uuid.UUID, approve bool) (*models.ChangeRequest, error) {
	cr, err := s.crRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cr == nil {
		return nil, fmt.Errorf("change request %s: %w", id, apperrors.ErrNotFound)
	}
	if cr.Status.Terminal() {
		return nil, fmt.Errorf("change request %s: %w", id, apperrors.ErrAlreadyReviewed)
	}

	reviewer, err := s.authorizeReviewer(ctx, cr)
	if err != nil {
		return nil, err
	}

	before := cr.Clone()
	now := time.Now().UTC()
	cr.Status = models.ChangeRequestRejected
	if approve {
		cr.Status = models.ChangeRequestApproved
	}
	cr.ReviewedByID = &reviewer
	cr.ReviewedOn = &now

	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.crRepo.UpdateReview(ctx, cr); err != nil {
			return err
		}
		if err := s.audits.RecordUpdate(ctx, before.AuditSnapshot(), cr.AuditSnapshot()); err != nil {
			return err
		}
		if approve {
			return s.applyApproved(ctx, cr)
		}
		return nil
	})
	if err != nil {
		if database.IsPersistenceError(err) {
			s.audits.RecordError(ctx, cr.AuditSnapshot(), err)
		}
		return nil, err
	}

	s.logger.Info("change request reviewed",
		zap.String("change_request_id", cr.ID.String()),
		zap.String("status", string(cr.Status)),
		zap.Int64("reviewed_by", reviewer),
	)
	return cr, nil
}

func (s *changeReviewService) ListForReviewer(ctx context.Context, limit, offset int) ([]*models.ChangeRequest, error) {
	actor := auth.ActorID(ctx)
	if actor == nil {
		return nil, apperrors.ErrReviewForbidden
	}
	return s.crRepo.ListInReviewForReviewer(ctx, *actor, limit, offset)
}

// authorizeReviewer enforces the review gate: the acting user must direct (or
// deputy direct) the request's managing division. Denials feed the security
// trail.
func (s *changeReviewService) authorizeReviewer(ctx context.Context, cr *models.ChangeRequest) (int64, error) {
	actor := auth.ActorID(ctx)
	if actor == nil || cr.ManagingDivisionID == nil {
		s.security.LogReviewDenied(ctx, cr.ID.String(), cr.ManagingDivisionID)
		return 0, fmt.Errorf("change request %s: %w", cr.ID, apperrors.ErrReviewForbidden)
	}

	allowed, err := s.divisionRepo.IsDirectorOrDeputy(ctx, *actor, *cr.ManagingDivisionID)
	if err != nil {
		return 0, err
	}
	if !allowed {
		s.security.LogReviewDenied(ctx, cr.ID.String(), cr.ManagingDivisionID)
		return 0, fmt.Errorf("change request %s: %w", cr.ID, apperrors.ErrReviewForbidden)
	}
	return *actor, nil
}

// applyApproved writes the approved values onto the target entity. The values
// are re-validated at apply time: the world may have changed since staging.
func (s *changeReviewService) applyApproved(ctx context.Context, cr *models.ChangeRequest) error {
	if cr.Type != models.TypeBudgetLineItemChangeRequest || cr.BudgetLineItemID == nil {
		return nil
	}

	bli, err := s.bliRepo.GetByID(ctx, *cr.BudgetLineItemID)
	if err != nil {
		return err
	}
	if bli == nil {
		return fmt.Errorf("budget line item %d: %w", *cr.BudgetLineItemID, apperrors.ErrNotFound)
	}

	before := bli.Clone()
	if err := applyBudgetChangeData(bli, cr.RequestedChangeData); err != nil {
		return err
	}
	if err := s.validateApplied(ctx, bli); err != nil {
		return err
	}

	if err := s.bliRepo.Update(ctx, bli); err != nil {
		return err
	}
	return s.audits.RecordUpdate(ctx, before.AuditSnapshot(), bli.AuditSnapshot())
}

func (s *changeReviewService) validateApplied(ctx context.Context, bli *models.BudgetLineItem) error {
	ve := apperrors.NewValidationError()
	if bli.Amount != nil && !bli.Amount.IsPositive() {
		ve.Add("amount", "amount must be greater than zero")
	}
	if bli.CANID != nil {
		can, err := s.canRepo.GetByID(ctx, *bli.CANID)
		if err != nil {
			return err
		}
		if can == nil {
			ve.Add("can_id", fmt.Sprintf("CAN %d does not exist", *bli.CANID))
		}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// applyBudgetChangeData maps stored JSON values back onto domain fields.
// Numbers arrive as float64 and dates as ISO strings after the JSONB round
// trip.
func applyBudgetChangeData(bli *models.BudgetLineItem, data map[string]any) error {
	for field, value := range data {
		switch field {
		case "amount":
			d, err := toDecimalValue(value)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			bli.Amount = d
		case "proc_shop_fee_percentage":
			d, err := toDecimalValue(value)
			if err != nil {
				return fmt.Errorf("proc_shop_fee_percentage: %w", err)
			}
			bli.ProcShopFeePercentage = d
		case "can_id":
			id, err := toInt64Value(value)
			if err != nil {
				return fmt.Errorf("can_id: %w", err)
			}
			bli.CANID = id
		case "date_needed":
			if value == nil {
				bli.DateNeeded = nil
				continue
			}
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("date_needed: unexpected type %T", value)
			}
			date, err := models.ParseDate(s)
			if err != nil {
				return err
			}
			bli.DateNeeded = &date
		default:
			return fmt.Errorf("field %q is not a budget field", field)
		}
	}
	return nil
}

func toDecimalValue(value any) (*decimal.Decimal, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		d := decimal.NewFromFloat(v)
		return &d, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		return &d, nil
	}
	return nil, fmt.Errorf("unexpected type %T", value)
}

func toInt64Value(value any) (*int64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		id := int64(v)
		return &id, nil
	case int64:
		return &v, nil
	}
	return nil, fmt.Errorf("unexpected type %T", value)
}
