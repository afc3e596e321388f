package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
)

// ChangeRequestRepository provides data access for change requests.
type ChangeRequestRepository interface {
	// Create inserts a new change request.
	Create(ctx context.Context, cr *models.ChangeRequest) error

	// GetByID returns a change request by id, or nil when not found.
	GetByID(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error)

	// UpdateReview records the terminal review outcome.
	UpdateReview(ctx context.Context, cr *models.ChangeRequest) error

	// ListInReviewForReviewer returns a page of pending change requests the
	// user may review, oldest first. The user qualifies when they direct (or
	// deputy direct) the request's managing division.
	ListInReviewForReviewer(ctx context.Context, userID int64, limit, offset int) ([]*models.ChangeRequest, error)

	// ListInReviewByBudgetLineItem returns pending change requests targeting
	// the line item, oldest first.
	ListInReviewByBudgetLineItem(ctx context.Context, budgetLineItemID int64) ([]*models.ChangeRequest, error)
}

type changeRequestRepository struct {
	db *database.DB
}

// NewChangeRequestRepository creates a new ChangeRequestRepository.
func NewChangeRequestRepository(db *database.DB) ChangeRequestRepository {
	return &changeRequestRepository{db: db}
}

var _ ChangeRequestRepository = (*changeRequestRepository)(nil)

const changeRequestColumns = `
	id, type, status, requested_change_data, requested_change_diff, requested_change_info,
	agreement_id, budget_line_item_id, managing_division_id,
	created_by, created_on, reviewed_by_id, reviewed_on`

func (r *changeRequestRepository) Create(ctx context.Context, cr *models.ChangeRequest) error {
	query := `
		INSERT INTO change_requests
			(id, type, status, requested_change_data, requested_change_diff, requested_change_info,
			 agreement_id, budget_line_item_id, managing_division_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_on`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		cr.ID,
		cr.Type,
		cr.Status,
		cr.RequestedChangeData,
		cr.RequestedChangeDiff,
		cr.RequestedChangeInfo,
		cr.AgreementID,
		cr.BudgetLineItemID,
		cr.ManagingDivisionID,
		cr.CreatedBy,
	).Scan(&cr.CreatedOn)
	if err != nil {
		return database.WrapStmtErr(err, query, cr.ID, cr.Type)
	}
	return nil
}

func (r *changeRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error) {
	query := `SELECT ` + changeRequestColumns + ` FROM change_requests WHERE id = $1`

	cr, err := scanChangeRequest(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get change request: %w", err)
	}
	return cr, nil
}

func (r *changeRequestRepository) UpdateReview(ctx context.Context, cr *models.ChangeRequest) error {
	query := `
		UPDATE change_requests
		SET status = $2, reviewed_by_id = $3, reviewed_on = $4
		WHERE id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, cr.ID, cr.Status, cr.ReviewedByID, cr.ReviewedOn)
	if err != nil {
		return database.WrapStmtErr(err, query, cr.ID, cr.Status)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("change request %s: %w", cr.ID, pgx.ErrNoRows)
	}
	return nil
}

func (r *changeRequestRepository) ListInReviewForReviewer(ctx context.Context, userID int64, limit, offset int) ([]*models.ChangeRequest, error) {
	query := `
		SELECT ` + changeRequestColumns + `
		FROM change_requests cr
		WHERE cr.status = $1
		  AND cr.managing_division_id IN (
			SELECT id FROM divisions
			WHERE division_director_id = $2 OR deputy_division_director_id = $2
		  )
		ORDER BY cr.created_on, cr.id
		LIMIT $3 OFFSET $4`

	return r.list(ctx, query, models.ChangeRequestInReview, userID, limit, offset)
}

func (r *changeRequestRepository) ListInReviewByBudgetLineItem(ctx context.Context, budgetLineItemID int64) ([]*models.ChangeRequest, error) {
	query := `
		SELECT ` + changeRequestColumns + `
		FROM change_requests
		WHERE status = $1 AND budget_line_item_id = $2
		ORDER BY created_on, id`

	return r.list(ctx, query, models.ChangeRequestInReview, budgetLineItemID)
}

func (r *changeRequestRepository) list(ctx context.Context, query string, args ...any) ([]*models.ChangeRequest, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query change requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change request: %w", err)
		}
		requests = append(requests, cr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating change requests: %w", err)
	}
	return requests, nil
}

func scanChangeRequest(row pgx.Row) (*models.ChangeRequest, error) {
	var cr models.ChangeRequest
	var reviewedOn *time.Time
	err := row.Scan(
		&cr.ID,
		&cr.Type,
		&cr.Status,
		&cr.RequestedChangeData,
		&cr.RequestedChangeDiff,
		&cr.RequestedChangeInfo,
		&cr.AgreementID,
		&cr.BudgetLineItemID,
		&cr.ManagingDivisionID,
		&cr.CreatedBy,
		&cr.CreatedOn,
		&cr.ReviewedByID,
		&reviewedOn,
	)
	if err != nil {
		return nil, err
	}
	cr.ReviewedOn = reviewedOn
	return &cr, nil
}
