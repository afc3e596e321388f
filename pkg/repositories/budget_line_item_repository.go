package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
)

// BudgetLineItemFilter narrows List results. Nil fields are ignored.
type BudgetLineItemFilter struct {
	AgreementID *int64
	CANID       *int64
	Status      *models.BudgetLineItemStatus
}

// BudgetLineItemRepository provides data access for budget line items.
type BudgetLineItemRepository interface {
	// Create inserts a new budget line item.
	Create(ctx context.Context, bli *models.BudgetLineItem) error

	// GetByID returns a budget line item with its pending change requests
	// loaded, or nil when not found.
	GetByID(ctx context.Context, id int64) (*models.BudgetLineItem, error)

	// List returns budget line items matching the filter, ordered by id.
	// Pending change requests are loaded for each item.
	List(ctx context.Context, filter BudgetLineItemFilter) ([]*models.BudgetLineItem, error)

	// Update persists all mutable columns of the line item.
	Update(ctx context.Context, bli *models.BudgetLineItem) error

	// Delete removes the line item.
	Delete(ctx context.Context, id int64) error
}

type budgetLineItemRepository struct {
	db  *database.DB
	crs ChangeRequestRepository
}

// NewBudgetLineItemRepository creates a new BudgetLineItemRepository.
func NewBudgetLineItemRepository(db *database.DB, crs ChangeRequestRepository) BudgetLineItemRepository {
	return &budgetLineItemRepository{db: db, crs: crs}
}

var _ BudgetLineItemRepository = (*budgetLineItemRepository)(nil)

const budgetLineItemColumns = `
	id, agreement_id, can_id, services_component_id, line_description, comments,
	amount::text, proc_shop_fee_percentage::text, status, date_needed,
	created_by, created_on, updated_on`

func (r *budgetLineItemRepository) Create(ctx context.Context, bli *models.BudgetLineItem) error {
	query := `
		INSERT INTO budget_line_items
			(agreement_id, can_id, services_component_id, line_description, comments,
			 amount, proc_shop_fee_percentage, status, date_needed, created_by)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10)
		RETURNING id, created_on, updated_on`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		bli.AgreementID,
		bli.CANID,
		bli.ServicesComponentID,
		bli.LineDescription,
		bli.Comments,
		decimalParam(bli.Amount),
		decimalParam(bli.ProcShopFeePercentage),
		bli.Status,
		dateParam(bli.DateNeeded),
		bli.CreatedBy,
	).Scan(&bli.ID, &bli.CreatedOn, &bli.UpdatedOn)
	if err != nil {
		return database.WrapStmtErr(err, query, bli.AgreementID, bli.Status)
	}
	return nil
}

func (r *budgetLineItemRepository) GetByID(ctx context.Context, id int64) (*models.BudgetLineItem, error) {
	query := `SELECT ` + budgetLineItemColumns + ` FROM budget_line_items WHERE id = $1`

	bli, err := scanBudgetLineItem(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get budget line item: %w", err)
	}

	pending, err := r.crs.ListInReviewByBudgetLineItem(ctx, id)
	if err != nil {
		return nil, err
	}
	bli.ChangeRequestsInReview = pending
	return bli, nil
}

func (r *budgetLineItemRepository) List(ctx context.Context, filter BudgetLineItemFilter) ([]*models.BudgetLineItem, error) {
	query := `SELECT ` + budgetLineItemColumns + ` FROM budget_line_items WHERE 1=1`
	var args []any

	if filter.AgreementID != nil {
		args = append(args, *filter.AgreementID)
		query += ` AND agreement_id = $` + strconv.Itoa(len(args))
	}
	if filter.CANID != nil {
		args = append(args, *filter.CANID)
		query += ` AND can_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY id`

	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query budget line items: %w", err)
	}
	defer rows.Close()

	var items []*models.BudgetLineItem
	for rows.Next() {
		bli, err := scanBudgetLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget line item: %w", err)
		}
		items = append(items, bli)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budget line items: %w", err)
	}

	for _, bli := range items {
		pending, err := r.crs.ListInReviewByBudgetLineItem(ctx, bli.ID)
		if err != nil {
			return nil, err
		}
		bli.ChangeRequestsInReview = pending
	}
	return items, nil
}

func (r *budgetLineItemRepository) Update(ctx context.Context, bli *models.BudgetLineItem) error {
	query := `
		UPDATE budget_line_items
		SET agreement_id = $2,
		    can_id = $3,
		    services_component_id = $4,
		    line_description = $5,
		    comments = $6,
		    amount = $7::numeric,
		    proc_shop_fee_percentage = $8::numeric,
		    status = $9,
		    date_needed = $10,
		    updated_on = now()
		WHERE id = $1
		RETURNING updated_on`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		bli.ID,
		bli.AgreementID,
		bli.CANID,
		bli.ServicesComponentID,
		bli.LineDescription,
		bli.Comments,
		decimalParam(bli.Amount),
		decimalParam(bli.ProcShopFeePercentage),
		bli.Status,
		dateParam(bli.DateNeeded),
	).Scan(&bli.UpdatedOn)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("budget line item %d: %w", bli.ID, pgx.ErrNoRows)
		}
		return database.WrapStmtErr(err, query, bli.ID)
	}
	return nil
}

func (r *budgetLineItemRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM budget_line_items WHERE id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, id)
	if err != nil {
		return database.WrapStmtErr(err, query, id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("budget line item %d: %w", id, pgx.ErrNoRows)
	}
	return nil
}

func scanBudgetLineItem(row pgx.Row) (*models.BudgetLineItem, error) {
	var bli models.BudgetLineItem
	var amount, fee *string
	var dateNeeded *time.Time
	err := row.Scan(
		&bli.ID,
		&bli.AgreementID,
		&bli.CANID,
		&bli.ServicesComponentID,
		&bli.LineDescription,
		&bli.Comments,
		&amount,
		&fee,
		&bli.Status,
		&dateNeeded,
		&bli.CreatedBy,
		&bli.CreatedOn,
		&bli.UpdatedOn,
	)
	if err != nil {
		return nil, err
	}
	if bli.Amount, err = toDecimal(amount); err != nil {
		return nil, err
	}
	if bli.ProcShopFeePercentage, err = toDecimal(fee); err != nil {
		return nil, err
	}
	bli.DateNeeded = toDate(dateNeeded)
	return &bli, nil
}
