package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
)

// CANRepository provides data access for Common Accounting Numbers.
type CANRepository interface {
	// Create inserts a new CAN.
	Create(ctx context.Context, can *models.CAN) error

	// GetByID returns a CAN by id, or nil when not found.
	GetByID(ctx context.Context, id int64) (*models.CAN, error)

	// ManagingDivisionID resolves the division that manages a CAN, walking
	// CAN -> portfolio -> division. Returns nil when the CAN has no
	// portfolio.
	ManagingDivisionID(ctx context.Context, canID int64) (*int64, error)
}

type canRepository struct {
	db *database.DB
}

// NewCANRepository creates a new CANRepository.
func NewCANRepository(db *database.DB) CANRepository {
	return &canRepository{db: db}
}

var _ CANRepository = (*canRepository)(nil)

func (r *canRepository) Create(ctx context.Context, can *models.CAN) error {
	query := `
		INSERT INTO cans (number, description, portfolio_id)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := r.db.Querier(ctx).QueryRow(ctx, query, can.Number, can.Description, can.PortfolioID).
		Scan(&can.ID)
	if err != nil {
		return database.WrapStmtErr(err, query, can.Number)
	}
	return nil
}

func (r *canRepository) GetByID(ctx context.Context, id int64) (*models.CAN, error) {
	query := `
		SELECT id, number, description, portfolio_id
		FROM cans
		WHERE id = $1`

	var can models.CAN
	err := r.db.Querier(ctx).QueryRow(ctx, query, id).Scan(
		&can.ID,
		&can.Number,
		&can.Description,
		&can.PortfolioID,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get CAN: %w", err)
	}
	return &can, nil
}

func (r *canRepository) ManagingDivisionID(ctx context.Context, canID int64) (*int64, error) {
	query := `
		SELECT p.division_id
		FROM cans c
		JOIN portfolios p ON p.id = c.portfolio_id
		WHERE c.id = $1`

	var divisionID int64
	err := r.db.Querier(ctx).QueryRow(ctx, query, canID).Scan(&divisionID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve managing division: %w", err)
	}
	return &divisionID, nil
}
