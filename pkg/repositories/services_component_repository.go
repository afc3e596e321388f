package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
)

// ServicesComponentRepository provides data access for services components.
type ServicesComponentRepository interface {
	// Create inserts a new services component.
	Create(ctx context.Context, sc *models.ServicesComponent) error

	// GetByID returns a services component by id, or nil when not found.
	GetByID(ctx context.Context, id int64) (*models.ServicesComponent, error)

	// ListByAgreement returns an agreement's services components ordered by
	// number.
	ListByAgreement(ctx context.Context, agreementID int64) ([]*models.ServicesComponent, error)
}

type servicesComponentRepository struct {
	db *database.DB
}

// NewServicesComponentRepository creates a new ServicesComponentRepository.
func NewServicesComponentRepository(db *database.DB) ServicesComponentRepository {
	return &servicesComponentRepository{db: db}
}

var _ ServicesComponentRepository = (*servicesComponentRepository)(nil)

func (r *servicesComponentRepository) Create(ctx context.Context, sc *models.ServicesComponent) error {
	query := `
		INSERT INTO services_components (agreement_id, number, optional, description, period_start, period_end, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_on`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		sc.AgreementID,
		sc.Number,
		sc.Optional,
		sc.Description,
		dateParam(sc.PeriodStart),
		dateParam(sc.PeriodEnd),
		sc.CreatedBy,
	).Scan(&sc.ID, &sc.CreatedOn)
	if err != nil {
		return database.WrapStmtErr(err, query, sc.AgreementID, sc.Number)
	}
	return nil
}

func (r *servicesComponentRepository) GetByID(ctx context.Context, id int64) (*models.ServicesComponent, error) {
	query := `
		SELECT id, agreement_id, number, optional, description, period_start, period_end, created_by, created_on
		FROM services_components
		WHERE id = $1`

	sc, err := scanServicesComponent(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get services component: %w", err)
	}
	return sc, nil
}

func (r *servicesComponentRepository) ListByAgreement(ctx context.Context, agreementID int64) ([]*models.ServicesComponent, error) {
	query := `
		SELECT id, agreement_id, number, optional, description, period_start, period_end, created_by, created_on
		FROM services_components
		WHERE agreement_id = $1
		ORDER BY number`

	rows, err := r.db.Querier(ctx).Query(ctx, query, agreementID)
	if err != nil {
		return nil, fmt.Errorf("failed to query services components: %w", err)
	}
	defer rows.Close()

	var components []*models.ServicesComponent
	for rows.Next() {
		sc, err := scanServicesComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan services component: %w", err)
		}
		components = append(components, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating services components: %w", err)
	}
	return components, nil
}

func scanServicesComponent(row pgx.Row) (*models.ServicesComponent, error) {
	var sc models.ServicesComponent
	var periodStart, periodEnd *time.Time
	err := row.Scan(
		&sc.ID,
		&sc.AgreementID,
		&sc.Number,
		&sc.Optional,
		&sc.Description,
		&periodStart,
		&periodEnd,
		&sc.CreatedBy,
		&sc.CreatedOn,
	)
	if err != nil {
		return nil, err
	}
	sc.PeriodStart = toDate(periodStart)
	sc.PeriodEnd = toDate(periodEnd)
	return &sc, nil
}
