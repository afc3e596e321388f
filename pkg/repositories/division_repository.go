package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
)

// DivisionRepository provides data access for divisions and portfolios.
type DivisionRepository interface {
	// CreateDivision inserts a new division.
	CreateDivision(ctx context.Context, division *models.Division) error

	// CreatePortfolio inserts a new portfolio under a division.
	CreatePortfolio(ctx context.Context, portfolio *models.Portfolio) error

	// GetDivisionByID returns a division by id, or nil when not found.
	GetDivisionByID(ctx context.Context, id int64) (*models.Division, error)

	// IsDirectorOrDeputy reports whether the user is the division's director
	// or deputy director.
	IsDirectorOrDeputy(ctx context.Context, userID, divisionID int64) (bool, error)
}

type divisionRepository struct {
	db *database.DB
}

// NewDivisionRepository creates a new DivisionRepository.
func NewDivisionRepository(db *database.DB) DivisionRepository {
	return &divisionRepository{db: db}
}

var _ DivisionRepository = (*divisionRepository)(nil)

func (r *divisionRepository) CreateDivision(ctx context.Context, division *models.Division) error {
	query := `
		INSERT INTO divisions (name, abbreviation, division_director_id, deputy_division_director_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		division.Name,
		division.Abbreviation,
		division.DivisionDirectorID,
		division.DeputyDivisionDirectorID,
	).Scan(&division.ID)
	if err != nil {
		return database.WrapStmtErr(err, query, division.Name)
	}
	return nil
}

func (r *divisionRepository) CreatePortfolio(ctx context.Context, portfolio *models.Portfolio) error {
	query := `
		INSERT INTO portfolios (name, division_id)
		VALUES ($1, $2)
		RETURNING id`

	err := r.db.Querier(ctx).QueryRow(ctx, query, portfolio.Name, portfolio.DivisionID).
		Scan(&portfolio.ID)
	if err != nil {
		return database.WrapStmtErr(err, query, portfolio.Name, portfolio.DivisionID)
	}
	return nil
}

func (r *divisionRepository) GetDivisionByID(ctx context.Context, id int64) (*models.Division, error) {
	query := `
		SELECT id, name, abbreviation, division_director_id, deputy_division_director_id
		FROM divisions
		WHERE id = $1`

	var d models.Division
	err := r.db.Querier(ctx).QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.Name,
		&d.Abbreviation,
		&d.DivisionDirectorID,
		&d.DeputyDivisionDirectorID,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get division: %w", err)
	}
	return &d, nil
}

func (r *divisionRepository) IsDirectorOrDeputy(ctx context.Context, userID, divisionID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM divisions
			WHERE id = $1
			  AND (division_director_id = $2 OR deputy_division_director_id = $2)
		)`

	var allowed bool
	err := r.db.Querier(ctx).QueryRow(ctx, query, divisionID, userID).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("failed to check division reviewer: %w", err)
	}
	return allowed, nil
}
