package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
)

// AgreementRepository provides data access for agreements and their team
// membership.
type AgreementRepository interface {
	// Create inserts a new agreement. Team members are persisted separately
	// via SetTeamMembers.
	Create(ctx context.Context, agreement *models.Agreement) error

	// GetByID returns an agreement with its team members loaded, or nil when
	// not found.
	GetByID(ctx context.Context, id int64) (*models.Agreement, error)

	// Update persists the agreement's editable columns.
	Update(ctx context.Context, agreement *models.Agreement) error

	// Exists reports whether an agreement with the given id exists.
	Exists(ctx context.Context, id int64) (bool, error)

	// SetTeamMembers replaces the agreement's team membership.
	SetTeamMembers(ctx context.Context, agreementID int64, userIDs []int64) error
}

type agreementRepository struct {
	db *database.DB
}

// NewAgreementRepository creates a new AgreementRepository.
func NewAgreementRepository(db *database.DB) AgreementRepository {
	return &agreementRepository{db: db}
}

var _ AgreementRepository = (*agreementRepository)(nil)

func (r *agreementRepository) Create(ctx context.Context, agreement *models.Agreement) error {
	query := `
		INSERT INTO agreements (name, description, notes, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_on, updated_on`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		agreement.Name,
		agreement.Description,
		agreement.Notes,
		agreement.CreatedBy,
	).Scan(&agreement.ID, &agreement.CreatedOn, &agreement.UpdatedOn)
	if err != nil {
		return database.WrapStmtErr(err, query, agreement.Name)
	}
	return nil
}

func (r *agreementRepository) GetByID(ctx context.Context, id int64) (*models.Agreement, error) {
	query := `
		SELECT id, name, description, notes, created_by, created_on, updated_on
		FROM agreements
		WHERE id = $1`

	var a models.Agreement
	err := r.db.Querier(ctx).QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.Name,
		&a.Description,
		&a.Notes,
		&a.CreatedBy,
		&a.CreatedOn,
		&a.UpdatedOn,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agreement: %w", err)
	}

	members, err := r.teamMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	a.TeamMembers = members
	return &a, nil
}

func (r *agreementRepository) Update(ctx context.Context, agreement *models.Agreement) error {
	query := `
		UPDATE agreements
		SET name = $2, description = $3, notes = $4, updated_on = now()
		WHERE id = $1
		RETURNING updated_on`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		agreement.ID,
		agreement.Name,
		agreement.Description,
		agreement.Notes,
	).Scan(&agreement.UpdatedOn)
	if err != nil {
		return database.WrapStmtErr(err, query, agreement.ID)
	}
	return nil
}

func (r *agreementRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM agreements WHERE id = $1)`

	var exists bool
	if err := r.db.Querier(ctx).QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check agreement existence: %w", err)
	}
	return exists, nil
}

func (r *agreementRepository) SetTeamMembers(ctx context.Context, agreementID int64, userIDs []int64) error {
	deleteQuery := `DELETE FROM agreement_team_members WHERE agreement_id = $1`
	if _, err := r.db.Querier(ctx).Exec(ctx, deleteQuery, agreementID); err != nil {
		return database.WrapStmtErr(err, deleteQuery, agreementID)
	}

	insertQuery := `INSERT INTO agreement_team_members (agreement_id, user_id) VALUES ($1, $2)`
	for _, userID := range userIDs {
		if _, err := r.db.Querier(ctx).Exec(ctx, insertQuery, agreementID, userID); err != nil {
			return database.WrapStmtErr(err, insertQuery, agreementID, userID)
		}
	}
	return nil
}

func (r *agreementRepository) teamMembers(ctx context.Context, agreementID int64) ([]*models.User, error) {
	query := `
		SELECT u.id, u.email, u.full_name, u.created_on
		FROM agreement_team_members atm
		JOIN users u ON u.id = atm.user_id
		WHERE atm.agreement_id = $1
		ORDER BY u.id`

	rows, err := r.db.Querier(ctx).Query(ctx, query, agreementID)
	if err != nil {
		return nil, fmt.Errorf("failed to query team members: %w", err)
	}
	defer rows.Close()

	var members []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedOn); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team members: %w", err)
	}
	return members, nil
}
