package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
)

// UserRepository provides data access for users.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *models.User) error

	// GetByID returns a user by id, or nil when not found.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetFullNames resolves user ids to full names in one query. Unknown ids
	// are absent from the result.
	GetFullNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

type userRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db}
}

var _ UserRepository = (*userRepository)(nil)

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, full_name)
		VALUES ($1, $2)
		RETURNING id, created_on`

	err := r.db.Querier(ctx).QueryRow(ctx, query, user.Email, user.FullName).
		Scan(&user.ID, &user.CreatedOn)
	if err != nil {
		return database.WrapStmtErr(err, query, user.Email, user.FullName)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, email, full_name, created_on
		FROM users
		WHERE id = $1`

	var user models.User
	err := r.db.Querier(ctx).QueryRow(ctx, query, id).
		Scan(&user.ID, &user.Email, &user.FullName, &user.CreatedOn)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetFullNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string)
	if len(ids) == 0 {
		return names, nil
	}

	query := `
		SELECT id, full_name
		FROM users
		WHERE id = ANY($1)`

	rows, err := r.db.Querier(ctx).Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query user names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan user name: %w", err)
		}
		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user names: %w", err)
	}
	return names, nil
}
