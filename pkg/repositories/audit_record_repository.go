package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
)

// AuditRecordRepository provides append-only access to the audit trail.
// Records are never updated or deleted.
type AuditRecordRepository interface {
	// Create appends a record inside the caller's transaction scope, so the
	// record commits and rolls back with the mutation it describes.
	Create(ctx context.Context, record *models.AuditRecord) error

	// CreateIsolated appends a record on its own connection, outside any open
	// transaction. ERROR records use this path so they survive the rollback
	// of the statement that failed.
	CreateIsolated(ctx context.Context, record *models.AuditRecord) error

	// ListByAgreement returns the agreement's audit records, newest first.
	ListByAgreement(ctx context.Context, agreementID int64, limit, offset int) ([]*models.AuditRecord, error)

	// ListByClassRowKey returns all records for one entity, newest first.
	ListByClassRowKey(ctx context.Context, className, rowKey string) ([]*models.AuditRecord, error)
}

type auditRecordRepository struct {
	db *database.DB
}

// NewAuditRecordRepository creates a new AuditRecordRepository.
func NewAuditRecordRepository(db *database.DB) AuditRecordRepository {
	return &auditRecordRepository{db: db}
}

var _ AuditRecordRepository = (*auditRecordRepository)(nil)

const auditRecordColumns = `
	id, event_type, class_name, row_key, event_details, original, diff, changes,
	created_by, created_on, agreement_id, transaction_id`

const insertAuditRecord = `
	INSERT INTO audit_records
		(id, event_type, class_name, row_key, event_details, original, diff, changes,
		 created_by, agreement_id, transaction_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING created_on`

func (r *auditRecordRepository) Create(ctx context.Context, record *models.AuditRecord) error {
	err := r.db.Querier(ctx).QueryRow(ctx, insertAuditRecord, auditRecordArgs(record)...).
		Scan(&record.CreatedOn)
	if err != nil {
		return database.WrapStmtErr(err, insertAuditRecord, record.ID, record.EventType, record.ClassName)
	}
	return nil
}

func (r *auditRecordRepository) CreateIsolated(ctx context.Context, record *models.AuditRecord) error {
	err := r.db.Pool.QueryRow(ctx, insertAuditRecord, auditRecordArgs(record)...).
		Scan(&record.CreatedOn)
	if err != nil {
		return fmt.Errorf("failed to write isolated audit record: %w", err)
	}
	return nil
}

func auditRecordArgs(record *models.AuditRecord) []any {
	return []any{
		record.ID,
		record.EventType,
		record.ClassName,
		record.RowKey,
		record.EventDetails,
		record.Original,
		record.Diff,
		record.Changes,
		record.CreatedBy,
		record.AgreementID,
		record.TransactionID,
	}
}

func (r *auditRecordRepository) ListByAgreement(ctx context.Context, agreementID int64, limit, offset int) ([]*models.AuditRecord, error) {
	query := `
		SELECT ` + auditRecordColumns + `
		FROM audit_records
		WHERE agreement_id = $1
		ORDER BY created_on DESC, id
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, agreementID, limit, offset)
}

func (r *auditRecordRepository) ListByClassRowKey(ctx context.Context, className, rowKey string) ([]*models.AuditRecord, error) {
	query := `
		SELECT ` + auditRecordColumns + `
		FROM audit_records
		WHERE class_name = $1 AND row_key = $2
		ORDER BY created_on DESC, id`

	return r.list(ctx, query, className, rowKey)
}

func (r *auditRecordRepository) list(ctx context.Context, query string, args ...any) ([]*models.AuditRecord, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*models.AuditRecord
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}
	return records, nil
}

func scanAuditRecord(row pgx.Row) (*models.AuditRecord, error) {
	var record models.AuditRecord
	err := row.Scan(
		&record.ID,
		&record.EventType,
		&record.ClassName,
		&record.RowKey,
		&record.EventDetails,
		&record.Original,
		&record.Diff,
		&record.Changes,
		&record.CreatedBy,
		&record.CreatedOn,
		&record.AgreementID,
		&record.TransactionID,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
