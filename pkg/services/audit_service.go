package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/audit"
	"github.com/grantsops/grants-engine/pkg/auth"
	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/logging"
	"github.com/grantsops/grants-engine/pkg/models"
	"github.com/grantsops/grants-engine/pkg/repositories"
	"github.com/grantsops/grants-engine/pkg/retry"
)

// AuditService writes the append-only audit trail. Mutating services call it
// inside the same unit of work as the mutation, so the record and the change
// commit or roll back together. ERROR records are the exception: they go out
// on a separate connection because the failing transaction is already doomed.
type AuditService interface {
	// RecordCreate appends a NEW record for a freshly created entity.
	RecordCreate(ctx context.Context, snap *audit.Snapshot) error

	// RecordUpdate appends an UPDATED record with per-field changes. When the
	// two snapshots are identical nothing is written: no-op saves leave no
	// trail.
	RecordUpdate(ctx context.Context, before, after *audit.Snapshot) error

	// RecordDelete appends a DELETED record. Deletes are whole-object events;
	// the record carries the final state with no field breakdown.
	RecordDelete(ctx context.Context, snap *audit.Snapshot) error

	// RecordInReview appends an IN_REVIEW record for a newly staged change
	// request.
	RecordInReview(ctx context.Context, snap *audit.Snapshot) error

	// RecordError appends an ERROR record describing a failed persistence
	// attempt, outside the failed transaction and with retries. The failure
	// itself is never masked: callers still return the original error.
	RecordError(ctx context.Context, snap *audit.Snapshot, cause error)
}

type auditService struct {
	repo     repositories.AuditRecordRepository
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRecordRepository, retryCfg *retry.Config, logger *zap.Logger) AuditService {
	return &auditService{repo: repo, retryCfg: retryCfg, logger: logger.Named("audit")}
}

var _ AuditService = (*auditService)(nil)

// agreementKeyByClass names the snapshot field holding the owning agreement's
// id for each audited class. Classes absent from the map are not reachable
// from an agreement and produce unscoped records.
var agreementKeyByClass = map[string]string{
	"Agreement":                   "id",
	"BudgetLineItem":              "agreement_id",
	"ServicesComponent":           "agreement_id",
	"ChangeRequest":               "agreement_id",
	"AgreementChangeRequest":      "agreement_id",
	"BudgetLineItemChangeRequest": "agreement_id",
}

func (s *auditService) RecordCreate(ctx context.Context, snap *audit.Snapshot) error {
	d := audit.Diff(nil, snap, true)
	return s.write(ctx, s.newRecord(ctx, models.AuditEventNew, snap, d))
}

func (s *auditService) RecordUpdate(ctx context.Context, before, after *audit.Snapshot) error {
	d := audit.Diff(before, after, false)
	if len(d.Changes) == 0 {
		return nil
	}
	return s.write(ctx, s.newRecord(ctx, models.AuditEventUpdated, after, d))
}

func (s *auditService) RecordDelete(ctx context.Context, snap *audit.Snapshot) error {
	d := audit.Diff(snap, snap, false)
	record := s.newRecord(ctx, models.AuditEventDeleted, snap, d)
	record.Diff = nil
	record.Changes = nil
	return s.write(ctx, record)
}

func (s *auditService) RecordInReview(ctx context.Context, snap *audit.Snapshot) error {
	d := audit.Diff(nil, snap, true)
	return s.write(ctx, s.newRecord(ctx, models.AuditEventInReview, snap, d))
}

func (s *auditService) RecordError(ctx context.Context, snap *audit.Snapshot, cause error) {
	record := &models.AuditRecord{
		ID:            uuid.New(),
		EventType:     models.AuditEventError,
		ClassName:     snap.ClassName,
		RowKey:        snap.RowKey(),
		EventDetails:  errorDetails(cause),
		CreatedBy:     auth.ActorID(ctx),
		AgreementID:   agreementIDFrom(snap),
		TransactionID: database.TxID(ctx),
	}

	err := retry.Do(ctx, s.retryCfg, func() error {
		return s.repo.CreateIsolated(ctx, record)
	})
	if err != nil {
		// The original failure still propagates to the caller; all we can do
		// for the lost ERROR record is log it.
		s.logger.Error("failed to write ERROR audit record",
			zap.String("class_name", record.ClassName),
			zap.String("row_key", record.RowKey),
			zap.Error(err),
		)
	}
}

func (s *auditService) newRecord(ctx context.Context, eventType models.AuditEventType, snap *audit.Snapshot, d audit.RecordDiff) *models.AuditRecord {
	record := &models.AuditRecord{
		ID:            uuid.New(),
		EventType:     eventType,
		ClassName:     snap.ClassName,
		RowKey:        d.RowKey,
		EventDetails:  snap.NormalizedFields(),
		CreatedBy:     auth.ActorID(ctx),
		AgreementID:   agreementIDFrom(snap),
		TransactionID: database.TxID(ctx),
	}
	if len(d.Original) > 0 {
		record.Original = d.Original
	}
	if len(d.Diff) > 0 {
		record.Diff = d.Diff
	}
	if len(d.Changes) > 0 {
		record.Changes = d.Changes
	}
	return record
}

func (s *auditService) write(ctx context.Context, record *models.AuditRecord) error {
	if err := s.repo.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// agreementIDFrom pulls the owning agreement's id out of the snapshot, nil
// when the class is unscoped or the field is unset.
func agreementIDFrom(snap *audit.Snapshot) *int64 {
	key, ok := agreementKeyByClass[snap.ClassName]
	if !ok {
		return nil
	}
	switch v := snap.Fields[key].(type) {
	case int64:
		return &v
	case *int64:
		return v
	case int:
		id := int64(v)
		return &id
	}
	return nil
}

// errorDetails captures the failed statement, its parameters, the originating
// error text and the driver-level message, sanitized and truncated before
// persistence.
func errorDetails(cause error) map[string]any {
	details := map[string]any{
		"message": logging.SanitizeError(cause),
	}
	if se, ok := database.AsStmtError(cause); ok {
		details["driver_message"] = logging.SanitizeError(fmt.Errorf("%s", se.DriverMessage()))
		details["statement"] = logging.SanitizeStatement(se.Stmt)
		params := make([]string, len(se.Args))
		for i, arg := range se.Args {
			params[i] = logging.TruncateString(fmt.Sprintf("%v", arg), 100)
		}
		details["parameters"] = params
	}
	return details
}
