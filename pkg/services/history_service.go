package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/apperrors"
	"github.com/grantsops/grants-engine/pkg/models"
	"github.com/grantsops/grants-engine/pkg/repositories"
)

// HistoryService reconstructs display-ready timelines from the audit trail.
// It only ever reads audit records; nothing here mutates domain state.
type HistoryService interface {
	// FindAgreementHistory returns the agreement's timeline, newest first.
	// Records written in one unit of work collapse into a single entry.
	// Returns apperrors.ErrNotFound when the agreement does not exist.
	FindAgreementHistory(ctx context.Context, agreementID int64, limit, offset int) ([]*models.HistoryEntry, error)

	// FindEntityHistory returns the raw audit records for one entity, newest
	// first. Returns apperrors.ErrNotFound when the entity has no records.
	FindEntityHistory(ctx context.Context, className, rowKey string) ([]*models.AuditRecord, error)
}

type historyService struct {
	auditRepo     repositories.AuditRecordRepository
	agreementRepo repositories.AgreementRepository
	userRepo      repositories.UserRepository
	logger        *zap.Logger
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(
	auditRepo repositories.AuditRecordRepository,
	agreementRepo repositories.AgreementRepository,
	userRepo repositories.UserRepository,
	logger *zap.Logger,
) HistoryService {
	return &historyService{
		auditRepo:     auditRepo,
		agreementRepo: agreementRepo,
		userRepo:      userRepo,
		logger:        logger.Named("history"),
	}
}

var _ HistoryService = (*historyService)(nil)

// targetClassByEventClass maps change-request event classes to the class they
// propose to change. Classes absent from the map are their own target.
var targetClassByEventClass = map[string]string{
	"BudgetLineItemChangeRequest": "BudgetLineItem",
	"AgreementChangeRequest":      "Agreement",
}

func (s *historyService) FindAgreementHistory(ctx context.Context, agreementID int64, limit, offset int) ([]*models.HistoryEntry, error) {
	exists, err := s.agreementRepo.Exists(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("agreement %d: %w", agreementID, apperrors.ErrNotFound)
	}

	records, err := s.auditRepo.ListByAgreement(ctx, agreementID, limit, offset)
	if err != nil {
		return nil, err
	}

	names, err := s.resolveUserNames(ctx, records)
	if err != nil {
		return nil, err
	}

	// Records come back newest first; records sharing a transaction id fold
	// into the entry for that unit of work.
	var entries []*models.HistoryEntry
	entryByTx := make(map[uuid.UUID]*models.HistoryEntry)

	for _, record := range records {
		entry, ok := entryByTx[record.TransactionID]
		if !ok {
			entry = &models.HistoryEntry{
				TransactionID: record.TransactionID,
				CreatedOn:     record.CreatedOn,
			}
			if record.CreatedBy != nil {
				entry.CreatedByName = names[*record.CreatedBy]
			}
			entryByTx[record.TransactionID] = entry
			entries = append(entries, entry)
		}
		entry.LogItems = append(entry.LogItems, expandLogItems(record, names)...)
	}

	return entries, nil
}

func (s *historyService) FindEntityHistory(ctx context.Context, className, rowKey string) ([]*models.AuditRecord, error) {
	records, err := s.auditRepo.ListByClassRowKey(ctx, className, rowKey)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s %s: %w", className, rowKey, apperrors.ErrNotFound)
	}
	return records, nil
}

func (s *historyService) resolveUserNames(ctx context.Context, records []*models.AuditRecord) (map[int64]string, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, record := range records {
		if record.CreatedBy == nil {
			continue
		}
		if _, ok := seen[*record.CreatedBy]; ok {
			continue
		}
		seen[*record.CreatedBy] = struct{}{}
		ids = append(ids, *record.CreatedBy)
	}
	return s.userRepo.GetFullNames(ctx, ids)
}

// expandLogItems turns one audit record into displayable timeline items.
// Whole-object events (created, deleted, staged for review, errors) yield a
// single object-scope item; an update yields one property-scope item per
// changed field or relationship.
func expandLogItems(record *models.AuditRecord, names map[int64]string) []*models.LogItem {
	targetClass := record.ClassName
	if mapped, ok := targetClassByEventClass[record.ClassName]; ok {
		targetClass = mapped
	}

	var createdByName string
	if record.CreatedBy != nil {
		createdByName = names[*record.CreatedBy]
	}

	base := models.LogItem{
		EventClassName:  record.ClassName,
		TargetClassName: targetClass,
		EventType:       record.EventType,
		CreatedByName:   createdByName,
		CreatedOn:       record.CreatedOn,
	}

	if record.EventType != models.AuditEventUpdated {
		item := base
		item.Scope = models.ScopeObject
		if record.EventType == models.AuditEventInReview {
			item.Change = record.Changes
		}
		return []*models.LogItem{&item}
	}

	keys := make([]string, 0, len(record.Changes))
	for key := range record.Changes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	items := make([]*models.LogItem, 0, len(keys))
	for _, key := range keys {
		item := base
		item.Scope = models.ScopeProperty
		item.PropertyKey = key
		if m, ok := record.Changes[key].(map[string]any); ok {
			item.Change = m
		}
		items = append(items, &item)
	}
	return items
}
