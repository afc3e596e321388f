package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/apperrors"
	"github.com/grantsops/grants-engine/pkg/database"
	"github.com/grantsops/grants-engine/pkg/models"
	"github.com/grantsops/grants-engine/pkg/repositories"
)

// AgreementPatch carries the editable fields of an agreement. TeamMemberIDs
// replaces the membership when non-nil.
type AgreementPatch struct {
	Name          *string
	Description   *string
	Notes         *string
	TeamMemberIDs []int64
}

// AgreementService owns the agreement aggregate.
type AgreementService interface {
	// Create inserts a new agreement with its team membership.
	Create(ctx context.Context, agreement *models.Agreement, teamMemberIDs []int64) (*models.Agreement, error)

	// Get returns an agreement with its team members.
	// Returns apperrors.ErrNotFound when it does not exist.
	Get(ctx context.Context, id int64) (*models.Agreement, error)

	// Update edits an agreement's fields and membership.
	Update(ctx context.Context, id int64, patch *AgreementPatch) (*models.Agreement, error)
}

type agreementService struct {
	db       database.TxRunner
	repo     repositories.AgreementRepository
	userRepo repositories.UserRepository
	audits   AuditService
	logger   *zap.Logger
}

// NewAgreementService creates a new AgreementService.
func NewAgreementService(
	db database.TxRunner,
	repo repositories.AgreementRepository,
	userRepo repositories.UserRepository,
	audits AuditService,
	logger *zap.Logger,
) AgreementService {
	return &agreementService{
		db:       db,
		repo:     repo,
		userRepo: userRepo,
		audits:   audits,
		logger:   logger.Named("agreements"),
	}
}

var _ AgreementService = (*agreementService)(nil)

func (s *agreementService) Create(ctx context.Context, agreement *models.Agreement, teamMemberIDs []int64) (*models.Agreement, error) {
	members, err := s.loadMembers(ctx, teamMemberIDs)
	if err != nil {
		return nil, err
	}

	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, agreement); err != nil {
			return err
		}
		if err := s.repo.SetTeamMembers(ctx, agreement.ID, teamMemberIDs); err != nil {
			return err
		}
		agreement.TeamMembers = members
		return s.audits.RecordCreate(ctx, agreement.AuditSnapshot())
	})
	if err != nil {
		if database.IsPersistenceError(err) {
			s.audits.RecordError(ctx, agreement.AuditSnapshot(), err)
		}
		return nil, err
	}
	return agreement, nil
}

func (s *agreementService) Get(ctx context.Context, id int64) (*models.Agreement, error) {
	agreement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if agreement == nil {
		return nil, fmt.Errorf("agreement %d: %w", id, apperrors.ErrNotFound)
	}
	return agreement, nil
}

func (s *agreementService) Update(ctx context.Context, id int64, patch *AgreementPatch) (*models.Agreement, error) {
	agreement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	beforeSnap := agreement.AuditSnapshot()

	if patch.Name != nil {
		agreement.Name = *patch.Name
	}
	if patch.Description != nil {
		agreement.Description = *patch.Description
	}
	if patch.Notes != nil {
		agreement.Notes = *patch.Notes
	}
	if patch.TeamMemberIDs != nil {
		members, err := s.loadMembers(ctx, patch.TeamMemberIDs)
		if err != nil {
			return nil, err
		}
		agreement.TeamMembers = members
	}

	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SetTeamMembers(ctx, id, memberIDs(agreement.TeamMembers)); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, agreement); err != nil {
			return err
		}
		return s.audits.RecordUpdate(ctx, beforeSnap, agreement.AuditSnapshot())
	})
	if err != nil {
		if database.IsPersistenceError(err) {
			s.audits.RecordError(ctx, agreement.AuditSnapshot(), err)
		}
		return nil, err
	}
	return agreement, nil
}

func (s *agreementService) loadMembers(ctx context.Context, ids []int64) ([]*models.User, error) {
	ve := apperrors.NewValidationError()
	members := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user == nil {
			ve.Add("team_members", fmt.Sprintf("user %d does not exist", id))
			continue
		}
		members = append(members, user)
	}
	if ve.HasErrors() {
		return nil, ve
	}
	return members, nil
}

func memberIDs(members []*models.User) []int64 {
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}
