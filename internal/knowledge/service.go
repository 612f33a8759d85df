package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/eion/tenantgate/internal/logging"
	"github.com/eion/tenantgate/internal/zerrors"
)

// Service implements the Manager interface
type Service struct {
	repo     Repository
	registry PartitionRegistry
	logger   logging.Logger
	now      func() time.Time
}

// NewService creates a new knowledge service. registry may be nil.
func NewService(repo Repository, registry PartitionRegistry, logger logging.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateKnowledgeSpace creates a knowledge space, or a new version of an existing one when the id is
// already taken with a different version.
func (s *Service) CreateKnowledgeSpace(ctx context.Context, tenantID string, req *CreateKnowledgeSpaceRequest) (*KnowledgeSpace, error) {
	if err := CheckIdentifier("tenantId", tenantID); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	space, err := req.ToKnowledgeSpace(tenantID, s.now())
	if err != nil {
		return nil, err
	}

	if req.KnowledgeSpaceID != "" {
		existing, err := s.repo.FindByTenantAndID(ctx, tenantID, space.ID())
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.CurrentVersion() == space.CurrentVersion() {
			return nil, zerrors.NewValidationError("version",
				fmt.Sprintf("knowledge space %s already exists at version %s", space.ID(), space.CurrentVersion()))
		}
	}

	if err := s.repo.Save(ctx, space); err != nil {
		return nil, err
	}

	ns := space.Namespace()
	if s.registry != nil {
		if err := s.registry.RegisterPartition(ctx, ns.String(), tenantID, space.ID(), space.CurrentVersion()); err != nil {
			// The record is already stored; a missing registry entry only affects bookkeeping.
			s.logger.Warn("failed to register partition", logging.Fields{
				"tenantId":  tenantID,
				"namespace": ns.String(),
				"reason":    err.Error(),
			})
		}
	}

	s.logger.Info("knowledge space created", logging.Fields{
		"tenantId":         tenantID,
		"knowledgeSpaceId": space.ID(),
		"namespace":        ns.String(),
		"sourceUrlCount":   len(space.SourceURLs()),
	})
	return space, nil
}

// ListKnowledgeSpaces lists the tenant's knowledge spaces
func (s *Service) ListKnowledgeSpaces(ctx context.Context, tenantID string) ([]*KnowledgeSpace, error) {
	return s.repo.FindByTenant(ctx, tenantID)
}

// GetKnowledgeSpace retrieves a knowledge space. A missing one is a NotFoundError.
func (s *Service) GetKnowledgeSpace(ctx context.Context, tenantID, knowledgeSpaceID string) (*KnowledgeSpace, error) {
	if knowledgeSpaceID == "" {
		return nil, zerrors.NewValidationError("knowledgeSpaceId", "knowledgeSpaceId is required")
	}

	space, err := s.repo.FindByTenantAndID(ctx, tenantID, knowledgeSpaceID)
	if err != nil {
		return nil, err
	}
	if space == nil {
		return nil, zerrors.NewNotFoundError("knowledge space", knowledgeSpaceID)
	}
	return space, nil
}

// DeleteKnowledgeSpace deletes a knowledge space and its partitions
func (s *Service) DeleteKnowledgeSpace(ctx context.Context, tenantID, knowledgeSpaceID string) error {
	if _, err := s.GetKnowledgeSpace(ctx, tenantID, knowledgeSpaceID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, tenantID, knowledgeSpaceID); err != nil {
		return err
	}

	if s.registry != nil {
		if err := s.registry.DeletePartitions(ctx, tenantID, knowledgeSpaceID); err != nil {
			s.logger.Warn("failed to delete partitions", logging.Fields{
				"tenantId":         tenantID,
				"knowledgeSpaceId": knowledgeSpaceID,
				"reason":           err.Error(),
			})
		}
	}

	s.logger.Info("knowledge space deleted", logging.Fields{
		"tenantId":         tenantID,
		"knowledgeSpaceId": knowledgeSpaceID,
	})
	return nil
}
