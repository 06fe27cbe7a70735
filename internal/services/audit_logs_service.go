package services

import (
	"context"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/repositories"

	"github.com/google/uuid"
)

// AuditLogsService reads back the security events recorded for a club.
type AuditLogsService interface {
	ListClubEvents(ctx context.Context, tc *common.TenantContext, clubID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error)
}

type auditLogsService struct {
	auditLogsRepo repositories.AuditLogsRepository
}

func NewAuditLogsService(auditLogsRepo repositories.AuditLogsRepository) AuditLogsService {
	return &auditLogsService{
		auditLogsRepo: auditLogsRepo,
	}
}

// ListClubEvents is limited to platform admins and the club's own admins.
func (s *auditLogsService) ListClubEvents(ctx context.Context, tc *common.TenantContext, clubID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error) {
	if tc == nil {
		return nil, common.ErrNoTenantContext
	}
	if !tc.IsPlatformAdmin() && tc.Role != models.RoleClubAdmin {
		return nil, common.ErrForbidden
	}
	if !tc.CanAccessClub(clubID) {
		return nil, common.ErrNotFound
	}
	limit, offset = common.ValidatePaginationParams(limit, offset)
	events, err := s.auditLogsRepo.ListByClub(ctx, tc, clubID, limit, offset)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*models.AuditEvent{}
	}
	return events, nil
}
