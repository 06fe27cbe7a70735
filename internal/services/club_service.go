package services

import (
	"context"

	"clubhub/internal/audit"
	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ClubService interface {
	GetClub(ctx context.Context, tc *common.TenantContext, id uuid.UUID) (*models.Club, error)
	ListClubs(ctx context.Context, tc *common.TenantContext, limit, offset int) ([]*models.Club, error)
	DeleteClub(ctx context.Context, tc *common.TenantContext, id uuid.UUID) error
}

type clubService struct {
	clubs repositories.ClubRepository
	sink  audit.Sink
}

func NewClubService(clubs repositories.ClubRepository, sink audit.Sink) ClubService {
	return &clubService{clubs: clubs, sink: sink}
}

// GetClub reads through row level security, so members of other clubs get
// ErrNotFound.
func (s *clubService) GetClub(ctx context.Context, tc *common.TenantContext, id uuid.UUID) (*models.Club, error) {
	if tc == nil {
		return nil, common.ErrNoTenantContext
	}
	return s.clubs.GetForTenant(ctx, tc, id)
}

func (s *clubService) ListClubs(ctx context.Context, tc *common.TenantContext, limit, offset int) ([]*models.Club, error) {
	if tc == nil {
		return nil, common.ErrNoTenantContext
	}
	if !tc.IsPlatformAdmin() {
		return nil, common.ErrForbidden
	}
	limit, offset = common.ValidatePaginationParams(limit, offset)
	clubs, err := s.clubs.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if clubs == nil {
		clubs = []*models.Club{}
	}
	return clubs, nil
}

// DeleteClub removes the club and all of its members, or nothing.
func (s *clubService) DeleteClub(ctx context.Context, tc *common.TenantContext, id uuid.UUID) error {
	if tc == nil {
		return common.ErrNoTenantContext
	}
	if !tc.IsPlatformAdmin() {
		return common.ErrForbidden
	}

	removed, err := s.clubs.DeleteCascade(ctx, id)
	if err != nil {
		return err
	}
	zap.L().Info("club deleted", zap.String("club_id", id.String()), zap.Int64("users_removed", removed))

	actorID, actorClub := actorOf(tc)
	clubID := id
	s.sink.Record(ctx, models.AuditEvent{
		Action:       models.AuditClubDeleted,
		ActorUserID:  actorID,
		ActorClubID:  actorClub,
		TargetClubID: &clubID,
		Detail:       map[string]any{"users_removed": removed},
	})
	return nil
}
