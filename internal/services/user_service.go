package services

import (
	"context"
	"strings"

	"clubhub/internal/audit"
	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/repositories"

	"github.com/google/uuid"
)

const maxPhoneLength = 32

// UserService serves authenticated reads and edits of user accounts. All of
// it runs on the tenant executor.
type UserService interface {
	Me(ctx context.Context, tc *common.TenantContext) (*models.UserView, error)
	List(ctx context.Context, tc *common.TenantContext, clubID *uuid.UUID, limit, offset int) ([]*models.UserView, error)
	Get(ctx context.Context, tc *common.TenantContext, id uuid.UUID) (*models.UserView, error)
	UpdateProfile(ctx context.Context, tc *common.TenantContext, id uuid.UUID, update models.ProfileUpdate) (*models.UserView, error)
	Delete(ctx context.Context, tc *common.TenantContext, id uuid.UUID) error
}

type userService struct {
	members repositories.MemberRepository
	sink    audit.Sink
}

func NewUserService(members repositories.MemberRepository, sink audit.Sink) UserService {
	return &userService{members: members, sink: sink}
}

func views(users []*models.User) []*models.UserView {
	out := make([]*models.UserView, 0, len(users))
	for _, u := range users {
		out = append(out, u.View())
	}
	return out
}

func isAdmin(tc *common.TenantContext) bool {
	return tc.IsPlatformAdmin() || tc.Role == models.RoleClubAdmin
}

func (s *userService) Me(ctx context.Context, tc *common.TenantContext) (*models.UserView, error) {
	if tc == nil {
		return nil, common.ErrNoTenantContext
	}
	return s.Get(ctx, tc, tc.UserID)
}

// List shows the caller's club. Platform admins may pass a club to filter
// on or nil for every user.
func (s *userService) List(ctx context.Context, tc *common.TenantContext, clubID *uuid.UUID, limit, offset int) ([]*models.UserView, error) {
	if tc == nil {
		return nil, common.ErrNoTenantContext
	}
	if !tc.IsPlatformAdmin() {
		if clubID != nil && !tc.CanAccessClub(*clubID) {
			return []*models.UserView{}, nil
		}
		clubID = tc.ClubID
	}
	limit, offset = common.ValidatePaginationParams(limit, offset)
	users, err := s.members.List(ctx, tc, clubID, limit, offset)
	if err != nil {
		return nil, err
	}
	return views(users), nil
}

func (s *userService) Get(ctx context.Context, tc *common.TenantContext, id uuid.UUID) (*models.UserView, error) {
	if tc == nil {
		return nil, common.ErrNoTenantContext
	}
	user, err := s.members.GetByID(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	return user.View(), nil
}

func validateProfile(update models.ProfileUpdate) error {
	if update.FirstName != nil {
		if err := common.ValidateRequiredString(*update.FirstName, "first_name", maxNameLength); err != nil {
			return err
		}
	}
	if update.LastName != nil {
		if err := common.ValidateRequiredString(*update.LastName, "last_name", maxNameLength); err != nil {
			return err
		}
	}
	if update.Phone != nil && len(strings.TrimSpace(*update.Phone)) > maxPhoneLength {
		return common.NewValidationError("phone", "is too long")
	}
	return nil
}

// UpdateProfile lets a user edit themselves and an admin edit members of
// their club.
func (s *userService) UpdateProfile(ctx context.Context, tc *common.TenantContext, id uuid.UUID, update models.ProfileUpdate) (*models.UserView, error) {
	if tc == nil {
		return nil, common.ErrNoTenantContext
	}
	if id != tc.UserID && !isAdmin(tc) {
		return nil, common.ErrForbidden
	}
	if err := validateProfile(update); err != nil {
		return nil, err
	}

	user, err := s.members.UpdateProfile(ctx, tc, id, update)
	if err != nil {
		return nil, err
	}
	actorID, actorClub := actorOf(tc)
	s.sink.Record(ctx, audit.Event(models.AuditProfileUpdated, actorID, actorClub, user))
	return user.View(), nil
}

func (s *userService) Delete(ctx context.Context, tc *common.TenantContext, id uuid.UUID) error {
	if tc == nil {
		return common.ErrNoTenantContext
	}
	if !isAdmin(tc) {
		return common.ErrForbidden
	}
	if id == tc.UserID {
		return common.NewValidationError("id", "cannot delete your own account")
	}

	user, err := s.members.GetByID(ctx, tc, id)
	if err != nil {
		return err
	}
	if user.Role == models.RolePlatformAdmin && !tc.IsPlatformAdmin() {
		return common.ErrForbidden
	}
	if err := s.members.Delete(ctx, tc, id); err != nil {
		return err
	}

	actorID, actorClub := actorOf(tc)
	s.sink.Record(ctx, audit.Event(models.AuditUserDeleted, actorID, actorClub, user))
	return nil
}
