package handlers

import (
	"context"
	"sync"
	"time"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/notify"
	"clubhub/internal/repositories"
	"clubhub/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User, issue *repositories.TokenIssue) error {
	return m.Called(ctx, user, issue).Error(0)
}

func (m *MockUserRepository) SetToken(ctx context.Context, userID uuid.UUID, issue repositories.TokenIssue) error {
	return m.Called(ctx, userID, issue).Error(0)
}

func (m *MockUserRepository) ConsumeToken(ctx context.Context, userID uuid.UUID, c repositories.TokenConsumption) (*models.User, error) {
	args := m.Called(ctx, userID, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockUserRepository) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockClubRepository struct {
	mock.Mock
}

func (m *MockClubRepository) CreateWithAdmin(ctx context.Context, club *models.Club, admin *models.User, issue *repositories.TokenIssue) error {
	return m.Called(ctx, club, admin, issue).Error(0)
}

func (m *MockClubRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Club, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Club), args.Error(1)
}

func (m *MockClubRepository) GetForTenant(ctx context.Context, tc *common.TenantContext, id uuid.UUID) (*models.Club, error) {
	args := m.Called(ctx, tc, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Club), args.Error(1)
}

func (m *MockClubRepository) List(ctx context.Context, limit, offset int) ([]*models.Club, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Club), args.Error(1)
}

func (m *MockClubRepository) DeleteCascade(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthResult), args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Me(ctx context.Context, tc *common.TenantContext) (*models.UserView, error) {
	args := m.Called(ctx, tc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserView), args.Error(1)
}

func (m *MockUserService) List(ctx context.Context, tc *common.TenantContext, clubID *uuid.UUID, limit, offset int) ([]*models.UserView, error) {
	args := m.Called(ctx, tc, clubID, limit, offset)
	return args.Get(0).([]*models.UserView), args.Error(1)
}

func (m *MockUserService) Get(ctx context.Context, tc *common.TenantContext, id uuid.UUID) (*models.UserView, error) {
	args := m.Called(ctx, tc, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserView), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, tc *common.TenantContext, id uuid.UUID, update models.ProfileUpdate) (*models.UserView, error) {
	args := m.Called(ctx, tc, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserView), args.Error(1)
}

func (m *MockUserService) Delete(ctx context.Context, tc *common.TenantContext, id uuid.UUID) error {
	return m.Called(ctx, tc, id).Error(0)
}

var _ services.UserService = (*MockUserService)(nil)
var _ services.AuthService = (*MockAuthService)(nil)

type countingDispatcher struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (d *countingDispatcher) Dispatch(_ context.Context, msg notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return nil
}

func (d *countingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type discardSink struct{}

func (discardSink) Record(context.Context, models.AuditEvent) {}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}
