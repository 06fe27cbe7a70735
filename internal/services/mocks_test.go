package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/notify"
	"clubhub/internal/repositories"

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
	args := m.Called(ctx, user, issue)
	return args.Error(0)
}

func (m *MockUserRepository) SetToken(ctx context.Context, userID uuid.UUID, issue repositories.TokenIssue) error {
	args := m.Called(ctx, userID, issue)
	return args.Error(0)
}

func (m *MockUserRepository) ConsumeToken(ctx context.Context, userID uuid.UUID, c repositories.TokenConsumption) (*models.User, error) {
	args := m.Called(ctx, userID, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockUserRepository) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockClubRepository struct {
	mock.Mock
}

func (m *MockClubRepository) CreateWithAdmin(ctx context.Context, club *models.Club, admin *models.User, issue *repositories.TokenIssue) error {
	args := m.Called(ctx, club, admin, issue)
	return args.Error(0)
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

type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) List(ctx context.Context, tc *common.TenantContext, clubID *uuid.UUID, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, tc, clubID, limit, offset)
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockMemberRepository) GetByID(ctx context.Context, tc *common.TenantContext, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, tc, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockMemberRepository) UpdateProfile(ctx context.Context, tc *common.TenantContext, id uuid.UUID, update models.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, tc, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockMemberRepository) Delete(ctx context.Context, tc *common.TenantContext, id uuid.UUID) error {
	args := m.Called(ctx, tc, id)
	return args.Error(0)
}

type MockAuditLogsRepository struct {
	mock.Mock
}

func (m *MockAuditLogsRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditLogsRepository) ListByClub(ctx context.Context, tc *common.TenantContext, clubID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error) {
	args := m.Called(ctx, tc, clubID, limit, offset)
	return args.Get(0).([]*models.AuditEvent), args.Error(1)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateLimiter) Reset(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockRateLimiter) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// capturingDispatcher keeps every message so tests can pull the raw token
// out of the link, the way a recipient would.
type capturingDispatcher struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (d *capturingDispatcher) Dispatch(_ context.Context, msg notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return d.err
}

func (d *capturingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

func (d *capturingDispatcher) last() notify.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.messages[len(d.messages)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (s *recordingSink) Record(_ context.Context, event models.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

type storedUser struct {
	user  models.User
	slots map[models.TokenKind]models.TokenSlot
}

// memoryUserStore is an in-memory UserRepository with the same single-use
// consumption rules as the database: the slot is checked and cleared under
// one lock.
type memoryUserStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*storedUser
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{byID: map[uuid.UUID]*storedUser{}}
}

func (s *memoryUserStore) put(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	s.byID[user.ID] = &storedUser{user: user, slots: map[models.TokenKind]models.TokenSlot{}}
}

func (s *memoryUserStore) slot(id uuid.UUID, kind models.TokenKind) models.TokenSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id].slots[kind]
}

func (s *memoryUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	su, ok := s.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	u := su.user
	return &u, nil
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, su := range s.byID {
		if su.user.Email == strings.ToLower(email) {
			u := su.user
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *memoryUserStore) Create(_ context.Context, user *models.User, issue *repositories.TokenIssue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, su := range s.byID {
		if su.user.Email == strings.ToLower(user.Email) {
			return &common.ConflictError{Constraint: "users_email_key"}
		}
	}
	su := &storedUser{user: *user, slots: map[models.TokenKind]models.TokenSlot{}}
	if issue != nil {
		hash, exp := issue.Hash, issue.ExpiresAt
		su.slots[issue.Kind] = models.TokenSlot{Hash: &hash, ExpiresAt: &exp}
	}
	s.byID[user.ID] = su
	return nil
}

func (s *memoryUserStore) SetToken(_ context.Context, userID uuid.UUID, issue repositories.TokenIssue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	su, ok := s.byID[userID]
	if !ok {
		return common.ErrNotFound
	}
	hash, exp := issue.Hash, issue.ExpiresAt
	su.slots[issue.Kind] = models.TokenSlot{Hash: &hash, ExpiresAt: &exp}
	return nil
}

func (s *memoryUserStore) ConsumeToken(_ context.Context, userID uuid.UUID, c repositories.TokenConsumption) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	su, ok := s.byID[userID]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	slot := su.slots[c.Kind]
	if slot.IsEmpty() || !c.Verify(slot) {
		return nil, common.ErrInvalidToken
	}
	if c.RequireActive && !su.user.IsActive {
		return nil, common.ErrForbidden
	}
	delete(su.slots, c.Kind)

	if c.PasswordHash != nil {
		hash := *c.PasswordHash
		su.user.PasswordHash = &hash
	}
	if c.FirstName != nil {
		su.user.FirstName = *c.FirstName
	}
	if c.LastName != nil {
		su.user.LastName = *c.LastName
	}
	if c.Activate {
		su.user.IsActive = true
	}
	if c.AcceptInvitation && su.user.InvitationStatus == models.InvitationPending {
		su.user.InvitationStatus = models.InvitationAccepted
	}
	if c.VerifyEmail {
		su.user.EmailVerified = true
	}
	u := su.user
	return &u, nil
}

func (s *memoryUserStore) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if su, ok := s.byID[id]; ok {
		su.user.LastLoginAt = &at
	}
	return nil
}

func (s *memoryUserStore) ClearExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, su := range s.byID {
		for kind, slot := range su.slots {
			if slot.ExpiresAt != nil && !slot.ExpiresAt.After(now) {
				delete(su.slots, kind)
				n++
			}
		}
	}
	return n, nil
}
