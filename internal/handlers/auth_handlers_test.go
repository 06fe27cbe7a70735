package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clubhub/internal/caching"
	"clubhub/internal/common"
	"clubhub/internal/models"
	"clubhub/internal/notify"
	"clubhub/internal/security"
	"clubhub/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "handler-test-signing-key-32-bytes-long"

type AuthHandlersTestSuite struct {
	suite.Suite
	users      *MockUserRepository
	clubs      *MockClubRepository
	auth       *MockAuthService
	dispatcher *countingDispatcher
	handlers   *AuthHandlers
	e          *echo.Echo
}

func (s *AuthHandlersTestSuite) SetupTest() {
	s.users = new(MockUserRepository)
	s.clubs = new(MockClubRepository)
	s.auth = new(MockAuthService)
	s.dispatcher = &countingDispatcher{}

	sessions, err := security.NewSessionIssuer(security.SessionConfig{SigningKey: testSigningKey})
	s.Require().NoError(err)
	links, err := notify.NewLinkBuilder("https://app.clubhub.test")
	s.Require().NoError(err)

	credentials, err := services.NewCredentialService(s.users, s.clubs, security.NewTokenHasher(bcrypt.MinCost),
		sessions, s.dispatcher, links, discardSink{}, caching.NoopRateLimiter{},
		services.CredentialConfig{TTLs: services.DefaultTokenTTLs(), AllowedTiers: []models.SubscriptionTier{models.TierFree}})
	s.Require().NoError(err)
	s.handlers = NewAuthHandlers(s.auth, credentials)

	s.e = echo.New()
	s.e.POST("/auth/login", s.handlers.Login)
	s.e.POST("/auth/forgot-password", s.handlers.ForgotPassword)
	s.e.POST("/auth/verify-email", s.handlers.VerifyEmail)
	s.e.POST("/auth/reset-password", s.handlers.ResetPassword)
}

func (s *AuthHandlersTestSuite) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *AuthHandlersTestSuite) errorBody(rec *httptest.ResponseRecorder) common.ErrorResponse {
	var body common.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *AuthHandlersTestSuite) TestForgotPassword_ResponsesDoNotRevealAccounts() {
	clubID := uuid.New()
	active := &models.User{ID: uuid.New(), Email: "active@club.test", Role: models.RoleCoach, ClubID: &clubID, IsActive: true}
	inactive := &models.User{ID: uuid.New(), Email: "off@club.test", Role: models.RoleCoach, ClubID: &clubID}

	s.users.On("GetByEmail", mock.Anything, "active@club.test").Return(active, nil).Once()
	s.users.On("GetByEmail", mock.Anything, "off@club.test").Return(inactive, nil).Once()
	s.users.On("GetByEmail", mock.Anything, "nonexistent@club.test").Return(nil, common.ErrNotFound).Once()
	s.users.On("SetToken", mock.Anything, active.ID, mock.Anything).Return(nil).Once()
	s.clubs.On("GetByID", mock.Anything, clubID).Return(&models.Club{ID: clubID, Name: "Riverside"}, nil).Once()

	existing := s.post("/auth/forgot-password", `{"email":"active@club.test"}`)
	missing := s.post("/auth/forgot-password", `{"email":"nonexistent@club.test"}`)
	deactivated := s.post("/auth/forgot-password", `{"email":"off@club.test"}`)

	s.Equal(http.StatusAccepted, existing.Code)
	s.Equal(existing.Code, missing.Code)
	s.Equal(existing.Code, deactivated.Code)
	s.Equal(existing.Body.String(), missing.Body.String())
	s.Equal(existing.Body.String(), deactivated.Body.String())
	s.Contains(existing.Body.String(), PasswordResetRequestedMessage)

	s.Equal(1, s.dispatcher.count())
	s.users.AssertExpectations(s.T())
}

func (s *AuthHandlersTestSuite) TestForgotPassword_StorageFailureLooksLikeSuccess() {
	s.users.On("GetByEmail", mock.Anything, "coach@club.test").Return(nil, common.ErrUnavailable).Once()

	rec := s.post("/auth/forgot-password", `{"email":"coach@club.test"}`)
	s.Equal(http.StatusAccepted, rec.Code)
	s.Zero(s.dispatcher.count())
}

func (s *AuthHandlersTestSuite) TestForgotPassword_MalformedEmail() {
	rec := s.post("/auth/forgot-password", `{"email":"not-an-email"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	body := s.errorBody(rec)
	s.Equal("VALIDATION_ERROR", body.Error.Code)
	s.Contains(body.Error.Details, "email")
	s.users.AssertNotCalled(s.T(), "GetByEmail", mock.Anything, mock.Anything)
}

func (s *AuthHandlersTestSuite) TestTokenFailuresShareOneMessage() {
	unknown := uuid.New()
	s.users.On("GetByID", mock.Anything, unknown).Return(nil, common.ErrNotFound).Once()
	wellFormed := strings.Repeat("ab", 32)

	malformed := s.post("/auth/verify-email", `{"user_id":"`+unknown.String()+`","token":"short"}`)
	noSuchUser := s.post("/auth/verify-email", `{"user_id":"`+unknown.String()+`","token":"`+wellFormed+`"}`)

	s.Equal(http.StatusBadRequest, malformed.Code)
	s.Equal(malformed.Code, noSuchUser.Code)
	s.Equal(malformed.Body.String(), noSuchUser.Body.String())
	s.Equal("INVALID_TOKEN", s.errorBody(malformed).Error.Code)
}

func (s *AuthHandlersTestSuite) TestResetPassword_RejectsBadUserID() {
	rec := s.post("/auth/reset-password", `{"user_id":"nope","token":"x","password":"longenough"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(s.errorBody(rec).Error.Details, "user_id")
}

func (s *AuthHandlersTestSuite) TestLogin() {
	result := &models.AuthResult{Token: "signed", TokenType: "Bearer", User: &models.UserView{Email: "coach@club.test"}}
	s.auth.On("Login", mock.Anything, "coach@club.test", "longenough1").Return(result, nil).Once()

	rec := s.post("/auth/login", `{"email":"coach@club.test","password":"longenough1"}`)
	s.Equal(http.StatusOK, rec.Code)

	var got models.AuthResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("signed", got.Token)
}

func (s *AuthHandlersTestSuite) TestLogin_ErrorMapping() {
	tests := []struct {
		err    error
		status int
	}{
		{common.ErrUnauthenticated, http.StatusUnauthorized},
		{common.ErrForbidden, http.StatusForbidden},
		{common.ErrRateLimited, http.StatusTooManyRequests},
		{common.ErrUnavailable, http.StatusServiceUnavailable},
		{common.ErrInternalInconsistency, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		s.auth.On("Login", mock.Anything, "coach@club.test", "pw").Return(nil, tt.err).Once()
		rec := s.post("/auth/login", `{"email":"coach@club.test","password":"pw"}`)
		s.Equal(tt.status, rec.Code, tt.err.Error())
	}
}

func (s *AuthHandlersTestSuite) TestLogin_MalformedBody() {
	rec := s.post("/auth/login", `{"email":`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.auth.AssertNotCalled(s.T(), "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlersTestSuite))
}

func TestResendVerification_RequiresIdentity(t *testing.T) {
	h := NewAuthHandlers(new(MockAuthService), nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/auth/resend-verification", nil), rec)

	if err := h.ResendVerification(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without identity, got %d", rec.Code)
	}
}
