package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/asproject/assignment-portal-api/internal/models"
	appErrors "github.com/asproject/assignment-portal-api/pkg/errors"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	TokenSecret   string
	TokenExpiry   time.Duration
	Issuer        string
	AdminUsername string
	// AdminPasswordHash is always a bcrypt hash; config loading hashes a
	// plaintext ADMIN_PASSWORD once. Empty means admin login is disabled.
	AdminPasswordHash string
}

// AuthService provides the teacher and admin login state machines. Teacher
// credentials run through a prioritized provider chain; the admin credential
// comes from the environment only.
type AuthService struct {
	providers []CredentialProvider
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(providers []CredentialProvider, audit auditLogger, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{providers: providers, audit: audit, validator: validate, logger: logger, config: config}
}

// TeacherLogin authenticates a teacher against the provider chain and
// returns an issued token. Failures are deliberately uniform: the response
// never reveals which credential source was consulted.
func (s *AuthService) TeacherLogin(ctx context.Context, req models.TeacherLoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	for _, provider := range s.providers {
		displayName, ok, err := provider.Verify(ctx, req.TeacherID, req.Password)
		if err != nil {
			s.logger.Warn("credential provider failed",
				zap.String("provider", provider.Name()), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		s.recordAuthAudit(ctx, req.TeacherID, models.AuditActionLogin, req.IP, req.UserAgent)
		return s.issueToken(req.TeacherID, displayName, models.UserRoleTeacher)
	}

	return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid teacher ID or password")
}

// AdminLogin authenticates the environment-provided admin credential.
// Absence of any password source is an unconditional failure.
func (s *AuthService) AdminLogin(ctx context.Context, req models.AdminLoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	if s.config.AdminPasswordHash == "" {
		s.logger.Warn("admin login attempted with no admin password configured")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid admin credentials")
	}
	if req.Username != s.config.AdminUsername {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid admin credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(s.config.AdminPasswordHash), []byte(req.Password)) != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid admin credentials")
	}

	s.recordAuthAudit(ctx, req.Username, models.AuditActionLogin, req.IP, req.UserAgent)
	return s.issueToken(req.Username, req.Username, models.UserRoleAdmin)
}

// Logout records the logout; tokens are stateless so discarding the token
// is the client's responsibility.
func (s *AuthService) Logout(ctx context.Context, claims *models.JWTClaims, ip, userAgent string) {
	if claims == nil {
		return
	}
	s.recordAuthAudit(ctx, claims.UserID, models.AuditActionLogout, ip, userAgent)
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) issueToken(userID, displayName string, role models.UserRole) (*models.LoginResponse, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.TokenExpiry)
	claims := &models.JWTClaims{
		UserID:      userID,
		DisplayName: displayName,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.LoginResponse{
		AccessToken: signed,
		ExpiresIn:   int64(s.config.TokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User: models.SessionInfo{
			ID:          userID,
			DisplayName: displayName,
			Role:        role,
		},
	}, nil
}

func (s *AuthService) recordAuthAudit(ctx context.Context, userID, action, ip, userAgent string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "auth",
		ResourceID: &userID,
		NewValues:  []byte(`{"status":"success"}`),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record auth audit log", zap.Error(err))
	}
}
