package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/asproject/assignment-portal-api/internal/models"
	appErrors "github.com/asproject/assignment-portal-api/pkg/errors"
)

const teacherRosterCacheKey = "teachers:roster"

type teacherRepository interface {
	List(ctx context.Context) ([]models.TeacherAccount, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, teacher *models.TeacherAccount) error
	Delete(ctx context.Context, id string) error
}

// CreateTeacherRequest represents the admin form for creating teachers.
type CreateTeacherRequest struct {
	TeacherID       string `form:"teacher_id" json:"teacher_id" validate:"required"`
	TeacherName     string `form:"teacher_name" json:"teacher_name" validate:"required"`
	Password        string `form:"password" json:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password" validate:"required,eqfield=Password"`
}

// TeacherService manages the teacher account roster on behalf of the admin.
type TeacherService struct {
	repo      teacherRepository
	cache     listingCache
	cacheTTL  time.Duration
	metrics   *MetricsService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherRepository, cache listingCache, cacheTTL time.Duration, metrics *MetricsService, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, cache: cache, cacheTTL: cacheTTL, metrics: metrics, audit: audit, validator: validate, logger: logger}
}

// List returns all teacher accounts, newest first.
func (s *TeacherService) List(ctx context.Context) ([]models.TeacherAccount, error) {
	if s.cache != nil {
		var cached []models.TeacherAccount
		if err := s.cache.Get(ctx, teacherRosterCacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	teachers, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, teacherRosterCacheKey, teachers, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache teacher roster", zap.Error(err))
		}
	}

	return teachers, nil
}

// Create registers a new teacher account. The id must be free; the check is
// an authoritative point lookup against the primary key.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest, actor *models.JWTClaims) (*models.TeacherAccount, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	teacherID := strings.TrimSpace(req.TeacherID)
	exists, err := s.repo.Exists(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher ID already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	createdBy := "admin"
	if actor != nil {
		createdBy = actor.UserID
	}
	teacher := &models.TeacherAccount{
		ID:           teacherID,
		Name:         strings.TrimSpace(req.TeacherName),
		PasswordHash: string(hash),
		Role:         models.RoleMarkerTeacher,
		CreatedBy:    createdBy,
		Active:       true,
	}

	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}

	s.invalidateRoster(ctx)
	s.recordAudit(ctx, actor, models.AuditActionTeacherCreate, teacherID)

	return teacher, nil
}

// Delete removes a teacher account by id. The operation is idempotent:
// deleting a missing id still reports success to the admin.
func (s *TeacherService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if strings.TrimSpace(id) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "teacher ID is required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}

	s.invalidateRoster(ctx)
	s.recordAudit(ctx, actor, models.AuditActionTeacherDelete, id)

	return nil
}

func (s *TeacherService) invalidateRoster(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, teacherRosterCacheKey); err != nil {
		s.logger.Warn("failed to invalidate teacher roster cache", zap.Error(err))
	}
}

func (s *TeacherService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, teacherID string) {
	if s.audit == nil {
		return
	}
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "teachers",
		ResourceID: &teacherID,
	}); err != nil {
		s.logger.Warn("failed to record teacher audit log", zap.Error(err))
	}
}
