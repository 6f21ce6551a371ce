package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asproject/assignment-portal-api/internal/models"
	"github.com/asproject/assignment-portal-api/internal/repository"
	appErrors "github.com/asproject/assignment-portal-api/pkg/errors"
	"github.com/asproject/assignment-portal-api/pkg/storage"
)

const (
	submissionListCacheKey = "submissions:list"
	trackingIDLength       = 10
	createAttempts         = 3
)

type submissionRepository interface {
	Create(ctx context.Context, sub *models.Submission) error
	FindByTrackingID(ctx context.Context, trackingID string) (*models.Submission, error)
	List(ctx context.Context) ([]models.Submission, error)
	Update(ctx context.Context, sub *models.Submission) error
}

type blobStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (io.ReadCloser, error)
	Delete(filename string) error
}

type downloadSigner interface {
	Generate(trackingID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (trackingID, relPath string, expiresAt time.Time, err error)
}

// SubmitRequest carries the student submission form fields.
type SubmitRequest struct {
	Name        string `form:"name" json:"name" validate:"required"`
	ERP         string `form:"erp" json:"erp" validate:"required"`
	Branch      string `form:"branch" json:"branch" validate:"required"`
	Section     string `form:"section" json:"section" validate:"required"`
	Subject     string `form:"subject" json:"subject" validate:"required"`
	Description string `form:"description" json:"description"`
}

// SubmissionUpload carries the attached file metadata and stream.
type SubmissionUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// GradeRequest carries the grading form fields.
type GradeRequest struct {
	TrackingID string `form:"tracking_id" json:"tracking_id" validate:"required"`
	Marks      string `form:"marks" json:"marks"`
	Remark     string `form:"remark" json:"remark"`
}

// SubmissionDownload bundles a stored file stream with response metadata.
type SubmissionDownload struct {
	File       io.ReadCloser
	Filename   string
	TrackingID string
}

// SubmissionServiceConfig holds upload validation parameters.
type SubmissionServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	FileURLBase  string
}

// SubmissionService orchestrates the submit, grade and track flows around
// the blob collaborator and the submissions store.
type SubmissionService struct {
	repo      submissionRepository
	storage   blobStore
	signer    downloadSigner
	cache     listingCache
	cacheTTL  time.Duration
	metrics   *MetricsService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SubmissionServiceConfig
	mimeSet   map[string]struct{}
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(repo submissionRepository, store blobStore, signer downloadSigner, cache listingCache, cacheTTL time.Duration, metrics *MetricsService, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg SubmissionServiceConfig) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 16 * 1024 * 1024
	}
	if cfg.FileURLBase == "" {
		cfg.FileURLBase = "/files"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &SubmissionService{
		repo:      repo,
		storage:   store,
		signer:    signer,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		mimeSet:   mimeSet,
	}
}

// Submit validates the form, stores the attached file, persists the record
// and returns the generated tracking id. Validation failures happen before
// any collaborator is touched. A stored file is not rolled back when the
// subsequent database write fails.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest, upload SubmissionUpload) (*models.Submission, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.ERP = strings.TrimSpace(req.ERP)
	req.Branch = strings.TrimSpace(req.Branch)
	req.Section = strings.TrimSpace(req.Section)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Description = strings.TrimSpace(req.Description)

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "please fill all required fields and attach the file")
	}
	if upload.Content == nil || upload.Filename == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "please fill all required fields and attach the file")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSize))
	}
	if len(s.mimeSet) > 0 {
		if _, ok := s.mimeSet[strings.ToLower(upload.MimeType)]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file type is not allowed")
		}
	}

	filename := storage.SafeFilename(upload.Filename)

	// Tracking ids are not guaranteed collision free, so the insert runs
	// under a unique constraint and retries with a fresh id.
	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		trackingID := newTrackingID()

		if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file")
		}

		blobName := trackingID + "/" + filename
		if _, err := s.storage.SaveStream(blobName, upload.Content); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("error storing file: %v", err))
		}

		sub := &models.Submission{
			TrackingID:  trackingID,
			StudentName: req.Name,
			ERP:         req.ERP,
			Branch:      req.Branch,
			Section:     req.Section,
			Subject:     req.Subject,
			Description: req.Description,
			FilePath:    blobName,
			SubmittedAt: time.Now().UTC(),
		}

		if err := s.repo.Create(ctx, sub); err != nil {
			if errors.Is(err, repository.ErrDuplicateTrackingID) {
				s.logger.Warn("tracking id collision, retrying", zap.String("tracking_id", trackingID))
				s.removeBlob(blobName)
				lastErr = err
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("error during submit: %v", err))
		}

		s.invalidateList(ctx)
		s.signFileURL(sub)
		return sub, nil
	}

	return nil, appErrors.Wrap(lastErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "failed to allocate a tracking ID")
}

// Grade looks up a submission by tracking id and overwrites its grading
// fields. The fetched record is rewritten wholesale; concurrent grade calls
// on the same id race and the last writer wins.
func (s *SubmissionService) Grade(ctx context.Context, req GradeRequest, actor *models.JWTClaims) (*models.Submission, error) {
	req.TrackingID = strings.TrimSpace(req.TrackingID)
	req.Remark = strings.TrimSpace(req.Remark)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "tracking ID is required")
	}

	sub, err := s.repo.FindByTrackingID(ctx, req.TrackingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("error updating grade: %v", err))
	}

	sub.Marks = optionalString(req.Marks)
	sub.Remark = optionalString(req.Remark)
	now := time.Now().UTC()
	sub.GradedAt = &now

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("error updating grade: %v", err))
	}

	s.invalidateList(ctx)
	s.recordGradeAudit(ctx, actor, sub.TrackingID)
	s.signFileURL(sub)

	return sub, nil
}

// Track returns the submission for a tracking id, or a not-found error.
func (s *SubmissionService) Track(ctx context.Context, trackingID string) (*models.Submission, error) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tracking ID is required")
	}

	sub, err := s.repo.FindByTrackingID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tracking ID not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up submission")
	}
	s.signFileURL(sub)
	return sub, nil
}

// List returns all submissions, newest first. Download links are signed
// per response; the cache only ever holds unsigned records.
func (s *SubmissionService) List(ctx context.Context) ([]models.Submission, error) {
	if s.cache != nil {
		var cached []models.Submission
		if err := s.cache.Get(ctx, submissionListCacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			for i := range cached {
				s.signFileURL(&cached[i])
			}
			return cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	subs, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("error loading submissions: %v", err))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, submissionListCacheKey, subs, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache submissions list", zap.Error(err))
		}
	}

	for i := range subs {
		s.signFileURL(&subs[i])
	}
	return subs, nil
}

// Download resolves a signed file token into the stored file stream.
func (s *SubmissionService) Download(ctx context.Context, token string) (*SubmissionDownload, error) {
	trackingID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired file token")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}

	parts := strings.Split(relPath, "/")
	return &SubmissionDownload{
		File:       file,
		Filename:   parts[len(parts)-1],
		TrackingID: trackingID,
	}, nil
}

// signFileURL mints a fresh download token for the record. Tokens expire,
// so they are generated at read time rather than persisted with the row.
func (s *SubmissionService) signFileURL(sub *models.Submission) {
	if sub == nil || sub.FilePath == "" {
		return
	}
	token, _, err := s.signer.Generate(sub.TrackingID, sub.FilePath)
	if err != nil {
		s.logger.Warn("failed to sign file URL", zap.String("tracking_id", sub.TrackingID), zap.Error(err))
		return
	}
	sub.FileURL = s.cfg.FileURLBase + "/" + token
}

func (s *SubmissionService) removeBlob(blobName string) {
	if err := s.storage.Delete(blobName); err != nil {
		s.logger.Warn("failed to remove stored file", zap.String("blob", blobName), zap.Error(err))
	}
}

func (s *SubmissionService) invalidateList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, submissionListCacheKey); err != nil {
		s.logger.Warn("failed to invalidate submissions cache", zap.Error(err))
	}
}

func (s *SubmissionService) recordGradeAudit(ctx context.Context, actor *models.JWTClaims, trackingID string) {
	if s.audit == nil {
		return
	}
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     models.AuditActionGrade,
		Resource:   "submissions",
		ResourceID: &trackingID,
	}); err != nil {
		s.logger.Warn("failed to record grade audit log", zap.Error(err))
	}
}

func newTrackingID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:trackingIDLength]
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
