package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/asproject/assignment-portal-api/internal/models"
)

// ErrDuplicateTrackingID is returned when an insert collides with an
// existing tracking id. The unique index makes collisions detectable at
// write time instead of silently coexisting.
var ErrDuplicateTrackingID = errors.New("duplicate tracking id")

const pqUniqueViolation = "23505"

// SubmissionRepository manages persistence for student submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs a SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new submission record.
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}

	const query = `INSERT INTO submissions (tracking_id, student_name, erp, branch, section, subject, description, file_path, submitted_at, marks, remark, graded_at)
		VALUES (:tracking_id, :student_name, :erp, :branch, :section, :subject, :description, :file_path, :submitted_at, :marks, :remark, :graded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateTrackingID
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByTrackingID fetches a submission by its tracking id. The tracking id
// is the primary key, so this is an indexed point read.
func (r *SubmissionRepository) FindByTrackingID(ctx context.Context, trackingID string) (*models.Submission, error) {
	const query = `SELECT tracking_id, student_name, erp, branch, section, subject, description, file_path, submitted_at, marks, remark, graded_at FROM submissions WHERE tracking_id = $1`
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, trackingID); err != nil {
		return nil, err
	}
	return &sub, nil
}

// List returns all submissions, newest first.
func (r *SubmissionRepository) List(ctx context.Context) ([]models.Submission, error) {
	const query = `SELECT tracking_id, student_name, erp, branch, section, subject, description, file_path, submitted_at, marks, remark, graded_at FROM submissions ORDER BY submitted_at DESC`
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// Update rewrites the entire record keyed by tracking id. Grading uses a
// full overwrite of the fetched record; concurrent graders race and the
// last writer wins.
func (r *SubmissionRepository) Update(ctx context.Context, sub *models.Submission) error {
	const query = `UPDATE submissions SET student_name = :student_name, erp = :erp, branch = :branch, section = :section, subject = :subject, description = :description, file_path = :file_path, submitted_at = :submitted_at, marks = :marks, remark = :remark, graded_at = :graded_at WHERE tracking_id = :tracking_id`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}
