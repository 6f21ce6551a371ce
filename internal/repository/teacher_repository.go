package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/asproject/assignment-portal-api/internal/models"
)

// TeacherRepository manages persistence for teacher accounts.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns all teacher-role accounts, newest first. The admin account
// never carries the teacher role marker, so the filter excludes it.
func (r *TeacherRepository) List(ctx context.Context) ([]models.TeacherAccount, error) {
	const query = `SELECT id, name, password_hash, role, created_by, created_at, active FROM teachers WHERE role = $1 ORDER BY created_at DESC`
	var teachers []models.TeacherAccount
	if err := r.db.SelectContext(ctx, &teachers, query, models.RoleMarkerTeacher); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// FindActiveTeacher fetches a teacher by id filtered to role=teacher and
// active accounts, the lookup used by the login path.
func (r *TeacherRepository) FindActiveTeacher(ctx context.Context, id string) (*models.TeacherAccount, error) {
	const query = `SELECT id, name, password_hash, role, created_by, created_at, active FROM teachers WHERE id = $1 AND role = $2 AND active = TRUE`
	var teacher models.TeacherAccount
	if err := r.db.GetContext(ctx, &teacher, query, id, models.RoleMarkerTeacher); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Exists checks whether a teacher id is already taken. This is the
// authoritative existence check used before creation.
func (r *TeacherRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM teachers WHERE id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check teacher id: %w", err)
	}
	return true, nil
}

// Create inserts a new teacher account record.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.TeacherAccount) error {
	if teacher.Role == "" {
		teacher.Role = models.RoleMarkerTeacher
	}
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO teachers (id, name, password_hash, role, created_by, created_at, active)
		VALUES (:id, :name, :password_hash, :role, :created_by, :created_at, :active)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Delete removes a teacher account by id. Deleting a missing id is not an
// error; the admin surface treats the operation as idempotent.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM teachers WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	return nil
}
