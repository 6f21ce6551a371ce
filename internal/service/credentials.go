package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/asproject/assignment-portal-api/internal/models"
)

// CredentialProvider verifies a teacher id/password pair against a single
// credential source. Providers are consulted in priority order; the first
// match wins and all sources converge to the same authenticated state.
type CredentialProvider interface {
	// Name identifies the provider in logs.
	Name() string
	// Verify returns the display name for the account when the credentials
	// match. A failed match is (_, false, nil); err is reserved for
	// infrastructure failures, which callers treat as "try the next source".
	Verify(ctx context.Context, teacherID, password string) (displayName string, ok bool, err error)
}

type activeTeacherFinder interface {
	FindActiveTeacher(ctx context.Context, id string) (*models.TeacherAccount, error)
}

// DatabaseCredentialProvider checks the primary teacher-account store,
// restricted to active accounts with the teacher role.
type DatabaseCredentialProvider struct {
	repo activeTeacherFinder
}

// NewDatabaseCredentialProvider constructs the primary provider.
func NewDatabaseCredentialProvider(repo activeTeacherFinder) *DatabaseCredentialProvider {
	return &DatabaseCredentialProvider{repo: repo}
}

func (p *DatabaseCredentialProvider) Name() string { return "database" }

func (p *DatabaseCredentialProvider) Verify(ctx context.Context, teacherID, password string) (string, bool, error) {
	teacher, err := p.repo.FindActiveTeacher(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	if bcrypt.CompareHashAndPassword([]byte(teacher.PasswordHash), []byte(password)) != nil {
		return "", false, nil
	}
	return teacher.Name, true, nil
}

// LegacyFileCredentialProvider reads a flat JSON file mapping teacher id to
// password hash. It is the backward-compatibility fallback for accounts
// that predate the database store; the file is re-read on every
// verification since it is managed out of band.
type LegacyFileCredentialProvider struct {
	path   string
	logger *zap.Logger
}

// NewLegacyFileCredentialProvider constructs the fallback provider.
func NewLegacyFileCredentialProvider(path string, logger *zap.Logger) *LegacyFileCredentialProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LegacyFileCredentialProvider{path: path, logger: logger}
}

func (p *LegacyFileCredentialProvider) Name() string { return "legacy-file" }

func (p *LegacyFileCredentialProvider) Verify(ctx context.Context, teacherID, password string) (string, bool, error) {
	if p.path == "" {
		return "", false, nil
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}

	credentials := map[string]string{}
	if err := json.Unmarshal(raw, &credentials); err != nil {
		p.logger.Warn("legacy teachers file is not valid JSON", zap.String("path", p.path), zap.Error(err))
		return "", false, nil
	}

	hash, found := credentials[teacherID]
	if !found {
		return "", false, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", false, nil
	}

	// The legacy file carries no display name.
	return teacherID, true, nil
}
