package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asproject/assignment-portal-api/internal/models"
	"github.com/asproject/assignment-portal-api/internal/repository"
	appErrors "github.com/asproject/assignment-portal-api/pkg/errors"
)

type mockSubmissionRepo struct {
	submissions map[string]models.Submission
	duplicates  int
	createCalls int
	err         error
}

func (m *mockSubmissionRepo) Create(ctx context.Context, sub *models.Submission) error {
	m.createCalls++
	if m.err != nil {
		return m.err
	}
	if m.duplicates > 0 {
		m.duplicates--
		return fmt.Errorf("insert submission: %w", repository.ErrDuplicateTrackingID)
	}
	if m.submissions == nil {
		m.submissions = make(map[string]models.Submission)
	}
	m.submissions[sub.TrackingID] = *sub
	return nil
}

func (m *mockSubmissionRepo) FindByTrackingID(ctx context.Context, trackingID string) (*models.Submission, error) {
	if m.err != nil {
		return nil, m.err
	}
	if sub, ok := m.submissions[trackingID]; ok {
		copied := sub
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) List(ctx context.Context) ([]models.Submission, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Submission, 0, len(m.submissions))
	for _, sub := range m.submissions {
		out = append(out, sub)
	}
	return out, nil
}

func (m *mockSubmissionRepo) Update(ctx context.Context, sub *models.Submission) error {
	if m.err != nil {
		return m.err
	}
	if m.submissions == nil {
		m.submissions = make(map[string]models.Submission)
	}
	m.submissions[sub.TrackingID] = *sub
	return nil
}

type mockBlobStore struct {
	saved map[string][]byte
	err   error
}

func (m *mockBlobStore) SaveStream(filename string, r io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = content
	return filename, nil
}

func (m *mockBlobStore) Open(filename string) (io.ReadCloser, error) {
	content, ok := m.saved[filename]
	if !ok {
		return nil, fmt.Errorf("no such file %s", filename)
	}
	return io.NopCloser(strings.NewReader(string(content))), nil
}

func (m *mockBlobStore) Delete(filename string) error {
	delete(m.saved, filename)
	return nil
}

type stubSigner struct{}

func (stubSigner) Generate(trackingID, relPath string) (string, time.Time, error) {
	return trackingID + ":" + relPath, time.Now().Add(time.Hour), nil
}

func (stubSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	return parts[0], parts[1], time.Now().Add(time.Hour), nil
}

// epochSigner invalidates every previously issued token when its epoch is
// advanced, standing in for signed links expiring.
type epochSigner struct {
	epoch int
}

func (s *epochSigner) Generate(trackingID, relPath string) (string, time.Time, error) {
	return fmt.Sprintf("%d:%s:%s", s.epoch, trackingID, relPath), time.Now().Add(time.Hour), nil
}

func (s *epochSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) != 3 {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	if parts[0] != fmt.Sprintf("%d", s.epoch) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return parts[1], parts[2], time.Now().Add(time.Hour), nil
}

// storingCache is an in-memory stand-in for the redis listing cache.
type storingCache struct {
	data map[string][]byte
}

func (c *storingCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *storingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = raw
	return nil
}

func (c *storingCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

type mockAuditLog struct {
	entries []models.AuditLog
}

func (m *mockAuditLog) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.entries = append(m.entries, *log)
	return nil
}

func newTestSubmissionService(repo *mockSubmissionRepo, store *mockBlobStore, audit *mockAuditLog) *SubmissionService {
	var sink auditLogger
	if audit != nil {
		sink = audit
	}
	return NewSubmissionService(repo, store, stubSigner{}, nil, 0, nil, sink, validator.New(), zap.NewNop(), SubmissionServiceConfig{})
}

func validSubmitRequest() SubmitRequest {
	return SubmitRequest{
		Name:    "Riya Sharma",
		ERP:     "ERP-2043",
		Branch:  "CSE",
		Section: "B",
		Subject: "Operating Systems",
	}
}

func uploadOf(name, content string) SubmissionUpload {
	return SubmissionUpload{
		Filename: name,
		Size:     int64(len(content)),
		MimeType: "application/pdf",
		Content:  strings.NewReader(content),
	}
}

func TestSubmissionServiceSubmit(t *testing.T) {
	repo := &mockSubmissionRepo{}
	store := &mockBlobStore{}
	svc := newTestSubmissionService(repo, store, nil)

	sub, err := svc.Submit(context.Background(), validSubmitRequest(), uploadOf("essay.pdf", "file-bytes"))
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Len(t, sub.TrackingID, trackingIDLength)
	assert.Nil(t, sub.Marks)
	assert.Nil(t, sub.Remark)
	assert.Nil(t, sub.GradedAt)
	assert.Equal(t, sub.TrackingID+"/essay.pdf", sub.FilePath)
	assert.Contains(t, sub.FileURL, "/files/")

	stored, ok := store.saved[sub.TrackingID+"/essay.pdf"]
	require.True(t, ok)
	assert.Equal(t, "file-bytes", string(stored))

	found, err := svc.Track(context.Background(), sub.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, "Riya Sharma", found.StudentName)
	assert.False(t, found.Graded())
}

func TestSubmissionServiceSubmitIDsAreUnique(t *testing.T) {
	repo := &mockSubmissionRepo{}
	store := &mockBlobStore{}
	svc := newTestSubmissionService(repo, store, nil)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		sub, err := svc.Submit(context.Background(), validSubmitRequest(), uploadOf("notes.pdf", "content"))
		require.NoError(t, err)
		assert.False(t, seen[sub.TrackingID])
		seen[sub.TrackingID] = true
	}
}

func TestSubmissionServiceSubmitMissingFieldRejectedBeforeStorage(t *testing.T) {
	repo := &mockSubmissionRepo{}
	store := &mockBlobStore{}
	svc := newTestSubmissionService(repo, store, nil)

	req := validSubmitRequest()
	req.Subject = ""
	_, err := svc.Submit(context.Background(), req, uploadOf("essay.pdf", "x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.saved)
	assert.Zero(t, repo.createCalls)
}

func TestSubmissionServiceSubmitMissingFileRejected(t *testing.T) {
	repo := &mockSubmissionRepo{}
	store := &mockBlobStore{}
	svc := newTestSubmissionService(repo, store, nil)

	_, err := svc.Submit(context.Background(), validSubmitRequest(), SubmissionUpload{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.saved)
}

func TestSubmissionServiceSubmitRetriesOnDuplicateTrackingID(t *testing.T) {
	repo := &mockSubmissionRepo{duplicates: 1}
	store := &mockBlobStore{}
	svc := newTestSubmissionService(repo, store, nil)

	sub, err := svc.Submit(context.Background(), validSubmitRequest(), uploadOf("essay.pdf", "file-bytes"))
	require.NoError(t, err)
	assert.Equal(t, 2, repo.createCalls)
	assert.Equal(t, "file-bytes", string(store.saved[sub.TrackingID+"/essay.pdf"]))

	// the blob stored under the colliding id was cleaned up
	assert.Len(t, store.saved, 1)
}

func TestSubmissionServiceSubmitGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := &mockSubmissionRepo{duplicates: createAttempts}
	store := &mockBlobStore{}
	svc := newTestSubmissionService(repo, store, nil)

	_, err := svc.Submit(context.Background(), validSubmitRequest(), uploadOf("essay.pdf", "x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceSubmitOversizedFileRejected(t *testing.T) {
	repo := &mockSubmissionRepo{}
	store := &mockBlobStore{}
	svc := NewSubmissionService(repo, store, stubSigner{}, nil, 0, nil, nil, validator.New(), zap.NewNop(), SubmissionServiceConfig{MaxFileSize: 4})

	_, err := svc.Submit(context.Background(), validSubmitRequest(), uploadOf("essay.pdf", "too large"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.saved)
}

func TestSubmissionServiceGrade(t *testing.T) {
	repo := &mockSubmissionRepo{}
	store := &mockBlobStore{}
	audit := &mockAuditLog{}
	svc := newTestSubmissionService(repo, store, audit)

	sub, err := svc.Submit(context.Background(), validSubmitRequest(), uploadOf("essay.pdf", "x"))
	require.NoError(t, err)

	actor := &models.JWTClaims{UserID: "t.kumar", Role: models.UserRoleTeacher}
	graded, err := svc.Grade(context.Background(), GradeRequest{TrackingID: sub.TrackingID, Marks: "88", Remark: "solid work"}, actor)
	require.NoError(t, err)
	require.NotNil(t, graded.Marks)
	assert.Equal(t, "88", *graded.Marks)
	require.NotNil(t, graded.Remark)
	assert.Equal(t, "solid work", *graded.Remark)
	assert.True(t, graded.Graded())

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionGrade, audit.entries[0].Action)

	// the stored record carries the grade
	found, err := svc.Track(context.Background(), sub.TrackingID)
	require.NoError(t, err)
	assert.True(t, found.Graded())
}

func TestSubmissionServiceGradeOverwrite(t *testing.T) {
	repo := &mockSubmissionRepo{}
	svc := newTestSubmissionService(repo, &mockBlobStore{}, nil)

	sub, err := svc.Submit(context.Background(), validSubmitRequest(), uploadOf("essay.pdf", "x"))
	require.NoError(t, err)

	_, err = svc.Grade(context.Background(), GradeRequest{TrackingID: sub.TrackingID, Marks: "60", Remark: "redo section 2"}, nil)
	require.NoError(t, err)
	regraded, err := svc.Grade(context.Background(), GradeRequest{TrackingID: sub.TrackingID, Marks: "75"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "75", *regraded.Marks)
	assert.Nil(t, regraded.Remark)
}

func TestSubmissionServiceGradeRepeatIsIdempotent(t *testing.T) {
	repo := &mockSubmissionRepo{}
	svc := newTestSubmissionService(repo, &mockBlobStore{}, nil)

	sub, err := svc.Submit(context.Background(), validSubmitRequest(), uploadOf("essay.pdf", "x"))
	require.NoError(t, err)

	req := GradeRequest{TrackingID: sub.TrackingID, Marks: "70", Remark: "well structured"}
	first, err := svc.Grade(context.Background(), req, nil)
	require.NoError(t, err)
	second, err := svc.Grade(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, *first.Marks, *second.Marks)
	assert.Equal(t, *first.Remark, *second.Remark)

	stored, err := svc.Track(context.Background(), sub.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, "70", *stored.Marks)
	assert.Equal(t, "well structured", *stored.Remark)
}

func TestSubmissionServiceGradeUnknownID(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"ab12cd34ef": {TrackingID: "ab12cd34ef", StudentName: "A"},
	}}
	svc := newTestSubmissionService(repo, &mockBlobStore{}, nil)

	_, err := svc.Grade(context.Background(), GradeRequest{TrackingID: "0000000000", Marks: "50"}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	// the existing record is untouched
	existing := repo.submissions["ab12cd34ef"]
	assert.False(t, existing.Graded())
}

func TestSubmissionServiceTrackUnknownID(t *testing.T) {
	svc := newTestSubmissionService(&mockSubmissionRepo{}, &mockBlobStore{}, nil)

	_, err := svc.Track(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceDownload(t *testing.T) {
	repo := &mockSubmissionRepo{}
	store := &mockBlobStore{}
	svc := newTestSubmissionService(repo, store, nil)

	sub, err := svc.Submit(context.Background(), validSubmitRequest(), uploadOf("report.pdf", "pdf-bytes"))
	require.NoError(t, err)

	token := strings.TrimPrefix(sub.FileURL, "/files/")
	download, err := svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(content))
	assert.Equal(t, "report.pdf", download.Filename)
	assert.Equal(t, sub.TrackingID, download.TrackingID)
}

func TestSubmissionServiceDownloadBadToken(t *testing.T) {
	svc := newTestSubmissionService(&mockSubmissionRepo{}, &mockBlobStore{}, nil)

	_, err := svc.Download(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceReadsMintFreshFileURLs(t *testing.T) {
	repo := &mockSubmissionRepo{}
	store := &mockBlobStore{}
	signer := &epochSigner{}
	svc := NewSubmissionService(repo, store, signer, nil, 0, nil, nil, validator.New(), zap.NewNop(), SubmissionServiceConfig{})

	sub, err := svc.Submit(context.Background(), validSubmitRequest(), uploadOf("report.pdf", "pdf-bytes"))
	require.NoError(t, err)
	staleToken := strings.TrimPrefix(sub.FileURL, "/files/")

	// every link issued so far expires
	signer.epoch++

	_, err = svc.Download(context.Background(), staleToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// a fresh lookup signs a new, working link
	found, err := svc.Track(context.Background(), sub.TrackingID)
	require.NoError(t, err)
	require.NotEqual(t, sub.FileURL, found.FileURL)

	download, err := svc.Download(context.Background(), strings.TrimPrefix(found.FileURL, "/files/"))
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(content))
}

func TestSubmissionServiceListRecordsCacheMetrics(t *testing.T) {
	repo := &mockSubmissionRepo{}
	store := &mockBlobStore{}
	cache := &storingCache{}
	metrics := NewMetricsService()
	svc := NewSubmissionService(repo, store, stubSigner{}, cache, time.Minute, metrics, nil, validator.New(), zap.NewNop(), SubmissionServiceConfig{})

	sub, err := svc.Submit(context.Background(), validSubmitRequest(), uploadOf("essay.pdf", "x"))
	require.NoError(t, err)

	_, err = svc.List(context.Background())
	require.NoError(t, err)
	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// cache-served records still carry a freshly signed link
	assert.Equal(t, sub.FilePath, listed[0].FilePath)
	assert.Contains(t, listed[0].FileURL, "/files/")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.cacheHitRatio))
}
