package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asproject/assignment-portal-api/internal/middleware"
	"github.com/asproject/assignment-portal-api/internal/models"
	"github.com/asproject/assignment-portal-api/internal/service"
	appErrors "github.com/asproject/assignment-portal-api/pkg/errors"
)

type submissionServiceMock struct {
	submitResp   *models.Submission
	submitErr    error
	gradeResp    *models.Submission
	gradeErr     error
	trackResp    *models.Submission
	trackErr     error
	listResp     []models.Submission
	listErr      error
	downloadResp *service.SubmissionDownload
	downloadErr  error

	lastSubmit service.SubmitRequest
	lastUpload service.SubmissionUpload
	lastGrade  service.GradeRequest
	lastTrack  string
	lastToken  string

	submitCalled bool
	gradeCalled  bool
}

func (m *submissionServiceMock) Submit(ctx context.Context, req service.SubmitRequest, upload service.SubmissionUpload) (*models.Submission, error) {
	m.submitCalled = true
	m.lastSubmit = req
	m.lastUpload = upload
	return m.submitResp, m.submitErr
}

func (m *submissionServiceMock) Grade(ctx context.Context, req service.GradeRequest, actor *models.JWTClaims) (*models.Submission, error) {
	m.gradeCalled = true
	m.lastGrade = req
	return m.gradeResp, m.gradeErr
}

func (m *submissionServiceMock) Track(ctx context.Context, trackingID string) (*models.Submission, error) {
	m.lastTrack = trackingID
	return m.trackResp, m.trackErr
}

func (m *submissionServiceMock) List(ctx context.Context) ([]models.Submission, error) {
	return m.listResp, m.listErr
}

func (m *submissionServiceMock) Download(ctx context.Context, token string) (*service.SubmissionDownload, error) {
	m.lastToken = token
	return m.downloadResp, m.downloadErr
}

type exporterMock struct {
	resp *service.ExportFile
	err  error
}

func (m *exporterMock) ExportSubmissions(ctx context.Context, format string) (*service.ExportFile, error) {
	return m.resp, m.err
}

func multipartSubmission(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func submissionFields() map[string]string {
	return map[string]string{
		"name":    "Riya Sharma",
		"erp":     "ERP-2043",
		"branch":  "CSE",
		"section": "B",
		"subject": "Operating Systems",
	}
}

func TestSubmissionHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{
		submitResp: &models.Submission{TrackingID: "ab12cd34ef", StudentName: "Riya Sharma"},
	}
	handler := NewSubmissionHandler(mockSvc, nil, nil)

	body, contentType := multipartSubmission(t, submissionFields(), "essay.pdf", "file-bytes")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.submitCalled)
	assert.Equal(t, "Riya Sharma", mockSvc.lastSubmit.Name)
	assert.Equal(t, "essay.pdf", mockSvc.lastUpload.Filename)

	uploaded, err := io.ReadAll(mockSvc.lastUpload.Content)
	require.NoError(t, err)
	assert.Equal(t, "file-bytes", string(uploaded))

	var envelope struct {
		Data struct {
			TrackingID string `json:"tracking_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "ab12cd34ef", envelope.Data.TrackingID)
}

func TestSubmissionHandlerSubmitWithoutFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{}
	handler := NewSubmissionHandler(mockSvc, nil, nil)

	body, contentType := multipartSubmission(t, submissionFields(), "", "")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.submitCalled)
}

func TestSubmissionHandlerTrack(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{
		trackResp: &models.Submission{TrackingID: "ab12cd34ef"},
	}
	handler := NewSubmissionHandler(mockSvc, nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/track?tracking_id=ab12cd34ef", nil)
	c.Request = req

	handler.Track(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ab12cd34ef", mockSvc.lastTrack)
}

func TestSubmissionHandlerTrackNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{
		trackErr: appErrors.Clone(appErrors.ErrNotFound, "tracking ID not found"),
	}
	handler := NewSubmissionHandler(mockSvc, nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/track?tracking_id=0000000000", nil)
	c.Request = req

	handler.Track(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmissionHandlerGrade(t *testing.T) {
	gin.SetMode(gin.TestMode)
	marks := "88"
	mockSvc := &submissionServiceMock{
		gradeResp: &models.Submission{TrackingID: "ab12cd34ef", Marks: &marks},
	}
	handler := NewSubmissionHandler(mockSvc, nil, nil)

	form := url.Values{}
	form.Set("tracking_id", "ab12cd34ef")
	form.Set("marks", "88")
	form.Set("remark", "solid")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/grade", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t.kumar", Role: models.UserRoleTeacher})

	handler.Grade(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.gradeCalled)
	assert.Equal(t, "ab12cd34ef", mockSvc.lastGrade.TrackingID)
	assert.Equal(t, "88", mockSvc.lastGrade.Marks)
}

func TestSubmissionHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{
		listResp: []models.Submission{
			{TrackingID: "ab12cd34ef", SubmittedAt: time.Now()},
			{TrackingID: "ff00aa11bb", SubmittedAt: time.Now()},
		},
	}
	handler := NewSubmissionHandler(mockSvc, nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/teacher", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.Data.Count)
}

func TestSubmissionHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSubmissionHandler(&submissionServiceMock{}, &exporterMock{
		resp: &service.ExportFile{Content: []byte("a,b\n"), Filename: "submissions.csv", ContentType: "text/csv"},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/teacher/export?format=csv", nil)
	c.Request = req

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "submissions.csv")
	assert.Equal(t, "a,b\n", w.Body.String())
}

func TestSubmissionHandlerFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{
		downloadResp: &service.SubmissionDownload{
			File:       io.NopCloser(strings.NewReader("pdf-bytes")),
			Filename:   "essay.pdf",
			TrackingID: "ab12cd34ef",
		},
	}
	handler := NewSubmissionHandler(mockSvc, nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/files/some-token", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "some-token"}}

	handler.File(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "some-token", mockSvc.lastToken)
	assert.Equal(t, "pdf-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "essay.pdf")
}

func TestSubmissionHandlerFileBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &submissionServiceMock{
		downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired file token"),
	}
	handler := NewSubmissionHandler(mockSvc, nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/files/bad", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.File(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
