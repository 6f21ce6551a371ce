package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/asproject/assignment-portal-api/internal/models"
	"github.com/asproject/assignment-portal-api/internal/service"
	appErrors "github.com/asproject/assignment-portal-api/pkg/errors"
	"github.com/asproject/assignment-portal-api/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, req service.SubmitRequest, upload service.SubmissionUpload) (*models.Submission, error)
	Grade(ctx context.Context, req service.GradeRequest, actor *models.JWTClaims) (*models.Submission, error)
	Track(ctx context.Context, trackingID string) (*models.Submission, error)
	List(ctx context.Context) ([]models.Submission, error)
	Download(ctx context.Context, token string) (*service.SubmissionDownload, error)
}

type submissionExporter interface {
	ExportSubmissions(ctx context.Context, format string) (*service.ExportFile, error)
}

// SubmissionHandler wires the student and grading endpoints.
type SubmissionHandler struct {
	service  submissionService
	exporter submissionExporter
	metrics  *service.MetricsService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(svc submissionService, exporter submissionExporter, metrics *service.MetricsService) *SubmissionHandler {
	return &SubmissionHandler{service: svc, exporter: exporter, metrics: metrics}
}

// Submit godoc
// @Summary Submit an assignment
// @Description Accepts the student submission form and returns a tracking ID
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Student name"
// @Param erp formData string true "ERP number"
// @Param branch formData string true "Branch"
// @Param section formData string true "Section"
// @Param subject formData string true "Subject"
// @Param description formData string false "Description"
// @Param file formData file true "Assignment file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /submit [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}

	upload := service.SubmissionUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  reader,
	}

	sub, err := h.service.Submit(c.Request.Context(), req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordSubmission(fileHeader.Size)
	response.JSON(c, http.StatusCreated, gin.H{
		"tracking_id": sub.TrackingID,
		"submission":  sub,
	}, nil)
}

// Track godoc
// @Summary Track a submission
// @Description Looks up a submission by tracking ID
// @Tags Submissions
// @Produce json
// @Param tracking_id query string true "Tracking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /track [get]
func (h *SubmissionHandler) Track(c *gin.Context) {
	trackingID := strings.TrimSpace(c.Query("tracking_id"))
	if trackingID == "" {
		trackingID = strings.TrimSpace(c.PostForm("tracking_id"))
	}

	sub, err := h.service.Track(c.Request.Context(), trackingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, sub, nil)
}

// List godoc
// @Summary List all submissions
// @Description Returns every submission, newest first, for the grading dashboard
// @Tags Submissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teacher [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	subs, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"submissions": subs,
		"count":       len(subs),
	}, nil)
}

// Grade godoc
// @Summary Grade a submission
// @Description Overwrites the grading fields of the submission
// @Tags Submissions
// @Accept x-www-form-urlencoded
// @Produce json
// @Param tracking_id formData string true "Tracking ID"
// @Param marks formData string false "Marks"
// @Param remark formData string false "Remark"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grade [post]
func (h *SubmissionHandler) Grade(c *gin.Context) {
	var req service.GradeRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grade payload"))
		return
	}

	sub, err := h.service.Grade(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordGrade()
	response.JSON(c, http.StatusOK, sub, nil)
}

// Export godoc
// @Summary Export submissions
// @Description Downloads the full submission listing as CSV or PDF
// @Tags Submissions
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /teacher/export [get]
func (h *SubmissionHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}

	file, err := h.exporter.ExportSubmissions(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// File godoc
// @Summary Download a submitted file
// @Description Streams the stored file addressed by a signed token
// @Tags Submissions
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *SubmissionHandler) File(c *gin.Context) {
	download, err := h.service.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, download.File); err != nil {
		_ = c.Error(err)
	}
}
