package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/asproject/assignment-portal-api/internal/models"
	"github.com/asproject/assignment-portal-api/internal/service"
	appErrors "github.com/asproject/assignment-portal-api/pkg/errors"
	"github.com/asproject/assignment-portal-api/pkg/response"
)

type teacherService interface {
	List(ctx context.Context) ([]models.TeacherAccount, error)
	Create(ctx context.Context, req service.CreateTeacherRequest, actor *models.JWTClaims) (*models.TeacherAccount, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

type auditReader interface {
	ListByResource(ctx context.Context, resource string, limit int) ([]models.AuditLog, error)
}

// AdminHandler wires the admin-only teacher management endpoints.
type AdminHandler struct {
	teachers teacherService
	audits   auditReader
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(teachers teacherService, audits auditReader) *AdminHandler {
	return &AdminHandler{teachers: teachers, audits: audits}
}

// Dashboard godoc
// @Summary Admin dashboard
// @Description Returns the teacher roster for the admin dashboard
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	h.ListTeachers(c)
}

// ListTeachers godoc
// @Summary List teacher accounts
// @Description Returns all teacher accounts, newest first, with a count
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/teachers [get]
func (h *AdminHandler) ListTeachers(c *gin.Context) {
	teachers, err := h.teachers.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"teachers": teachers,
		"count":    len(teachers),
	}, nil)
}

// CreateTeacher godoc
// @Summary Create a teacher account
// @Description Registers a new teacher grader account
// @Tags Admin
// @Accept x-www-form-urlencoded
// @Accept json
// @Produce json
// @Param teacher_id formData string true "Teacher ID"
// @Param teacher_name formData string true "Display name"
// @Param password formData string true "Password (min 6 chars)"
// @Param confirm_password formData string true "Password confirmation"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/create-teacher [post]
func (h *AdminHandler) CreateTeacher(c *gin.Context) {
	var req service.CreateTeacherRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid teacher payload"))
		return
	}

	teacher, err := h.teachers.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, teacher)
}

// AuditTrail godoc
// @Summary List audit entries
// @Description Returns recent audit entries for a resource, newest first
// @Tags Admin
// @Produce json
// @Param resource query string false "Resource name" default(teachers)
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /admin/audit [get]
func (h *AdminHandler) AuditTrail(c *gin.Context) {
	if h.audits == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "audit store not configured"))
		return
	}

	resource := c.DefaultQuery("resource", "teachers")
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.audits.ListByResource(c.Request.Context(), resource, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	}, nil)
}

// DeleteTeacher godoc
// @Summary Delete a teacher account
// @Description Hard-deletes the teacher account; deleting a missing id still succeeds
// @Tags Admin
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /admin/delete-teacher/{id} [post]
func (h *AdminHandler) DeleteTeacher(c *gin.Context) {
	if err := h.teachers.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "teacher deleted"}, nil)
}
