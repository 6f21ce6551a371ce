package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/asproject/assignment-portal-api/internal/models"
	"github.com/asproject/assignment-portal-api/internal/service"
	appErrors "github.com/asproject/assignment-portal-api/pkg/errors"
	"github.com/asproject/assignment-portal-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// TeacherLogin godoc
// @Summary Teacher login
// @Description Authenticate a teacher by ID and password
// @Tags Authentication
// @Accept x-www-form-urlencoded
// @Accept json
// @Produce json
// @Param teacher_id formData string true "Teacher ID"
// @Param password formData string true "Password"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /login [post]
func (h *AuthHandler) TeacherLogin(c *gin.Context) {
	var req models.TeacherLoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.TeacherLogin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// AdminLogin godoc
// @Summary Admin login
// @Description Authenticate the environment-provided admin credential
// @Tags Authentication
// @Accept x-www-form-urlencoded
// @Accept json
// @Produce json
// @Param username formData string true "Admin username"
// @Param password formData string true "Password"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /admin/login [post]
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req models.AdminLoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.AdminLogin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout
// @Description Acknowledges logout; access tokens are stateless and discarded client-side
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /logout [get]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.service.Logout(c.Request.Context(), claimsFromContext(c), c.ClientIP(), c.GetHeader("User-Agent"))
	response.JSON(c, http.StatusOK, gin.H{"message": "logged out"}, nil)
}
