package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/asproject/assignment-portal-api/pkg/response"
)

// PagesHandler serves the public landing descriptors that the web frontend
// renders. The API keeps these as JSON; HTML rendering lives client-side.
type PagesHandler struct{}

// NewPagesHandler constructs the handler.
func NewPagesHandler() *PagesHandler {
	return &PagesHandler{}
}

// Root redirects the bare root to the home page.
func (h *PagesHandler) Root(c *gin.Context) {
	c.Redirect(http.StatusFound, "/home")
}

// Home godoc
// @Summary Landing page descriptor
// @Tags Pages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /home [get]
func (h *PagesHandler) Home(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{
		"title": "Assignment Portal",
		"links": gin.H{
			"student": "/student",
			"track":   "/track",
			"login":   "/login",
		},
	}, nil)
}

// Student godoc
// @Summary Student portal descriptor
// @Tags Pages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student [get]
func (h *PagesHandler) Student(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{
		"title":  "Submit Assignment",
		"submit": "/submit",
		"fields": []string{"name", "erp", "branch", "section", "subject", "description", "file"},
	}, nil)
}
