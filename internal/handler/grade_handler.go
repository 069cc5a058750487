package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type gradeService interface {
	Upload(ctx context.Context, teacherID string, req dto.UploadGradesRequest) (*dto.UploadGradesResult, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.Grade, error)
}

// GradeHandler serves grade upload and lookup.
type GradeHandler struct {
	service gradeService
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(svc gradeService) *GradeHandler {
	return &GradeHandler{service: svc}
}

// Upload godoc
// @Summary Upload unit grades
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.UploadGradesRequest true "Grades for one class and unit"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UploadGradesRequest
	if !bindJSON(c, &req, "invalid grade payload") {
		return
	}
	result, err := h.service.Upload(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ListForStudent godoc
// @Summary List a student's grades
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /grades/students/{id} [get]
func (h *GradeHandler) ListForStudent(c *gin.Context) {
	grades, err := h.service.ListForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades)
}
