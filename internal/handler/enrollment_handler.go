package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kwabena-dev/courseattend-api/internal/models"
	"github.com/kwabena-dev/courseattend-api/internal/service"
	appErrors "github.com/kwabena-dev/courseattend-api/pkg/errors"
	"github.com/kwabena-dev/courseattend-api/pkg/response"
)

// EnrollmentHandler exposes the enrollment workflow endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

type enrollmentRequestPayload struct {
	CourseID string `json:"course_id" binding:"required"`
}

type enrollmentReviewPayload struct {
	Action string `json:"action" binding:"required"`
}

// Request godoc
// @Summary Request enrollment in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body enrollmentRequestPayload true "Course reference"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Request(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var payload enrollmentRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.enrollments.Request(c.Request.Context(), caller, payload.CourseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "enrollment requested", request)
}

// Review godoc
// @Summary Approve or reject a pending enrollment request
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body enrollmentReviewPayload true "Decision"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/review [put]
func (h *EnrollmentHandler) Review(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var payload enrollmentReviewPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.enrollments.Review(c.Request.Context(), caller, c.Param("id"), models.ReviewAction(payload.Action))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "enrollment request "+string(request.Status), request)
}

// ListMine godoc
// @Summary List the caller's enrollment requests
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /enrollments/mine [get]
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	requests, err := h.enrollments.ListMine(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// ListEnrolledCourses godoc
// @Summary List the caller's enrolled courses
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /enrollments/courses [get]
func (h *EnrollmentHandler) ListEnrolledCourses(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	courses, err := h.enrollments.ListEnrolledCourses(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// ListForInstructor godoc
// @Summary List enrollment requests across the caller's courses
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter: pending"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) ListForInstructor(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	pendingOnly := c.Query("status") == string(models.EnrollmentStatusPending)
	requests, err := h.enrollments.ListForInstructor(c.Request.Context(), caller, pendingOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}
