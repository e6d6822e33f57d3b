package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kwabena-dev/courseattend-api/internal/models"
	"github.com/kwabena-dev/courseattend-api/internal/service"
	appErrors "github.com/kwabena-dev/courseattend-api/pkg/errors"
	"github.com/kwabena-dev/courseattend-api/pkg/response"
)

// AttendanceHandler exposes attendance marking, check-in and summary
// endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

type attendanceStatusPayload struct {
	Status string `json:"status" binding:"required"`
}

// BulkMark godoc
// @Summary Replace a session's attendance set
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body service.BulkAttendanceRequest true "Attendance list"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance [post]
func (h *AttendanceHandler) BulkMark(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req service.BulkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	records, err := h.attendance.BulkMark(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, fmt.Sprintf("attendance recorded for %d students", len(records)), records)
}

// MarkOne godoc
// @Summary Mark or re-mark a single student
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body service.MarkAttendanceRequest true "Attendance entry"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance/mark [put]
func (h *AttendanceHandler) MarkOne(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.attendance.MarkOne(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "attendance recorded", record)
}

// UpdateOne godoc
// @Summary Update an existing attendance record's status
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param studentId path string true "Student ID"
// @Param payload body attendanceStatusPayload true "New status"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance/{studentId} [put]
func (h *AttendanceHandler) UpdateOne(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var payload attendanceStatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.attendance.UpdateOne(c.Request.Context(), caller, c.Param("id"), c.Param("studentId"), models.AttendanceStatus(payload.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "attendance updated", record)
}

// SelfMark godoc
// @Summary Check in with an attendance code
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SelfMarkRequest true "Attendance code"
// @Success 200 {object} response.Envelope
// @Router /attendance/checkin [post]
func (h *AttendanceHandler) SelfMark(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req service.SelfMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.attendance.SelfMark(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	message := "attendance recorded"
	if result.AlreadyMarked {
		message = "attendance already recorded"
	}
	response.Message(c, http.StatusOK, message, result)
}

// SessionAttendance godoc
// @Summary List a session's attendance records
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance [get]
func (h *AttendanceHandler) SessionAttendance(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	view, err := h.attendance.SessionAttendance(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// MyHistory godoc
// @Summary List the caller's attendance history
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /attendance/mine [get]
func (h *AttendanceHandler) MyHistory(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	entries, err := h.attendance.StudentHistory(c.Request.Context(), caller, "")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// StudentHistory godoc
// @Summary Attendance history for a specific student
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/students/{id} [get]
func (h *AttendanceHandler) StudentHistory(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	entries, err := h.attendance.StudentHistory(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// CourseSummary godoc
// @Summary Per-student attendance summary for a course
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance/summary [get]
func (h *AttendanceHandler) CourseSummary(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	summary, err := h.attendance.CourseSummary(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ExportCourseSummary godoc
// @Summary Export a course attendance summary as CSV or PDF
// @Tags Attendance
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /courses/{id}/attendance/export [get]
func (h *AttendanceHandler) ExportCourseSummary(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	result, err := h.attendance.ExportCourseSummary(c.Request.Context(), caller, c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
