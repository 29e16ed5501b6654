package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/datasync"
	"github.com/shrimpsizemoose/semla/internal/metrics"
	"github.com/shrimpsizemoose/semla/internal/models"
)

type AssignmentHandler struct {
	service *app.Service
}

func NewAssignmentHandler(service *app.Service) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

func (h *AssignmentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if _, err := requireSession(r, h.service); err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	assignments := h.service.Syncer.Assignments()

	rows := make([]map[string]interface{}, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, map[string]interface{}{
			"assignment":     a,
			"overdue":        datasync.Overdue(a, now),
			"days_until_due": datasync.DaysUntilDue(a, now),
			"due_label":      datasync.DueLabel(a, now),
			"penalty_label":  datasync.LatePenaltyLabel(a),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows": rows,
	})
}

type createAssignmentRequest struct {
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	DueDate             time.Time `json:"due_date"`
	MaxMarks            int       `json:"max_marks"`
	AllowLateSubmission bool      `json:"allow_late_submission"`
	PenaltyPercentage   *float64  `json:"penalty_percentage,omitempty"`
}

func (h *AssignmentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.APIRequestDuration.WithLabelValues(
			r.URL.Path,
			r.Method,
			"200",
		).Observe(time.Since(start).Seconds())
	}()

	if _, err := requireSession(r, h.service); err != nil {
		writeError(w, err)
		return
	}

	var req createAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.service.Syncer.CreateAssignment(datasync.AssignmentDraft{
		Title:               req.Title,
		Description:         req.Description,
		DueDate:             req.DueDate,
		MaxMarks:            req.MaxMarks,
		AllowLateSubmission: req.AllowLateSubmission,
		PenaltyPercentage:   req.PenaltyPercentage,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.AssignmentsCreated.Inc()
	writeJSON(w, http.StatusCreated, created)
}

func (h *AssignmentHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if _, err := requireSession(r, h.service); err != nil {
		writeError(w, err)
		return
	}

	user := h.service.Syncer.User()
	if user == nil {
		writeError(w, models.ErrPermissionDenied)
		return
	}

	assignments := h.service.Syncer.Assignments()
	submissions := h.service.Syncer.Submissions()

	var stats interface{}
	if user.Role == models.RoleTeacher {
		stats = datasync.TeacherDashboard(assignments, submissions)
	} else {
		stats = datasync.StudentDashboard(assignments, submissions, user.ID, time.Now())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats": stats,
	})
}
