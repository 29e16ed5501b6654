package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/datasync"
	"github.com/shrimpsizemoose/semla/internal/metrics"
)

const maxUploadBytes = 32 << 20

type SubmissionHandler struct {
	service *app.Service
}

func NewSubmissionHandler(service *app.Service) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

// HandleSubmit takes a multipart form with one or more "files" parts and
// submits them for the assignment in the path.
func (h *SubmissionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
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

	assignmentID := r.PathValue("id")
	if assignmentID == "" {
		http.Error(w, "Invalid assignment id", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		http.Error(w, "No files attached", http.StatusBadRequest)
		return
	}

	files := make([]datasync.IncomingFile, 0, len(parts))
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read %s", part.Filename), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read %s", part.Filename), http.StatusBadRequest)
			return
		}
		files = append(files, datasync.IncomingFile{
			Name:        part.Filename,
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	submission, err := h.service.Syncer.SubmitAssignment(r.Context(), assignmentID, files)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.SubmissionsTotal.WithLabelValues(fmt.Sprintf("%t", submission.IsLate)).Inc()
	writeJSON(w, http.StatusCreated, submission)
}

func (h *SubmissionHandler) HandleAssignmentSubmissions(w http.ResponseWriter, r *http.Request) {
	if _, err := requireSession(r, h.service); err != nil {
		writeError(w, err)
		return
	}

	assignmentID := r.PathValue("id")
	if assignmentID == "" {
		http.Error(w, "Invalid assignment id", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows": h.service.Syncer.AssignmentSubmissions(assignmentID),
	})
}

func (h *SubmissionHandler) HandleStudentSubmissions(w http.ResponseWriter, r *http.Request) {
	if _, err := requireSession(r, h.service); err != nil {
		writeError(w, err)
		return
	}

	studentID := r.PathValue("id")
	if studentID == "" {
		http.Error(w, "Invalid student id", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows": h.service.Syncer.StudentSubmissions(studentID),
	})
}

type gradeRequest struct {
	Marks    int    `json:"marks"`
	Feedback string `json:"feedback"`
}

func (h *SubmissionHandler) HandleGrade(w http.ResponseWriter, r *http.Request) {
	if _, err := requireSession(r, h.service); err != nil {
		writeError(w, err)
		return
	}

	submissionID := r.PathValue("id")
	if submissionID == "" {
		http.Error(w, "Invalid submission id", http.StatusBadRequest)
		return
	}

	var req gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Syncer.GradeSubmission(submissionID, req.Marks, req.Feedback); err != nil {
		writeError(w, err)
		return
	}

	metrics.GradesRecorded.Inc()
	metrics.MarksHistogram.Observe(float64(req.Marks))

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleFile streams an object back by its storage key. This is the
// public URL surface for the filesystem blob backend.
func (h *SubmissionHandler) HandleFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		http.Error(w, "Invalid file key", http.StatusBadRequest)
		return
	}

	rc, err := h.service.Blobs.Download(r.Context(), key)
	if err != nil {
		logger.Debug.Printf("File not found: %s", key)
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	defer rc.Close()

	if _, err := io.Copy(w, rc); err != nil {
		logger.Debug.Printf("Failed to stream %s: %v", key, err)
	}
}
