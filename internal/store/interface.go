package store

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/semla/internal/models"
)

type Store interface {
	Close() error
	ApplyMigrations(dir string) error

	GetProfile(id string) (*models.Profile, error)
	GetProfileByEmail(email string) (*models.Profile, error)
	CreateProfile(profile *models.Profile) error

	ListAssignments() ([]models.Assignment, error)
	GetAssignment(id string) (*models.Assignment, error)
	CreateAssignment(assignment *models.Assignment) error

	ListSubmissions() ([]models.Submission, error)
	GetSubmission(id string) (*models.Submission, error)
	GetSubmissionForStudent(assignmentID, studentID string) (*models.Submission, error)
	UpsertSubmission(submission *models.Submission) error
	GradeSubmission(id string, marks int, feedback string) error
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
	Publisher Publisher
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *BaseStore) notify(table string) {
	if s.Publisher != nil {
		s.Publisher.Publish(table)
	}
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(fmt.Sprintf("%s/%s", dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

func (s *BaseStore) GetProfile(id string) (*models.Profile, error) {
	var profile models.Profile
	query := s.Converter(`
		SELECT id, name, email, password_hash, role, avatar_url, created_at, updated_at
		FROM profiles
		WHERE id = ?
	`)

	err := s.DB.Get(&profile, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (s *BaseStore) GetProfileByEmail(email string) (*models.Profile, error) {
	var profile models.Profile
	query := s.Converter(`
		SELECT id, name, email, password_hash, role, avatar_url, created_at, updated_at
		FROM profiles
		WHERE email = ?
	`)

	err := s.DB.Get(&profile, query, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return &profile, nil
}

func (s *BaseStore) CreateProfile(profile *models.Profile) error {
	now := time.Now().UTC()
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err := s.DB.NamedExec(`
		INSERT INTO profiles (id, name, email, password_hash, role, avatar_url, created_at, updated_at)
		VALUES (:id, :name, :email, :password_hash, :role, :avatar_url, :created_at, :updated_at)
	`, profile)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	s.notify(TableProfiles)
	return nil
}

func (s *BaseStore) ListAssignments() ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := s.DB.Select(&assignments, `
		SELECT id, title, description, due_date, created_by, max_marks,
		       allow_late_submission, penalty_percentage, created_at, updated_at
		FROM assignments
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return assignments, nil
}

func (s *BaseStore) GetAssignment(id string) (*models.Assignment, error) {
	var assignment models.Assignment
	query := s.Converter(`
		SELECT id, title, description, due_date, created_by, max_marks,
		       allow_late_submission, penalty_percentage, created_at, updated_at
		FROM assignments
		WHERE id = ?
	`)

	err := s.DB.Get(&assignment, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &assignment, nil
}

func (s *BaseStore) CreateAssignment(assignment *models.Assignment) error {
	now := time.Now().UTC()
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	_, err := s.DB.NamedExec(`
		INSERT INTO assignments (id, title, description, due_date, created_by, max_marks,
		                         allow_late_submission, penalty_percentage, created_at, updated_at)
		VALUES (:id, :title, :description, :due_date, :created_by, :max_marks,
		        :allow_late_submission, :penalty_percentage, :created_at, :updated_at)
	`, assignment)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	s.notify(TableAssignments)
	return nil
}

const submissionColumns = `
	s.id, s.assignment_id, s.student_id, p.name AS student_name,
	s.submitted_at, s.files, s.is_late, s.marks, s.feedback, s.status,
	s.created_at, s.updated_at
`

func (s *BaseStore) ListSubmissions() ([]models.Submission, error) {
	var submissions []models.Submission
	err := s.DB.Select(&submissions, `
		SELECT `+submissionColumns+`
		FROM submissions s
		JOIN profiles p ON p.id = s.student_id
		ORDER BY s.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

func (s *BaseStore) GetSubmission(id string) (*models.Submission, error) {
	var submission models.Submission
	query := s.Converter(`
		SELECT ` + submissionColumns + `
		FROM submissions s
		JOIN profiles p ON p.id = s.student_id
		WHERE s.id = ?
	`)

	err := s.DB.Get(&submission, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

func (s *BaseStore) GetSubmissionForStudent(assignmentID, studentID string) (*models.Submission, error) {
	var submission models.Submission
	query := s.Converter(`
		SELECT ` + submissionColumns + `
		FROM submissions s
		JOIN profiles p ON p.id = s.student_id
		WHERE s.assignment_id = ?
		AND s.student_id = ?
	`)

	err := s.DB.Get(&submission, query, assignmentID, studentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission for student: %w", err)
	}
	return &submission, nil
}

// UpsertSubmission inserts or replaces the row keyed by (assignment_id,
// student_id). A resubmission takes over files/timestamp/is_late and drops
// any prior grading: status goes back to 'submitted', marks and feedback
// are cleared.
func (s *BaseStore) UpsertSubmission(submission *models.Submission) error {
	now := time.Now().UTC()
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.StatusSubmitted
	}
	submission.CreatedAt = now
	submission.UpdatedAt = now

	_, err := s.DB.NamedExec(`
		INSERT INTO submissions (id, assignment_id, student_id, submitted_at, files,
		                         is_late, marks, feedback, status, created_at, updated_at)
		VALUES (:id, :assignment_id, :student_id, :submitted_at, :files,
		        :is_late, :marks, :feedback, :status, :created_at, :updated_at)
		ON CONFLICT(assignment_id, student_id) DO UPDATE SET
		submitted_at = :submitted_at,
		files = :files,
		is_late = :is_late,
		marks = NULL,
		feedback = NULL,
		status = 'submitted',
		updated_at = :updated_at
	`, submission)
	if err != nil {
		return fmt.Errorf("failed to upsert submission: %w", err)
	}

	// on the conflict path the row keeps its original id and created_at,
	// read them back so the caller holds the real row
	var stored struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	query := s.Converter(`
		SELECT id, created_at FROM submissions
		WHERE assignment_id = ? AND student_id = ?
	`)
	if err := s.DB.Get(&stored, query, submission.AssignmentID, submission.StudentID); err != nil {
		return fmt.Errorf("failed to read back submission: %w", err)
	}
	submission.ID = stored.ID
	submission.CreatedAt = stored.CreatedAt

	s.notify(TableSubmissions)
	return nil
}

func (s *BaseStore) GradeSubmission(id string, marks int, feedback string) error {
	query := s.Converter(`
		UPDATE submissions
		SET marks = ?, feedback = ?, status = 'graded', updated_at = ?
		WHERE id = ?
	`)

	res, err := s.DB.Exec(query, marks, feedback, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to grade submission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("submission %s does not exist", id)
	}

	s.notify(TableSubmissions)
	return nil
}
