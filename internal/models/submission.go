package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type SubmissionStatus string

const (
	StatusSubmitted SubmissionStatus = "submitted"
	StatusGraded    SubmissionStatus = "graded"
)

// FileRef points at an uploaded object. The bytes live in object storage,
// only the reference is stored with the submission.
type FileRef struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// FileRefs is stored as a JSON column, order matters.
type FileRefs []FileRef

// Value encodes to a string so the driver writes it as text, not bytea.
func (f FileRefs) Value() (driver.Value, error) {
	if f == nil {
		f = FileRefs{}
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *FileRefs) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	case nil:
		*f = FileRefs{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into FileRefs", src)
	}
}

// Submission is unique per (assignment_id, student_id); a resubmission
// replaces the existing row rather than adding a new one.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id" validate:"required"`
	StudentID    string           `db:"student_id" json:"student_id" validate:"required"`
	StudentName  string           `db:"student_name" json:"student_name,omitempty"`
	SubmittedAt  time.Time        `db:"submitted_at" json:"submitted_at"`
	Files        FileRefs         `db:"files" json:"files"`
	IsLate       bool             `db:"is_late" json:"is_late"`
	Marks        *int             `db:"marks" json:"marks,omitempty"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	Status       SubmissionStatus `db:"status" json:"status" validate:"required,oneof=submitted graded"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

func (s *Submission) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return err
	}
	if s.Status == StatusGraded && s.Marks == nil {
		return fmt.Errorf("graded submission requires marks")
	}
	return nil
}

// Graded reports whether marks/feedback are meaningful on this record.
func (s *Submission) Graded() bool {
	return s.Status == StatusGraded
}
