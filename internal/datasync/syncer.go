package datasync

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/auth"
	"github.com/shrimpsizemoose/semla/internal/models"
	"github.com/shrimpsizemoose/semla/internal/storage"
	"github.com/shrimpsizemoose/semla/internal/store"
)

type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseLoading       Phase = "loading"
	PhaseReady         Phase = "ready"
	PhaseAnonymous     Phase = "anonymous"
)

// IncomingFile is one file handed to SubmitAssignment, bytes already read
// off the wire.
type IncomingFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// AssignmentDraft is what a teacher fills in; ids and timestamps are
// assigned by the store, created_by is stamped from the resolved user.
type AssignmentDraft struct {
	Title               string
	Description         string
	DueDate             time.Time
	MaxMarks            int
	AllowLateSubmission bool
	PenaltyPercentage   *float64
}

// Syncer owns the in-memory assignment and submission collections and
// executes the mutating operations against the remote store. Mutations
// never touch local state directly: visibility arrives through the
// change-notification -> refresh path.
type Syncer struct {
	store    store.Store
	blobs    storage.BlobStore
	resolver *auth.Resolver
	now      func() time.Time

	mu          sync.RWMutex
	phase       Phase
	user        *models.Profile
	assignments []models.Assignment
	submissions []models.Submission
}

func New(st store.Store, blobs storage.BlobStore, resolver *auth.Resolver) *Syncer {
	return &Syncer{
		store:    st,
		blobs:    blobs,
		resolver: resolver,
		now:      time.Now,
		phase:    PhaseUninitialized,
	}
}

// Run is the event loop: auth-state events drive the user lifecycle,
// change notifications drive per-table re-fetches. Runs until ctx is done.
func (s *Syncer) Run(ctx context.Context, authEvents <-chan auth.Event, changes <-chan string) {
	s.mu.Lock()
	if s.phase == PhaseUninitialized {
		s.phase = PhaseAnonymous
	}
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-authEvents:
			if !ok {
				return
			}
			switch event.Type {
			case auth.EventSignedIn:
				if err := s.SetUser(event.ProfileID); err != nil {
					logger.Error.Printf("Failed to resolve signed-in user %s: %v", event.ProfileID, err)
				}
			case auth.EventSignedOut:
				s.ClearUser()
			}
		case table, ok := <-changes:
			if !ok {
				return
			}
			s.Refresh(table)
		}
	}
}

// SetUser resolves the profile for a signed-in identity and populates the
// collections for it.
func (s *Syncer) SetUser(profileID string) error {
	s.mu.Lock()
	s.phase = PhaseLoading
	s.mu.Unlock()

	profile, err := s.resolver.Resolve(profileID)
	if err != nil {
		s.mu.Lock()
		s.phase = PhaseAnonymous
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.user = profile
	s.phase = PhaseReady
	s.mu.Unlock()

	s.RefreshAll()
	return nil
}

// ClearUser is the sign-out reset: user and both collections go away
// wholesale, the next identity starts from a clean slate.
func (s *Syncer) ClearUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.assignments = nil
	s.submissions = nil
	s.phase = PhaseAnonymous
}

// RefreshAll fetches both collections concurrently. The two fetches are
// independent failure domains: one failing leaves the other's result and
// the failed side's previous state intact.
func (s *Syncer) RefreshAll() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.refreshAssignments()
	}()
	go func() {
		defer wg.Done()
		s.refreshSubmissions()
	}()
	wg.Wait()
}

// Refresh re-fetches a single collection, as triggered by a change
// notification for that table.
func (s *Syncer) Refresh(table string) {
	switch table {
	case store.TableAssignments:
		s.refreshAssignments()
	case store.TableSubmissions:
		s.refreshSubmissions()
	}
}

func (s *Syncer) refreshAssignments() {
	assignments, err := s.store.ListAssignments()
	if err != nil {
		logger.Error.Printf("Failed to refresh assignments, keeping previous state: %v", err)
		return
	}
	s.mu.Lock()
	s.assignments = assignments
	s.mu.Unlock()
}

func (s *Syncer) refreshSubmissions() {
	submissions, err := s.store.ListSubmissions()
	if err != nil {
		logger.Error.Printf("Failed to refresh submissions, keeping previous state: %v", err)
		return
	}
	s.mu.Lock()
	s.submissions = submissions
	s.mu.Unlock()
}

func (s *Syncer) currentUser() *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// CreateAssignment writes a new assignment stamped with the caller's id.
// Only a signed-in teacher may create one.
func (s *Syncer) CreateAssignment(draft AssignmentDraft) (*models.Assignment, error) {
	user := s.currentUser()
	if user == nil {
		return nil, models.ErrPermissionDenied
	}
	if user.Role != models.RoleTeacher {
		return nil, fmt.Errorf("%w: only teachers create assignments", models.ErrPermissionDenied)
	}

	assignment := models.Assignment{
		Title:               draft.Title,
		Description:         draft.Description,
		DueDate:             draft.DueDate,
		CreatedBy:           user.ID,
		MaxMarks:            draft.MaxMarks,
		AllowLateSubmission: draft.AllowLateSubmission,
		PenaltyPercentage:   draft.PenaltyPercentage,
	}
	if err := assignment.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidationFailed, err)
	}

	if err := s.store.CreateAssignment(&assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// SubmitAssignment uploads the files and upserts the submission keyed by
// (assignment, student). Uploads run concurrently but the stored file list
// preserves input order. Any upload failure aborts the whole operation;
// already-uploaded objects are left for the reaper.
func (s *Syncer) SubmitAssignment(ctx context.Context, assignmentID string, files []IncomingFile) (*models.Submission, error) {
	user := s.currentUser()
	if user == nil {
		return nil, models.ErrPermissionDenied
	}
	if user.Role != models.RoleStudent {
		return nil, fmt.Errorf("%w: only students submit", models.ErrPermissionDenied)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files attached", models.ErrValidationFailed)
	}

	assignment := s.Assignment(assignmentID)
	if assignment == nil {
		// the late check depends on the due date, so a stale cache is an
		// error here, not a silent "not late"
		return nil, fmt.Errorf("%w: assignment %s", models.ErrNotFound, assignmentID)
	}

	now := s.now()
	if now.After(assignment.DueDate) && !assignment.AllowLateSubmission {
		return nil, fmt.Errorf("%w: deadline passed and late submissions are not allowed", models.ErrValidationFailed)
	}

	refs := make(models.FileRefs, len(files))
	errs := make([]error, len(files))
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file IncomingFile) {
			defer wg.Done()
			key := storage.SubmissionKey(user.ID, assignmentID, file.Name, now)
			url, err := s.blobs.Upload(ctx, key, bytes.NewReader(file.Data))
			if err != nil {
				errs[i] = err
				return
			}
			refs[i] = models.FileRef{
				Name: file.Name,
				URL:  url,
				Size: int64(len(file.Data)),
				Type: file.ContentType,
			}
		}(i, file)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
		}
	}

	submission := models.Submission{
		AssignmentID: assignmentID,
		StudentID:    user.ID,
		SubmittedAt:  now,
		Files:        refs,
		IsLate:       now.After(assignment.DueDate),
		Status:       models.StatusSubmitted,
	}
	if err := s.store.UpsertSubmission(&submission); err != nil {
		return nil, err
	}
	return &submission, nil
}

// GradeSubmission records marks and feedback and moves the submission to
// graded. The marks range is validated here against the assignment even
// when the edge already checked it.
func (s *Syncer) GradeSubmission(submissionID string, marks int, feedback string) error {
	user := s.currentUser()
	if user == nil {
		return models.ErrPermissionDenied
	}
	if user.Role != models.RoleTeacher {
		return fmt.Errorf("%w: only teachers grade", models.ErrPermissionDenied)
	}

	submission, err := s.store.GetSubmission(submissionID)
	if err != nil {
		return err
	}
	if submission == nil {
		return fmt.Errorf("%w: submission %s", models.ErrNotFound, submissionID)
	}

	assignment, err := s.store.GetAssignment(submission.AssignmentID)
	if err != nil {
		return err
	}
	if assignment == nil {
		return fmt.Errorf("%w: assignment %s", models.ErrNotFound, submission.AssignmentID)
	}

	if marks < 0 || marks > assignment.MaxMarks {
		return fmt.Errorf("%w: marks %d out of range 0..%d", models.ErrValidationFailed, marks, assignment.MaxMarks)
	}

	return s.store.GradeSubmission(submissionID, marks, feedback)
}

func (s *Syncer) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// User returns a copy of the resolved user, nil when anonymous.
func (s *Syncer) User() *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

func (s *Syncer) Assignments() []models.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Assignment, len(s.assignments))
	copy(out, s.assignments)
	return out
}

func (s *Syncer) Submissions() []models.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Submission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// Assignment looks an assignment up in the local snapshot, nil if absent.
func (s *Syncer) Assignment(id string) *models.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.ID == id {
			out := a
			return &out
		}
	}
	return nil
}

// StudentSubmissions filters the snapshot by student, preserving order.
func (s *Syncer) StudentSubmissions(studentID string) []models.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Submission
	for _, sub := range s.submissions {
		if sub.StudentID == studentID {
			out = append(out, sub)
		}
	}
	return out
}

// AssignmentSubmissions filters the snapshot by assignment, preserving order.
func (s *Syncer) AssignmentSubmissions(assignmentID string) []models.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Submission
	for _, sub := range s.submissions {
		if sub.AssignmentID == assignmentID {
			out = append(out, sub)
		}
	}
	return out
}
