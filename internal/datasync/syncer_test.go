package datasync

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/semla/internal/auth"
	"github.com/shrimpsizemoose/semla/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) ApplyMigrations(dir string) error {
	return nil
}

func (m *MockStore) GetProfile(id string) (*models.Profile, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockStore) GetProfileByEmail(email string) (*models.Profile, error) {
	return nil, nil
}

func (m *MockStore) CreateProfile(profile *models.Profile) error {
	return nil
}

func (m *MockStore) ListAssignments() ([]models.Assignment, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Assignment), args.Error(1)
}

func (m *MockStore) GetAssignment(id string) (*models.Assignment, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assignment), args.Error(1)
}

func (m *MockStore) CreateAssignment(assignment *models.Assignment) error {
	args := m.Called(assignment)
	return args.Error(0)
}

func (m *MockStore) ListSubmissions() ([]models.Submission, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Submission), args.Error(1)
}

func (m *MockStore) GetSubmission(id string) (*models.Submission, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Submission), args.Error(1)
}

func (m *MockStore) GetSubmissionForStudent(assignmentID, studentID string) (*models.Submission, error) {
	return nil, nil
}

func (m *MockStore) UpsertSubmission(submission *models.Submission) error {
	args := m.Called(submission)
	return args.Error(0)
}

func (m *MockStore) GradeSubmission(id string, marks int, feedback string) error {
	args := m.Called(id, marks, feedback)
	return args.Error(0)
}

// fakeBlobs is an in-memory blob store with controllable latency and
// failures per file name.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string]bool
	failOn  string
	delays  map[string]time.Duration
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string]bool), delays: make(map[string]time.Duration)}
}

func (f *fakeBlobs) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	for name, d := range f.delays {
		if strings.HasSuffix(key, name) {
			time.Sleep(d)
		}
	}
	if f.failOn != "" && strings.HasSuffix(key, f.failOn) {
		return "", fmt.Errorf("upload exploded")
	}
	f.mu.Lock()
	f.objects[key] = true
	f.mu.Unlock()
	return f.PublicURL(key), nil
}

func (f *fakeBlobs) Download(ctx context.Context, key string) (io.ReadCloser, error) { return nil, nil }

func (f *fakeBlobs) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeBlobs) List(ctx context.Context, prefix string) ([]string, error) { return nil, nil }

func (f *fakeBlobs) PublicURL(key string) string { return "http://files/" + key }

func (f *fakeBlobs) Close() error { return nil }

func newTestSyncer(st *MockStore, blobs *fakeBlobs) *Syncer {
	s := New(st, blobs, auth.NewResolver(st))
	return s
}

func signIn(t *testing.T, s *Syncer, st *MockStore, profile models.Profile) {
	st.On("GetProfile", profile.ID).Return(&profile, nil).Once()
	st.On("ListAssignments").Return([]models.Assignment{}, nil).Once()
	st.On("ListSubmissions").Return([]models.Submission{}, nil).Once()
	require.NoError(t, s.SetUser(profile.ID))
	require.Equal(t, PhaseReady, s.Phase())
}

var (
	teacher = models.Profile{ID: "t-1", Name: "Greta", Email: "greta@example.com", Role: models.RoleTeacher}
	student = models.Profile{ID: "s-1", Name: "Nils", Email: "nils@example.com", Role: models.RoleStudent}
)

func TestCreateAssignment(t *testing.T) {
	due := time.Date(2024, 4, 1, 23, 59, 59, 0, time.UTC)

	draft := AssignmentDraft{
		Title:       "Lab 1",
		Description: "do it",
		DueDate:     due,
		MaxMarks:    100,
	}

	t.Run("anonymous caller is denied", func(t *testing.T) {
		st := new(MockStore)
		s := newTestSyncer(st, newFakeBlobs())

		_, err := s.CreateAssignment(draft)
		assert.ErrorIs(t, err, models.ErrPermissionDenied)
		st.AssertNotCalled(t, "CreateAssignment", mock.Anything)
	})

	t.Run("students are denied", func(t *testing.T) {
		st := new(MockStore)
		s := newTestSyncer(st, newFakeBlobs())
		signIn(t, s, st, student)

		_, err := s.CreateAssignment(draft)
		assert.ErrorIs(t, err, models.ErrPermissionDenied)
	})

	t.Run("teacher creates, created_by is stamped", func(t *testing.T) {
		st := new(MockStore)
		s := newTestSyncer(st, newFakeBlobs())
		signIn(t, s, st, teacher)

		st.On("CreateAssignment", mock.AnythingOfType("*models.Assignment")).Return(nil).Once()

		created, err := s.CreateAssignment(draft)
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, created.CreatedBy)
		st.AssertExpectations(t)
	})

	t.Run("penalty without allow_late is rejected", func(t *testing.T) {
		st := new(MockStore)
		s := newTestSyncer(st, newFakeBlobs())
		signIn(t, s, st, teacher)

		penalty := 10.0
		bad := draft
		bad.PenaltyPercentage = &penalty

		_, err := s.CreateAssignment(bad)
		assert.ErrorIs(t, err, models.ErrValidationFailed)
		st.AssertNotCalled(t, "CreateAssignment", mock.Anything)
	})
}

func TestSubmitAssignment(t *testing.T) {
	due := time.Date(2024, 4, 1, 23, 59, 59, 0, time.UTC)
	penalty := 10.0
	lateOK := models.Assignment{
		ID: "a-1", Title: "Lab 1", Description: "x", DueDate: due,
		CreatedBy: teacher.ID, MaxMarks: 100,
		AllowLateSubmission: true, PenaltyPercentage: &penalty,
	}

	strict := models.Assignment{
		ID: "a-2", Title: "Lab 2", Description: "x", DueDate: due,
		CreatedBy: teacher.ID, MaxMarks: 100,
	}

	files := []IncomingFile{
		{Name: "report.pdf", ContentType: "application/pdf", Data: []byte("pdf bytes")},
		{Name: "notes.txt", ContentType: "text/plain", Data: []byte("notes")},
	}

	setup := func(t *testing.T, blobs *fakeBlobs, now time.Time) (*Syncer, *MockStore) {
		st := new(MockStore)
		s := newTestSyncer(st, blobs)
		st.On("GetProfile", student.ID).Return(&student, nil).Once()
		st.On("ListAssignments").Return([]models.Assignment{lateOK, strict}, nil).Once()
		st.On("ListSubmissions").Return([]models.Submission{}, nil).Once()
		require.NoError(t, s.SetUser(student.ID))
		s.now = func() time.Time { return now }
		return s, st
	}

	t.Run("past due date means is_late", func(t *testing.T) {
		now := due.Add(26 * time.Hour)
		s, st := setup(t, newFakeBlobs(), now)

		st.On("UpsertSubmission", mock.AnythingOfType("*models.Submission")).Return(nil).Once()

		sub, err := s.SubmitAssignment(context.Background(), lateOK.ID, files)
		require.NoError(t, err)
		assert.True(t, sub.IsLate)
		assert.Equal(t, models.StatusSubmitted, sub.Status)
		assert.Equal(t, now, sub.SubmittedAt)
		st.AssertExpectations(t)
	})

	t.Run("on-time submission is not late", func(t *testing.T) {
		now := due.Add(-1 * time.Minute)
		s, st := setup(t, newFakeBlobs(), now)

		st.On("UpsertSubmission", mock.AnythingOfType("*models.Submission")).Return(nil).Once()

		sub, err := s.SubmitAssignment(context.Background(), lateOK.ID, files)
		require.NoError(t, err)
		assert.False(t, sub.IsLate)
	})

	t.Run("file order survives out-of-order upload completion", func(t *testing.T) {
		blobs := newFakeBlobs()
		blobs.delays["report.pdf"] = 30 * time.Millisecond
		s, st := setup(t, blobs, due)

		st.On("UpsertSubmission", mock.AnythingOfType("*models.Submission")).Return(nil).Once()

		sub, err := s.SubmitAssignment(context.Background(), lateOK.ID, files)
		require.NoError(t, err)
		require.Len(t, sub.Files, 2)
		assert.Equal(t, "report.pdf", sub.Files[0].Name)
		assert.Equal(t, "notes.txt", sub.Files[1].Name)
		assert.Equal(t, int64(len("pdf bytes")), sub.Files[0].Size)
	})

	t.Run("past due with late disallowed is rejected", func(t *testing.T) {
		now := due.Add(48 * time.Hour)
		s, st := setup(t, newFakeBlobs(), now)

		_, err := s.SubmitAssignment(context.Background(), strict.ID, files)
		assert.ErrorIs(t, err, models.ErrValidationFailed)
		st.AssertNotCalled(t, "UpsertSubmission", mock.Anything)
	})

	t.Run("on time with late disallowed is fine", func(t *testing.T) {
		now := due.Add(-1 * time.Minute)
		s, st := setup(t, newFakeBlobs(), now)

		st.On("UpsertSubmission", mock.AnythingOfType("*models.Submission")).Return(nil).Once()

		sub, err := s.SubmitAssignment(context.Background(), strict.ID, files)
		require.NoError(t, err)
		assert.False(t, sub.IsLate)
		st.AssertExpectations(t)
	})

	t.Run("one failed upload aborts the write", func(t *testing.T) {
		blobs := newFakeBlobs()
		blobs.failOn = "notes.txt"
		s, st := setup(t, blobs, due)

		_, err := s.SubmitAssignment(context.Background(), lateOK.ID, files)
		assert.ErrorIs(t, err, models.ErrUploadFailed)
		st.AssertNotCalled(t, "UpsertSubmission", mock.Anything)
	})

	t.Run("assignment missing from snapshot fails loudly", func(t *testing.T) {
		s, st := setup(t, newFakeBlobs(), due)

		_, err := s.SubmitAssignment(context.Background(), "who-dis", files)
		assert.ErrorIs(t, err, models.ErrNotFound)
		st.AssertNotCalled(t, "UpsertSubmission", mock.Anything)
	})

	t.Run("teachers do not submit", func(t *testing.T) {
		st := new(MockStore)
		s := newTestSyncer(st, newFakeBlobs())
		signIn(t, s, st, teacher)

		_, err := s.SubmitAssignment(context.Background(), lateOK.ID, files)
		assert.ErrorIs(t, err, models.ErrPermissionDenied)
	})

	t.Run("empty file list is rejected", func(t *testing.T) {
		s, _ := setup(t, newFakeBlobs(), due)

		_, err := s.SubmitAssignment(context.Background(), lateOK.ID, nil)
		assert.ErrorIs(t, err, models.ErrValidationFailed)
	})
}

func TestGradeSubmission(t *testing.T) {
	assignment := models.Assignment{ID: "a-1", MaxMarks: 100}
	submission := models.Submission{ID: "sub-1", AssignmentID: "a-1", StudentID: student.ID}

	setup := func(t *testing.T) (*Syncer, *MockStore) {
		st := new(MockStore)
		s := newTestSyncer(st, newFakeBlobs())
		signIn(t, s, st, teacher)
		return s, st
	}

	t.Run("marks above max are rejected before persisting", func(t *testing.T) {
		s, st := setup(t)
		st.On("GetSubmission", "sub-1").Return(&submission, nil).Once()
		st.On("GetAssignment", "a-1").Return(&assignment, nil).Once()

		err := s.GradeSubmission("sub-1", 105, "")
		assert.ErrorIs(t, err, models.ErrValidationFailed)
		st.AssertNotCalled(t, "GradeSubmission", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("negative marks are rejected", func(t *testing.T) {
		s, st := setup(t)
		st.On("GetSubmission", "sub-1").Return(&submission, nil).Once()
		st.On("GetAssignment", "a-1").Return(&assignment, nil).Once()

		err := s.GradeSubmission("sub-1", -1, "")
		assert.ErrorIs(t, err, models.ErrValidationFailed)
	})

	t.Run("valid marks are persisted", func(t *testing.T) {
		s, st := setup(t)
		st.On("GetSubmission", "sub-1").Return(&submission, nil).Once()
		st.On("GetAssignment", "a-1").Return(&assignment, nil).Once()
		st.On("GradeSubmission", "sub-1", 95, "well done").Return(nil).Once()

		require.NoError(t, s.GradeSubmission("sub-1", 95, "well done"))
		st.AssertExpectations(t)
	})

	t.Run("students do not grade", func(t *testing.T) {
		st := new(MockStore)
		s := newTestSyncer(st, newFakeBlobs())
		signIn(t, s, st, student)

		err := s.GradeSubmission("sub-1", 50, "")
		assert.ErrorIs(t, err, models.ErrPermissionDenied)
	})

	t.Run("unknown submission", func(t *testing.T) {
		s, st := setup(t)
		st.On("GetSubmission", "nope").Return(nil, nil).Once()

		err := s.GradeSubmission("nope", 50, "")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestRefreshFailureKeepsPriorState(t *testing.T) {
	st := new(MockStore)
	s := newTestSyncer(st, newFakeBlobs())

	assignments := []models.Assignment{{ID: "a-1", Title: "Lab 1"}}
	submissions := []models.Submission{{ID: "sub-1", AssignmentID: "a-1", StudentID: student.ID}}

	st.On("GetProfile", student.ID).Return(&student, nil).Once()
	st.On("ListAssignments").Return(assignments, nil).Once()
	st.On("ListSubmissions").Return(submissions, nil).Once()
	require.NoError(t, s.SetUser(student.ID))

	// next refresh fails on assignments but succeeds on submissions
	st.On("ListAssignments").Return(nil, fmt.Errorf("store is down")).Once()
	st.On("ListSubmissions").Return([]models.Submission{}, nil).Once()
	s.RefreshAll()

	assert.Len(t, s.Assignments(), 1, "failed fetch must keep prior assignments")
	assert.Len(t, s.Submissions(), 0, "independent fetch must still apply")
}

func TestSignOutClearsEverything(t *testing.T) {
	st := new(MockStore)
	s := newTestSyncer(st, newFakeBlobs())

	st.On("GetProfile", student.ID).Return(&student, nil).Once()
	st.On("ListAssignments").Return([]models.Assignment{{ID: "a-1"}}, nil).Once()
	st.On("ListSubmissions").Return([]models.Submission{{ID: "sub-1"}}, nil).Once()
	require.NoError(t, s.SetUser(student.ID))
	require.NotNil(t, s.User())

	s.ClearUser()

	assert.Nil(t, s.User())
	assert.Empty(t, s.Assignments())
	assert.Empty(t, s.Submissions())
	assert.Equal(t, PhaseAnonymous, s.Phase())
}

func TestSubmissionFilters(t *testing.T) {
	st := new(MockStore)
	s := newTestSyncer(st, newFakeBlobs())

	submissions := []models.Submission{
		{ID: "1", AssignmentID: "a-1", StudentID: "s-1"},
		{ID: "2", AssignmentID: "a-2", StudentID: "s-2"},
		{ID: "3", AssignmentID: "a-1", StudentID: "s-2"},
		{ID: "4", AssignmentID: "a-2", StudentID: "s-1"},
	}

	st.On("GetProfile", student.ID).Return(&student, nil).Once()
	st.On("ListAssignments").Return([]models.Assignment{}, nil).Once()
	st.On("ListSubmissions").Return(submissions, nil).Once()
	require.NoError(t, s.SetUser(student.ID))

	t.Run("by student keeps source order", func(t *testing.T) {
		got := s.StudentSubmissions("s-2")
		require.Len(t, got, 2)
		assert.Equal(t, "2", got[0].ID)
		assert.Equal(t, "3", got[1].ID)
	})

	t.Run("by assignment keeps source order", func(t *testing.T) {
		got := s.AssignmentSubmissions("a-1")
		require.Len(t, got, 2)
		assert.Equal(t, "1", got[0].ID)
		assert.Equal(t, "3", got[1].ID)
	})

	t.Run("unknown id yields empty, no error", func(t *testing.T) {
		assert.Empty(t, s.StudentSubmissions("ghost"))
		assert.Empty(t, s.AssignmentSubmissions("ghost"))
	})
}
