package datasync

import (
	"fmt"
	"math"
	"time"

	"github.com/shrimpsizemoose/semla/internal/models"
)

// Derived display values. Nothing here is persisted, everything is
// recomputed from the snapshot on each call.

func Overdue(a models.Assignment, now time.Time) bool {
	return now.After(a.DueDate)
}

// DaysUntilDue is the ceiling of the remaining time in whole days.
// Negative when the due date has passed.
func DaysUntilDue(a models.Assignment, now time.Time) int {
	return int(math.Ceil(a.DueDate.Sub(now).Hours() / 24))
}

func DueLabel(a models.Assignment, now time.Time) string {
	days := DaysUntilDue(a, now)
	switch {
	case Overdue(a, now):
		// one second late already counts as one day late
		overdueBy := int(math.Ceil(now.Sub(a.DueDate).Hours() / 24))
		if overdueBy == 1 {
			return "Overdue by 1 day"
		}
		return fmt.Sprintf("Overdue by %d days", overdueBy)
	case days == 0:
		return "Due today"
	case days == 1:
		return "Due tomorrow"
	default:
		return fmt.Sprintf("%d days remaining", days)
	}
}

// LatePenaltyLabel is informational only, the penalty is never applied to
// marks automatically.
func LatePenaltyLabel(a models.Assignment) string {
	if !a.AllowLateSubmission || a.PenaltyPercentage == nil {
		return ""
	}
	return fmt.Sprintf("Late penalty: %g%% per day", *a.PenaltyPercentage)
}

// AverageScore is the mean of marks over graded submissions only.
// Ungraded submissions count toward neither numerator nor denominator.
// Returns nil when nothing is graded.
func AverageScore(submissions []models.Submission) *float64 {
	var sum, n float64
	for _, sub := range submissions {
		if !sub.Graded() || sub.Marks == nil {
			continue
		}
		sum += float64(*sub.Marks)
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / n
	return &avg
}

type StudentStats struct {
	TotalAssignments int      `json:"total_assignments"`
	Pending          int      `json:"pending"`
	Completed        int      `json:"completed"`
	Overdue          int      `json:"overdue"`
	AverageScore     *float64 `json:"average_score,omitempty"`
}

// StudentDashboard computes the student's counters: pending are
// assignments with no submission from them yet, overdue is the past-due
// subset of pending.
func StudentDashboard(assignments []models.Assignment, submissions []models.Submission, studentID string, now time.Time) StudentStats {
	var mine []models.Submission
	submitted := make(map[string]bool)
	for _, sub := range submissions {
		if sub.StudentID != studentID {
			continue
		}
		mine = append(mine, sub)
		submitted[sub.AssignmentID] = true
	}

	stats := StudentStats{
		TotalAssignments: len(assignments),
		Completed:        len(mine),
		AverageScore:     AverageScore(mine),
	}
	for _, a := range assignments {
		if submitted[a.ID] {
			continue
		}
		stats.Pending++
		if Overdue(a, now) {
			stats.Overdue++
		}
	}
	return stats
}

type TeacherStats struct {
	TotalAssignments int      `json:"total_assignments"`
	TotalSubmissions int      `json:"total_submissions"`
	PendingReview    int      `json:"pending_review"`
	Graded           int      `json:"graded"`
	AverageScore     *float64 `json:"average_score,omitempty"`
}

func TeacherDashboard(assignments []models.Assignment, submissions []models.Submission) TeacherStats {
	stats := TeacherStats{
		TotalAssignments: len(assignments),
		TotalSubmissions: len(submissions),
		AverageScore:     AverageScore(submissions),
	}
	for _, sub := range submissions {
		if sub.Graded() {
			stats.Graded++
		} else {
			stats.PendingReview++
		}
	}
	return stats
}
