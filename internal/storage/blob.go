package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"
)

// BlobStore is the object storage side of the remote store. Objects are
// immutable once written, the application only ever keeps references.
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	PublicURL(key string) string
	Close() error
}

const submissionPrefix = "submissions"

// SubmissionKey builds the object key for one uploaded submission file.
// The timestamp prefix keeps resubmitted files from colliding.
func SubmissionKey(studentID, assignmentID, name string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%d-%s", submissionPrefix, studentID, assignmentID, now.UnixMilli(), name)
}

// SubmissionKeyTime extracts the upload timestamp embedded in a submission
// key. Reports false for keys that do not follow the SubmissionKey format.
func SubmissionKeyTime(key string) (time.Time, bool) {
	ms, _, found := strings.Cut(path.Base(key), "-")
	if !found {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(n), true
}
