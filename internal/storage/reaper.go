package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/store"
)

// Reaper removes submission objects that no stored submission references.
// Aborted submissions leave their already-uploaded files behind, this is
// the cleanup for that. Objects younger than the grace period are left
// alone: their submission row may not be written yet.
type Reaper struct {
	store store.Store
	blobs BlobStore
	grace time.Duration
}

func NewReaper(store store.Store, blobs BlobStore, grace time.Duration) *Reaper {
	return &Reaper{store: store, blobs: blobs, grace: grace}
}

func (r *Reaper) Run(ctx context.Context) error {
	submissions, err := r.store.ListSubmissions()
	if err != nil {
		return fmt.Errorf("failed to list submissions: %w", err)
	}

	referenced := make(map[string]bool)
	for _, sub := range submissions {
		for _, f := range sub.Files {
			referenced[f.URL] = true
		}
	}

	keys, err := r.blobs.List(ctx, submissionPrefix+"/")
	if err != nil {
		return fmt.Errorf("failed to list objects: %w", err)
	}

	now := time.Now()

	var removed int
	for _, key := range keys {
		if referenced[r.blobs.PublicURL(key)] {
			continue
		}
		if ts, ok := SubmissionKeyTime(key); ok && now.Sub(ts) < r.grace {
			continue
		}
		if err := r.blobs.Delete(ctx, key); err != nil {
			logger.Error.Printf("Failed to delete orphan %s: %v", key, err)
			continue
		}
		removed++
	}

	logger.Info.Printf("Reaper pass done: %d objects checked, %d orphans removed", len(keys), removed)
	return nil
}
