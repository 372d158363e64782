package migration

import (
	"context"
	"log"
	"sync"

	"dailyrush-backend/internal/task/repository"
	"dailyrush-backend/pkg/cache"
)

// Coordinator runs the one-time local-to-remote migration for a subject.
// The first successful sign-in of a subject on this installation carries
// its locally accumulated tasks and points up to the remote store; every
// later sign-in is a no-op. Failures are logged and swallowed so the
// next sign-in retries, and the completion marker is only written after
// the whole migration succeeds.
type Coordinator struct {
	mu     sync.Mutex
	done   map[string]bool
	local  *repository.CacheRepository
	marks  cache.Store
	remote repository.RemoteStore
}

func NewCoordinator(local *repository.CacheRepository, marks cache.Store, remote repository.RemoteStore) *Coordinator {
	return &Coordinator{
		done:   make(map[string]bool),
		local:  local,
		marks:  marks,
		remote: remote,
	}
}

// Migrate pushes the subject's local tasks and points to the remote
// store, at most once per subject. Safe to call on every sign-in.
func (c *Coordinator) Migrate(ctx context.Context, subjectID string) {
	if subjectID == "" || subjectID == cache.GuestNamespace || c.remote == nil {
		return
	}

	c.mu.Lock()
	if c.done[subjectID] {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if _, ok := c.marks.Get(cache.MigratedKey(subjectID)); ok {
		c.markDone(subjectID, false)
		return
	}

	// A user document already on the remote means another installation
	// (or an earlier session) got there first; local data must not
	// clobber it.
	record, err := c.remote.ReadUser(ctx, subjectID)
	if err != nil {
		log.Printf("[Migration] remote check failed for %s, will retry on next sign-in: %v", subjectID, err)
		return
	}
	if record != nil {
		log.Printf("[Migration] remote data already exists for %s, skipping", subjectID)
		c.markDone(subjectID, true)
		return
	}

	// Pre-login activity lives under the guest namespace; a subject key
	// can also exist if this subject used the app on this installation
	// before remote sync shipped.
	tasks := c.local.LoadTasks(subjectID)
	if len(tasks) == 0 {
		tasks = c.local.LoadTasks(cache.GuestNamespace)
	}
	// Records from before the earned flag existed counted toward the
	// total at completion; the uploaded copy must say so, or the first
	// device to load them could award their points a second time.
	for _, task := range tasks {
		if task.PointsEarned == nil {
			task.SetPointsEarned(task.Completed)
		}
	}
	if len(tasks) > 0 {
		if err := c.remote.WriteTasksBatch(ctx, subjectID, tasks); err != nil {
			log.Printf("[Migration] task upload failed for %s, will retry on next sign-in: %v", subjectID, err)
			return
		}
	}

	points, ok := c.local.LoadPoints(subjectID)
	if !ok {
		points, ok = c.local.LoadPoints(cache.GuestNamespace)
	}
	if ok && points > 0 {
		if err := c.remote.WritePoints(ctx, subjectID, points); err != nil {
			log.Printf("[Migration] points upload failed for %s, will retry on next sign-in: %v", subjectID, err)
			return
		}
	}

	log.Printf("[Migration] migrated %d tasks and %d points for %s", len(tasks), points, subjectID)
	c.markDone(subjectID, true)
}

func (c *Coordinator) markDone(subjectID string, persist bool) {
	c.mu.Lock()
	c.done[subjectID] = true
	c.mu.Unlock()
	if persist {
		c.marks.Set(cache.MigratedKey(subjectID), []byte("1"))
	}
}
