package usecase

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"dailyrush-backend/internal/task/domain"
	"dailyrush-backend/internal/task/repository"
)

// Reconciler owns one namespace's task list and points total. All
// mutations funnel through it: each one updates in-memory state under
// the lock, saves the local cache synchronously, and pushes the result
// to the remote store in the background. Remote subscription snapshots
// arrive on a channel and are applied by a single loop, so local edits
// and remote updates never race.
type Reconciler struct {
	namespace string

	mu     sync.Mutex
	tasks  []*domain.Task
	points int
	lastID int64
	// pendingWrites counts remote pushes that have captured state but
	// not yet committed; subscription snapshots are held off while any
	// are in flight so a stale snapshot cannot clobber a fresh edit.
	pendingWrites int

	cache  *repository.CacheRepository
	remote repository.RemoteStore

	snapshots   chan []*domain.Task
	closed      chan struct{}
	closeOnce   sync.Once
	unsubscribe func()
}

// NewReconciler builds a reconciler for one namespace. A nil remote
// store means cache-only operation (guest sessions, or remote sync not
// configured).
func NewReconciler(namespace string, cacheRepo *repository.CacheRepository, remote repository.RemoteStore) *Reconciler {
	return &Reconciler{
		namespace: namespace,
		cache:     cacheRepo,
		remote:    remote,
		snapshots: make(chan []*domain.Task, 8),
		closed:    make(chan struct{}),
	}
}

// Load populates initial state and, when a remote store is attached,
// starts the subscription loop. Remote failures degrade to cached state
// rather than failing the load.
func (r *Reconciler) Load(ctx context.Context) error {
	var tasks []*domain.Task
	if r.remote != nil {
		remoteTasks, err := r.remote.ReadTasksOnce(ctx, r.namespace)
		if err != nil {
			log.Printf("[Reconciler] remote read failed for %s, using cached tasks: %v", r.namespace, err)
			tasks = r.cache.LoadTasks(r.namespace)
		} else {
			tasks = remoteTasks
		}
	} else {
		tasks = r.cache.LoadTasks(r.namespace)
	}

	r.mu.Lock()
	r.tasks = tasks
	backfilled := r.backfillLegacyLocked()
	r.seedLastIDLocked()
	r.mu.Unlock()

	derived := r.loadPoints(ctx)

	if backfilled || derived {
		r.persist()
	} else {
		// Cache may be behind the remote copy we just loaded.
		r.mu.Lock()
		snapshot := domain.CloneTasks(r.tasks)
		points := r.points
		r.mu.Unlock()
		r.cache.SaveTasks(r.namespace, snapshot)
		r.cache.SavePoints(r.namespace, points)
	}

	if r.remote != nil {
		// The load context belongs to whoever triggered the load and
		// may be cancelled the moment they are done; the subscription
		// must live until Close.
		subCtx, cancel := context.WithCancel(context.Background())
		unsubscribe, err := r.remote.SubscribeTasks(subCtx, r.namespace, r.pushSnapshot)
		if err != nil {
			cancel()
			log.Printf("[Reconciler] task subscription failed for %s: %v", r.namespace, err)
		} else {
			r.unsubscribe = func() {
				cancel()
				unsubscribe()
			}
			go r.run()
		}
	}
	return nil
}

// loadPoints resolves the points total: the remote user document wins,
// then the cached value, then a total derived from the loaded tasks.
// Reports whether the value was derived and needs persisting.
func (r *Reconciler) loadPoints(ctx context.Context) bool {
	if r.remote != nil {
		record, err := r.remote.ReadUser(ctx, r.namespace)
		if err != nil {
			log.Printf("[Reconciler] remote points read failed for %s: %v", r.namespace, err)
		} else if record != nil && record.TotalPoints != nil {
			r.mu.Lock()
			r.points = max(0, *record.TotalPoints)
			r.mu.Unlock()
			return false
		}
	}

	if points, ok := r.cache.LoadPoints(r.namespace); ok {
		r.mu.Lock()
		r.points = points
		r.mu.Unlock()
		return false
	}

	// Nothing stored anywhere: reconstruct the total from tasks whose
	// points are counted.
	r.mu.Lock()
	total := 0
	for _, t := range r.tasks {
		if t.EarnedPoints() {
			total += t.Difficulty.PointValue()
		}
	}
	r.points = total
	r.mu.Unlock()
	return total > 0
}

// backfillLegacyLocked upgrades records that predate the pointsEarned
// flag: a completed task with no flag counted toward the total when it
// was completed. Returns whether anything changed.
func (r *Reconciler) backfillLegacyLocked() bool {
	changed := false
	for _, t := range r.tasks {
		if t.PointsEarned == nil {
			t.SetPointsEarned(t.Completed)
			changed = true
		}
	}
	return changed
}

// AddTask creates a task at the head of the list.
func (r *Reconciler) AddTask(text string, difficulty domain.Difficulty, dueDate *time.Time) (*domain.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyTaskText
	}
	if difficulty == "" {
		difficulty = domain.DifficultyMedium
	}

	r.mu.Lock()
	task := &domain.Task{
		ID:         r.nextIDLocked(),
		Text:       text,
		Difficulty: difficulty,
		CreatedAt:  time.Now(),
		DueDate:    dueDate,
	}
	task.SetPointsEarned(false)
	r.tasks = append([]*domain.Task{task}, r.tasks...)
	clone := task.Clone()
	flush := r.persistLocked()
	r.mu.Unlock()

	flush()
	return clone, nil
}

// ToggleTask flips completion. Completing awards the difficulty's
// points exactly once; un-completing takes them back, never below zero.
func (r *Reconciler) ToggleTask(id int64) (*domain.Task, error) {
	r.mu.Lock()
	task := r.findLocked(id)
	if task == nil {
		r.mu.Unlock()
		return nil, domain.ErrTaskNotFound
	}

	if task.Completed {
		task.Completed = false
		task.CompletedAt = nil
		if task.EarnedPoints() {
			r.points = max(0, r.points-task.Difficulty.PointValue())
			task.SetPointsEarned(false)
		}
	} else {
		now := time.Now()
		task.Completed = true
		task.CompletedAt = &now
		if !task.EarnedPoints() {
			r.points += task.Difficulty.PointValue()
			task.SetPointsEarned(true)
		}
	}
	clone := task.Clone()
	flush := r.persistLocked()
	r.mu.Unlock()

	flush()
	return clone, nil
}

// DeleteTask removes a task. Deleting a completed task whose points
// are counted takes them back, never below zero.
func (r *Reconciler) DeleteTask(id int64) error {
	r.mu.Lock()
	idx := -1
	for i, t := range r.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return domain.ErrTaskNotFound
	}

	task := r.tasks[idx]
	if task.Completed && task.EarnedPoints() {
		r.points = max(0, r.points-task.Difficulty.PointValue())
	}
	r.tasks = append(r.tasks[:idx], r.tasks[idx+1:]...)
	flush := r.persistLocked()
	r.mu.Unlock()

	flush()
	return nil
}

// ClearAll removes every task and resets the points total.
func (r *Reconciler) ClearAll() {
	r.mu.Lock()
	r.tasks = []*domain.Task{}
	r.points = 0
	flush := r.persistLocked()
	r.mu.Unlock()

	flush()
}

// ClearCompleted removes completed tasks and takes back their counted
// points, never below zero.
func (r *Reconciler) ClearCompleted() int {
	r.mu.Lock()
	kept := r.tasks[:0:0]
	removed := 0
	for _, t := range r.tasks {
		if !t.Completed {
			kept = append(kept, t)
			continue
		}
		removed++
		if t.EarnedPoints() {
			r.points = max(0, r.points-t.Difficulty.PointValue())
		}
	}
	r.tasks = kept
	var flush func()
	if removed > 0 {
		flush = r.persistLocked()
	}
	r.mu.Unlock()

	if flush != nil {
		flush()
	}
	return removed
}

// View returns a filtered, sorted copy of the task list.
func (r *Reconciler) View(filter TaskFilter) []*domain.Task {
	tasks := r.state()

	if filter.Page == domain.PageActive {
		tasks = filterTasks(tasks, func(t *domain.Task) bool { return !t.Completed })
	} else if filter.Page == domain.PageCompleted {
		tasks = filterTasks(tasks, func(t *domain.Task) bool { return t.Completed })
	}

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		tasks = filterTasks(tasks, func(t *domain.Task) bool {
			return strings.Contains(strings.ToLower(t.Text), search)
		})
	}

	sortTasks(tasks, filter.Page, filter.Sort)
	return tasks
}

// Export builds the backup document from current state.
func (r *Reconciler) Export() *ExportDocument {
	tasks := r.state()
	doc := &ExportDocument{
		ExportDate: time.Now(),
		TotalTasks: len(tasks),
		Tasks:      tasks,
	}
	for _, t := range tasks {
		if t.Completed {
			doc.CompletedTasks++
		} else {
			doc.ActiveTasks++
		}
	}
	return doc
}

// Stats summarizes current state.
func (r *Reconciler) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{Total: len(r.tasks), Points: r.points}
	for _, t := range r.tasks {
		if t.Completed {
			s.Completed++
		} else {
			s.Active++
		}
	}
	return s
}

// Tasks returns a copy of the full task list, newest first.
func (r *Reconciler) Tasks() []*domain.Task {
	return r.state()
}

// TotalPoints returns the current points total.
func (r *Reconciler) TotalPoints() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.points
}

// Close stops the subscription loop. Idempotent.
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() {
		if r.unsubscribe != nil {
			r.unsubscribe()
		}
		close(r.closed)
	})
}

// pushSnapshot hands a remote snapshot to the apply loop. When the
// buffer is full the oldest pending snapshot is dropped; only the
// latest matters.
func (r *Reconciler) pushSnapshot(tasks []*domain.Task) {
	for {
		select {
		case r.snapshots <- tasks:
			return
		case <-r.closed:
			return
		default:
		}
		select {
		case <-r.snapshots:
		default:
		}
	}
}

func (r *Reconciler) run() {
	for {
		select {
		case tasks := <-r.snapshots:
			r.applySnapshot(tasks)
		case <-r.closed:
			return
		}
	}
}

// applySnapshot replaces local tasks with the remote copy and mirrors
// it into the cache. The points total is authoritative on the user
// document, not the snapshot, so it is left alone.
func (r *Reconciler) applySnapshot(tasks []*domain.Task) {
	r.mu.Lock()
	if r.pendingWrites > 0 {
		// This snapshot predates an in-flight local write; applying it
		// would resurrect pre-edit state. The write's own echo will
		// arrive as the next snapshot.
		r.mu.Unlock()
		return
	}
	r.tasks = tasks
	r.backfillLegacyLocked()
	r.seedLastIDLocked()
	snapshot := domain.CloneTasks(r.tasks)
	points := r.points
	r.mu.Unlock()

	r.cache.SaveTasks(r.namespace, snapshot)
	r.cache.SavePoints(r.namespace, points)
}

// persistLocked captures state for persistence while the caller still
// holds the mutation lock, so no snapshot can slip in between the edit
// and the capture. The returned flush runs after unlock: it saves the
// cache synchronously and pushes to the remote store in the background.
// The background write re-reads state at write time, so a stale
// goroutine can never overwrite a newer edit.
func (r *Reconciler) persistLocked() func() {
	snapshot := domain.CloneTasks(r.tasks)
	points := r.points
	if r.remote != nil {
		r.pendingWrites++
	}

	return func() {
		r.cache.SaveTasks(r.namespace, snapshot)
		r.cache.SavePoints(r.namespace, points)

		if r.remote == nil {
			return
		}
		go func() {
			defer r.writeDone()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			r.mu.Lock()
			tasks := domain.CloneTasks(r.tasks)
			total := r.points
			r.mu.Unlock()

			if err := r.remote.WriteTasksBatch(ctx, r.namespace, tasks); err != nil {
				log.Printf("[Reconciler] remote task write failed for %s: %v", r.namespace, err)
			}
			if err := r.remote.WritePoints(ctx, r.namespace, total); err != nil {
				log.Printf("[Reconciler] remote points write failed for %s: %v", r.namespace, err)
			}
		}()
	}
}

func (r *Reconciler) persist() {
	r.mu.Lock()
	flush := r.persistLocked()
	r.mu.Unlock()
	flush()
}

func (r *Reconciler) writeDone() {
	r.mu.Lock()
	r.pendingWrites--
	r.mu.Unlock()
}

func (r *Reconciler) state() []*domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.CloneTasks(r.tasks)
}

func (r *Reconciler) findLocked(id int64) *domain.Task {
	for _, t := range r.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// nextIDLocked issues creation-time millisecond IDs, bumped past the
// last issued value when two tasks land in the same millisecond.
func (r *Reconciler) nextIDLocked() int64 {
	id := time.Now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return id
}

func (r *Reconciler) seedLastIDLocked() {
	for _, t := range r.tasks {
		if t.ID > r.lastID {
			r.lastID = t.ID
		}
	}
}

func filterTasks(tasks []*domain.Task, keep func(*domain.Task) bool) []*domain.Task {
	out := tasks[:0:0]
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// sortTasks orders a page. The completed page's "newest" order uses
// completion time, falling back to creation time for records that never
// stamped one.
func sortTasks(tasks []*domain.Task, page domain.Page, option domain.SortOption) {
	switch option {
	case domain.SortOldest:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		})
	case domain.SortAlphabetical:
		sort.SliceStable(tasks, func(i, j int) bool {
			return strings.ToLower(tasks[i].Text) < strings.ToLower(tasks[j].Text)
		})
	case domain.SortReverse:
		sort.SliceStable(tasks, func(i, j int) bool {
			return strings.ToLower(tasks[i].Text) > strings.ToLower(tasks[j].Text)
		})
	default:
		if page == domain.PageCompleted {
			sort.SliceStable(tasks, func(i, j int) bool {
				return completionTime(tasks[i]).After(completionTime(tasks[j]))
			})
			return
		}
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		})
	}
}

func completionTime(t *domain.Task) time.Time {
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return t.CreatedAt
}
