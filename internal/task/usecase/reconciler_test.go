package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dailyrush-backend/internal/task/domain"
	"dailyrush-backend/internal/task/repository"
	"dailyrush-backend/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemoteStore is an in-memory RemoteStore that records writes and
// lets tests emit subscription snapshots. A non-nil writeGate holds
// every batch write until the channel closes.
type fakeRemoteStore struct {
	mu        sync.Mutex
	user      *domain.UserRecord
	tasks     []*domain.Task
	readErr   error
	onChange  func([]*domain.Task)
	subCtx    context.Context
	writeGate chan struct{}

	wroteTasks  [][]*domain.Task
	wrotePoints []int
}

func (f *fakeRemoteStore) ReadUser(ctx context.Context, subjectID string) (*domain.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.user, nil
}

func (f *fakeRemoteStore) WriteUser(ctx context.Context, subjectID string, fields map[string]interface{}) error {
	return nil
}

func (f *fakeRemoteStore) ReadTasksOnce(ctx context.Context, subjectID string) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return domain.CloneTasks(f.tasks), nil
}

func (f *fakeRemoteStore) SubscribeTasks(ctx context.Context, subjectID string, onChange func([]*domain.Task)) (func(), error) {
	f.mu.Lock()
	f.onChange = onChange
	f.subCtx = ctx
	f.mu.Unlock()
	return func() {}, nil
}

func (f *fakeRemoteStore) WriteTasksBatch(ctx context.Context, subjectID string, tasks []*domain.Task) error {
	f.mu.Lock()
	gate := f.writeGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.wroteTasks = append(f.wroteTasks, domain.CloneTasks(tasks))
	return nil
}

func (f *fakeRemoteStore) WritePoints(ctx context.Context, subjectID string, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wrotePoints = append(f.wrotePoints, total)
	return nil
}

func (f *fakeRemoteStore) emit(tasks []*domain.Task) {
	f.mu.Lock()
	onChange := f.onChange
	f.mu.Unlock()
	if onChange != nil {
		onChange(tasks)
	}
}

func (f *fakeRemoteStore) lastPoints() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.wrotePoints) == 0 {
		return 0, false
	}
	return f.wrotePoints[len(f.wrotePoints)-1], true
}

func (f *fakeRemoteStore) lastTasks() ([]*domain.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.wroteTasks) == 0 {
		return nil, false
	}
	return f.wroteTasks[len(f.wroteTasks)-1], true
}

func newTestRepo(t *testing.T) *repository.CacheRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return repository.NewCacheRepository(cache.NewRedisStore(rdb))
}

func newGuestReconciler(t *testing.T) *Reconciler {
	t.Helper()
	r := NewReconciler(cache.GuestNamespace, newTestRepo(t), nil)
	require.NoError(t, r.Load(context.Background()))
	t.Cleanup(r.Close)
	return r
}

func TestAddTaskTrimsAndPrepends(t *testing.T) {
	r := newGuestReconciler(t)

	first, err := r.AddTask("  buy milk  ", domain.DifficultyEasy, nil)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", first.Text)
	assert.False(t, first.EarnedPoints())
	assert.False(t, first.Completed)

	second, err := r.AddTask("write report", domain.DifficultyHard, nil)
	require.NoError(t, err)

	tasks := r.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)
	assert.Equal(t, first.ID, tasks[1].ID)
	assert.Greater(t, second.ID, first.ID)
}

func TestAddTaskRejectsEmptyText(t *testing.T) {
	r := newGuestReconciler(t)

	_, err := r.AddTask("   ", domain.DifficultyEasy, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyTaskText)
	assert.Empty(t, r.Tasks())
}

func TestAddTaskDefaultsToMedium(t *testing.T) {
	r := newGuestReconciler(t)

	task, err := r.AddTask("stretch", "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DifficultyMedium, task.Difficulty)
}

func TestToggleAwardsAndRevokesPoints(t *testing.T) {
	r := newGuestReconciler(t)

	task, err := r.AddTask("write report", domain.DifficultyHard, nil)
	require.NoError(t, err)

	done, err := r.ToggleTask(task.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.True(t, done.EarnedPoints())
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, 50, r.TotalPoints())

	undone, err := r.ToggleTask(task.ID)
	require.NoError(t, err)
	assert.False(t, undone.Completed)
	assert.False(t, undone.EarnedPoints())
	assert.Nil(t, undone.CompletedAt)
	assert.Equal(t, 0, r.TotalPoints())
}

func TestToggleUnknownTask(t *testing.T) {
	r := newGuestReconciler(t)

	_, err := r.ToggleTask(42)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestUnknownDifficultyValuedAsMedium(t *testing.T) {
	r := newGuestReconciler(t)

	task, err := r.AddTask("mystery", "nightmare", nil)
	require.NoError(t, err)

	_, err = r.ToggleTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, r.TotalPoints())
}

func TestDeleteCompletedTaskRefundsPoints(t *testing.T) {
	r := newGuestReconciler(t)

	task, err := r.AddTask("buy milk", domain.DifficultyEasy, nil)
	require.NoError(t, err)
	_, err = r.ToggleTask(task.ID)
	require.NoError(t, err)
	require.Equal(t, 10, r.TotalPoints())

	require.NoError(t, r.DeleteTask(task.ID))
	assert.Equal(t, 0, r.TotalPoints())
	assert.Empty(t, r.Tasks())
}

func TestDeleteActiveTaskKeepsPoints(t *testing.T) {
	r := newGuestReconciler(t)

	done, err := r.AddTask("done", domain.DifficultyEasy, nil)
	require.NoError(t, err)
	_, err = r.ToggleTask(done.ID)
	require.NoError(t, err)

	active, err := r.AddTask("active", domain.DifficultyExpert, nil)
	require.NoError(t, err)

	require.NoError(t, r.DeleteTask(active.ID))
	assert.Equal(t, 10, r.TotalPoints())
}

func TestPointsNeverGoNegative(t *testing.T) {
	repo := newTestRepo(t)

	// A stored total smaller than the task's value, as after a partial
	// write on an earlier run.
	earned := true
	repo.SaveTasks(cache.GuestNamespace, []*domain.Task{{
		ID:           1,
		Text:         "old",
		Difficulty:   domain.DifficultyHard,
		Completed:    true,
		PointsEarned: &earned,
		CreatedAt:    time.Now(),
	}})
	repo.SavePoints(cache.GuestNamespace, 20)

	r := NewReconciler(cache.GuestNamespace, repo, nil)
	require.NoError(t, r.Load(context.Background()))
	defer r.Close()

	require.NoError(t, r.DeleteTask(1))
	assert.Equal(t, 0, r.TotalPoints())
}

func TestClearAllResetsEverything(t *testing.T) {
	r := newGuestReconciler(t)

	task, err := r.AddTask("buy milk", domain.DifficultyEasy, nil)
	require.NoError(t, err)
	_, err = r.ToggleTask(task.ID)
	require.NoError(t, err)

	r.ClearAll()
	assert.Empty(t, r.Tasks())
	assert.Equal(t, 0, r.TotalPoints())

	// Idempotent.
	r.ClearAll()
	assert.Equal(t, 0, r.TotalPoints())
}

func TestClearCompletedRefundsOnlyCompleted(t *testing.T) {
	r := newGuestReconciler(t)

	done, err := r.AddTask("done", domain.DifficultyMedium, nil)
	require.NoError(t, err)
	_, err = r.ToggleTask(done.ID)
	require.NoError(t, err)

	_, err = r.AddTask("active", domain.DifficultyEasy, nil)
	require.NoError(t, err)

	removed := r.ClearCompleted()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, r.TotalPoints())

	tasks := r.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "active", tasks[0].Text)
}

func TestLegacyRecordsBackfilledOnLoad(t *testing.T) {
	repo := newTestRepo(t)

	// Records written before the earned flag existed: completed tasks
	// counted toward the total at completion time.
	completedAt := time.Now()
	repo.SaveTasks(cache.GuestNamespace, []*domain.Task{
		{ID: 1, Text: "old done", Difficulty: domain.DifficultyHard, Completed: true, CreatedAt: completedAt.Add(-time.Hour), CompletedAt: &completedAt},
		{ID: 2, Text: "old active", Difficulty: domain.DifficultyEasy, CreatedAt: completedAt},
	})

	r := NewReconciler(cache.GuestNamespace, repo, nil)
	require.NoError(t, r.Load(context.Background()))
	defer r.Close()

	// No stored total: derived from the completed task.
	assert.Equal(t, 50, r.TotalPoints())

	tasks := r.Tasks()
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		require.NotNil(t, task.PointsEarned)
	}

	// The repaired records are persisted.
	total, ok := repo.LoadPoints(cache.GuestNamespace)
	require.True(t, ok)
	assert.Equal(t, 50, total)
	reloaded := repo.LoadTasks(cache.GuestNamespace)
	require.Len(t, reloaded, 2)
	assert.True(t, reloaded[0].PointsEarned != nil)
}

func TestStoredPointsPreferredOverDerivation(t *testing.T) {
	repo := newTestRepo(t)

	earned := true
	repo.SaveTasks(cache.GuestNamespace, []*domain.Task{{
		ID: 1, Text: "done", Difficulty: domain.DifficultyEasy, Completed: true,
		PointsEarned: &earned, CreatedAt: time.Now(),
	}})
	repo.SavePoints(cache.GuestNamespace, 135)

	r := NewReconciler(cache.GuestNamespace, repo, nil)
	require.NoError(t, r.Load(context.Background()))
	defer r.Close()

	assert.Equal(t, 135, r.TotalPoints())
}

func TestRemotePointsWin(t *testing.T) {
	repo := newTestRepo(t)
	repo.SavePoints("u1", 10)

	total := 75
	remote := &fakeRemoteStore{user: &domain.UserRecord{TotalPoints: &total}}

	r := NewReconciler("u1", repo, remote)
	require.NoError(t, r.Load(context.Background()))
	defer r.Close()

	assert.Equal(t, 75, r.TotalPoints())
}

func TestLoadFallsBackToCacheWhenRemoteDown(t *testing.T) {
	repo := newTestRepo(t)
	repo.SaveTasks("u1", []*domain.Task{{ID: 1, Text: "cached", Difficulty: domain.DifficultyEasy, CreatedAt: time.Now()}})
	repo.SavePoints("u1", 5)

	remote := &fakeRemoteStore{readErr: errors.New("unavailable")}

	r := NewReconciler("u1", repo, remote)
	require.NoError(t, r.Load(context.Background()))
	defer r.Close()

	tasks := r.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "cached", tasks[0].Text)
	assert.Equal(t, 5, r.TotalPoints())
}

func TestMutationsPushedToRemote(t *testing.T) {
	repo := newTestRepo(t)
	remote := &fakeRemoteStore{}

	r := NewReconciler("u1", repo, remote)
	require.NoError(t, r.Load(context.Background()))
	defer r.Close()

	task, err := r.AddTask("sync me", domain.DifficultyMedium, nil)
	require.NoError(t, err)
	_, err = r.ToggleTask(task.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		total, ok := remote.lastPoints()
		return ok && total == 25
	}, 2*time.Second, 10*time.Millisecond)

	tasks, ok := remote.lastTasks()
	require.True(t, ok)
	require.Len(t, tasks, 1)
	assert.Equal(t, "sync me", tasks[0].Text)
}

func TestRemoteSnapshotReplacesState(t *testing.T) {
	repo := newTestRepo(t)
	remote := &fakeRemoteStore{}

	r := NewReconciler("u1", repo, remote)
	require.NoError(t, r.Load(context.Background()))
	defer r.Close()

	remote.emit([]*domain.Task{{ID: 99, Text: "from another device", Difficulty: domain.DifficultyEasy, CreatedAt: time.Now()}})

	require.Eventually(t, func() bool {
		tasks := r.Tasks()
		return len(tasks) == 1 && tasks[0].ID == 99
	}, 2*time.Second, 10*time.Millisecond)

	// The snapshot is mirrored into the cache.
	require.Eventually(t, func() bool {
		return len(repo.LoadTasks("u1")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStaleEmptySnapshotDoesNotDropFreshAdd(t *testing.T) {
	repo := newTestRepo(t)
	gate := make(chan struct{})
	remote := &fakeRemoteStore{writeGate: gate}

	r := NewReconciler("u1", repo, remote)
	require.NoError(t, r.Load(context.Background()))
	defer r.Close()

	task, err := r.AddTask("keep me", domain.DifficultyEasy, nil)
	require.NoError(t, err)

	// An empty snapshot from before the add arrives while the add's
	// remote write is still in flight. Applying it would erase the task
	// everywhere even though AddTask reported success.
	remote.emit([]*domain.Task{})

	time.Sleep(50 * time.Millisecond)
	tasks := r.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)

	close(gate)

	require.Eventually(t, func() bool {
		wrote, ok := remote.lastTasks()
		return ok && len(wrote) == 1 && wrote[0].ID == task.ID
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, r.Tasks(), 1)
	assert.Len(t, repo.LoadTasks("u1"), 1)
}

func TestRemoteClearAppliesWhenIdle(t *testing.T) {
	repo := newTestRepo(t)
	remote := &fakeRemoteStore{}

	r := NewReconciler("u1", repo, remote)
	require.NoError(t, r.Load(context.Background()))
	defer r.Close()

	_, err := r.AddTask("ephemeral", domain.DifficultyEasy, nil)
	require.NoError(t, err)

	// A clear-all on another device arrives as an empty snapshot. It
	// lands once the add's own write has committed.
	require.Eventually(t, func() bool {
		remote.emit([]*domain.Task{})
		return len(r.Tasks()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscriptionOutlivesLoadContext(t *testing.T) {
	repo := newTestRepo(t)
	remote := &fakeRemoteStore{}

	r := NewReconciler("u1", repo, remote)
	loadCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Load(loadCtx))
	defer r.Close()

	// The load context is released the moment the caller is done, the
	// way a request context is.
	cancel()

	remote.mu.Lock()
	subCtx := remote.subCtx
	remote.mu.Unlock()
	require.NotNil(t, subCtx)
	assert.NoError(t, subCtx.Err())

	// Later remote updates still reach the session.
	remote.emit([]*domain.Task{{ID: 7, Text: "still listening", Difficulty: domain.DifficultyEasy, CreatedAt: time.Now()}})
	require.Eventually(t, func() bool {
		tasks := r.Tasks()
		return len(tasks) == 1 && tasks[0].ID == 7
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLegacyRemoteTaskDoesNotDoubleAward(t *testing.T) {
	repo := newTestRepo(t)

	// A document written before the earned flag existed: completed and
	// already counted in the stored total, flag absent.
	total := 50
	completedAt := time.Now()
	remote := &fakeRemoteStore{
		user: &domain.UserRecord{TotalPoints: &total},
		tasks: []*domain.Task{{
			ID: 1, Text: "legacy", Difficulty: domain.DifficultyHard, Completed: true,
			CreatedAt: completedAt.Add(-time.Hour), CompletedAt: &completedAt,
		}},
	}

	r := NewReconciler("u1", repo, remote)
	require.NoError(t, r.Load(context.Background()))
	defer r.Close()

	require.Equal(t, 50, r.TotalPoints())

	undone, err := r.ToggleTask(1)
	require.NoError(t, err)
	assert.False(t, undone.Completed)
	assert.Equal(t, 0, r.TotalPoints())

	_, err = r.ToggleTask(1)
	require.NoError(t, err)
	assert.Equal(t, 50, r.TotalPoints())
}

func TestExportCountsStates(t *testing.T) {
	r := newGuestReconciler(t)

	done, err := r.AddTask("done", domain.DifficultyEasy, nil)
	require.NoError(t, err)
	_, err = r.ToggleTask(done.ID)
	require.NoError(t, err)
	_, err = r.AddTask("active", domain.DifficultyHard, nil)
	require.NoError(t, err)

	doc := r.Export()
	assert.Equal(t, 2, doc.TotalTasks)
	assert.Equal(t, 1, doc.ActiveTasks)
	assert.Equal(t, 1, doc.CompletedTasks)
	assert.Len(t, doc.Tasks, 2)
	assert.WithinDuration(t, time.Now(), doc.ExportDate, time.Minute)
}

func TestStats(t *testing.T) {
	r := newGuestReconciler(t)

	done, err := r.AddTask("done", domain.DifficultyExpert, nil)
	require.NoError(t, err)
	_, err = r.ToggleTask(done.ID)
	require.NoError(t, err)
	_, err = r.AddTask("active", domain.DifficultyEasy, nil)
	require.NoError(t, err)

	stats := r.Stats()
	assert.Equal(t, Stats{Total: 2, Active: 1, Completed: 1, Points: 100}, stats)
}

func TestCloseIsIdempotent(t *testing.T) {
	r := newGuestReconciler(t)
	r.Close()
	r.Close()
}
