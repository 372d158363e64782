package repository

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"dailyrush-backend/internal/task/domain"
	"dailyrush-backend/pkg/cache"
)

// CacheRepository persists tasks and points in the local cache store
// using the widget's key layout. Corrupt entries are discarded and reset
// to the empty default, never propagated.
type CacheRepository struct {
	store cache.Store
}

func NewCacheRepository(store cache.Store) *CacheRepository {
	return &CacheRepository{store: store}
}

// LoadTasks returns the cached task list for a namespace, or nil when
// absent or malformed.
func (r *CacheRepository) LoadTasks(namespace string) []*domain.Task {
	raw, ok := r.store.Get(cache.TasksKey(namespace))
	if !ok {
		return nil
	}

	var tasks []*domain.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		log.Printf("[Cache] discarding malformed task list for %s: %v", namespace, err)
		r.store.Remove(cache.TasksKey(namespace))
		return nil
	}
	return tasks
}

func (r *CacheRepository) SaveTasks(namespace string, tasks []*domain.Task) bool {
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	raw, err := json.Marshal(tasks)
	if err != nil {
		log.Printf("[Cache] encoding tasks for %s: %v", namespace, err)
		return false
	}
	return r.store.Set(cache.TasksKey(namespace), raw)
}

// LoadPoints returns the persisted point total for a namespace. The
// second result is false when no total has been persisted yet (which
// triggers derivation from the task list).
func (r *CacheRepository) LoadPoints(namespace string) (int, bool) {
	raw, ok := r.store.Get(cache.PointsKey(namespace))
	if !ok {
		return 0, false
	}

	total, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || total < 0 {
		log.Printf("[Cache] discarding malformed point total for %s: %q", namespace, raw)
		r.store.Remove(cache.PointsKey(namespace))
		return 0, false
	}
	return total, true
}

func (r *CacheRepository) SavePoints(namespace string, total int) bool {
	return r.store.Set(cache.PointsKey(namespace), []byte(strconv.Itoa(total)))
}
