package domain

import "time"

// Difficulty scales how many points a completed task is worth.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

var pointValues = map[Difficulty]int{
	DifficultyEasy:   10,
	DifficultyMedium: 25,
	DifficultyHard:   50,
	DifficultyExpert: 100,
}

// PointValue returns the points a task of this difficulty is worth.
// Unknown difficulty strings are stored verbatim but valued as medium.
func (d Difficulty) PointValue() int {
	if v, ok := pointValues[d]; ok {
		return v
	}
	return pointValues[DifficultyMedium]
}

// Task is a single to-do item. IDs are creation-time millisecond
// timestamps, unique and monotonic per namespace.
type Task struct {
	ID         int64      `json:"id"`
	Text       string     `json:"text"`
	Difficulty Difficulty `json:"difficulty"`
	Completed  bool       `json:"completed"`
	// PointsEarned is nil on legacy records that predate the flag; on
	// load such completed tasks are treated as earned and backfilled.
	PointsEarned *bool      `json:"pointsEarned,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
}

// EarnedPoints reports whether this task has counted toward the total.
// A missing flag reads as false, matching the toggle semantics.
func (t *Task) EarnedPoints() bool {
	return t.PointsEarned != nil && *t.PointsEarned
}

// SetPointsEarned records whether the task's points are in the total.
func (t *Task) SetPointsEarned(earned bool) {
	t.PointsEarned = &earned
}

// Clone returns a deep copy safe to hand outside the reconciler's lock.
func (t *Task) Clone() *Task {
	c := *t
	if t.PointsEarned != nil {
		v := *t.PointsEarned
		c.PointsEarned = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if t.DueDate != nil {
		v := *t.DueDate
		c.DueDate = &v
	}
	return &c
}

// CloneTasks deep-copies a task list.
func CloneTasks(tasks []*Task) []*Task {
	if tasks == nil {
		return nil
	}
	out := make([]*Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
