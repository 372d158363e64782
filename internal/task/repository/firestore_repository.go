package repository

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dailyrush-backend/internal/task/domain"
)

// firestoreStore implements RemoteStore against a users/{subject}
// document with a tasks/{taskId} subcollection.
type firestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a Firestore-backed RemoteStore.
func NewFirestoreStore(client *firestore.Client) RemoteStore {
	return &firestoreStore{client: client}
}

func (r *firestoreStore) userRef(subjectID string) *firestore.DocumentRef {
	return r.client.Collection("users").Doc(subjectID)
}

func (r *firestoreStore) tasksRef(subjectID string) *firestore.CollectionRef {
	return r.userRef(subjectID).Collection("tasks")
}

func (r *firestoreStore) ReadUser(ctx context.Context, subjectID string) (*domain.UserRecord, error) {
	doc, err := r.userRef(subjectID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, remoteError("read user", err)
	}

	var record domain.UserRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", subjectID, err)
	}
	return &record, nil
}

func (r *firestoreStore) WriteUser(ctx context.Context, subjectID string, fields map[string]interface{}) error {
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["updatedAt"] = firestore.ServerTimestamp

	if _, err := r.userRef(subjectID).Set(ctx, merged, firestore.MergeAll); err != nil {
		return remoteError("write user", err)
	}
	return nil
}

func (r *firestoreStore) ReadTasksOnce(ctx context.Context, subjectID string) ([]*domain.Task, error) {
	iter := r.tasksRef(subjectID).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var tasks []*domain.Task
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, remoteError("read tasks", err)
		}
		if task := decodeTaskDoc(doc); task != nil {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (r *firestoreStore) SubscribeTasks(ctx context.Context, subjectID string, onChange func([]*domain.Task)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	snapshots := r.tasksRef(subjectID).OrderBy("createdAt", firestore.Desc).Snapshots(ctx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Printf("[Remote] task subscription for %s ended: %v", subjectID, err)
				}
				return
			}

			var tasks []*domain.Task
			docs := snap.Documents
			for {
				doc, err := docs.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					log.Printf("[Remote] reading snapshot for %s: %v", subjectID, err)
					break
				}
				if task := decodeTaskDoc(doc); task != nil {
					tasks = append(tasks, task)
				}
			}
			onChange(tasks)
		}
	}()

	return cancel, nil
}

func (r *firestoreStore) WriteTasksBatch(ctx context.Context, subjectID string, tasks []*domain.Task) error {
	refs, err := r.tasksRef(subjectID).DocumentRefs(ctx).GetAll()
	if err != nil {
		return remoteError("list tasks", err)
	}

	existing := make(map[string]*firestore.DocumentRef, len(refs))
	for _, ref := range refs {
		existing[ref.ID] = ref
	}

	batch := r.client.Batch()
	for _, task := range tasks {
		id := strconv.FormatInt(task.ID, 10)
		batch.Set(r.tasksRef(subjectID).Doc(id), encodeTaskDoc(task))
		delete(existing, id)
	}
	// Whatever remains was deleted locally.
	for _, ref := range existing {
		batch.Delete(ref)
	}

	if _, err := batch.Commit(ctx); err != nil {
		return remoteError("write tasks batch", err)
	}
	return nil
}

func (r *firestoreStore) WritePoints(ctx context.Context, subjectID string, total int) error {
	fields := map[string]interface{}{
		"totalPoints": total,
		"updatedAt":   firestore.ServerTimestamp,
	}
	if _, err := r.userRef(subjectID).Set(ctx, fields, firestore.MergeAll); err != nil {
		return remoteError("write points", err)
	}
	return nil
}

// taskDoc is the wire shape of a task document. The task id is the
// document id; createdAt falls back to a server timestamp when the
// client supplied none. pointsEarned stays a nullable tri-state on the
// wire: documents written before the flag existed have it absent, and
// collapsing that to false would un-earn legacy completed tasks whose
// value is already in the stored total.
type taskDoc struct {
	Text         string     `firestore:"text"`
	Difficulty   string     `firestore:"difficulty"`
	Completed    bool       `firestore:"completed"`
	PointsEarned *bool      `firestore:"pointsEarned,omitempty"`
	CreatedAt    time.Time  `firestore:"createdAt,serverTimestamp"`
	CompletedAt  *time.Time `firestore:"completedAt"`
	DueDate      *time.Time `firestore:"dueDate"`
	UpdatedAt    time.Time  `firestore:"updatedAt,serverTimestamp"`
}

func encodeTaskDoc(task *domain.Task) *taskDoc {
	var earned *bool
	if task.PointsEarned != nil {
		v := *task.PointsEarned
		earned = &v
	}
	return &taskDoc{
		Text:         task.Text,
		Difficulty:   string(task.Difficulty),
		Completed:    task.Completed,
		PointsEarned: earned,
		CreatedAt:    task.CreatedAt,
		CompletedAt:  task.CompletedAt,
		DueDate:      task.DueDate,
	}
}

func decodeTaskDoc(doc *firestore.DocumentSnapshot) *domain.Task {
	id, err := strconv.ParseInt(doc.Ref.ID, 10, 64)
	if err != nil {
		log.Printf("[Remote] skipping task with non-numeric id %q", doc.Ref.ID)
		return nil
	}

	var d taskDoc
	if err := doc.DataTo(&d); err != nil {
		log.Printf("[Remote] skipping undecodable task %s: %v", doc.Ref.ID, err)
		return nil
	}

	return &domain.Task{
		ID:           id,
		Text:         d.Text,
		Difficulty:   domain.Difficulty(d.Difficulty),
		Completed:    d.Completed,
		PointsEarned: d.PointsEarned,
		CreatedAt:    d.CreatedAt,
		CompletedAt:  d.CompletedAt,
		DueDate:      d.DueDate,
	}
}

// remoteError maps transport failures onto the error taxonomy callers
// dispatch on.
func remoteError(op string, err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", op, domain.ErrRemoteUnreachable)
	case codes.PermissionDenied, codes.Unauthenticated, codes.ResourceExhausted:
		return fmt.Errorf("%s: %w", op, domain.ErrRemoteRejected)
	}
	return fmt.Errorf("%s: %w", op, err)
}
