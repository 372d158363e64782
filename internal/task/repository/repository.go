package repository

import (
	"context"

	"dailyrush-backend/internal/task/domain"
)

// RemoteStore is the document-store surface for a subject's data. Every
// operation may fail; callers treat failure as "fall back to the local
// cache", never as a fatal error for the user-facing mutation.
type RemoteStore interface {
	// ReadUser returns the subject's user document, or (nil, nil) when absent.
	ReadUser(ctx context.Context, subjectID string) (*domain.UserRecord, error)

	// WriteUser merge-upserts the given fields without clobbering others.
	WriteUser(ctx context.Context, subjectID string, fields map[string]interface{}) error

	// ReadTasksOnce returns the subject's tasks ordered by createdAt descending.
	ReadTasksOnce(ctx context.Context, subjectID string) ([]*domain.Task, error)

	// SubscribeTasks starts a live feed: every remote mutation delivers a
	// fresh full snapshot via onChange until the returned func is called.
	SubscribeTasks(ctx context.Context, subjectID string, onChange func([]*domain.Task)) (func(), error)

	// WriteTasksBatch atomically replaces the remote task collection with
	// exactly this set: absent ids are deleted, present ones upserted.
	WriteTasksBatch(ctx context.Context, subjectID string, tasks []*domain.Task) error

	// WritePoints persists the cached point total on the user document.
	WritePoints(ctx context.Context, subjectID string, total int) error
}
