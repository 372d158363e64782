package domain

import "time"

// UserRecord is the per-subject user document in the remote store. The
// point total lives here as a cached value so loads do not recompute it
// from the task list.
type UserRecord struct {
	Email             string    `firestore:"email"`
	DisplayName       string    `firestore:"displayName"`
	AvatarURL         string    `firestore:"avatarUrl"`
	CustomDisplayName *string   `firestore:"customDisplayName"`
	CustomAvatarURL   *string   `firestore:"customAvatarUrl"`
	TotalPoints       *int      `firestore:"totalPoints"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}
