package cache

// GuestNamespace is the storage partition used while nobody is signed in.
// Guest data and per-subject data are disjoint; only the migration
// coordinator ever copies between them.
const GuestNamespace = "guest"

// UserKey holds the cached identity of the signed-in user (absent = signed out).
func UserKey() string {
	return "user"
}

// TasksKey holds the JSON task list for a namespace.
func TasksKey(namespace string) string {
	return "tasks_" + namespace
}

// PointsKey holds the stringified point total for a namespace.
func PointsKey(namespace string) string {
	return "points_" + namespace
}

// MigratedKey marks that a subject's local data has been migrated to the
// remote store, so a process restart does not re-trigger migration.
func MigratedKey(subjectID string) string {
	return "migrated_" + subjectID
}
