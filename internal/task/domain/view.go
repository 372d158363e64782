package domain

// Page filters the task list by completion state.
type Page string

const (
	PageAll       Page = "all"
	PageActive    Page = "active"
	PageCompleted Page = "completed"
)

// SortOption orders a filtered view.
type SortOption string

const (
	SortNewest       SortOption = "newest"
	SortOldest       SortOption = "oldest"
	SortAlphabetical SortOption = "alphabetical"
	SortReverse      SortOption = "reverse"
)
