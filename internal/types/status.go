package types

// Status tracks the lifecycle of a stored row. Deleted rows are kept with
// StatusDeleted and excluded from queries.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)
