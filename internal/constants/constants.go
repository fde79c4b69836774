package constants

// Advisory lock identifiers shared by every instance using the same database.
const (
	MigrationLock = iota + 7300
	PurgeLock
)
