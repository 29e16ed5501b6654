package store

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

type DBConfig struct {
	DSN  string
	Type DatabaseType
}

// Table names as used in change notifications.
const (
	TableProfiles    = "profiles"
	TableAssignments = "assignments"
	TableSubmissions = "submissions"
)

// Publisher receives a change notification after every successful write.
// The store does not differentiate inserts from updates, subscribers
// re-fetch the whole table either way.
type Publisher interface {
	Publish(table string)
}
