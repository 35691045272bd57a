package enum

type SyncMode string

const (
	SyncModeBackfill    SyncMode = "backfill"
	SyncModeIncremental SyncMode = "incremental"
)

func (m SyncMode) String() string {
	return string(m)
}

// IncrementalSource records how an incremental pass found its threads.
type IncrementalSource string

const (
	IncrementalSourceHistory IncrementalSource = "history"
	IncrementalSourcePolling IncrementalSource = "polling"
)

func (s IncrementalSource) String() string {
	return string(s)
}

type EntityType string

const (
	CONVERSATION EntityType = "CONVERSATION"
	MAIL_ACCOUNT EntityType = "MAIL_ACCOUNT"
)

func (entityType EntityType) String() string {
	return string(entityType)
}
