package ir

// Version constants for persisted snapshots.
const (
	// SnapshotVersion is the encoding version of cached pool snapshots.
	SnapshotVersion = "1"

	// EngineVersion is the carbonspin engine version.
	EngineVersion = "0.1.0"
)
