package types

// SnapshotID names one ledger snapshot. The zero value means no snapshot.
type SnapshotID uint64
