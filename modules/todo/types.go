package todo

import (
	domain "github.com/MossTheFox/coursework-jtodo-server/domain/todo"
)

// SyncRequest carries one authenticated user's ordered action batch.
type SyncRequest struct {
	Owner   string          `json:"owner"`
	Actions []domain.Action `json:"actions"`
}

// SyncResponse summarizes a successfully processed batch.
type SyncResponse struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// SnapshotRequest asks for one user's full current state.
type SnapshotRequest struct {
	Owner string `json:"owner"`
}

// SnapshotResponse is the full current state for one user.
type SnapshotResponse struct {
	Collections []CollectionView `json:"collections"`
	Items       []ItemView       `json:"items"`
}
