package todo

// ActionKind tags a single mutation instruction in a sync batch.
type ActionKind string

// Recognized action kinds. The set is extensible: an unrecognized kind is
// skipped with a warning, never an error.
const (
	KindCreateCollection ActionKind = "createCollection"
	KindDeleteCollection ActionKind = "deleteCollection"
	KindCreateItem       ActionKind = "createItem"
	KindUpdateItem       ActionKind = "updateItem"
	KindDeleteItem       ActionKind = "deleteItem"
)

// Action is one client-generated mutation instruction. The payload must be a
// flat mapping of scalar values; a nested value anywhere in a batch rejects
// the whole batch. Actions are transient: only their effect on entities is
// ever persisted.
type Action struct {
	Kind    ActionKind     `json:"type"`
	Payload map[string]any `json:"payload"`
}
