package model

// EventKind tags a ChangeEvent with the mutation that produced it.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
)

// ChangeEvent is a transient notification of a todo mutation, delivered to
// every live session of the owning user. Events are never persisted.
//
// For created and updated, Todo carries the full new state of the record.
// For removed, only Todo.ID is guaranteed to be populated - subscribers must
// not rely on the other fields of a removed event.
//
// Delivery may be duplicated or arrive out of order across sources; the
// reconciler's Reduce is written to tolerate both.
type ChangeEvent struct {
	Kind EventKind `json:"kind"`
	Todo Todo      `json:"todo"`
}
