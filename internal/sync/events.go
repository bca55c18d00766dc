package sync

import "time"

// Event is pushed to a user's websocket connections after a mutation.
type Event struct {
	Type string    `json:"type"` // reference.created, artwork.created, artwork.updated, artwork.deleted, ...
	Kind string    `json:"kind,omitempty"`
	ID   any       `json:"id"`
	Name string    `json:"name,omitempty"`
	At   time.Time `json:"at"`
}

// Publisher is what mutating handlers depend on.
type Publisher interface {
	Publish(userID string, ev Event)
}
