package domain

// Event classifies project lifecycle notifications.
type Event string

const (
	EventCreated  Event = "created"
	EventUpdated  Event = "updated"
	EventArchived Event = "archived"
	EventRestored Event = "restored"
)
