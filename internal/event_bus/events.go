package event_bus

import "time"

const (
	EventCreatedType EventType = "event.created"
	EventUpdatedType EventType = "event.updated"
	EventDeletedType EventType = "event.deleted"
)

type EventCreated struct {
	Id        string
	Title     string
	Date      string
	Time      string
	Recurring bool
	CreatedAt time.Time
}

type EventUpdated struct {
	Id        string
	Title     string
	Date      string
	Time      string
	Recurring bool
}

type EventDeleted struct {
	Id string
}
