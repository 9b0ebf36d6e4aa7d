package event

import "time"

type Event struct {
	Id    string
	Title string
	// Date is the calendar day in ISO form (YYYY-MM-DD). Only presence is enforced.
	Date string
	// Time is the time of day in 24-hour HH:MM form. Only presence is enforced.
	Time      string
	Notes     string
	Recurring bool
	CreatedAt time.Time
}

// EventData is a validated event payload, without the fields assigned by the store.
type EventData struct {
	Title     string
	Date      string
	Time      string
	Notes     string
	Recurring bool
}

// EventPatch carries the fields to overwrite on update. Nil fields are left untouched.
type EventPatch struct {
	Title     *string
	Date      *string
	Time      *string
	Notes     *string
	Recurring *bool
}

// PatchOf turns a full payload into a patch that overwrites every mutable field.
func PatchOf(data EventData) EventPatch {
	return EventPatch{
		Title:     &data.Title,
		Date:      &data.Date,
		Time:      &data.Time,
		Notes:     &data.Notes,
		Recurring: &data.Recurring,
	}
}

func (p EventPatch) apply(e Event) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.Recurring != nil {
		e.Recurring = *p.Recurring
	}
	return e
}

// before reports whether a is listed ahead of b: by date, then by time of day.
func before(a, b Event) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.Time < b.Time
}
