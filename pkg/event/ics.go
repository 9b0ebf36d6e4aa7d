package event

import (
	"time"

	ics "github.com/arran4/golang-ical"
)

const recurringProperty = ics.ComponentProperty("X-EVENTBOARD-RECURRING")

// RenderICS exports events as an iCalendar document. Events are zone-less, so DTSTART is written as
// floating local time; a date without a parseable time becomes an all-day entry and an unparseable
// date is exported without DTSTART.
func RenderICS(events []Event, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//klokku//eventboard//EN")

	for _, e := range events {
		vevent := cal.AddEvent(e.Id + "@eventboard")
		vevent.SetDtStampTime(now)
		vevent.SetCreatedTime(e.CreatedAt)
		vevent.SetSummary(e.Title)
		if e.Notes != "" {
			vevent.SetDescription(e.Notes)
		}
		if e.Recurring {
			vevent.SetProperty(recurringProperty, "TRUE")
		}

		date, err := time.Parse(time.DateOnly, e.Date)
		if err != nil {
			continue
		}
		clock, err := time.Parse("15:04", e.Time)
		if err != nil {
			vevent.SetAllDayStartAt(date)
			continue
		}
		start := date.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
		vevent.SetProperty(ics.ComponentPropertyDtStart, start.Format("20060102T150405"))
	}

	return cal.Serialize()
}
