// Package ical renders a merged event list as an iCalendar feed, the format
// the web calendar view subscribes to.
package ical

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

const productID = "-//EduSIS//Calendar Aggregator//EN"

// Encode serializes events into an iCalendar document.
func Encode(events []model.Event) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	now := time.Now().UTC()
	for _, e := range events {
		vevent := ical.NewComponent(ical.CompEvent)
		vevent.Props.SetText(ical.PropUID, e.ID)
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, now)

		if e.Title != "" {
			vevent.Props.SetText(ical.PropSummary, e.Title)
		}
		if e.Description != "" {
			vevent.Props.SetText(ical.PropDescription, e.Description)
		}
		if e.Location != "" {
			vevent.Props.SetText(ical.PropLocation, e.Location)
		}

		if e.AllDay {
			dtstart := ical.NewProp("DTSTART")
			dtstart.SetDate(e.StartTime)
			vevent.Props.Set(dtstart)

			dtend := ical.NewProp("DTEND")
			dtend.SetDate(e.EndTime)
			vevent.Props.Set(dtend)
		} else {
			vevent.Props.SetDateTime(ical.PropDateTimeStart, e.StartTime)
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, e.EndTime)
		}

		vevent.Props.SetText("CATEGORIES", string(e.CalendarType))
		if e.BranchID != "" {
			vevent.Props.SetText("X-EDUSIS-BRANCH", e.BranchID)
		}

		cal.Children = append(cal.Children, vevent)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}
