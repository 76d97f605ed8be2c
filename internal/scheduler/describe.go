package scheduler

import (
	"context"
	"fmt"
	"math"
	"strings"

	"booking-backend/internal/model"
)

// Translator maps a message key to localized text. Untranslated keys fall
// back to the key itself.
type Translator func(key string) string

func identityTranslator(key string) string { return key }

// Availability classification tags consumed by the calendar frontend.
const (
	ClassUnavailable     = "event-unavailable"
	ClassAvailable       = "event-available"
	ClassPartlyAvailable = "event-partly-available"
	ClassFullyBooked     = "event-fully-booked"
	ClassFullWaitinglist = "event-full-waitinglist"
)

// AvailabilityInfo is the presentation-ready status of one allocation.
type AvailabilityInfo struct {
	Text  string `json:"text"`
	Class string `json:"class"`
}

// availabilityClass buckets a percentage into the three base tags.
func availabilityClass(availability float64) string {
	switch {
	case availability <= 0:
		return ClassUnavailable
	case availability >= 100:
		return ClassAvailable
	default:
		return ClassPartlyAvailable
	}
}

// DescribeAvailability produces the human-readable status and the
// classification tag of an allocation. Spot counts round half up.
func (s *Scheduler) DescribeAvailability(ctx context.Context, a *model.Allocation) (AvailabilityInfo, error) {
	availability, err := s.Availability(ctx, a.Start, a.End)
	if err != nil {
		return AvailabilityInfo{}, err
	}

	var text string
	if a.PartlyAvailable {
		switch {
		case availability <= 0:
			text = s.translate("Occupied")
		case availability >= 100:
			text = s.translate("Free")
		default:
			text = fmt.Sprintf(s.translate("%d%% Free"), int(availability))
		}
	} else {
		spots := int(math.Floor(float64(a.Quota)*availability/100 + 0.5))
		switch {
		case spots == 1:
			text = s.translate("1 Spot Available")
		case spots > 1:
			text = fmt.Sprintf(s.translate("%d Spots Available"), spots)
		default:
			text = s.translate("No spots available")
		}
	}

	var class string
	if availability <= 0 {
		class = ClassFullyBooked
	}

	hint := availability
	if a.Approve {
		open, err := s.OpenWaitinglistSpots(ctx, a)
		if err != nil {
			return AvailabilityInfo{}, err
		}

		if a.WaitinglistSpots > 0 {
			hint = float64(open) / float64(a.WaitinglistSpots) * 100
		} else {
			hint = 0
		}

		switch {
		case open == 1:
			text += "\n" + s.translate("1 Waitinglist Spot")
		case open > 1:
			text += "\n" + fmt.Sprintf(s.translate("%d Waitinglist Spots"), open)
		default:
			text += "\n" + s.translate("Full Waitinglist")
			class = strings.TrimSpace(ClassFullWaitinglist + " " + class)
		}
	}

	return AvailabilityInfo{
		Text:  text,
		Class: strings.TrimSpace(class + " " + availabilityClass(hint)),
	}, nil
}
