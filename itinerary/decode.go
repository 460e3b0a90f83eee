package itinerary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// timePattern matches 24-hour HH:mm times, 00:00 through 23:59.
var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// SchemaError reports model output that parsed as JSON but does not satisfy
// the itinerary schema.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("itinerary schema mismatch: %s", e.Reason)
}

func schemaErrorf(format string, args ...any) *SchemaError {
	return &SchemaError{Reason: fmt.Sprintf(format, args...)}
}

// wireItinerary keeps the two sequences raw so an absent field can be told
// apart from an empty one.
type wireItinerary struct {
	DailySchedules  json.RawMessage `json:"dailySchedules"`
	Recommendations json.RawMessage `json:"recommendations"`
}

// Decode parses model output that has already been reduced to a JSON
// document and validates it against the request:
//
//  1. the top level is an object with dailySchedules and recommendations
//  2. every schedule has a positive integer day and at least 3 activities
//  3. every activity time matches HH:mm
//  4. every recommendation category is a known value
//  5. the number of schedules equals req.Duration exactly
//
// Decode never pads or truncates; any violation returns a *SchemaError.
// The only mutation performed is a stable ascending sort of each day's
// activities by time, so decoding an already-valid itinerary yields an
// equal value.
func Decode(raw []byte, req TripRequest) (*Itinerary, error) {
	var wire wireItinerary
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, schemaErrorf("top level is not an itinerary object: %v", err)
	}
	if isAbsent(wire.DailySchedules) {
		return nil, schemaErrorf("missing dailySchedules")
	}
	if isAbsent(wire.Recommendations) {
		return nil, schemaErrorf("missing recommendations")
	}

	var schedules []DailySchedule
	if err := json.Unmarshal(wire.DailySchedules, &schedules); err != nil {
		return nil, schemaErrorf("dailySchedules: %v", err)
	}
	var recs []Recommendation
	if err := json.Unmarshal(wire.Recommendations, &recs); err != nil {
		return nil, schemaErrorf("recommendations: %v", err)
	}

	for i := range schedules {
		s := &schedules[i]
		if s.Day < 1 {
			return nil, schemaErrorf("schedule %d: day must be a positive integer, got %d", i+1, s.Day)
		}
		if len(s.Activities) < minActivitiesPerDay {
			return nil, schemaErrorf("day %d: expected at least %d activities, got %d", s.Day, minActivitiesPerDay, len(s.Activities))
		}
		for j, a := range s.Activities {
			if !timePattern.MatchString(a.Time) {
				return nil, schemaErrorf("day %d activity %d: time %q is not HH:mm", s.Day, j+1, a.Time)
			}
		}
	}
	for i, r := range recs {
		if !r.Category.IsValid() {
			return nil, schemaErrorf("recommendation %d: unknown category %q", i+1, r.Category)
		}
	}
	if len(schedules) != req.Duration {
		return nil, schemaErrorf("expected %d daily schedules, got %d", req.Duration, len(schedules))
	}

	for i := range schedules {
		acts := schedules[i].Activities
		sort.SliceStable(acts, func(a, b int) bool {
			return acts[a].Time < acts[b].Time
		})
	}

	return &Itinerary{
		Destination:     strings.TrimSpace(req.Destination),
		Duration:        req.Duration,
		DailySchedules:  schedules,
		Recommendations: recs,
	}, nil
}

// isAbsent reports a raw field that was missing or explicitly null.
func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
