// Package itinerary defines the travel itinerary domain model and the
// schema validation applied to model-generated itineraries.
package itinerary

import (
	"fmt"
	"strings"
)

// minActivitiesPerDay is the smallest schedule the product accepts.
// Days below this are rejected outright, never padded.
const minActivitiesPerDay = 3

// TripRequest describes what the caller wants generated.
type TripRequest struct {
	Destination string `json:"destination"`
	Duration    int    `json:"duration"`
}

// Validate reports whether the request is plannable at all. It is checked
// before any model is invoked.
func (r TripRequest) Validate() error {
	if strings.TrimSpace(r.Destination) == "" {
		return fmt.Errorf("destination must not be empty")
	}
	if r.Duration < 1 {
		return fmt.Errorf("duration must be at least 1 day, got %d", r.Duration)
	}
	return nil
}

// Category classifies a recommendation.
type Category string

const (
	CategoryPlace      Category = "place"
	CategoryRestaurant Category = "restaurant"
	CategoryExperience Category = "experience"
)

// IsValid returns true if the category is one of the known values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryPlace, CategoryRestaurant, CategoryExperience:
		return true
	}
	return false
}

// Activity is a single scheduled item within a day. Time is a 24-hour
// "HH:mm" string; activities within a day are ordered by it.
type Activity struct {
	Time        string `json:"time"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// DailySchedule holds one day's activities. Day is 1-based.
type DailySchedule struct {
	Day        int        `json:"day"`
	Activities []Activity `json:"activities"`
}

// Recommendation is a destination-wide suggestion, not tied to a day.
type Recommendation struct {
	Category    Category `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
}

// Itinerary is a complete generated plan. DailySchedules always has exactly
// Duration entries; Decode enforces that.
type Itinerary struct {
	Destination     string           `json:"destination"`
	Duration        int              `json:"duration"`
	DailySchedules  []DailySchedule  `json:"dailySchedules"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Clone returns a deep copy that shares no memory with the receiver.
func (i *Itinerary) Clone() *Itinerary {
	if i == nil {
		return nil
	}
	out := *i
	out.DailySchedules = make([]DailySchedule, len(i.DailySchedules))
	for d, ds := range i.DailySchedules {
		out.DailySchedules[d] = ds
		out.DailySchedules[d].Activities = append([]Activity(nil), ds.Activities...)
	}
	out.Recommendations = append([]Recommendation(nil), i.Recommendations...)
	return &out
}
