package planner

import (
	"fmt"
	"strings"

	"github.com/tripweave/tripweave/itinerary"
)

// languageNames maps common IETF language tags to English names for the
// prompt's response-language constraint. Unknown tags pass through as-is.
var languageNames = map[string]string{
	"ar": "Arabic",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"hi": "Hindi",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"th": "Thai",
	"tr": "Turkish",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// languageName resolves a tag like "ja" or "pt-BR" to an English language
// name, falling back to the raw tag when unmapped.
func languageName(tag string) string {
	lower := strings.ToLower(strings.TrimSpace(tag))
	if name, ok := languageNames[lower]; ok {
		return name
	}
	if base, _, found := strings.Cut(lower, "-"); found {
		if name, ok := languageNames[base]; ok {
			return name
		}
	}
	return tag
}

// itineraryExample is the exact document shape models are asked to produce.
// Field names must match the itinerary package's JSON tags.
const itineraryExample = `{
  "destination": "Kyoto",
  "duration": 2,
  "dailySchedules": [
    {
      "day": 1,
      "activities": [
        {"time": "09:00", "name": "Fushimi Inari Shrine", "location": "Fushimi Ward", "description": "Walk the red torii gates before the crowds arrive."},
        {"time": "12:30", "name": "Lunch at Nishiki Market", "location": "Nishiki Market", "description": "Sample small plates from the street food stalls."},
        {"time": "15:00", "name": "Gion district walk", "location": "Gion", "description": "Stroll past traditional wooden machiya houses."}
      ]
    },
    {
      "day": 2,
      "activities": [
        {"time": "08:30", "name": "Arashiyama Bamboo Grove", "location": "Arashiyama", "description": "Early morning walk through the bamboo forest."},
        {"time": "11:00", "name": "Tenryu-ji Temple", "location": "Arashiyama", "description": "Zen temple with a landscaped garden."},
        {"time": "18:00", "name": "Kaiseki dinner", "location": "Pontocho Alley", "description": "Traditional multi-course dinner by the river."}
      ]
    }
  ],
  "recommendations": [
    {"category": "place", "name": "Kinkaku-ji", "description": "The Golden Pavilion, best at opening time.", "location": "Kita Ward"},
    {"category": "place", "name": "Philosopher's Path", "description": "Canal-side walk lined with cherry trees.", "location": "Sakyo Ward"},
    {"category": "restaurant", "name": "Ippudo Nishikikoji", "description": "Ramen near Nishiki Market."},
    {"category": "restaurant", "name": "Izuju", "description": "Classic Kyoto-style sushi opposite Yasaka Shrine."},
    {"category": "experience", "name": "Tea ceremony", "description": "A guided tea ceremony in a Gion teahouse."}
  ]
}`

// BuildPrompt renders the instruction prompt for one trip request. It is a
// pure function of its inputs; the same prompt is reused for every model
// and attempt of a run.
func BuildPrompt(req itinerary.TripRequest, lang string) string {
	return fmt.Sprintf(`You are a travel planner. Respond only in %s.

Create a travel itinerary for a %d-day trip to %s.

Requirements:
- "dailySchedules" must contain exactly %d entries, one per day, with "day" numbered from 1.
- Every day must contain at least 3 activities.
- Every activity "time" must use the 24-hour HH:mm format, for example "09:30".
- "recommendations" must contain at least 2 entries with category "place", at least 2 with category "restaurant", and at least 1 with category "experience".
- Allowed "category" values are "place", "restaurant", and "experience".

Respond with a single JSON object and nothing else: no prose, no markdown fences, no comments.

The document must have exactly this shape:

%s`,
		languageName(lang),
		req.Duration,
		req.Destination,
		req.Duration,
		itineraryExample,
	)
}
