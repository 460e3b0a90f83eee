package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func doRequest(t *testing.T, s *server, model, prompt string) *httptest.ResponseRecorder {
	t.Helper()
	req := chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	httpReq := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	s.handleChatCompletions(w, httpReq)
	return w
}

func doCompletion(t *testing.T, s *server, model, prompt string) string {
	t.Helper()
	w := doRequest(t, s, model, prompt)
	if w.Code != http.StatusOK {
		t.Fatalf("model %s: status %d, body: %s", model, w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Choices) == 0 {
		t.Fatal("no choices in response")
	}
	return resp.Choices[0].Message.Content
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "gemini-flash.json", `{"plan":"base"}`)
	writeFixture(t, dir, "gemini-flash.seq.1.json", `{"plan":"first"}`)
	writeFixture(t, dir, "gemini-flash.seq.2.json", `{"plan":"second"}`)
	writeFixture(t, dir, "gpt-4o-mini.fail.json", `{"status":429,"count":2}`)
	writeFixture(t, dir, "notes.txt", "ignored")

	scripts, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	flash, ok := scripts["gemini-flash"]
	if !ok {
		t.Fatal("missing gemini-flash script")
	}
	if len(flash.seq) != 2 {
		t.Errorf("expected 2 sequence entries, got %d", len(flash.seq))
	}
	if !strings.Contains(flash.seq[0], "first") || !strings.Contains(flash.seq[1], "second") {
		t.Errorf("sequence out of order: %v", flash.seq)
	}
	if !strings.Contains(flash.base, "base") {
		t.Errorf("base fixture not loaded: %q", flash.base)
	}

	mini, ok := scripts["gpt-4o-mini"]
	if !ok {
		t.Fatal("missing gpt-4o-mini script")
	}
	if mini.fail == nil || mini.fail.Status != 429 || mini.fail.Count != 2 {
		t.Errorf("fail spec not loaded: %+v", mini.fail)
	}
}

func TestLoadFixturesDefaultsFailStatus(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "flaky.fail.json", `{"count":1}`)

	scripts, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}
	if scripts["flaky"].fail.Status != http.StatusInternalServerError {
		t.Errorf("expected default status 500, got %d", scripts["flaky"].fail.Status)
	}
}

func TestSequentialSelection(t *testing.T) {
	s := newServer(map[string]*modelScript{
		"seq-model": {
			seq:  []string{`{"n":1}`, `{"n":2}`},
			base: `{"n":"base"}`,
		},
	})

	if got := doCompletion(t, s, "seq-model", "x"); !strings.Contains(got, `"n":1`) {
		t.Errorf("call 1: got %s", got)
	}
	if got := doCompletion(t, s, "seq-model", "x"); !strings.Contains(got, `"n":2`) {
		t.Errorf("call 2: got %s", got)
	}
	if got := doCompletion(t, s, "seq-model", "x"); !strings.Contains(got, "base") {
		t.Errorf("call 3: expected base fallback, got %s", got)
	}
	if got := doCompletion(t, s, "seq-model", "x"); !strings.Contains(got, "base") {
		t.Errorf("call 4: expected base to repeat, got %s", got)
	}
}

func TestSequenceWithoutBaseRepeatsLast(t *testing.T) {
	s := newServer(map[string]*modelScript{
		"seq-model": {seq: []string{`{"n":1}`, `{"n":2}`}},
	})

	doCompletion(t, s, "seq-model", "x")
	doCompletion(t, s, "seq-model", "x")
	if got := doCompletion(t, s, "seq-model", "x"); !strings.Contains(got, `"n":2`) {
		t.Errorf("expected last entry to repeat, got %s", got)
	}
}

func TestScriptedFailureThenContent(t *testing.T) {
	s := newServer(map[string]*modelScript{
		"flaky": {
			base: `{"plan":"ok"}`,
			fail: &failSpec{Status: 429, Count: 2},
		},
	})

	for i := 1; i <= 2; i++ {
		w := doRequest(t, s, "flaky", "x")
		if w.Code != http.StatusTooManyRequests {
			t.Errorf("call %d: expected 429, got %d", i, w.Code)
		}
		if !strings.Contains(w.Body.String(), "scripted failure") {
			t.Errorf("call %d: expected error body, got %s", i, w.Body.String())
		}
	}

	if got := doCompletion(t, s, "flaky", "x"); !strings.Contains(got, "ok") {
		t.Errorf("call 3: expected content after failures, got %s", got)
	}
}

func TestFailEveryCall(t *testing.T) {
	s := newServer(map[string]*modelScript{
		"down": {fail: &failSpec{Status: 503, Count: -1}},
	})

	for i := 1; i <= 3; i++ {
		w := doRequest(t, s, "down", "x")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("call %d: expected 503, got %d", i, w.Code)
		}
	}
}

func TestFailuresDoNotConsumeSequence(t *testing.T) {
	s := newServer(map[string]*modelScript{
		"flaky": {
			seq:  []string{`{"n":1}`, `{"n":2}`},
			fail: &failSpec{Status: 500, Count: 1},
		},
	})

	if w := doRequest(t, s, "flaky", "x"); w.Code != http.StatusInternalServerError {
		t.Fatalf("call 1: expected 500, got %d", w.Code)
	}
	if got := doCompletion(t, s, "flaky", "x"); !strings.Contains(got, `"n":1`) {
		t.Errorf("first served call should get seq entry 1, got %s", got)
	}
}

func TestSynthesizedItinerary(t *testing.T) {
	s := newServer(map[string]*modelScript{})

	prompt := "You are a travel planner. Respond only in English.\n\nCreate a travel itinerary for a 4-day trip to Lisbon.\n"
	content := doCompletion(t, s, "any-model", prompt)

	var doc struct {
		Destination    string `json:"destination"`
		Duration       int    `json:"duration"`
		DailySchedules []struct {
			Day        int `json:"day"`
			Activities []struct {
				Time string `json:"time"`
			} `json:"activities"`
		} `json:"dailySchedules"`
		Recommendations []struct {
			Category string `json:"category"`
		} `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		t.Fatalf("synthesized content is not JSON: %v\n%s", err, content)
	}

	if doc.Destination != "Lisbon" {
		t.Errorf("destination: expected Lisbon, got %q", doc.Destination)
	}
	if doc.Duration != 4 || len(doc.DailySchedules) != 4 {
		t.Errorf("expected 4 days, got duration=%d schedules=%d", doc.Duration, len(doc.DailySchedules))
	}
	for _, day := range doc.DailySchedules {
		if len(day.Activities) < 3 {
			t.Errorf("day %d: expected at least 3 activities, got %d", day.Day, len(day.Activities))
		}
		for _, a := range day.Activities {
			if len(a.Time) != 5 || a.Time[2] != ':' {
				t.Errorf("day %d: bad activity time %q", day.Day, a.Time)
			}
		}
	}

	categories := map[string]int{}
	for _, rec := range doc.Recommendations {
		categories[rec.Category]++
	}
	if categories["place"] < 2 || categories["restaurant"] < 2 || categories["experience"] < 1 {
		t.Errorf("recommendation minimums not met: %v", categories)
	}
}

func TestSynthesizedItineraryDefaults(t *testing.T) {
	s := newServer(map[string]*modelScript{})

	content := doCompletion(t, s, "any-model", "no trip sentence here")

	var doc struct {
		Duration       int               `json:"duration"`
		DailySchedules []json.RawMessage `json:"dailySchedules"`
	}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		t.Fatalf("synthesized content is not JSON: %v", err)
	}
	if doc.Duration != 3 || len(doc.DailySchedules) != 3 {
		t.Errorf("expected 3-day default, got duration=%d schedules=%d", doc.Duration, len(doc.DailySchedules))
	}
}

func TestStatsAndReset(t *testing.T) {
	s := newServer(map[string]*modelScript{
		"flaky": {
			base: `{"plan":"ok"}`,
			fail: &failSpec{Status: 429, Count: 1},
		},
	})

	// One scripted 429, one served fixture, one synthesized model.
	doRequest(t, s, "flaky", "x")
	doCompletion(t, s, "flaky", "x")
	doCompletion(t, s, "other", "x")

	statsReq := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	s.handleStats(w, statsReq)

	var stats struct {
		TotalCalls   int            `json:"total_calls"`
		CallsByModel map[string]int `json:"calls_by_model"`
	}
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalCalls != 3 {
		t.Errorf("total_calls: expected 3, got %d", stats.TotalCalls)
	}
	if stats.CallsByModel["flaky"] != 2 || stats.CallsByModel["other"] != 1 {
		t.Errorf("calls_by_model: %v", stats.CallsByModel)
	}

	resetReq := httptest.NewRequest(http.MethodPost, "/reset", nil)
	w = httptest.NewRecorder()
	s.handleReset(w, resetReq)
	if w.Code != http.StatusNoContent {
		t.Fatalf("reset: expected 204, got %d", w.Code)
	}

	// Counters are gone and the failure script is re-armed.
	if r := doRequest(t, s, "flaky", "x"); r.Code != http.StatusTooManyRequests {
		t.Errorf("after reset: expected re-armed 429, got %d", r.Code)
	}
}

func TestPromptPatternAgainstRealPrompt(t *testing.T) {
	// The synthesizer must keep parsing the prompt the planner actually
	// builds.
	prompt := "You are a travel planner. Respond only in Japanese.\n\nCreate a travel itinerary for a 7-day trip to Kyoto.\n\nRequirements:\n- ..."
	m := tripRe.FindStringSubmatch(prompt)
	if m == nil {
		t.Fatal("prompt pattern did not match")
	}
	if m[1] != "7" || m[2] != "Kyoto" {
		t.Errorf("expected 7/Kyoto, got %s/%s", m[1], m[2])
	}
}
