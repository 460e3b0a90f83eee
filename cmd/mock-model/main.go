// Package main implements a mock model server for development and e2e
// testing. It serves OpenAI-compatible /v1/chat/completions responses,
// routing by the "model" field of the request, so the full service can run
// offline with every cascade entry pointed at this server.
//
// Usage:
//
//	mock-model -fixtures ./fixtures -port 9090
//
// Behavior per model comes from optional fixture files in the fixtures
// directory:
//
//	<model>.json        content returned on every call
//	<model>.seq.N.json  content for the Nth served call (N from 1); after
//	                    the sequence is exhausted the base file repeats,
//	                    or the last entry when there is no base file
//	<model>.fail.json   scripted failure {"status":429,"count":2,"delay_ms":0}:
//	                    the first count calls return status after delay_ms
//	                    (count -1 fails every call; a large delay_ms
//	                    simulates a timeout regardless of status)
//
// Fixture content is returned verbatim as the assistant message, so invalid
// JSON and schema-breaking documents can be scripted deliberately. A model
// with no fixtures at all gets a synthesized, schema-valid itinerary built
// from the day count and destination found in the prompt.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Fixtures ---

// failSpec scripts error responses for the leading calls to a model.
type failSpec struct {
	// Status is the HTTP status returned while the script is active.
	Status int `json:"status"`

	// Count is how many calls fail before content is served; -1 fails
	// every call.
	Count int `json:"count"`

	// DelayMS delays the failing response, for timeout simulation.
	DelayMS int64 `json:"delay_ms"`
}

// modelScript is everything loaded from the fixtures directory for one
// model.
type modelScript struct {
	seq  []string
	base string
	fail *failSpec
}

// modelState tracks call counts. requests counts every call for /stats;
// served counts only content responses and drives sequence selection, so a
// scripted failure does not consume a sequence entry.
type modelState struct {
	requests int
	served   int
}

type server struct {
	mu      sync.Mutex
	scripts map[string]*modelScript
	state   map[string]*modelState
}

func newServer(scripts map[string]*modelScript) *server {
	return &server{
		scripts: scripts,
		state:   make(map[string]*modelState),
	}
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture files (optional)")
	port := flag.Int("port", 9090, "port to listen on")
	flag.Parse()

	_ = godotenv.Load()

	if envDir := os.Getenv("MOCK_MODEL_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}

	scripts := make(map[string]*modelScript)
	if *fixtureDir != "" {
		var err error
		scripts, err = loadFixtures(*fixtureDir)
		if err != nil {
			log.Fatalf("Failed to load fixtures from %s: %v", *fixtureDir, err)
		}
		log.Printf("Loaded %d scripted model(s) from %s", len(scripts), *fixtureDir)
		for model, script := range scripts {
			log.Printf("  model: %s (seq=%d base=%t fail=%t)",
				model, len(script.seq), script.base != "", script.fail != nil)
		}
	} else {
		log.Printf("No fixtures directory, synthesizing all responses")
	}

	s := newServer(scripts)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/reset", s.handleReset)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock model server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Model == "" {
		http.Error(w, "missing model", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	st, ok := s.state[req.Model]
	if !ok {
		st = &modelState{}
		s.state[req.Model] = st
	}
	st.requests++
	callNum := st.requests

	script := s.scripts[req.Model]
	var fail *failSpec
	if script != nil && script.fail != nil {
		if script.fail.Count < 0 || callNum <= script.fail.Count {
			fail = script.fail
		}
	}

	var content string
	if fail == nil {
		st.served++
		content = selectContent(script, st.served, lastUserMessage(req))
	}
	s.mu.Unlock()

	if fail != nil {
		if fail.DelayMS > 0 {
			time.Sleep(time.Duration(fail.DelayMS) * time.Millisecond)
		}
		log.Printf("model=%s call=%d scripted failure status=%d", req.Model, callNum, fail.Status)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fail.Status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": fmt.Sprintf("scripted failure for model %s", req.Model),
				"type":    "mock_error",
			},
		})
		return
	}

	log.Printf("model=%s call=%d responded with %d bytes", req.Model, callNum, len(content))

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleStats returns per-model request counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	total := 0
	byModel := make(map[string]int, len(s.state))
	for model, st := range s.state {
		byModel[model] = st.requests
		total += st.requests
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":    total,
		"calls_by_model": byModel,
	})
}

// handleReset clears all call counters, re-arming sequences and failure
// scripts.
func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	s.state = make(map[string]*modelState)
	s.mu.Unlock()

	log.Printf("state reset")
	w.WriteHeader(http.StatusNoContent)
}

// selectContent picks the response for the Nth served call (1-based).
func selectContent(script *modelScript, served int, prompt string) string {
	if script != nil {
		if served <= len(script.seq) {
			return script.seq[served-1]
		}
		if script.base != "" {
			return script.base
		}
		if len(script.seq) > 0 {
			return script.seq[len(script.seq)-1]
		}
	}
	return synthesizeItinerary(prompt)
}

// lastUserMessage returns the content of the last user message, which for
// this service is always the generation prompt.
func lastUserMessage(req chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

// tripRe extracts the day count and destination from the generation
// prompt's "a N-day trip to X." sentence.
var tripRe = regexp.MustCompile(`(\d+)-day trip to ([^\n]+?)\.(?:\n|$)`)

// synthesizeItinerary builds a schema-valid itinerary for whatever the
// prompt asked: the right number of days, three HH:mm activities per day,
// and a recommendation set that satisfies the category minimums.
func synthesizeItinerary(prompt string) string {
	days := 3
	destination := "Sample City"
	if m := tripRe.FindStringSubmatch(prompt); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			days = n
		}
		destination = m[2]
	}

	type activity struct {
		Time        string `json:"time"`
		Name        string `json:"name"`
		Location    string `json:"location"`
		Description string `json:"description"`
	}
	type schedule struct {
		Day        int        `json:"day"`
		Activities []activity `json:"activities"`
	}
	type recommendation struct {
		Category    string `json:"category"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	schedules := make([]schedule, 0, days)
	for d := 1; d <= days; d++ {
		schedules = append(schedules, schedule{
			Day: d,
			Activities: []activity{
				{Time: "09:00", Name: fmt.Sprintf("Morning walk %d", d), Location: "Old town", Description: "Stroll through the historic center."},
				{Time: "12:30", Name: fmt.Sprintf("Local lunch %d", d), Location: "Market hall", Description: "Regional dishes at the market."},
				{Time: "16:00", Name: fmt.Sprintf("Museum visit %d", d), Location: "Museum quarter", Description: "An afternoon of local history."},
			},
		})
	}

	doc := map[string]any{
		"destination":    destination,
		"duration":       days,
		"dailySchedules": schedules,
		"recommendations": []recommendation{
			{Category: "place", Name: "City viewpoint", Description: "Panoramic view over the rooftops."},
			{Category: "place", Name: "Botanical garden", Description: "Quiet greenhouses away from the crowds."},
			{Category: "restaurant", Name: "Harbor bistro", Description: "Fresh fish by the water."},
			{Category: "restaurant", Name: "Corner bakery", Description: "Breakfast pastries locals queue for."},
			{Category: "experience", Name: "Evening food tour", Description: "A guided walk through the street food scene."},
		},
	}

	out, err := json.Marshal(doc)
	if err != nil {
		// Static shapes marshal unconditionally; this is unreachable.
		return "{}"
	}
	return string(out)
}

// seqFileRe matches files like "gemini-flash.seq.1.json".
var seqFileRe = regexp.MustCompile(`^(.+)\.seq\.(\d+)\.json$`)

// loadFixtures reads the fixtures directory into per-model scripts.
func loadFixtures(dir string) (map[string]*modelScript, error) {
	seqFiles := make(map[string]map[int]string)
	scripts := make(map[string]*modelScript)

	getScript := func(model string) *modelScript {
		if s, ok := scripts[model]; ok {
			return s
		}
		s := &modelScript{}
		scripts[model] = s
		return s
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixtures dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		switch {
		case strings.HasSuffix(name, ".fail.json"):
			model := strings.TrimSuffix(name, ".fail.json")
			var spec failSpec
			if err := json.Unmarshal(data, &spec); err != nil {
				return nil, fmt.Errorf("parse %s: %w", name, err)
			}
			if spec.Status == 0 {
				spec.Status = http.StatusInternalServerError
			}
			getScript(model).fail = &spec

		case seqFileRe.MatchString(name):
			m := seqFileRe.FindStringSubmatch(name)
			model := m[1]
			index, _ := strconv.Atoi(m[2])
			if seqFiles[model] == nil {
				seqFiles[model] = make(map[int]string)
			}
			seqFiles[model][index] = string(data)

		default:
			model := strings.TrimSuffix(name, ".json")
			getScript(model).base = string(data)
		}
	}

	for model, numbered := range seqFiles {
		indices := make([]int, 0, len(numbered))
		for idx := range numbered {
			indices = append(indices, idx)
		}
		sort.Ints(indices)

		script := getScript(model)
		for _, idx := range indices {
			script.seq = append(script.seq, numbered[idx])
		}
	}

	return scripts, nil
}
