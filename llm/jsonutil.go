package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regex patterns for JSON extraction from model responses.
var (
	// fencedBlockPattern matches a JSON object inside a markdown code
	// fence: ```json { ... } ```
	fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON locates the JSON object in a model response string. It tries,
// in order: a markdown code fence, the whole trimmed response, and the
// first brace-balanced region of the text. Each candidate is cleaned of
// JavaScript-style line comments and trailing commas before being checked;
// the first candidate that is valid JSON wins. If nothing parses a
// *ParseError is returned. Extraction only locates and cleans, it never
// invents structure.
func ExtractJSON(content string) (string, error) {
	if m := fencedBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		if cleaned, ok := tryCandidate(m[1]); ok {
			return cleaned, nil
		}
	}

	if trimmed := strings.TrimSpace(content); strings.HasPrefix(trimmed, "{") {
		if cleaned, ok := tryCandidate(trimmed); ok {
			return cleaned, nil
		}
	}

	if candidate := firstBalancedObject(content); candidate != "" {
		if cleaned, ok := tryCandidate(candidate); ok {
			return cleaned, nil
		}
	}

	return "", &ParseError{Detail: fmt.Sprintf("%d bytes with no parseable object", len(content))}
}

// tryCandidate cleans a candidate region and reports whether it is valid
// JSON afterwards.
func tryCandidate(candidate string) (string, bool) {
	cleaned := cleanJSON(candidate)
	if json.Valid([]byte(cleaned)) {
		return cleaned, true
	}
	return "", false
}

// firstBalancedObject scans for the first brace-balanced {...} region,
// ignoring braces inside JSON string values.
func firstBalancedObject(content string) string {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(content); i++ {
		ch := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			// Quotes in prose before the object must not flip string
			// state; only track strings once inside braces.
			if depth > 0 {
				inString = !inString
			}
		case '{':
			if !inString {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 {
					return content[start : i+1]
				}
			}
		}
	}
	return ""
}

// cleanJSON removes JavaScript-style comments and trailing commas from JSON.
// Models commonly produce these invalid JSON artifacts.
func cleanJSON(raw string) string {
	// Remove // comments that are NOT inside JSON string values.
	// Strategy: process line by line, only strip comments outside of strings.
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	result := strings.Join(cleaned, "\n")

	// Remove trailing commas before } or ]
	result = trailingCommaPattern.ReplaceAllString(result, "$1")

	return result
}

// stripLineComment removes a // comment from a JSON line, respecting string values.
// For example:
//
//	"path/to/file.js",          // This is a comment  → "path/to/file.js",
//	"url": "http://example.com" // comment             → "url": "http://example.com"
//	"url": "http://example.com"                        → "url": "http://example.com" (no change)
func stripLineComment(line string) string {
	// Fast path: no // at all
	if !strings.Contains(line, "//") {
		return line
	}

	// Walk the line character by character, tracking whether we're inside a string.
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			// Comment outside a string, strip from here.
			trimmed := strings.TrimRight(line[:i], " \t")
			return trimmed
		}
	}
	return line
}
