package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	respondJSON(w, http.StatusCreated, map[string]string{"message": "hello"})

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if success, ok := body["success"].(bool); !ok || !success {
		t.Error("success must be true")
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["message"] != "hello" {
		t.Errorf("data = %v", body["data"])
	}
	ts, ok := body["timestamp"].(string)
	if !ok {
		t.Fatal("timestamp missing")
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", ts, err)
	}
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid input")

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if success, ok := body["success"].(bool); !ok || success {
		t.Error("success must be false")
	}
	if body["error"] != "Bad Request" {
		t.Errorf("error = %v", body["error"])
	}
	if body["message"] != "Invalid input" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	t.Parallel()

	short := "plain message"
	if got := sanitizeErrorMessage(short); got != short {
		t.Errorf("short message changed: %q", got)
	}

	long := strings.Repeat("x", 300)
	got := sanitizeErrorMessage(long)
	if len(got) != 203 {
		t.Errorf("truncated length = %d, want 203", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated message must end with ellipsis")
	}
}
