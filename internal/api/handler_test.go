//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/skydesk/internal/agent"
)

func TestJSONWritesMessageResponse(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, agent.MessageResponse{Content: "Seat 12A confirmed.", Specialist: "seat_booking"})

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got agent.MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Specialist != "seat_booking" || got.Content != "Seat 12A confirmed." {
		t.Errorf("response = %+v", got)
	}
}

func TestErrorWrapsMessage(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusConflict, "busy")

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "busy" {
		t.Errorf("error = %q", got["error"])
	}
}
