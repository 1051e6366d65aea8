package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, base := range []string{"", "localhost:8080", "ftp://x", "://"} {
		if _, err := NewClient(base); !errors.Is(err, ErrInvalidBaseURL) {
			t.Errorf("NewClient(%q) error = %v, want ErrInvalidBaseURL", base, err)
		}
	}
}

func TestListAndGet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events":
			w.Write([]byte(`{"events":[{"id":"e1","title":"A"},{"id":"e2","title":"B"}]}`))
		case "/events/e1":
			w.Write([]byte(`{"event":{"id":"e1","title":"A","date":"2026-01-02"}}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	list, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[1].ID != "e2" {
		t.Errorf("List = %+v", list)
	}

	ev, err := c.Get(ctx, "e1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ev.Title != "A" || ev.Date != "2026-01-02" {
		t.Errorf("Get = %+v", ev)
	}

	_, err = c.Get(ctx, "missing")
	if !IsNotFound(err) {
		t.Errorf("Get(missing) error = %v, want 404 APIError", err)
	}
}

func TestCreateSendsJSON(t *testing.T) {
	var got Event
	var method, contentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&got)
		got.ID = "new-id"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"message": "Event saved.", "event": got})
	})

	ev, err := c.Create(context.Background(), Event{ID: "ignored", Title: "T", Description: "D", Image: "https://x/y.png", Date: "2026-05-01"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if method != http.MethodPost || contentType != "application/json" {
		t.Errorf("request = %s %s", method, contentType)
	}
	if ev.ID != "new-id" || ev.Title != "T" {
		t.Errorf("Create = %+v", ev)
	}
}

func TestValidationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Updating the event failed due to validation errors.","errors":{"title":"Invalid title."}}`))
	})

	_, err := c.Update(context.Background(), "e1", Event{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Update error = %v, want *ValidationError", err)
	}
	if verr.Errors["title"] != "Invalid title." {
		t.Errorf("Errors = %v", verr.Errors)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.Delete(context.Background(), "e1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Delete error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusInternalServerError || apiErr.Method != http.MethodDelete {
		t.Errorf("APIError = %+v", apiErr)
	}
	if IsNotFound(err) {
		t.Error("IsNotFound = true for a 500")
	}
}

func TestEscapesIDs(t *testing.T) {
	var raw string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.EscapedPath()
		w.Write([]byte(`{"event":{"id":"a b"}}`))
	})
	if _, err := c.Get(context.Background(), "a b"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if raw != "/events/a%20b" {
		t.Errorf("path = %q, want /events/a%%20b", raw)
	}
}
