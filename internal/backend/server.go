// Package backend is the reference events backend.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/vango-dev/routedata/pkg/events"
)

// Server serves the events API over a Store.
type Server struct {
	store  Store
	logger *slog.Logger
	router chi.Router

	// mu serializes read-modify-write cycles on the store.
	mu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a server backed by store.
func New(store Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: slog.Default().With("component", "backend"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", s.list)
		r.Post("/", s.create)
		r.Get("/{id}", s.get)
		r.Patch("/{id}", s.update)
		r.Delete("/{id}", s.remove)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, message("Not found."))
	})
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type messageBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
	Event   *events.Event     `json:"event,omitempty"`
}

func message(m string) messageBody { return messageBody{Message: m} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, message("Could not find event for id "+chi.URLParam(r, "id")+"."))
		return
	}
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, message("Something went wrong."))
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Load(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []events.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Load(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	i := indexOf(list, chi.URLParam(r, "id"))
	if i < 0 {
		s.fail(w, r, ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": list[i]})
}

func decodeEvent(w http.ResponseWriter, r *http.Request) (events.Event, error) {
	var ev events.Event
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&ev)
	return ev, err
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	ev, err := decodeEvent(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message("Invalid request body."))
		return
	}
	if errs := validate(ev); errs != nil {
		writeJSON(w, http.StatusUnprocessableEntity, messageBody{
			Message: "Adding the event failed due to validation errors.",
			Errors:  errs,
		})
		return
	}
	ev.ID = ulid.Make().String()

	err = s.mutate(r.Context(), func(list []events.Event) ([]events.Event, error) {
		return append(list, ev), nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("event created", "id", ev.ID)
	writeJSON(w, http.StatusCreated, messageBody{Message: "Event saved.", Event: &ev})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, err := decodeEvent(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message("Invalid request body."))
		return
	}
	if errs := validate(ev); errs != nil {
		writeJSON(w, http.StatusUnprocessableEntity, messageBody{
			Message: "Updating the event failed due to validation errors.",
			Errors:  errs,
		})
		return
	}
	ev.ID = id

	err = s.mutate(r.Context(), func(list []events.Event) ([]events.Event, error) {
		i := indexOf(list, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		list[i] = ev
		return list, nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Event updated.", Event: &ev})
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.mutate(r.Context(), func(list []events.Event) ([]events.Event, error) {
		i := indexOf(list, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		return append(list[:i], list[i+1:]...), nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message("Event deleted."))
}

func (s *Server) mutate(ctx context.Context, fn func([]events.Event) ([]events.Event, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	list, err = fn(list)
	if err != nil {
		return err
	}
	return s.store.Save(ctx, list)
}

func indexOf(list []events.Event, id string) int {
	for i, ev := range list {
		if ev.ID == id {
			return i
		}
	}
	return -1
}
