package router

import (
	"encoding/json"
	"fmt"
	"sort"

	rderrors "github.com/vango-dev/routedata/internal/errors"
)

// Declaration is the serializable form of a Route. Loaders, actions and
// error handlers are referenced by name and resolved through a Registry.
type Declaration struct {
	ID           string        `json:"id,omitempty" toml:"id"`
	Path         string        `json:"path,omitempty" toml:"path"`
	Index        bool          `json:"index,omitempty" toml:"index"`
	Loader       string        `json:"loader,omitempty" toml:"loader"`
	Action       string        `json:"action,omitempty" toml:"action"`
	ErrorHandler string        `json:"errorHandler,omitempty" toml:"errorHandler"`
	Children     []Declaration `json:"children,omitempty" toml:"children"`
}

// ParseDeclarations decodes a JSON array of route declarations.
func ParseDeclarations(data []byte) ([]Declaration, error) {
	var decls []Declaration
	if err := json.Unmarshal(data, &decls); err != nil {
		return nil, rderrors.New("E120").
			WithDetail("route declarations: " + err.Error()).
			Wrap(err)
	}
	return decls, nil
}

// Registry maps reference names to functions.
type Registry struct {
	Loaders       map[string]LoaderFunc
	Actions       map[string]ActionFunc
	ErrorHandlers map[string]ErrorHandler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		Loaders:       make(map[string]LoaderFunc),
		Actions:       make(map[string]ActionFunc),
		ErrorHandlers: make(map[string]ErrorHandler),
	}
}

// Loader registers a loader under name.
func (r *Registry) Loader(name string, fn LoaderFunc) *Registry {
	r.Loaders[name] = fn
	return r
}

// Action registers an action under name.
func (r *Registry) Action(name string, fn ActionFunc) *Registry {
	r.Actions[name] = fn
	return r
}

// ErrorHandler registers an error handler under name.
func (r *Registry) ErrorHandler(name string, fn ErrorHandler) *Registry {
	r.ErrorHandlers[name] = fn
	return r
}

// Names lists registered names per kind, sorted, for diagnostics.
func (r *Registry) Names() (loaders, actions, handlers []string) {
	for k := range r.Loaders {
		loaders = append(loaders, k)
	}
	for k := range r.Actions {
		actions = append(actions, k)
	}
	for k := range r.ErrorHandlers {
		handlers = append(handlers, k)
	}
	sort.Strings(loaders)
	sort.Strings(actions)
	sort.Strings(handlers)
	return loaders, actions, handlers
}

// Routes resolves declarations into routes. Unknown references fail with
// E203 (loader), E204 (action) or E205 (error handler).
func (r *Registry) Routes(decls []Declaration) ([]Route, error) {
	return r.resolve(decls, "routes")
}

// Build resolves declarations and builds the tree in one step.
func (r *Registry) Build(decls []Declaration) (*Tree, error) {
	routes, err := r.Routes(decls)
	if err != nil {
		return nil, err
	}
	return New(routes...)
}

func (r *Registry) resolve(decls []Declaration, path string) ([]Route, error) {
	routes := make([]Route, 0, len(decls))
	for i, d := range decls {
		at := fmt.Sprintf("%s[%d]", path, i)
		route := Route{ID: d.ID, Path: d.Path, Index: d.Index}

		if d.Loader != "" {
			fn, ok := r.Loaders[d.Loader]
			if !ok {
				return nil, rderrors.New("E203").WithDetail(fmt.Sprintf("loader %q", d.Loader)).WithPath(at)
			}
			route.Loader = fn
		}
		if d.Action != "" {
			fn, ok := r.Actions[d.Action]
			if !ok {
				return nil, rderrors.New("E204").WithDetail(fmt.Sprintf("action %q", d.Action)).WithPath(at)
			}
			route.Action = fn
		}
		if d.ErrorHandler != "" {
			fn, ok := r.ErrorHandlers[d.ErrorHandler]
			if !ok {
				return nil, rderrors.New("E205").WithDetail(fmt.Sprintf("error handler %q", d.ErrorHandler)).WithPath(at)
			}
			route.ErrorHandler = fn
		}

		if len(d.Children) > 0 {
			children, err := r.resolve(d.Children, at+".children")
			if err != nil {
				return nil, err
			}
			route.Children = children
		}
		routes = append(routes, route)
	}
	return routes, nil
}
