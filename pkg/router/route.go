package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// LoaderFunc produces the data a route needs.
type LoaderFunc func(ctx context.Context, args LoaderArgs) Result

// ActionFunc handles a submission targeting a route.
type ActionFunc func(ctx context.Context, args ActionArgs) Result

// ErrorHandler turns a failure into fallback content for its subtree.
// err is a *StatusError for structured failures or a raw error otherwise.
type ErrorHandler func(err error) any

// Route is the declaration of one node in the route tree.
type Route struct {
	// ID identifies the route for data lookups. Generated when empty.
	ID string

	// Path is the pattern relative to the parent route.
	Path string

	// Index marks a route that matches its parent's path exactly.
	Index bool

	Loader       LoaderFunc
	Action       ActionFunc
	ErrorHandler ErrorHandler

	Children []Route
}

// LoaderArgs is what a loader receives.
type LoaderArgs struct {
	// URL is the full location being loaded, including the query.
	URL *url.URL

	// Params holds every param captured from the root down to this route.
	Params Params

	// RouteID is the id of the route whose loader is running.
	RouteID string
}

// ActionArgs is what an action receives.
type ActionArgs struct {
	URL     *url.URL
	Params  Params
	RouteID string

	// Method is the upper-case submission method (POST, PATCH, DELETE...).
	Method string

	// Form holds form-encoded fields. It is empty for JSON submissions.
	Form url.Values

	// Body holds the encoded JSON body for JSON submissions.
	Body json.RawMessage
}

// FormValue returns the first form value for key.
func (a ActionArgs) FormValue(key string) string {
	return a.Form.Get(key)
}

// DecodeJSON decodes the JSON body into v. Form submissions are decoded
// as a flat object of first values, so actions can accept either encoding.
func (a ActionArgs) DecodeJSON(v any) error {
	if len(a.Body) > 0 {
		return json.Unmarshal(a.Body, v)
	}
	flat := make(map[string]string, len(a.Form))
	for k := range a.Form {
		flat[k] = a.Form.Get(k)
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Submission describes a form or programmatic submission.
type Submission struct {
	// Action is the target href. Empty means the current location.
	Action string

	// Method defaults to POST.
	Method string

	// Form holds form-encoded fields.
	Form url.Values

	// JSON, when non-nil, is encoded as the body instead of Form.
	JSON any
}

// NormalizedMethod returns the upper-case method, defaulting to POST.
func (s Submission) NormalizedMethod() string {
	if s.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(s.Method)
}

// IsMutation reports whether the submission should invoke an action.
// GET submissions are navigations with the form encoded in the query.
func (s Submission) IsMutation() bool {
	return s.NormalizedMethod() != http.MethodGet
}

// Args builds ActionArgs for the given match.
func (s Submission) Args(u *url.URL, m Match) (ActionArgs, error) {
	args := ActionArgs{
		URL:     u,
		Params:  m.Params,
		RouteID: m.Node.ID,
		Method:  s.NormalizedMethod(),
		Form:    s.Form,
	}
	if args.Form == nil {
		args.Form = url.Values{}
	}
	if s.JSON != nil {
		b, err := json.Marshal(s.JSON)
		if err != nil {
			return ActionArgs{}, err
		}
		args.Body = b
	}
	return args, nil
}
