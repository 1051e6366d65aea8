// Package app is the events application: its route tree, loaders,
// actions, error page and newsletter signup.
package app

import (
	_ "embed"
	"log/slog"

	"github.com/vango-dev/routedata/pkg/events"
	"github.com/vango-dev/routedata/pkg/router"
)

// Route ids.
const (
	RouteRoot        = "root"
	RouteHome        = "home"
	RouteEventsRoot  = "events-root"
	RouteEvents      = "events"
	RouteEventDetail = "event-detail"
	RouteEventView   = "event-view"
	RouteEventEdit   = "event-edit"
	RouteEventNew    = "event-new"
	RouteNewsletter  = "newsletter"
)

// Registry names.
const (
	LoaderListEvents      = "list-events"
	LoaderEventDetail     = "event-detail"
	ActionDeleteEvent     = "delete-event"
	ActionManipulateEvent = "manipulate-event"
	ActionNewsletter      = "newsletter-signup"
	HandlerErrorPage      = "error-page"
)

// Deferred and eager keys in loader bundles.
const (
	KeyEvents = "events"
	KeyEvent  = "event"
)

// Link patterns, filled with router.Href.
const (
	PathEvents = "/events"
	PathEvent  = "/events/:eventId"
)

//go:embed routes.json
var defaultRoutes []byte

// DefaultDeclarations returns the built-in route declarations.
func DefaultDeclarations() ([]router.Declaration, error) {
	return router.ParseDeclarations(defaultRoutes)
}

// App binds the application's functions to a backend client.
type App struct {
	client *events.Client
	logger *slog.Logger
}

// New returns an app talking to client.
func New(client *events.Client, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{client: client, logger: logger.With("component", "app")}
}

// Registry returns the app's functions under their declaration names.
func (a *App) Registry() *router.Registry {
	return router.NewRegistry().
		Loader(LoaderListEvents, a.listEvents).
		Loader(LoaderEventDetail, a.eventDetail).
		Action(ActionDeleteEvent, a.deleteEvent).
		Action(ActionManipulateEvent, a.manipulateEvent).
		Action(ActionNewsletter, a.newsletterSignup).
		ErrorHandler(HandlerErrorPage, ErrorPage)
}

// Tree builds the route tree from decls, or from the built-in
// declarations when decls is empty.
func (a *App) Tree(decls []router.Declaration) (*router.Tree, error) {
	if len(decls) == 0 {
		var err error
		if decls, err = DefaultDeclarations(); err != nil {
			return nil, err
		}
	}
	return a.Registry().Build(decls)
}
