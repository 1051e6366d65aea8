package app

import (
	"context"
	"net/http"

	"github.com/vango-dev/routedata/pkg/deferred"
	"github.com/vango-dev/routedata/pkg/router"
)

func failure(status int, msg string) *router.StatusError {
	return &router.StatusError{Status: status, Payload: map[string]any{"message": msg}}
}

// deferEvents streams the event list into b under KeyEvents.
func (a *App) deferEvents(ctx context.Context, b *deferred.Bundle) {
	b.Defer(ctx, KeyEvents, func(ctx context.Context) (any, error) {
		list, err := a.client.List(ctx)
		if err != nil {
			a.logger.Warn("list events failed", "error", err)
			return nil, failure(http.StatusInternalServerError, "Could not fetch events.")
		}
		return list, nil
	})
}

func (a *App) listEvents(ctx context.Context, args router.LoaderArgs) router.Result {
	b := deferred.New()
	a.deferEvents(ctx, b)
	return router.Data(b)
}

type eventParams struct {
	EventID string `param:"eventId"`
}

func eventID(params router.Params) (string, error) {
	var p eventParams
	if err := params.Decode(&p); err != nil {
		return "", err
	}
	if p.EventID == "" {
		return "", router.NotFound(PathEvent)
	}
	return p.EventID, nil
}

// eventLink returns the detail path for id, or the list path when id is
// empty.
func eventLink(id string) string {
	href, err := router.Href(PathEvent, router.Params{"eventId": id})
	if err != nil {
		return PathEvents
	}
	return href
}

// eventDetail waits for the selected event and defers the full list.
func (a *App) eventDetail(ctx context.Context, args router.LoaderArgs) router.Result {
	id, err := eventID(args.Params)
	if err != nil {
		return router.Error(err)
	}
	ev, err := a.client.Get(ctx, id)
	if err != nil {
		a.logger.Warn("fetch event failed", "id", id, "error", err)
		return router.Fail(http.StatusInternalServerError, map[string]any{"message": "Could not fetch details for selected event."})
	}
	b := deferred.New()
	b.Set(KeyEvent, ev)
	a.deferEvents(ctx, b)
	return router.Data(b)
}
