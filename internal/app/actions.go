package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vango-dev/routedata/pkg/events"
	"github.com/vango-dev/routedata/pkg/router"
)

func (a *App) deleteEvent(ctx context.Context, args router.ActionArgs) router.Result {
	id, err := eventID(args.Params)
	if err != nil {
		return router.Error(err)
	}
	if err := a.client.Delete(ctx, id); err != nil {
		a.logger.Warn("delete event failed", "id", id, "error", err)
		return router.Fail(http.StatusInternalServerError, map[string]any{"message": "Could not delete event."})
	}
	return router.Redirect(PathEvents)
}

// manipulateEvent creates an event on POST and updates the matched one
// on PATCH.
func (a *App) manipulateEvent(ctx context.Context, args router.ActionArgs) router.Result {
	var ev events.Event
	if err := args.DecodeJSON(&ev); err != nil {
		return router.Fail(http.StatusBadRequest, map[string]any{"message": "Invalid event data."})
	}

	var err error
	if args.Method == http.MethodPatch {
		var id string
		if id, err = eventID(args.Params); err != nil {
			return router.Error(err)
		}
		_, err = a.client.Update(ctx, id, ev)
	} else {
		_, err = a.client.Create(ctx, ev)
	}

	var verr *events.ValidationError
	switch {
	case errors.As(err, &verr):
		return router.Fail(http.StatusUnprocessableEntity, map[string]any{
			"message": verr.Message,
			"errors":  verr.Errors,
		})
	case err != nil:
		a.logger.Warn("save event failed", "method", args.Method, "error", err)
		return router.Fail(http.StatusInternalServerError, map[string]any{"message": "Could not save event."})
	}
	return router.Redirect(PathEvents)
}

func (a *App) newsletterSignup(ctx context.Context, args router.ActionArgs) router.Result {
	email := strings.TrimSpace(args.FormValue("email"))
	if !strings.Contains(email, "@") {
		return router.Fail(http.StatusUnprocessableEntity, map[string]any{
			"message": "Signup failed.",
			"errors":  map[string]string{"email": "Invalid email address."},
		})
	}
	a.logger.Info("newsletter signup", "email", email)
	return router.Data(map[string]any{"message": "Signup successful!"})
}
