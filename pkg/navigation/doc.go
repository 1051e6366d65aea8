// Package navigation coordinates URL changes with route data.
//
// A Navigator owns the committed view state: the location, its matched
// routes, loader and action data, and errors caught by error boundaries.
// Views read it through Snapshot and Subscribe and never mutate it.
//
// Navigate and Submit start transitions. At most one transition is
// current; starting another aborts the previous one, cancels its loaders
// and drops any result it still produces.
//
//	nav := navigation.New(tree)
//	defer nav.Close()
//
//	snap, err := nav.Navigate("/events").Wait(ctx)
//	if err != nil {
//	    return err
//	}
//	events := snap.RouteData("events")
//
// Submissions run the target route's action:
//
//	t := nav.Submit(router.Submission{
//	    Action: "/events/new",
//	    Form:   url.Values{"title": {"Launch"}},
//	})
//
// A redirect moves to the target, a validation failure (400 or 422) stores
// its payload as action data without navigating, any other failure is
// committed at the nearest error boundary, and success re-runs the current
// page's loaders.
//
// Every state change runs on one internal goroutine. Subscribers are called
// there too, in order, and may start new transitions.
package navigation
