// Package deferred delivers loader data in parts.
//
// A loader returns a *Bundle holding eager values (Set) and deferred cells
// (Defer). The navigation commits as soon as the loader returns; deferred
// cells keep resolving on their own goroutines and notify subscribers as
// each one settles.
//
//	b := deferred.New()
//	b.Set("event", ev)
//	b.Defer(ctx, "events", func(ctx context.Context) (any, error) {
//	    return client.List(ctx)
//	})
//	return router.Data(b)
//
// Views render a cell per state with Match:
//
//	cell, _ := b.Cell("events")
//	html := deferred.Match(cell,
//	    deferred.OnPending(func() string { return "Loading..." }),
//	    deferred.OnResolved(func(v any) string { return render(v) }),
//	)
//
// A rejected cell rendered without an OnRejected handler is reported to the
// bundle's OnUnhandled hook, which the navigator routes to the nearest error
// boundary.
//
// Once a bundle is discarded (the navigation that produced it was replaced)
// in-flight work is cancelled and late settlements are dropped.
package deferred
