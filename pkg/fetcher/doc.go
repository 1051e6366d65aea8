// Package fetcher runs loaders and actions outside the navigation.
//
// A Fetcher is a keyed handle. Load and Submit invoke the deepest matched
// route's loader or action and store the outcome on the handle only; the
// navigation's location, matches and state are never touched. A successful
// submission asks the host to revalidate the current page's loaders.
//
//	f := nav.Fetchers().Get("newsletter")
//	f.Submit(router.Submission{Action: "/newsletter", Form: form})
//	snap, err := f.Wait(ctx)
//
// A new operation on a handle supersedes that handle's previous one. Other
// handles are unaffected.
package fetcher
