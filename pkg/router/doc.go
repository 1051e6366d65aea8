// Package router declares the route tree and resolves URLs against it.
//
// A route tree is an immutable, nested set of path patterns. Each route may
// carry a loader (read side), an action (write side) and an error handler.
// The tree is built once at startup with New, or from a JSON declaration
// bound through a Registry, and never changes afterwards.
//
// # Patterns
//
// Route paths are relative to their parent and split on "/":
//
//	events        static segment, matched case-insensitively
//	:eventId      dynamic segment, captures one path segment
//	*             wildcard, captures the remainder into Params["*"]
//
// Index routes have no path and match when their parent consumed the whole
// URL. Pathless routes (empty path, not index) group children without
// consuming anything.
//
// # Matching
//
// Tree.Match returns the best MatchChain, root first. Candidates are
// compared segment by segment, left to right, with static beating dynamic
// beating wildcard. Ties go to the deeper chain, then to declaration order.
//
// # Results
//
// Loaders and actions return a Result, one of Data, Redirect or a failure.
// Structured failures carry a *StatusError; anything else is a raw error.
// Handlers use AsStatus to tell the two apart.
//
// # Usage
//
//	tree, err := router.New(router.Route{
//	    ID:           "root",
//	    Path:         "/",
//	    ErrorHandler: errorPage,
//	    Children: []router.Route{
//	        {Index: true, ID: "home"},
//	        {Path: "events/:eventId", ID: "event-detail", Loader: detailLoader},
//	    },
//	})
//
//	chain, ok := tree.Match("/events/e1")
//	// chain.Leaf().Params["eventId"] == "e1"
package router
