// Package errors provides structured, coded errors for routedata setup
// problems: bad route declarations and bad configuration files.
//
// Runtime failures (loader failures, not-found, redirects) are not coded
// errors. They travel as router.Result values. This package only covers
// mistakes a developer makes while wiring the application, where a code,
// a pointer to the offending declaration and a suggestion save time.
//
// # Error Categories
//
//   - config: routedata.json / routedata.toml problems
//   - route: route declaration problems (duplicate ids, unknown refs)
//   - cli: command line usage problems
//
// # Usage
//
//	err := errors.New("E201").
//	    WithPath("routes[0].children[2]").
//	    WithDetail(`route id "event-detail" is declared twice`)
//
//	fmt.Println(err.Format())
package errors
