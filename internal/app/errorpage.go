package app

import (
	"net/http"

	"github.com/vango-dev/routedata/pkg/router"
)

// ErrorView is the fallback content of the root boundary.
type ErrorView struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// ErrorPage renders any failure caught by the root boundary.
func ErrorPage(err error) any {
	view := ErrorView{Title: "An error occurred!", Message: "Something went wrong!"}
	se, ok := router.AsStatus(err)
	if !ok {
		return view
	}
	switch se.Status {
	case http.StatusInternalServerError:
		if msg := se.Message(); msg != "" {
			view.Message = msg
		}
	case http.StatusNotFound:
		view.Title = "Not found!"
		view.Message = "Could not find resource or page."
	}
	return view
}
