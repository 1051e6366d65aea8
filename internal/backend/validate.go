package backend

import (
	"net/url"
	"strings"
	"time"

	"github.com/vango-dev/routedata/pkg/events"
)

func isValidText(s string) bool {
	return strings.TrimSpace(s) != ""
}

func isValidDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func isValidImageURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validate returns per-field messages, or nil when ev is acceptable.
func validate(ev events.Event) map[string]string {
	errs := map[string]string{}
	if !isValidText(ev.Title) {
		errs["title"] = "Invalid title."
	}
	if !isValidText(ev.Description) {
		errs["description"] = "Invalid description."
	}
	if !isValidDate(ev.Date) {
		errs["date"] = "Invalid date."
	}
	if !isValidImageURL(ev.Image) {
		errs["image"] = "Invalid image."
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
