package app

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/vango-dev/routedata/pkg/deferred"
	"github.com/vango-dev/routedata/pkg/events"
	"github.com/vango-dev/routedata/pkg/navigation"
)

// Render writes a plain-text view of snap: the matched layouts from the
// root down, cut at the boundary that caught an error.
func Render(w io.Writer, snap navigation.Snapshot) error {
	p := &printer{w: w}
	p.line("[%s] %s", snap.State, snap.Location)
	for _, m := range snap.RenderMatches() {
		id := m.Node.ID
		if fb, ok := snap.Fallbacks[id]; ok {
			renderFallback(p, fb)
			break
		}
		renderRoute(p, snap, id)
	}
	return p.err
}

type printer struct {
	w     io.Writer
	depth int
	err   error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.depth), fmt.Sprintf(format, args...))
}

func renderFallback(p *printer, fb any) {
	if v, ok := fb.(ErrorView); ok {
		p.line("# %s", v.Title)
		p.line("%s", v.Message)
		return
	}
	p.line("# %v", fb)
}

func renderRoute(p *printer, snap navigation.Snapshot, id string) {
	switch id {
	case RouteRoot:
		p.line("Home | Events | Newsletter")
	case RouteHome:
		p.line("# Welcome to our page!")
	case RouteEventsRoot:
		p.line("All Events | New Event")
	case RouteEvents:
		b, _ := snap.RouteData(id).(*deferred.Bundle)
		renderList(p, b)
	case RouteEventDetail:
		b, _ := snap.RouteData(id).(*deferred.Bundle)
		if b == nil {
			return
		}
		if ev, ok := deferred.Value[events.Event](b, KeyEvent); ok {
			p.line("# %s", ev.Title)
			p.line("%s | %s", ev.Date, ev.Image)
			p.line("%s", ev.Description)
		}
		renderList(p, b)
	case RouteEventEdit, RouteEventNew:
		renderForm(p, snap, id)
	case RouteNewsletter:
		p.line("# Join our awesome newsletter!")
	}
	p.depth++
}

func renderList(p *printer, b *deferred.Bundle) {
	if b == nil {
		return
	}
	c, ok := b.Cell(KeyEvents)
	if !ok {
		return
	}
	lines := deferred.Match(c,
		deferred.OnPending(func() []string { return []string{"Loading..."} }),
		deferred.OnResolved(func(v any) []string {
			list, _ := v.([]events.Event)
			if len(list) == 0 {
				return []string{"No events."}
			}
			out := make([]string, len(list))
			for i, ev := range list {
				out[i] = fmt.Sprintf("- %s (%s) %s", ev.Title, ev.Date, eventLink(ev.ID))
			}
			return out
		}),
		deferred.OnRejected(func(err error) []string {
			return []string{ErrorPage(err).(ErrorView).Message}
		}),
	)
	for _, l := range lines {
		p.line("%s", l)
	}
}

func renderForm(p *printer, snap navigation.Snapshot, id string) {
	if snap.State == navigation.Submitting {
		p.line("Submitting...")
	}
	payload, _ := snap.ActionResult(id).(map[string]any)
	if payload == nil {
		return
	}
	errs, _ := payload["errors"].(map[string]string)
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		p.line("! %s", errs[f])
	}
}
