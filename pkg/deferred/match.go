package deferred

// Handler renders one cell state.
type Handler[R any] interface {
	handle(c *Cell) (R, bool)
}

type pendingHandler[R any] struct {
	fn func() R
}

func (h pendingHandler[R]) handle(c *Cell) (R, bool) {
	if c.State() == Pending {
		return h.fn(), true
	}
	var zero R
	return zero, false
}

type resolvedHandler[R any] struct {
	fn func(any) R
}

func (h resolvedHandler[R]) handle(c *Cell) (R, bool) {
	if c.State() == Resolved {
		return h.fn(c.Value()), true
	}
	var zero R
	return zero, false
}

type rejectedHandler[R any] struct {
	fn func(error) R
}

func (h rejectedHandler[R]) handle(c *Cell) (R, bool) {
	if c.State() == Rejected {
		return h.fn(c.Err()), true
	}
	var zero R
	return zero, false
}

// OnPending handles the Pending state.
func OnPending[R any](fn func() R) Handler[R] {
	return pendingHandler[R]{fn: fn}
}

// OnResolved handles the Resolved state.
func OnResolved[R any](fn func(v any) R) Handler[R] {
	return resolvedHandler[R]{fn: fn}
}

// OnRejected handles the Rejected state.
func OnRejected[R any](fn func(err error) R) Handler[R] {
	return rejectedHandler[R]{fn: fn}
}

// Match renders the cell with the first handler for its current state.
// A rejected cell with no matching handler is reported to the bundle's
// OnUnhandled hook and the zero R is returned.
func Match[R any](c *Cell, handlers ...Handler[R]) R {
	for _, h := range handlers {
		if out, ok := h.handle(c); ok {
			return out
		}
	}
	if c.State() == Rejected {
		c.bundle.reportUnhandled(c)
	}
	var zero R
	return zero
}
