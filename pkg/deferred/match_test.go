package deferred

import (
	"context"
	"errors"
	"testing"
)

func settled(t *testing.T, b *Bundle, key string) *Cell {
	t.Helper()
	c, ok := b.Cell(key)
	if !ok {
		t.Fatalf("cell %q missing", key)
	}
	c.Await(context.Background())
	return c
}

func TestMatchPerState(t *testing.T) {
	b := New()
	block := make(chan struct{})
	defer close(block)
	b.Defer(context.Background(), "pending", func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	})
	b.Set("ok", "value")
	b.Defer(context.Background(), "bad", func(ctx context.Context) (any, error) {
		return nil, errors.New("nope")
	})

	handlers := []Handler[string]{
		OnPending(func() string { return "loading" }),
		OnResolved(func(v any) string { return v.(string) }),
		OnRejected(func(err error) string { return "error: " + err.Error() }),
	}

	pending, _ := b.Cell("pending")
	tests := []struct {
		cell *Cell
		want string
	}{
		{pending, "loading"},
		{settled(t, b, "ok"), "value"},
		{settled(t, b, "bad"), "error: nope"},
	}
	for _, tt := range tests {
		if got := Match(tt.cell, handlers...); got != tt.want {
			t.Errorf("Match(%s) = %q, want %q", tt.cell.Key(), got, tt.want)
		}
	}
}

func TestMatchReportsUnhandledRejection(t *testing.T) {
	b := New()
	var reported []string
	b.OnUnhandled(func(key string, err error) {
		reported = append(reported, key+": "+err.Error())
	})
	b.Defer(context.Background(), "bad", func(ctx context.Context) (any, error) {
		return nil, errors.New("nope")
	})
	c := settled(t, b, "bad")

	out := Match(c, OnResolved(func(any) string { return "x" }))
	if out != "" {
		t.Errorf("Match = %q, want zero value", out)
	}
	Match(c, OnResolved(func(any) string { return "x" }))

	if len(reported) != 1 || reported[0] != "bad: nope" {
		t.Errorf("reported = %v, want one report", reported)
	}
}
