package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/vango-dev/routedata/pkg/fetcher"
	"github.com/vango-dev/routedata/pkg/navigation"
	"github.com/vango-dev/routedata/pkg/router"
)

// Frame types.
const (
	TypeNavigate   = "navigate"
	TypeSubmit     = "submit"
	TypeFetch      = "fetch"
	TypeRevalidate = "revalidate"

	TypeSnapshot = "snapshot"
	TypeFetcher  = "fetcher"
	TypeError    = "error"
)

// ErrUnknownFrame is returned for frames with an unrecognised type.
var ErrUnknownFrame = errors.New("bridge: unknown frame type")

// SubmissionFrame is the wire form of router.Submission.
type SubmissionFrame struct {
	Action string          `json:"action,omitempty"`
	Method string          `json:"method,omitempty"`
	Form   url.Values      `json:"form,omitempty"`
	JSON   json.RawMessage `json:"json,omitempty"`
}

func (s SubmissionFrame) submission() router.Submission {
	sub := router.Submission{Action: s.Action, Method: s.Method, Form: s.Form}
	if len(s.JSON) > 0 {
		sub.JSON = s.JSON
	}
	return sub
}

// ClientFrame is an intent sent by a remote view.
type ClientFrame struct {
	Type string `json:"type"`

	// To is the navigate target.
	To string `json:"to,omitempty"`

	// Key names the fetcher for fetch frames.
	Key string `json:"key,omitempty"`

	// Href is the fetch load target.
	Href string `json:"href,omitempty"`

	// Submission is set for fetch submits.
	Submission *SubmissionFrame `json:"submission,omitempty"`

	// Submit fields are inlined for submit frames.
	SubmissionFrame
}

// DecodeClientFrame parses and checks one client frame.
func DecodeClientFrame(b []byte) (ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("bridge: decode frame: %w", err)
	}
	switch f.Type {
	case TypeNavigate, TypeSubmit, TypeRevalidate:
	case TypeFetch:
		if f.Key == "" {
			return f, errors.New("bridge: fetch frame without key")
		}
	default:
		return f, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
	}
	return f, nil
}

// FetcherFrame is the wire form of fetcher.Snapshot.
type FetcherFrame struct {
	Key      string        `json:"key"`
	State    fetcher.State `json:"state"`
	Data     any           `json:"data,omitempty"`
	Error    string        `json:"error,omitempty"`
	Status   int           `json:"status,omitempty"`
	Redirect string        `json:"redirect,omitempty"`
}

func fetcherFrame(s fetcher.Snapshot) FetcherFrame {
	f := FetcherFrame{Key: s.Key, State: s.State, Data: s.Data, Redirect: s.Redirect}
	if s.Err != nil {
		f.Error = s.Err.Error()
		if se, ok := router.AsStatus(s.Err); ok {
			f.Status = se.Status
			if msg := se.Message(); msg != "" {
				f.Error = msg
			}
		}
	}
	return f
}

// ServerFrame is pushed to remote views.
type ServerFrame struct {
	Type     string               `json:"type"`
	Snapshot *navigation.Snapshot `json:"snapshot,omitempty"`
	Fetcher  *FetcherFrame        `json:"fetcher,omitempty"`
	Message  string               `json:"message,omitempty"`
}
