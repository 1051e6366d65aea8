package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/vango-dev/routedata/pkg/fetcher"
	"github.com/vango-dev/routedata/pkg/navigation"
)

// Defaults for Config.
const (
	DefaultReadTimeout  = 60 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
	DefaultSendBuffer   = 64
)

// ErrSlowConsumer closes connections whose send buffer is full.
var ErrSlowConsumer = errors.New("bridge: send buffer full")

// NavigatorFactory returns the navigator for a new connection. The bridge
// closes it when the connection ends.
type NavigatorFactory func(r *http.Request) (*navigation.Navigator, error)

// Config configures a Bridge.
type Config struct {
	NewNavigator NavigatorFactory

	// InitialPath is navigated to on connect. Empty means the request's
	// "path" query parameter, or "/".
	InitialPath string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	SendBuffer   int

	// CheckOrigin is passed to the websocket upgrader. Nil allows only
	// same-origin requests.
	CheckOrigin func(r *http.Request) bool

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Bridge is an http.Handler that upgrades requests to websocket sessions.
type Bridge struct {
	config   Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
	active   atomic.Int64
}

// New returns a bridge.
func New(config Config) *Bridge {
	config.applyDefaults()
	return &Bridge{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: config.Logger.With("component", "bridge"),
	}
}

// Active returns the number of open sessions.
func (b *Bridge) Active() int64 { return b.active.Load() }

// ServeHTTP implements http.Handler.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.config.NewNavigator == nil {
		http.Error(w, "bridge: no navigator factory", http.StatusInternalServerError)
		return
	}
	nav, err := b.config.NewNavigator(r)
	if err != nil {
		b.logger.Error("navigator setup failed", "error", err)
		http.Error(w, "bridge: navigator unavailable", http.StatusInternalServerError)
		return
	}
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		nav.Close()
		b.logger.Warn("upgrade failed", "error", err)
		return
	}

	path := b.config.InitialPath
	if path == "" {
		path = r.URL.Query().Get("path")
	}
	if path == "" {
		path = "/"
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		ctx:    ctx,
		cancel: cancel,
		conn:   conn,
		nav:    nav,
		config: b.config,
		logger: b.logger.With("remote", r.RemoteAddr),
		send:   make(chan []byte, b.config.SendBuffer),
		done:   make(chan struct{}),
	}
	b.active.Inc()
	defer b.active.Dec()
	s.run(path)
}

type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
	nav    *navigation.Navigator
	config Config
	logger *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	unsubs    []func()
}

func (s *session) run(path string) {
	s.logger.Info("session started", "path", path)
	defer s.close()

	s.unsubs = append(s.unsubs,
		s.nav.Subscribe(func(snap navigation.Snapshot) {
			s.push(ServerFrame{Type: TypeSnapshot, Snapshot: &snap})
		}),
		s.nav.Fetchers().Subscribe(func(fs fetcher.Snapshot) {
			f := fetcherFrame(fs)
			s.push(ServerFrame{Type: TypeFetcher, Fetcher: &f})
		}),
	)

	go s.writeLoop()
	s.nav.Navigate(path)
	s.readLoop()
}

func (s *session) readLoop() {
	s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		frame, err := DecodeClientFrame(msg)
		if err != nil {
			s.logger.Warn("frame rejected", "error", err)
			s.push(ServerFrame{Type: TypeError, Message: err.Error()})
			continue
		}
		s.handle(frame)
	}
}

func (s *session) handle(f ClientFrame) {
	switch f.Type {
	case TypeNavigate:
		s.watch(s.nav.Navigate(f.To))
	case TypeSubmit:
		s.watch(s.nav.Submit(f.SubmissionFrame.submission()))
	case TypeRevalidate:
		s.nav.Revalidate()
	case TypeFetch:
		h := s.nav.Fetchers().Get(f.Key)
		if f.Submission != nil {
			h.Submit(f.Submission.submission())
		} else {
			h.Load(f.Href)
		}
	}
}

// watch reports transitions that settle with an error, such as an
// invalid target. Failures caught by boundaries arrive as snapshots.
func (s *session) watch(t *navigation.Transition) {
	go func() {
		_, err := t.Wait(s.ctx)
		switch {
		case err == nil, s.ctx.Err() != nil:
		case errors.Is(err, navigation.ErrSuperseded), errors.Is(err, navigation.ErrClosed):
		default:
			s.push(ServerFrame{Type: TypeError, Message: err.Error()})
		}
	}()
}

// push queues a frame without blocking the navigator's loop.
func (s *session) push(f ServerFrame) {
	b, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("frame encode failed", "type", f.Type, "error", err)
		return
	}
	select {
	case <-s.done:
	case s.send <- b:
	default:
		s.logger.Warn("closing slow consumer", "error", ErrSlowConsumer)
		go s.close()
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case b := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.logger.Debug("write failed", "error", err)
				go s.close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				go s.close()
				return
			}
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		for _, unsub := range s.unsubs {
			unsub()
		}
		s.nav.Close()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.conn.Close()
		s.logger.Info("session closed")
	})
}
