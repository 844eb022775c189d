package sandbox

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Event kinds
const (
	EventGrade    = "grade"
	EventFeedback = "feedback"
)

// Event reports a grade or a feedback produced by the sandbox
type Event struct {
	Msg        string `json:"msg"`
	Kind       string `json:"kind"`
	HomeworkID string `json:"homework_id"`
	State      string `json:"state,omitempty"`
	Date       string `json:"date"`
}

type handshake struct {
	Msg     string `json:"msg"`
	Session string `json:"session,omitempty"`
}

const (
	handshakeTimeout = 10 * time.Second
	subscriberBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// hub fans events out to the connected feeds. Slow feeds lose events.
type hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[chan Event]struct{})}
}

func (h *hub) subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// close ends every subscription; the feeds say goodbye and hang up
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}

func (h *hub) publish(ev Event) {
	ev.Msg = "event"
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// events streams Event messages over a websocket. The client opens with
// {"msg":"connect"} and is answered {"msg":"connected","session":...}.
func (s *Server) events(ctx echo.Context) error {
	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader has answered already
		s.opts.Log.Debug("event feed upgrade failed", err)
		return nil
	}
	defer conn.Close()

	var hello handshake
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	if err := conn.ReadJSON(&hello); err != nil || hello.Msg != "connect" {
		_ = conn.WriteJSON(handshake{Msg: "failed"})
		return nil
	}
	_ = conn.SetReadDeadline(time.Time{})

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	if err := conn.WriteJSON(handshake{Msg: "connected", Session: uuid.New().String()}); err != nil {
		return nil
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "sandbox stopping")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return nil
			}
			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}
		case <-closed:
			return nil
		}
	}
}

// tick advances every homework so that results show up on the event feed
// without anyone asking for them
func (s *Server) tick(done <-chan struct{}, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for _, hw := range s.homeworks {
				s.advance(hw, now)
			}
			s.mu.Unlock()
		}
	}
}
