package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/lunashim/internal/bus"
)

// Operations sent by the page through the binding.
const (
	opCall   = "call"
	opCancel = "cancel"
	opBanner = "banner"
)

const bannerTimeout = 10 * time.Second

// BannerSink receives banner messages raised with PalmSystem.addBannerMessage.
type BannerSink interface {
	Send(ctx context.Context, title, message string) error
}

// message is one binding payload. Token is the page-side handle of a
// PalmServiceBridge instance; the bus assigns its own request id.
type message struct {
	Op      string `json:"op"`
	Token   string `json:"token"`
	URL     string `json:"url,omitempty"`
	Params  string `json:"params,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

var errNoToken = errors.New("missing token")

func parseMessage(payload string) (message, error) {
	var m message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return message{}, fmt.Errorf("decode binding payload: %w", err)
	}
	if m.Token == "" {
		return message{}, errNoToken
	}
	switch m.Op {
	case opCall:
		if m.Params == "" {
			m.Params = "{}"
		}
	case opCancel, opBanner:
	default:
		return message{}, fmt.Errorf("unknown op %q", m.Op)
	}
	return m, nil
}

// callbackScript builds the expression that hands a response to the page.
// Both arguments are passed as JS string literals.
func callbackScript(token, response string) string {
	t, _ := json.Marshal(token)
	r, _ := json.Marshal(response)
	return fmt.Sprintf("window._palmServiceBridgeCallback && window._palmServiceBridgeCallback(%s, %s)", t, r)
}

// session maps page tokens to bus calls for one document. deliver must not
// block.
type session struct {
	bridge  *bus.Bridge
	deliver func(token, response string)
	banners BannerSink

	mu    sync.Mutex
	calls map[string]string
}

func newSession(bridge *bus.Bridge, deliver func(token, response string)) *session {
	return &session{bridge: bridge, deliver: deliver, calls: make(map[string]string)}
}

func (s *session) handle(payload string) {
	m, err := parseMessage(payload)
	if err != nil {
		slog.Warn("page binding payload rejected", "error", err)
		return
	}
	switch m.Op {
	case opCall:
		s.call(m)
	case opCancel:
		s.cancel(m.Token)
	case opBanner:
		s.banner(m)
	}
}

func (s *session) banner(m message) {
	slog.Info("page banner", "id", m.Token, "title", m.Title, "message", m.Message)
	if s.banners == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), bannerTimeout)
		defer cancel()
		if err := s.banners.Send(ctx, m.Title, m.Message); err != nil {
			slog.Warn("banner delivery failed", "id", m.Token, "error", err)
		}
	}()
}

func (s *session) call(m message) {
	// A bridge object reused for a second call drops the first.
	s.cancel(m.Token)

	token := m.Token
	subscription := bus.IsSubscription(m.Params)

	s.mu.Lock()
	id := s.bridge.ServiceCall(m.URL, m.Params, func(id, response string) {
		if !subscription {
			s.forget(token, id)
		}
		s.deliver(token, response)
	})
	s.calls[token] = id
	s.mu.Unlock()

	slog.Debug("page service call", "token", token, "id", id, "url", m.URL)
}

func (s *session) forget(token, id string) {
	s.mu.Lock()
	if s.calls[token] == id {
		delete(s.calls, token)
	}
	s.mu.Unlock()
}

// cancel releases the session lock before touching the bus, since delivery
// for the same call takes the session lock while holding the call lock.
func (s *session) cancel(token string) {
	s.mu.Lock()
	id, ok := s.calls[token]
	delete(s.calls, token)
	s.mu.Unlock()
	if ok {
		s.bridge.CancelServiceCall(id)
	}
}

// reset cancels every call issued by the current document.
func (s *session) reset() int {
	ids := s.detach()
	s.cancelAll(ids)
	return len(ids)
}

// detach forgets the current document's calls and returns their bus ids.
// Calls made after detach returns belong to the next document.
func (s *session) detach() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.calls))
	for _, id := range s.calls {
		ids = append(ids, id)
	}
	s.calls = make(map[string]string)
	return ids
}

func (s *session) cancelAll(ids []string) {
	for _, id := range ids {
		s.bridge.CancelServiceCall(id)
	}
}

func (s *session) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
