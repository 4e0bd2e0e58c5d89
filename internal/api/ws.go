package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/time/rate"
)

// Frame ops on the /bus socket.
const (
	opCall     = "call"
	opCancel   = "cancel"
	opBegin    = "begin"
	opResponse = "response"
	opError    = "error"
)

type busFrame struct {
	Op       string          `json:"op"`
	ID       string          `json:"id,omitempty"`
	URL      string          `json:"url,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func busSocketHandler(svc Service, limit rate.Limit, burst int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("bus socket upgrade failed", "error", err)
			return
		}
		s := &busSession{
			conn:    conn,
			svc:     svc,
			limiter: rate.NewLimiter(limit, burst),
			remote:  r.RemoteAddr,
		}
		s.run()
	}
}

// busSession serves one /bus connection. Calls begun on it are cancelled
// when the connection closes.
type busSession struct {
	conn    net.Conn
	svc     Service
	limiter *rate.Limiter
	remote  string

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func (s *busSession) run() {
	ctx, cancel := context.WithCancel(context.Background())
	slog.Info("bus socket opened", "remote", s.remote)
	defer func() {
		cancel()
		s.wg.Wait()
		_ = s.conn.Close()
		slog.Info("bus socket closed", "remote", s.remote)
	}()

	for {
		data, op, err := wsutil.ReadClientData(s.conn)
		if err != nil {
			return
		}
		if op != ws.OpText {
			continue
		}
		if !s.limiter.Allow() {
			s.write(busFrame{Op: opError, Error: "rate limited"})
			continue
		}
		var f busFrame
		if err := json.Unmarshal(data, &f); err != nil {
			s.write(busFrame{Op: opError, Error: "malformed frame"})
			continue
		}
		s.handle(ctx, f)
	}
}

func (s *busSession) handle(ctx context.Context, f busFrame) {
	switch f.Op {
	case opCall:
		params := frameParams(f.Params)
		id, ch, err := s.svc.Stream(ctx, f.URL, params)
		if err != nil {
			s.write(busFrame{Op: opError, URL: f.URL, Error: err.Error()})
			return
		}
		s.write(busFrame{Op: opBegin, ID: id, URL: f.URL})
		s.wg.Add(1)
		go s.forward(id, ch)
	case opCancel:
		if err := s.svc.CancelCall(f.ID); err != nil {
			s.write(busFrame{Op: opError, ID: f.ID, Error: err.Error()})
		}
	default:
		s.write(busFrame{Op: opError, Error: "unknown op: " + f.Op})
	}
}

func (s *busSession) forward(id string, ch <-chan string) {
	defer s.wg.Done()
	for resp := range ch {
		s.write(busFrame{Op: opResponse, ID: id, Response: json.RawMessage(resp)})
	}
}

func (s *busSession) write(f busFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Debug("bus frame marshal failed", "error", err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := wsutil.WriteServerMessage(s.conn, ws.OpText, data); err != nil {
		slog.Debug("bus frame write failed", "remote", s.remote, "error", err)
	}
}

// frameParams accepts params as an object or as a JSON-encoded string.
func frameParams(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
