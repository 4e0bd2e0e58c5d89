package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

func dialBus(t *testing.T, env *testEnv) net.Conn {
	t.Helper()
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, "ws://"+strings.TrimPrefix(srv.URL, "http://")+"/bus")
	if err != nil {
		t.Fatalf("ws.Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn net.Conn, f busFrame) {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if err := wsutil.WriteClientText(conn, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame(t *testing.T, conn net.Conn) busFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := wsutil.ReadServerText(conn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f busFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("frame %q: %v", data, err)
	}
	return f
}

func TestBusSocketCall(t *testing.T) {
	env := newTestEnv(t, Options{})
	conn := dialBus(t, env)

	sendFrame(t, conn, busFrame{Op: opCall, URL: "palm://com.palm.power/com/palm/power/batteryStatus", Params: json.RawMessage(`{"subscribe":true}`)})
	begin := readFrame(t, conn)
	if begin.Op != opBegin || !strings.HasPrefix(begin.ID, "psb-") {
		t.Fatalf("first frame = %+v; want begin", begin)
	}
	resp := readFrame(t, conn)
	if resp.Op != opResponse || resp.ID != begin.ID {
		t.Fatalf("second frame = %+v; want response for %s", resp, begin.ID)
	}
	var body struct {
		Percent int `json:"percent"`
	}
	if err := json.Unmarshal(resp.Response, &body); err != nil || body.Percent != 100 {
		t.Fatalf("response = %s", resp.Response)
	}

	if n := env.svc.Refresh("palm://com.palm.power"); n != 1 {
		t.Fatalf("Refresh() = %d; want 1 live subscription", n)
	}
	if again := readFrame(t, conn); again.Op != opResponse || again.ID != begin.ID {
		t.Fatalf("refresh frame = %+v", again)
	}

	sendFrame(t, conn, busFrame{Op: opCancel, ID: begin.ID})
	deadline := time.Now().Add(5 * time.Second)
	for len(env.svc.Pending()) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription still pending after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBusSocketErrors(t *testing.T) {
	env := newTestEnv(t, Options{})
	conn := dialBus(t, env)

	if err := wsutil.WriteClientText(conn, []byte("{nope")); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, conn); f.Op != opError || f.Error != "malformed frame" {
		t.Fatalf("malformed = %+v", f)
	}

	sendFrame(t, conn, busFrame{Op: "subscribe"})
	if f := readFrame(t, conn); f.Op != opError || !strings.Contains(f.Error, "unknown op") {
		t.Fatalf("unknown op = %+v", f)
	}

	sendFrame(t, conn, busFrame{Op: opCall, URL: "luna://"})
	if f := readFrame(t, conn); f.Op != opError {
		t.Fatalf("invalid url = %+v", f)
	}

	sendFrame(t, conn, busFrame{Op: opCancel, ID: "psb-0"})
	if f := readFrame(t, conn); f.Op != opError || f.ID != "psb-0" {
		t.Fatalf("cancel unknown = %+v", f)
	}
}

func TestBusSocketRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{WSRate: 0.001, WSBurst: 1})
	conn := dialBus(t, env)

	sendFrame(t, conn, busFrame{Op: opCall, URL: "palm://com.palm.audio/setVolume"})
	if f := readFrame(t, conn); f.Op != opBegin {
		t.Fatalf("first frame = %+v; want begin", f)
	}
	if f := readFrame(t, conn); f.Op != opResponse {
		t.Fatalf("second frame = %+v; want response", f)
	}

	sendFrame(t, conn, busFrame{Op: opCall, URL: "palm://com.palm.audio/setVolume"})
	if f := readFrame(t, conn); f.Op != opError || f.Error != "rate limited" {
		t.Fatalf("over-limit frame = %+v; want rate limited", f)
	}
}

func TestFrameParams(t *testing.T) {
	tests := map[string]string{
		``:                   "{}",
		`{"subscribe":true}`: `{"subscribe":true}`,
		`"{\"a\":1}"`:        `{"a":1}`,
	}
	for in, want := range tests {
		if got := frameParams(json.RawMessage(in)); got != want {
			t.Fatalf("frameParams(%q) = %q; want %q", in, got, want)
		}
	}
}
