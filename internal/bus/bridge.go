package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgnsrekt/lunashim/internal/luna"
)

// Router produces the JSON response for a call. *luna.Router implements it.
type Router interface {
	Route(url, params string) string
}

// Event kinds reported to an EventSink.
const (
	EventCall    = "call"
	EventDeliver = "deliver"
	EventDrop    = "drop"
	EventCancel  = "cancel"
)

// Event describes one step in the life of a call.
type Event struct {
	Kind     string    `json:"kind"`
	ID       string    `json:"id"`
	URL      string    `json:"url,omitempty"`
	Params   string    `json:"params,omitempty"`
	Response string    `json:"response,omitempty"`
	At       time.Time `json:"at"`
}

// EventSink receives call events. Record must not block.
type EventSink interface {
	Record(Event)
}

// Bridge connects callers to the router through a Transport. Routing runs
// on its own goroutine so callers never wait for a response.
type Bridge struct {
	transport *Transport
	router    Router
	sink      EventSink
}

// NewBridge wires a transport to a router. sink may be nil.
func NewBridge(t *Transport, r Router, sink EventSink) *Bridge {
	return &Bridge{transport: t, router: r, sink: sink}
}

// Transport returns the underlying registry.
func (b *Bridge) Transport() *Transport { return b.transport }

// ServiceCall begins a call and returns its id immediately. deliver is
// invoked from another goroutine once the response is ready, and again on
// each Refresh for subscriptions.
func (b *Bridge) ServiceCall(url, params string, deliver DeliverFunc) string {
	call := b.transport.Begin(url, params, deliver)
	b.record(Event{Kind: EventCall, ID: call.ID, URL: url, Params: params})
	go b.dispatch(call)
	return call.ID
}

// Call begins a call whose responses arrive on the returned channel. The
// call is cancelled when ctx ends, which closes the channel.
func (b *Bridge) Call(ctx context.Context, url, params string) (string, <-chan string) {
	call, ch := b.transport.Open(url, params, 16)
	b.record(Event{Kind: EventCall, ID: call.ID, URL: url, Params: params})
	stop := context.AfterFunc(ctx, func() { b.CancelServiceCall(call.ID) })
	go func() {
		b.dispatch(call)
		if !call.Subscription {
			stop()
		}
	}()
	return call.ID, ch
}

// CancelServiceCall cancels id. Unknown ids are ignored.
func (b *Bridge) CancelServiceCall(id string) bool {
	if !b.transport.Cancel(id) {
		return false
	}
	b.record(Event{Kind: EventCancel, ID: id})
	return true
}

// Refresh routes every live subscription whose URL starts with prefix again
// and delivers the new response. It returns the number of calls refreshed.
func (b *Bridge) Refresh(prefix string) int {
	n := 0
	for _, call := range b.transport.Pending() {
		if !call.Subscription || !strings.HasPrefix(call.URL, prefix) {
			continue
		}
		go b.dispatch(call)
		n++
	}
	slog.Debug("bus refresh", "prefix", prefix, "subscriptions", n)
	return n
}

func (b *Bridge) dispatch(call *PendingCall) {
	resp := b.route(call.URL, call.Params)
	if b.transport.Deliver(call.ID, resp) {
		b.record(Event{Kind: EventDeliver, ID: call.ID, URL: call.URL, Response: resp})
		return
	}
	b.record(Event{Kind: EventDrop, ID: call.ID, URL: call.URL})
}

// route converts router panics into an error response so nothing escapes
// the dispatch goroutine.
func (b *Bridge) route(url, params string) (resp string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("bus router panic", "url", url, "panic", rec)
			resp = luna.EncodeError(fmt.Errorf("internal error: %v", rec))
		}
	}()
	return b.router.Route(url, params)
}

func (b *Bridge) record(evt Event) {
	if b.sink == nil {
		return
	}
	evt.At = time.Now().UTC()
	b.sink.Record(evt)
}
