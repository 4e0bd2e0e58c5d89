package bus

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/lunashim/internal/luna"
	"github.com/tidwall/gjson"
)

// IDPrefix is prepended to the sequence number of every request id.
const IDPrefix = "psb-"

// DeliverFunc receives a response for a pending call. It runs while the
// call is locked and must not call Cancel or Deliver for the same id.
type DeliverFunc func(id, response string)

// PendingCall is one in-flight call.
type PendingCall struct {
	ID           string
	URL          string
	Params       string
	Subscription bool
	Started      time.Time

	mu         sync.Mutex
	cancelled  bool
	done       bool
	deliveries int
	deliver    DeliverFunc
	onCancel   func()
}

// CallInfo is a read-only view of a pending call.
type CallInfo struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Subscription bool      `json:"subscription"`
	Deliveries   int       `json:"deliveries"`
	Started      time.Time `json:"started"`
}

// Info returns a snapshot of the call.
func (c *PendingCall) Info() CallInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CallInfo{
		ID:           c.ID,
		URL:          c.URL,
		Subscription: c.Subscription,
		Deliveries:   c.deliveries,
		Started:      c.Started,
	}
}

// IsSubscription reports whether params ask for repeated delivery. Only the
// JSON literal true counts.
func IsSubscription(params string) bool {
	return gjson.Get(params, "subscribe").Type == gjson.True ||
		gjson.Get(params, "watch").Type == gjson.True
}

// Transport owns the registry of pending calls for one host session.
//
// The registry lock only guards the map. Each call has its own lock that
// serializes Deliver and Cancel for that id, so distinct ids never wait on
// each other's delivery targets.
type Transport struct {
	mu      sync.Mutex
	pending map[string]*PendingCall
	seq     atomic.Int64
	metrics Metrics
}

// NewTransport creates an empty registry. metrics may be nil.
func NewTransport(metrics Metrics) *Transport {
	if metrics == nil {
		metrics = Noop{}
	}
	return &Transport{
		pending: make(map[string]*PendingCall),
		metrics: metrics,
	}
}

// Begin registers a call and returns it. The call is a subscription when
// params carry subscribe or watch set to true.
func (t *Transport) Begin(url, params string, deliver DeliverFunc) *PendingCall {
	call := t.newCall(url, params)
	call.deliver = deliver
	t.register(call)
	return call
}

// Open registers a call whose responses arrive on the returned channel.
// Cancel closes the channel. A non-subscription channel closes after its
// only response. Subscription responses that find the buffer full are
// dropped.
func (t *Transport) Open(url, params string, buffer int) (*PendingCall, <-chan string) {
	if buffer < 1 {
		buffer = 1
	}
	call := t.newCall(url, params)
	ch := make(chan string, buffer)
	call.deliver = func(id, response string) {
		if !call.Subscription {
			ch <- response
			close(ch)
			return
		}
		select {
		case ch <- response:
		default:
			slog.Warn("bus subscription buffer full, dropping response", "id", id)
		}
	}
	call.onCancel = func() { close(ch) }
	t.register(call)
	return call, ch
}

func (t *Transport) newCall(url, params string) *PendingCall {
	return &PendingCall{
		ID:           IDPrefix + strconv.FormatInt(t.seq.Add(1), 10),
		URL:          url,
		Params:       params,
		Subscription: IsSubscription(params),
		Started:      time.Now(),
	}
}

func (t *Transport) register(call *PendingCall) {
	t.mu.Lock()
	t.pending[call.ID] = call
	n := len(t.pending)
	t.mu.Unlock()

	t.metrics.IncCalls(serviceLabel(call.URL))
	t.metrics.SetPending(n)
	slog.Debug("bus call begin", "id", call.ID, "url", call.URL, "subscription", call.Subscription)
}

// Deliver hands response to the call's target. Unknown, cancelled and
// already-completed ids are dropped silently; the result only reports
// whether the target ran. Non-subscription calls are removed after their
// first delivery.
func (t *Transport) Deliver(id, response string) bool {
	t.mu.Lock()
	call := t.pending[id]
	t.mu.Unlock()
	if call == nil {
		t.metrics.IncDeliveries(OutcomeDropped)
		slog.Debug("bus delivery dropped", "id", id, "reason", "unknown id")
		return false
	}

	call.mu.Lock()
	if call.cancelled || call.done {
		call.mu.Unlock()
		t.metrics.IncDeliveries(OutcomeDropped)
		slog.Debug("bus delivery dropped", "id", id, "reason", "cancelled")
		return false
	}
	if call.deliver != nil {
		call.deliver(id, response)
	}
	call.deliveries++
	if !call.Subscription {
		call.done = true
	}
	call.mu.Unlock()

	if !call.Subscription {
		t.remove(id, call)
	}
	t.metrics.IncDeliveries(OutcomeDelivered)
	return true
}

// Cancel marks the call cancelled and removes it. Work already running for
// the call is not interrupted; its response will be dropped.
func (t *Transport) Cancel(id string) bool {
	t.mu.Lock()
	call, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	n := len(t.pending)
	t.mu.Unlock()
	if !ok {
		return false
	}
	t.metrics.SetPending(n)

	call.mu.Lock()
	defer call.mu.Unlock()
	if call.cancelled || call.done {
		return false
	}
	call.cancelled = true
	if call.onCancel != nil {
		call.onCancel()
	}
	t.metrics.IncCancels()
	slog.Debug("bus call cancelled", "id", id, "url", call.URL)
	return true
}

// Get returns the live call for id.
func (t *Transport) Get(id string) (*PendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	call, ok := t.pending[id]
	return call, ok
}

// Len returns the number of live calls.
func (t *Transport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Pending returns the live calls ordered by id sequence.
func (t *Transport) Pending() []*PendingCall {
	t.mu.Lock()
	calls := make([]*PendingCall, 0, len(t.pending))
	for _, c := range t.pending {
		calls = append(calls, c)
	}
	t.mu.Unlock()

	sort.Slice(calls, func(i, j int) bool {
		return seqOf(calls[i].ID) < seqOf(calls[j].ID)
	})
	return calls
}

// CancelAll cancels every live call. Used when a session ends.
func (t *Transport) CancelAll() int {
	n := 0
	for _, c := range t.Pending() {
		if t.Cancel(c.ID) {
			n++
		}
	}
	return n
}

func (t *Transport) remove(id string, call *PendingCall) {
	t.mu.Lock()
	if t.pending[id] == call {
		delete(t.pending, id)
	}
	n := len(t.pending)
	t.mu.Unlock()
	t.metrics.SetPending(n)
}

func seqOf(id string) int64 {
	n, err := strconv.ParseInt(strings.TrimPrefix(id, IDPrefix), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func serviceLabel(url string) string {
	addr, err := luna.ParseAddress(url)
	if err != nil {
		return "invalid"
	}
	return addr.Service
}

// String is used in logs.
func (c *PendingCall) String() string {
	return fmt.Sprintf("%s %s", c.ID, c.URL)
}
