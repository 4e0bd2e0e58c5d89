// Package journal records bus call events to rotating JSONL files and
// streams them to live subscribers.
package journal

import (
	"github.com/dgnsrekt/lunashim/internal/bus"
)

// Journal is a bus.EventSink writing to an optional Writer and a Broker.
type Journal struct {
	writer     *Writer
	broker     *Broker
	maxPayload int
}

// entry is the record written to disk.
type entry struct {
	bus.Event
	Truncated bool   `json:"truncated,omitempty"`
	Size      int    `json:"size,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
}

// New returns a Journal. writer may be nil to keep events in memory only.
func New(writer *Writer, broker *Broker) *Journal {
	if broker == nil {
		broker = NewBroker()
	}
	return &Journal{writer: writer, broker: broker}
}

// Broker returns the live event broker.
func (j *Journal) Broker() *Broker { return j.broker }

// LimitPayload caps the params and response stored per event. Zero keeps
// them whole.
func (j *Journal) LimitPayload(maxBytes int) { j.maxPayload = maxBytes }

// Record implements bus.EventSink.
func (j *Journal) Record(evt bus.Event) {
	e := j.entry(evt)
	if j.writer != nil {
		_ = j.writer.Write(e)
	}
	j.broker.Publish(e.Event)
}

func (j *Journal) entry(evt bus.Event) entry {
	e := entry{Event: evt}
	payload := &e.Response
	if evt.Response == "" {
		payload = &e.Params
	}
	*payload, e.Truncated, e.Size, e.SHA256 = truncate(*payload, j.maxPayload)
	if !e.Truncated {
		e.Size = 0
	}
	return e
}

// Close flushes and closes the writer.
func (j *Journal) Close() error {
	if j.writer == nil {
		return nil
	}
	return j.writer.Close()
}
