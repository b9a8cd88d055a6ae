// Package sse fans record change events out to Server-Sent Events clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event is one SSE frame before encoding.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Format renders event as one SSE frame.
func Format(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), nil
}

// RecordEvent is the payload of record.* and collection.updated events.
type RecordEvent struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// clientBuffer is the number of frames a slow client may lag behind before
// frames are dropped for it.
const clientBuffer = 64

// subscriber is one connected client. An empty types set receives every
// record type.
type subscriber struct {
	ch    chan []byte
	types map[string]struct{}
}

func (s *subscriber) wants(typ string) bool {
	if len(s.types) == 0 || typ == "" {
		return true
	}
	_, ok := s.types[typ]
	return ok
}

// change is a record mutation reported by a feed.
type change struct {
	kind string
	typ  string
	id   string
}

// hub is the state owned by the broker loop.
type hub struct {
	subs     map[chan []byte]*subscriber
	lastColl map[string]time.Time
	throttle time.Duration
}

// send delivers event to every subscriber interested in typ. Full client
// buffers drop the frame instead of blocking the loop.
func (h *hub) send(typ string, event Event) {
	raw, err := Format(event)
	if err != nil {
		return
	}
	for _, sub := range h.subs {
		if !sub.wants(typ) {
			continue
		}
		select {
		case sub.ch <- raw:
		default:
		}
	}
}

// record emits record.<kind> and, at most once per throttle window for the
// type, collection.updated.
func (h *hub) record(c change, now time.Time) {
	switch c.kind {
	case "created", "changed", "deleted":
		h.send(c.typ, Event{Type: "record." + c.kind, Data: RecordEvent{Type: c.typ, ID: c.id}})
	default:
		return
	}
	if now.Sub(h.lastColl[c.typ]) < h.throttle {
		return
	}
	h.lastColl[c.typ] = now
	h.send(c.typ, Event{Type: "collection.updated", Data: RecordEvent{Type: c.typ}})
}

func (h *hub) drop(ch chan []byte) {
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *hub) closeAll() {
	for ch := range h.subs {
		h.drop(ch)
	}
}

// Broker broadcasts record events to SSE clients. A single loop goroutine owns
// the subscribers and the per-type throttle; methods reach it over channels.
type Broker struct {
	throttle time.Duration

	subCh    chan *subscriber
	unsubCh  chan chan []byte
	eventCh  chan Event
	changeCh chan change
	countCh  chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. collection.updated for one type is sent at
// most once per collectionThrottle; non-positive values mean two seconds.
func NewBroker(collectionThrottle time.Duration) *Broker {
	if collectionThrottle <= 0 {
		collectionThrottle = 2 * time.Second
	}
	b := &Broker{
		throttle: collectionThrottle,
		subCh:    make(chan *subscriber),
		unsubCh:  make(chan chan []byte),
		eventCh:  make(chan Event, 256),
		changeCh: make(chan change, 256),
		countCh:  make(chan chan int),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	h := &hub{
		subs:     make(map[chan []byte]*subscriber),
		lastColl: make(map[string]time.Time),
		throttle: b.throttle,
	}
	for {
		select {
		case <-b.stopCh:
			h.closeAll()
			return
		case sub := <-b.subCh:
			h.subs[sub.ch] = sub
		case ch := <-b.unsubCh:
			h.drop(ch)
		case event := <-b.eventCh:
			h.send("", event)
		case c := <-b.changeCh:
			h.record(c, time.Now())
		case resp := <-b.countCh:
			resp <- len(h.subs)
		}
	}
}

// Close stops the loop and closes every client channel. It is idempotent.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client and returns its frame channel. With types the
// client only receives record events of those types; events published with
// Publish reach every client.
func (b *Broker) Subscribe(types ...string) chan []byte {
	sub := &subscriber{ch: make(chan []byte, clientBuffer)}
	if len(types) > 0 {
		sub.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	if b.closed.Load() {
		close(sub.ch)
		return sub.ch
	}
	select {
	case b.subCh <- sub:
	case <-b.stopped:
		close(sub.ch)
	}
	return sub.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends event to every client.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.eventCh <- event:
	case <-b.stopped:
	}
}

// PublishRecordEvent reports a record change of kind "created", "changed" or
// "deleted". Its signature matches the recordservice feed callback.
func (b *Broker) PublishRecordEvent(kind, typ, id string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- change{kind: kind, typ: typ, id: id}:
	case <-b.stopped:
	}
}

// Stream writes SSE frames received on ch to w until ch closes or the request
// ends.
func Stream(w http.ResponseWriter, r *http.Request, ch <-chan []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// ServeHTTP serves GET /events. Repeated ?type= parameters narrow the record
// events to those types.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ch := b.Subscribe(r.URL.Query()["type"]...)
	defer b.Unsubscribe(ch)
	Stream(w, r, ch)
}
