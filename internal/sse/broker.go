// Package sse pushes project index changes to HTTP clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeProjectIndexed  = "project.indexed"
	TypeProjectRemoved  = "project.removed"
	TypeProjectsUpdated = "projects.updated"
)

// Event is one message on the stream. Data is encoded as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type projectChange struct {
	kind string
	dir  string
}

// Option configures a Broker.
type Option func(*Broker)

// WithThrottle sets the minimum gap between projects.updated events.
func WithThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.throttle = d
		}
	}
}

// WithHeartbeat makes every stream send a comment line at the given
// interval so idle proxies keep the connection open. Zero disables it.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) { b.logger = l }
}

// Broker fans events out to subscribed clients.
//
// A single loop goroutine owns the client set and the throttle timestamp;
// the public methods talk to it over channels.
type Broker struct {
	throttle  time.Duration
	heartbeat time.Duration
	logger    *slog.Logger

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan projectChange
	countCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker loop. Call Close to stop it.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		throttle:      2 * time.Second,
		logger:        slog.Default(),
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan projectChange, 256),
		countCh:       make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	go b.run()
	return b
}

func encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), nil
}

// hub is the state owned by the loop goroutine.
type hub struct {
	b          *Broker
	clients    map[chan []byte]struct{}
	lastUpdate time.Time
}

func (h *hub) broadcast(e Event) {
	msg, err := encode(e)
	if err != nil {
		h.b.logger.Warn("sse encode failed", slog.String("type", e.Type), slog.String("error", err.Error()))
		return
	}
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Slow client; drop rather than stall the loop.
		}
	}
}

func (h *hub) change(c projectChange) {
	data := map[string]string{"project": c.dir}
	switch c.kind {
	case "indexed":
		h.broadcast(Event{Type: TypeProjectIndexed, Data: data})
	case "removed":
		h.broadcast(Event{Type: TypeProjectRemoved, Data: data})
	default:
		return
	}
	if now := time.Now(); now.Sub(h.lastUpdate) >= h.b.throttle {
		h.lastUpdate = now
		h.broadcast(Event{Type: TypeProjectsUpdated, Data: map[string]string{}})
	}
}

func (h *hub) drop(ch chan []byte) {
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (b *Broker) run() {
	defer close(b.stopped)

	h := &hub{b: b, clients: make(map[chan []byte]struct{})}
	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				h.drop(ch)
			}
			return
		case ch := <-b.subscribeCh:
			h.clients[ch] = struct{}{}
		case ch := <-b.unsubscribeCh:
			h.drop(ch)
		case e := <-b.publishCh:
			h.broadcast(e)
		case c := <-b.changeCh:
			h.change(c)
		case resp := <-b.countCh:
			resp <- len(h.clients)
		}
	}
}

// send hands v to the loop unless the broker has stopped.
func send[T any](b *Broker, ch chan<- T, v T) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case ch <- v:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the loop and closes every client channel. Safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed on Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if !send(b, b.subscribeCh, ch) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client.
func (b *Broker) Unsubscribe(ch chan []byte) {
	send(b, b.unsubscribeCh, ch)
}

// ClientCount reports the number of subscribed clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !send(b, b.countCh, resp) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish broadcasts an arbitrary event.
func (b *Broker) Publish(e Event) {
	send(b, b.publishCh, e)
}

// PublishProjectEvent reports an index change for one project directory.
// kind is "indexed" or "removed"; other kinds are ignored. Its signature
// matches index.EventCallback.
func (b *Broker) PublishProjectEvent(kind, dir string) {
	send(b, b.changeCh, projectChange{kind: kind, dir: dir})
}

// ServeHTTP streams events until the client disconnects or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
