// Package sse streams article change notifications to browsers as
// Server-Sent Events.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/blogsync/internal/articles"
)

// EventIndexChanged is the coalesced event sent after any index change.
const EventIndexChanged = "index.changed"

const (
	clientBuffer     = 64
	defaultKeepAlive = 25 * time.Second
	retryMillis      = 3000
)

// Event is one message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// IndexSummary is the payload of EventIndexChanged.
type IndexSummary struct {
	Articles int    `json:"articles"`
	LastPath string `json:"lastPath"`
}

// Broker fans events out to connected clients.
//
// One goroutine owns the client set, the event sequence and the
// index.changed coalescing state; the exported methods only talk to it over
// channels. index.changed is sent at most once per window: changes arriving
// inside the window are folded into one trailing event carrying the latest
// summary.
type Broker struct {
	window    time.Duration
	keepAlive time.Duration

	join    chan chan []byte
	leave   chan chan []byte
	events  chan Event
	changes chan articles.ChangeEvent
	count   chan chan int

	stop    chan struct{}
	done    chan struct{}
	stopped atomic.Bool
}

// NewBroker starts a broker whose index.changed events are at least window
// apart.
func NewBroker(window time.Duration) *Broker {
	if window <= 0 {
		window = 2 * time.Second
	}
	b := &Broker{
		window:    window,
		keepAlive: defaultKeepAlive,
		join:      make(chan chan []byte),
		leave:     make(chan chan []byte),
		events:    make(chan Event, 256),
		changes:   make(chan articles.ChangeEvent, 256),
		count:     make(chan chan int),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.done)

	var (
		clients  = make(map[chan []byte]struct{})
		seq      uint64
		lastSent time.Time
		pending  *IndexSummary
		timer    *time.Timer
		trailing <-chan time.Time
	)

	send := func(ev Event) {
		seq++
		frame, err := encodeFrame(seq, ev)
		if err != nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- frame:
			default:
				// slow client, drop
			}
		}
	}
	flushIndex := func(now time.Time) {
		send(Event{Type: EventIndexChanged, Data: *pending})
		pending = nil
		lastSent = now
	}

	for {
		select {
		case <-b.stop:
			if timer != nil {
				timer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.join:
			clients[ch] = struct{}{}

		case ch := <-b.leave:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.events:
			send(ev)

		case c := <-b.changes:
			send(Event{Type: c.Kind, Data: c})
			pending = &IndexSummary{Articles: c.Articles, LastPath: c.Path}
			now := time.Now()
			if wait := b.window - now.Sub(lastSent); wait <= 0 {
				flushIndex(now)
			} else if timer == nil {
				timer = time.NewTimer(wait)
				trailing = timer.C
			}

		case now := <-trailing:
			timer, trailing = nil, nil
			if pending != nil {
				flushIndex(now)
			}

		case resp := <-b.count:
			resp <- len(clients)
		}
	}
}

func encodeFrame(id uint64, ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("id: " + strconv.FormatUint(id, 10) + "\n")
	buf.WriteString("event: " + ev.Type + "\n")
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// Close stops the broker and disconnects every client. It is idempotent.
func (b *Broker) Close() {
	if b.stopped.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.done
}

// Subscribe registers a client. The channel is closed when the client is
// unsubscribed or the broker stops.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.stopped.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.stopped.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.stopped.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
	case <-b.done:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.done:
		return 0
	}
}

// Publish sends ev to every client as is.
func (b *Broker) Publish(ev Event) {
	if b.stopped.Load() {
		return
	}
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// Notify implements articles.Notifier.
func (b *Broker) Notify(ev articles.ChangeEvent) {
	if b.stopped.Load() {
		return
	}
	select {
	case b.changes <- ev:
	case <-b.done:
	}
}

// ServeHTTP streams events to one client (GET /api/events) until the
// request ends or the broker stops. Idle streams get a comment line every
// keep-alive interval so proxies keep them open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: " + strconv.Itoa(retryMillis) + "\n\n"))
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
