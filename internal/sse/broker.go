// Package sse streams store changes to dashboards as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync/atomic"
	"time"
)

// DashboardUpdated tells clients to refresh their summary views. It follows
// store changes at most once per throttle interval.
const DashboardUpdated = "dashboard.updated"

const (
	clientBuffer = 64
	// replayDepth fits in a client buffer so a resuming client never drops
	// replayed events.
	replayDepth = clientBuffer
	retryMillis = 3000
)

// Event is one message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`

	change bool
}

// DashboardUpdate is the data of a dashboard.updated event: the changes
// coalesced since the previous one.
type DashboardUpdate struct {
	Changes int       `json:"changes"`
	Kinds   []string  `json:"kinds"`
	At      time.Time `json:"at"`
}

type frame struct {
	seq uint64
	raw []byte
}

type subscription struct {
	ch    chan []byte
	after uint64
}

// Broker fans events out to connected clients.
//
// One goroutine owns the client set, the event sequence, the replay window
// and the dashboard throttle; public methods talk to it over channels.
type Broker struct {
	dashboardMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. dashboardThrottle <= 0 means two seconds.
func NewBroker(dashboardThrottle time.Duration) *Broker {
	if dashboardThrottle <= 0 {
		dashboardThrottle = 2 * time.Second
	}

	b := &Broker{
		dashboardMin:  dashboardThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	var (
		clients = make(map[chan []byte]struct{})
		history []frame
		seq     uint64

		lastDashboard time.Time
		pending       DashboardUpdate
		flush         *time.Timer
		flushC        <-chan time.Time
	)

	send := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Slow client; it resumes with Last-Event-ID.
		}
	}

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))
		history = append(history, frame{seq: seq, raw: raw})
		if len(history) > replayDepth {
			history = slices.Delete(history, 0, len(history)-replayDepth)
		}
		for ch := range clients {
			send(ch, raw)
		}
	}

	sendDashboard := func(now time.Time) {
		pending.At = now.UTC()
		broadcast(Event{Type: DashboardUpdated, Data: pending})
		pending = DashboardUpdate{}
		lastDashboard = now
	}

	for {
		select {
		case <-b.stopCh:
			if flush != nil {
				flush.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = struct{}{}
			if sub.after == 0 {
				continue
			}
			for _, f := range history {
				if f.seq > sub.after {
					send(sub.ch, f.raw)
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)
			if !event.change {
				continue
			}
			pending.Changes++
			if !slices.Contains(pending.Kinds, event.Type) {
				pending.Kinds = append(pending.Kinds, event.Type)
			}
			now := time.Now()
			if wait := b.dashboardMin - now.Sub(lastDashboard); wait <= 0 {
				sendDashboard(now)
			} else if flushC == nil {
				// Trailing notice so the last change of a burst is not lost.
				flush = time.NewTimer(wait)
				flushC = flush.C
			}

		case now := <-flushC:
			flush, flushC = nil, nil
			if pending.Changes > 0 {
				sendDashboard(now)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client that receives events from now on.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeAfter(0)
}

// SubscribeAfter adds a client and first replays the retained events with
// a sequence number above after. Zero replays nothing.
func (b *Broker) SubscribeAfter(after uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, after: after}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
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
	case b.countReqCh <- resp:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishChange publishes a store change and schedules a dashboard.updated.
func (b *Broker) PublishChange(kind string, data any) {
	b.Publish(Event{Type: kind, Data: data, change: true})
}

// ServeHTTP streams events to one client (GET /api/events). A Last-Event-ID
// header resumes after that event.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	after, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	ch := b.SubscribeAfter(after)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
