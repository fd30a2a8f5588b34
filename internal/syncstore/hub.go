package syncstore

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is a live change feed for one collection. Consume from C
// until Unsubscribe, after which C is closed.
type Subscription struct {
	C <-chan Change

	token string
	once  sync.Once
	hub   *hub

	mu      sync.Mutex
	pending []Change
	wake    chan struct{}
	done    chan struct{}
}

// Token returns the opaque unsubscribe token.
func (s *Subscription) Token() string { return s.token }

// Unsubscribe detaches the feed and closes C. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.detach(s)
		close(s.done)
	})
}

// enqueue appends a change without ever blocking the publisher. The pump
// goroutine drains pending into C in order.
func (s *Subscription) enqueue(changes ...Change) {
	s.mu.Lock()
	s.pending = append(s.pending, changes...)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump(out chan Change) {
	defer close(out)
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, change := range batch {
			select {
			case out <- change:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}

// hub fans document changes out to subscribers per collection. Publishing
// never blocks: slow consumers queue, they do not back-pressure writers.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[string]*Subscription // collection -> token -> sub
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[string]*Subscription)}
}

// attach registers a subscriber and seeds it with the snapshot, guaranteeing
// snapshot-before-changes ordering for that subscriber.
func (h *hub) attach(collection string, snapshot []Document) *Subscription {
	out := make(chan Change, 64)
	sub := &Subscription{
		C:     out,
		token: uuid.NewString(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		hub:   h,
	}

	h.mu.Lock()
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[string]*Subscription)
	}
	h.subs[collection][sub.token] = sub
	seed := make([]Change, 0, len(snapshot)+1)
	for _, doc := range snapshot {
		seed = append(seed, Change{Kind: ChangePut, Doc: doc})
	}
	seed = append(seed, Change{
		Kind: ChangeSnapshotComplete,
		Doc:  Document{Collection: collection},
	})
	sub.enqueue(seed...)
	h.mu.Unlock()

	go sub.pump(out)
	return sub
}

func (h *hub) detach(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, byToken := range h.subs {
		delete(byToken, sub.token)
	}
}

// publish delivers a change to every subscriber of its collection.
func (h *hub) publish(change Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[change.Doc.Collection] {
		sub.enqueue(change)
	}
}
