package store

import (
	"context"
	"sync"
)

// broker fans committed-change notifications out to subscriptions. Adapters
// call Publish after a successful commit with the collections it touched.
type broker struct {
	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

type subscription struct {
	collection string
	notify     chan struct{}
	done       chan struct{}
	once       sync.Once
	broker     *broker
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[*subscription]struct{})}
}

// Watch runs query once immediately and again after every publish on
// collection, handing results to onChange or failures to onError. Handlers run
// on a dedicated goroutine, one call at a time; notifications that arrive while
// a handler runs are coalesced into a single re-query.
func (b *broker) Watch(ctx context.Context, collection string, query func(context.Context) ([]Document, error), onChange func([]Document), onError func(error)) func() {
	sub := &subscription{
		collection: collection,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		broker:     b,
	}
	// Reason: primed before Publish can see sub, so this send never blocks
	sub.notify <- struct{}{}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.done)
		return func() {}
	}
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[*subscription]struct{})
	}
	b.subs[collection][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer sub.cancel()
		for {
			select {
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			case <-sub.notify:
			}

			docs, err := query(ctx)
			// Reason: a cancel racing with the query must not produce a late callback
			select {
			case <-sub.done:
				return
			default:
			}
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			onChange(docs)
		}
	}()

	return sub.cancel
}

func (s *subscription) cancel() {
	s.once.Do(func() {
		close(s.done)
		s.broker.mu.Lock()
		delete(s.broker.subs[s.collection], s)
		s.broker.mu.Unlock()
	})
}

// Publish wakes every subscription on the given collections.
func (b *broker) Publish(collections ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range collections {
		for sub := range b.subs[c] {
			select {
			case sub.notify <- struct{}{}:
			default:
			}
		}
	}
}

// Close cancels every live subscription.
func (b *broker) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*subscription
	for _, subs := range b.subs {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.cancel()
	}
}
