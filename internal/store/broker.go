package store

import (
	"sync"
	"time"
)

// Change announces a committed transaction.
type Change struct {
	Collections []string
	At          time.Time
}

// broker fans changes out to subscribers. A subscriber that is not
// receiving misses notifications; publish never blocks.
type broker struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Change
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Change)}
}

func (b *broker) subscribe() (<-chan Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Change, 8)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *broker) publish(cols []string) {
	c := Change{Collections: cols, At: time.Now()}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
