// Package reactive fans out published values to any number of subscribers.
package reactive

import "sync"

// Subscription receives the values published after it was created.
type Subscription[T any] struct {
	c         chan T
	once      sync.Once
	container *Observable[T]
}

// Cancel removes the subscription from its container and closes the channel.
// Not calling this method may result in memory leak. Calling it twice is a no-op.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.container.delete(s)
		close(s.c)
	})
}

// Channel returns channel that can be used to read from observable.
func (s *Subscription[T]) Channel() <-chan T {
	return s.c
}

// Observable creates a container for subscribers and remembers the latest value.
// This works in single producer multiple consumer pattern.
// Publishing never blocks: a subscriber whose buffer is full loses its oldest value.
type Observable[T any] struct {
	mux         sync.RWMutex
	subscribers map[*Subscription[T]]struct{}
	size        int
	latest      T
	published   bool
}

// New creates Observable container that holds channels for all subscribers.
// size is the buffer size of each channel, at least one.
func New[T any](size int) *Observable[T] {
	if size < 1 {
		size = 1
	}
	return &Observable[T]{
		subscribers: make(map[*Subscription[T]]struct{}),
		size:        size,
	}
}

// Subscribe subscribes to the container.
func (o *Observable[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		c:         make(chan T, o.size),
		container: o,
	}
	o.mux.Lock()
	defer o.mux.Unlock()
	o.subscribers[s] = struct{}{}
	return s
}

// Publish publishes value to all subscribers.
func (o *Observable[T]) Publish(v T) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.latest = v
	o.published = true
	for s := range o.subscribers {
		for {
			select {
			case s.c <- v:
			default:
				select {
				case <-s.c:
				default:
				}
				continue
			}
			break
		}
	}
}

// Latest returns the last published value and whether anything was published yet.
func (o *Observable[T]) Latest() (T, bool) {
	o.mux.RLock()
	defer o.mux.RUnlock()
	return o.latest, o.published
}

func (o *Observable[T]) delete(s *Subscription[T]) {
	o.mux.Lock()
	defer o.mux.Unlock()
	delete(o.subscribers, s)
}
