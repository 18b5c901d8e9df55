package stratabase

// Subscription is the token returned when registering a handler. Calling
// Unsubscribe more than once is a no-op.
type Subscription struct {
	release func()
}

// Unsubscribe detaches the handler.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.release == nil {
		return
	}
	release := s.release
	s.release = nil
	release()
}

// Active reports whether the handler is still attached.
func (s *Subscription) Active() bool {
	return s != nil && s.release != nil
}

type handler[E any] struct {
	id uint64
	fn func(E)
}

// notifier is an ordered observer list. Handlers added or removed while a
// notification is in flight take effect from the next notification.
type notifier[E any] struct {
	next     uint64
	handlers []handler[E]
}

func (n *notifier[E]) subscribe(fn func(E)) *Subscription {
	n.next++
	id := n.next
	n.handlers = append(n.handlers, handler[E]{id: id, fn: fn})
	return &Subscription{release: func() { n.remove(id) }}
}

func (n *notifier[E]) remove(id uint64) {
	for i, h := range n.handlers {
		if h.id == id {
			n.handlers = append(n.handlers[:i:i], n.handlers[i+1:]...)
			return
		}
	}
}

func (n *notifier[E]) notify(event E) {
	for _, h := range n.handlers {
		h.fn(event)
	}
}

func (n *notifier[E]) len() int {
	return len(n.handlers)
}
