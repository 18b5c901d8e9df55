package stratabase

import "github.com/google/uuid"

// accessManager routes change events for one object id to the flyweights
// bound to it. The store keeps one per id while at least one flyweight holds
// a reference.
type accessManager struct {
	id        uuid.UUID
	refs      int
	listeners map[string]*notifier[Change]
}

func newAccessManager(id uuid.UUID) *accessManager {
	return &accessManager{id: id, listeners: map[string]*notifier[Change]{}}
}

func (m *accessManager) subscribe(property string, fn func(Change)) *Subscription {
	n := m.listeners[property]
	if n == nil {
		n = &notifier[Change]{}
		m.listeners[property] = n
	}
	sub := n.subscribe(fn)
	release := sub.release
	sub.release = func() {
		release()
		if n.len() == 0 && m.listeners[property] == n {
			delete(m.listeners, property)
		}
	}
	return sub
}

func (m *accessManager) dispatch(change Change) {
	if n := m.listeners[change.Property]; n != nil {
		n.notify(change)
	}
}
