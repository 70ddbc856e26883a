package state

import "sync"

// Listener observes a transition. It runs synchronously after the new state is
// in place and must not call Dispatch.
type Listener func(prev, next State, a Action)

// Machine owns the current State.
type Machine struct {
	mu        sync.RWMutex
	current   State
	listeners map[int]Listener
	nextID    int
}

// NewMachine returns a machine in the Initial state.
func NewMachine() *Machine {
	return &Machine{
		current:   Initial(),
		listeners: make(map[int]Listener),
	}
}

// Current returns a copy of the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.clone()
}

// Dispatch applies a and returns the resulting state.
func (m *Machine) Dispatch(a Action) State {
	m.mu.Lock()
	prev := m.current
	next := Reduce(prev, a)
	m.current = next
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(prev.clone(), next.clone(), a)
	}
	return next.clone()
}

// Subscribe registers l and returns a function that removes it.
func (m *Machine) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}
