package entity

import (
	"sync"

	"github.com/brickhost/brickd/engine/bhutils"
)

// EventHandler is a listener callback registered with Events.On
type EventHandler func(args ...interface{})

// Disposable is a registration handle; Dispose removes the listener
type Disposable interface {
	Dispose()
}

type eventListener struct {
	owner *Events
	name  string
	fn    EventHandler
}

func (l *eventListener) Dispose() {
	l.owner.remove(l)
}

// Events is the publish/subscribe component composed into every entity kind.
// Listeners for an event name are kept in registration order.
type Events struct {
	mu        sync.Mutex
	listeners map[string][]*eventListener
}

// On registers a listener for the named event and returns its handle
func (e *Events) On(name string, fn EventHandler) Disposable {
	l := &eventListener{owner: e, name: name, fn: fn}
	e.mu.Lock()
	if e.listeners == nil {
		e.listeners = map[string][]*eventListener{}
	}
	e.listeners[name] = append(e.listeners[name], l)
	e.mu.Unlock()
	return l
}

// Emit calls every listener of the named event in registration order. A
// panicking listener is logged and skipped; emission runs on the game
// goroutine, so the panic must not reach it.
func (e *Events) Emit(name string, args ...interface{}) {
	e.mu.Lock()
	ls := e.listeners[name]
	fns := make([]EventHandler, len(ls))
	for i, l := range ls {
		fns[i] = l.fn
	}
	e.mu.Unlock()

	for _, fn := range fns {
		f := fn
		bhutils.CatchPanic(func() {
			f(args...)
		})
	}
}

// ListenerCount returns the number of live listeners for the named event
func (e *Events) ListenerCount(name string) int {
	e.mu.Lock()
	n := len(e.listeners[name])
	e.mu.Unlock()
	return n
}

func (e *Events) remove(l *eventListener) {
	e.mu.Lock()
	ls := e.listeners[l.name]
	for i, x := range ls {
		if x == l {
			e.listeners[l.name] = append(ls[:i], ls[i+1:]...)
			break
		}
	}
	e.mu.Unlock()
}

// clearListeners drops every listener; used by entity destroy
func (e *Events) clearListeners() {
	e.mu.Lock()
	e.listeners = nil
	e.mu.Unlock()
}
