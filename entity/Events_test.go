package entity

import (
	"testing"

	"github.com/bmizerany/assert"
)

func TestEventsEmitInRegistrationOrder(t *testing.T) {
	var e Events
	var got []int
	e.On("ping", func(args ...interface{}) { got = append(got, 1) })
	e.On("ping", func(args ...interface{}) { got = append(got, 2) })
	e.On("ping", func(args ...interface{}) { got = append(got, 3) })

	e.Emit("ping")
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestEventsDispose(t *testing.T) {
	var e Events
	n := 0
	h := e.On("ping", func(args ...interface{}) { n += 1 })
	e.Emit("ping")
	h.Dispose()
	e.Emit("ping")
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, e.ListenerCount("ping"))

	// double dispose is a no-op
	h.Dispose()
}

func TestEventsPanickingListenerIsSkipped(t *testing.T) {
	var e Events
	n := 0
	e.On("ping", func(args ...interface{}) { panic("listener bug") })
	e.On("ping", func(args ...interface{}) { n += 1 })

	e.Emit("ping")
	e.Emit("ping")
	assert.Equal(t, 2, n)
}

func TestEventsArgsAndUnknownName(t *testing.T) {
	var e Events
	var got interface{}
	e.On("hit", func(args ...interface{}) { got = args[0] })
	e.Emit("hit", 42)
	assert.Equal(t, 42, got)

	// emitting an event nobody listens to is fine
	e.Emit("nothing", 1, 2, 3)
}
