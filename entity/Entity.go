package entity

import (
	"time"

	timer "github.com/xiaonanln/goTimer"
)

// entityHeader carries the state shared by every networked entity kind:
// the process-unique netId, the one-way destroyed flag, the event component
// and the set of raw timers the entity owns. Kinds compose it by embedding.
type entityHeader struct {
	netId     uint32
	destroyed bool
	Events

	rawTimers map[*timer.Timer]struct{}
}

func (h *entityHeader) initHeader(kind Kind) {
	h.netId = nextNetId(kind)
	h.rawTimers = map[*timer.Timer]struct{}{}
}

// NetId is the wire identity clients use to correlate update packets
func (h *entityHeader) NetId() uint32 {
	return h.netId
}

// Destroyed reports whether the entity was destroyed. A destroyed entity
// accepts no further mutation and emits no further packets.
func (h *entityHeader) Destroyed() bool {
	return h.destroyed
}

// markDestroyed flips the destroyed flag and releases timers and listeners.
// Runs on the game goroutine; timers are cancelled before it returns.
func (h *entityHeader) markDestroyed() {
	h.destroyed = true
	for t := range h.rawTimers {
		t.Cancel()
	}
	h.rawTimers = nil
	h.clearListeners()
}

// AddCallback schedules a one-shot callback owned by this entity. The
// callback dies with the entity.
func (h *entityHeader) AddCallback(d time.Duration, cb func()) {
	if h.destroyed {
		return
	}
	var t *timer.Timer
	t = timer.AddCallback(d, func() {
		delete(h.rawTimers, t)
		cb()
	})
	h.rawTimers[t] = struct{}{}
}

// AddTimer schedules a repeating timer owned by this entity
func (h *entityHeader) AddTimer(d time.Duration, cb func()) {
	if h.destroyed {
		return
	}
	t := timer.AddTimer(d, cb)
	h.rawTimers[t] = struct{}{}
}
