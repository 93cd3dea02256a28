package entity

import (
	timer "github.com/xiaonanln/goTimer"
)

// touchMonitor is the per-entity polling loop that turns continuous overlap
// into discrete touch / touchEnded transitions. One monitor per entity,
// created lazily on the first touch listener; ticks run on the game
// goroutine so a monitor never overlaps itself.
type touchMonitor struct {
	w       *World
	events  *Events
	overlap func(p *Player) bool

	t        *timer.Timer
	touching map[uint32]*Player
}

func newTouchMonitor(w *World, events *Events, overlap func(p *Player) bool) *touchMonitor {
	m := &touchMonitor{
		w:        w,
		events:   events,
		overlap:  overlap,
		touching: map[uint32]*Player{},
	}
	m.t = timer.AddTimer(w.touchTickInterval, m.tick)
	return m
}

// tick diffs the current overlap set against the previous one. Transitions
// strictly alternate per player: touch, touchEnded, touch, ... with one
// documented exception: a player that disconnects while touching is dropped
// silently, without a touchEnded.
func (m *touchMonitor) tick() {
	for netId, p := range m.touching {
		if p.Destroyed() {
			delete(m.touching, netId)
		}
	}

	for _, p := range m.w.Players() {
		if _, in := m.touching[p.netId]; in {
			// a player that dies while touching stays in the set and
			// leaves only on actual spatial departure
			if !m.overlap(p) {
				delete(m.touching, p.netId)
				m.events.Emit("touchEnded", p)
			}
		} else if p.Alive() && m.overlap(p) {
			m.touching[p.netId] = p
			m.events.Emit("touch", p)
		}
	}
}

// stop cancels the polling timer; synchronous, no tick fires afterwards
func (m *touchMonitor) stop() {
	m.t.Cancel()
	m.touching = nil
}

// touchingCount reports the current touching-set size
func (m *touchMonitor) touchingCount() int {
	return len(m.touching)
}
