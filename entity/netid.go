package entity

import "sync/atomic"

// Kind tags the entity families that carry netIds
type Kind int

const (
	KindBrick Kind = iota
	KindPlayer
	KindBot
	KindTool
	KindEmitter
	KindTeam

	numKinds
)

// Runtime netIds are assigned from FIRST_RUNTIME_NETID upwards; ids below it
// are reserved for entities created during map load.
const FIRST_RUNTIME_NETID = 1000

var netIdCounters [numKinds]uint32
var loadNetIdCounter uint32

func init() {
	resetNetIdCounters()
}

func resetNetIdCounters() {
	for i := range netIdCounters {
		netIdCounters[i] = FIRST_RUNTIME_NETID - 1
	}
	loadNetIdCounter = 0
}

// nextNetId assigns the next netId of the kind. Ids are strictly increasing
// per kind and are never reused within the process lifetime.
func nextNetId(kind Kind) uint32 {
	return atomic.AddUint32(&netIdCounters[kind], 1)
}

// NextLoadNetId assigns a netId from the map-load range. Once the load range
// is exhausted it falls through to the runtime brick counter.
func NextLoadNetId() uint32 {
	id := atomic.AddUint32(&loadNetIdCounter, 1)
	if id >= FIRST_RUNTIME_NETID {
		return nextNetId(KindBrick)
	}
	return id
}
