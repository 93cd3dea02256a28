package entity

import (
	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/engine/proto"
)

// Team groups avatars under a name and display color. Membership is derived:
// it is the set of connected players whose team reference matches, computed
// on demand, never stored on the team.
type Team struct {
	entityHeader
	world *World

	name  string
	color string
}

// NewTeam creates a team, indexes it and replicates it to everyone
func (w *World) NewTeam(name string, color string) *Team {
	t := &Team{
		world: w,
		name:  name,
		color: color,
	}
	t.initHeader(KindTeam)
	w.addTeam(t)
	t.sendFull()
	return t
}

func (t *Team) Name() string  { return t.name }
func (t *Team) Color() string { return t.color }

// Members derives the current membership
func (t *Team) Members() []*Player {
	return t.world.PlayersInTeam(t)
}

// SetName renames the team
func (t *Team) SetName(name string) *Deferred {
	if t.destroyed {
		return destroyedDeferred()
	}
	t.name = name
	return t.sendFull()
}

// SetColor changes the display color
func (t *Team) SetColor(color string) *Deferred {
	if t.destroyed {
		return destroyedDeferred()
	}
	t.color = color
	return t.sendFull()
}

// Destroy de-indexes the team and clears the team reference of its members
func (t *Team) Destroy() *Deferred {
	if t.destroyed {
		return destroyedDeferred()
	}
	var defs []*Deferred
	for _, p := range t.Members() {
		defs = append(defs, p.SetTeam(nil))
	}
	t.world.removeTeam(t.netId)
	t.markDestroyed()
	pkt := proto.MakeModificationPacket(t.netId, "team.removed", "1")
	defs = append(defs, t.world.gw.Broadcast(pkt))
	pkt.Release()
	return CombineDeferreds(defs)
}

func (t *Team) sendFull() *Deferred {
	pkt := proto.AllocPacket(proto.PK_TEAM)
	pkt.AppendUint32(1)
	t.appendFields(pkt)
	defer pkt.Release()
	return t.world.gw.Broadcast(pkt)
}

func (t *Team) appendFields(pkt *netutil.Packet) {
	pkt.AppendUint32(t.netId)
	pkt.AppendVarStr(t.name)
	pkt.AppendVarStr(t.color)
}
