package entity

import (
	"github.com/pkg/errors"

	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/engine/proto"
)

// Tool ops carried in PK_TOOL frames
const (
	toolOpAdd byte = iota
	toolOpRemove
	toolOpEquip
	toolOpUnequip
)

// Tool is an equippable inventory item. Tool frames go to the owning
// player's connection only; other clients learn of tools indirectly.
type Tool struct {
	entityHeader
	world *World
	owner *Player

	name     string
	enabled  bool
	model    uint32
	modelRef string
	slot     int
}

// NewTool creates a tool; it replicates nothing until added to an inventory
func (w *World) NewTool(name string) *Tool {
	t := &Tool{
		world:   w,
		name:    name,
		enabled: true,
		slot:    -1,
	}
	t.initHeader(KindTool)
	w.addTool(t)
	return t
}

func (t *Tool) Name() string   { return t.name }
func (t *Tool) Enabled() bool  { return t.enabled }
func (t *Tool) Slot() int      { return t.slot }
func (t *Tool) Owner() *Player { return t.owner }

// SetEnabled toggles whether the tool can be activated
func (t *Tool) SetEnabled(enabled bool) *Deferred {
	if t.destroyed {
		return destroyedDeferred()
	}
	t.enabled = enabled
	return t.pushToOwner()
}

// SetModel attaches a mesh asset. Resolution runs off the game goroutine;
// failure fails the mutation and nothing is committed or sent.
func (t *Tool) SetModel(assetId uint32) *Deferred {
	if t.destroyed {
		return destroyedDeferred()
	}
	d := NewDeferred()
	t.world.resolveAsset(assetId, func(ref string, err error) {
		if err != nil {
			d.Resolve(errors.Wrapf(err, "resolve tool model %d", assetId))
			return
		}
		if t.destroyed {
			d.Resolve(ErrDestroyed)
			return
		}
		t.model = assetId
		t.modelRef = ref
		d.ResolveFrom(t.pushToOwner())
	})
	return d
}

// Activate fires the tool's activated event for the acting player. The
// server dispatches it when the owner clicks while the tool is equipped.
func (t *Tool) Activate(p *Player) error {
	if t.destroyed {
		return ErrDestroyed
	}
	if !t.enabled {
		return errors.New("tool is disabled")
	}
	t.Emit("activated", p)
	return nil
}

// OnActivated registers an activation listener
func (t *Tool) OnActivated(fn func(p *Player)) Disposable {
	return t.On("activated", func(args ...interface{}) {
		fn(args[0].(*Player))
	})
}

// OnEquipped registers an equip listener
func (t *Tool) OnEquipped(fn func(p *Player)) Disposable {
	return t.On("equipped", func(args ...interface{}) {
		fn(args[0].(*Player))
	})
}

// OnUnequipped registers an unequip listener
func (t *Tool) OnUnequipped(fn func(p *Player)) Disposable {
	return t.On("unequipped", func(args ...interface{}) {
		fn(args[0].(*Player))
	})
}

// Destroy removes the tool from its owner's inventory and the world index
func (t *Tool) Destroy() *Deferred {
	if t.destroyed {
		return destroyedDeferred()
	}
	var d *Deferred
	if t.owner != nil && !t.owner.destroyed {
		d = t.owner.RemoveTool(t)
	} else {
		d = ResolvedDeferred(nil)
	}
	t.world.removeTool(t.netId)
	t.markDestroyed()
	return d
}

func (t *Tool) pushToOwner() *Deferred {
	if t.owner == nil || t.owner.destroyed {
		return ResolvedDeferred(nil)
	}
	pkt := t.makeToolPacket(toolOpAdd)
	defer pkt.Release()
	return t.owner.client.Push(pkt)
}

func (t *Tool) makeToolPacket(op byte) *netutil.Packet {
	pkt := proto.AllocPacket(proto.PK_TOOL)
	pkt.AppendUint32(t.netId)
	pkt.AppendByte(op)
	pkt.AppendInt32(int32(t.slot))
	pkt.AppendVarStr(t.name)
	pkt.AppendBool(t.enabled)
	pkt.AppendVarStr(t.modelRef)
	return pkt
}
