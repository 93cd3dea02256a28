package entity

import (
	"github.com/pkg/errors"

	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/engine/proto"
)

// Bot is a non-player actor: the spatial and appearance fields of an avatar
// without the identity and session fields. Proximity uses a radius instead
// of a bounding box.
type Bot struct {
	entityHeader
	world *World

	name     string
	position Vector3
	rotation Vector3
	scale    Vector3
	speed    float32

	colors BodyColors
	assets WornAssets
	refs   wornRefs

	touchRadius Coord
	monitor     *touchMonitor
}

// NewBot spawns a bot, indexes it and replicates it to everyone
func (w *World) NewBot(name string) *Bot {
	b := &Bot{
		world:       w,
		name:        name,
		scale:       Vector3{1, 1, 1},
		speed:       4,
		touchRadius: 2,
		colors: BodyColors{
			Head:     "#d9bc62",
			Torso:    "#d9bc62",
			LeftArm:  "#d9bc62",
			RightArm: "#d9bc62",
			LeftLeg:  "#d9bc62",
			RightLeg: "#d9bc62",
		},
	}
	b.initHeader(KindBot)
	w.addBot(b)
	pkt := b.makeBotPacket()
	w.gw.Broadcast(pkt)
	pkt.Release()
	return b
}

func (b *Bot) Name() string       { return b.name }
func (b *Bot) Position() Vector3  { return b.position }
func (b *Bot) Rotation() Vector3  { return b.rotation }
func (b *Bot) TouchRadius() Coord { return b.touchRadius }

func (b *Bot) broadcastAttr(attr string, value string) *Deferred {
	pkt := proto.MakeModificationPacket(b.netId, attr, value)
	defer pkt.Release()
	return b.world.gw.Broadcast(pkt)
}

// SetPosition moves the bot
func (b *Bot) SetPosition(pos Vector3) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.position = pos
	return b.broadcastAttr("position", formatVector(pos))
}

// SetRotation turns the bot
func (b *Bot) SetRotation(rot Vector3) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.rotation = rot
	return b.broadcastAttr("rotation", formatVector(rot))
}

// SetScale resizes the bot
func (b *Bot) SetScale(s Vector3) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.scale = s
	return b.broadcastAttr("scale", formatVector(s))
}

// SetSpeed changes movement speed
func (b *Bot) SetSpeed(speed float32) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.speed = speed
	return b.broadcastAttr("speed", formatFloat(speed))
}

// SetName renames the bot
func (b *Bot) SetName(name string) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.name = name
	return b.broadcastAttr("name", name)
}

// SetColors recolors the bot figure and replicates the full bot state
func (b *Bot) SetColors(colors BodyColors) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.colors = colors
	return b.sendFull()
}

// SetWorn dresses the bot. The assets resolve as one batch off the game
// goroutine; any failure fails the whole mutation and nothing is committed
// or sent.
func (b *Bot) SetWorn(assets WornAssets) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	d := NewDeferred()
	ids := []uint32{assets.Hat1, assets.Hat2, assets.Hat3, assets.Face}
	b.world.resolveAssets(ids, func(refs []string, err error) {
		if err != nil {
			d.Resolve(errors.Wrap(err, "resolve bot assets"))
			return
		}
		if b.destroyed {
			d.Resolve(ErrDestroyed)
			return
		}
		r := b.refs
		r.hat1, r.hat2, r.hat3, r.face = refs[0], refs[1], refs[2], refs[3]
		b.assets = assets
		b.refs = r
		d.ResolveFrom(b.sendFull())
	})
	return d
}

// SetTouchRadius sets the proximity radius used by touch detection
func (b *Bot) SetTouchRadius(r Coord) {
	if r > 0 {
		b.touchRadius = r
	}
}

// FindClosestPlayer returns the closest alive player within radius, or nil
func (b *Bot) FindClosestPlayer(radius Coord) *Player {
	var closest *Player
	var best Coord
	for _, p := range b.world.Players() {
		if !p.Alive() {
			continue
		}
		d := p.position.DistanceTo(b.position)
		if d > radius {
			continue
		}
		if closest == nil || d < best {
			closest = p
			best = d
		}
	}
	return closest
}

// Touch registers a touch-enter listener; starts the monitor lazily
func (b *Bot) Touch(fn func(p *Player)) Disposable {
	return b.touchOn("touch", fn)
}

// TouchEnded registers a touch-leave listener
func (b *Bot) TouchEnded(fn func(p *Player)) Disposable {
	return b.touchOn("touchEnded", fn)
}

func (b *Bot) touchOn(name string, fn func(p *Player)) Disposable {
	inner := b.On(name, func(args ...interface{}) {
		fn(args[0].(*Player))
	})
	if !b.destroyed && b.monitor == nil {
		b.monitor = newTouchMonitor(b.world, &b.Events, b.overlaps)
	}
	return &botTouchHandle{bot: b, inner: inner}
}

type botTouchHandle struct {
	bot   *Bot
	inner Disposable
}

func (h *botTouchHandle) Dispose() {
	h.inner.Dispose()
	b := h.bot
	if b.monitor != nil && b.ListenerCount("touch")+b.ListenerCount("touchEnded") == 0 {
		b.monitor.stop()
		b.monitor = nil
	}
}

func (b *Bot) overlaps(p *Player) bool {
	return p.position.DistanceTo(b.position) <= b.touchRadius
}

// Destroy stops the monitor synchronously, de-indexes the bot and
// replicates the removal
func (b *Bot) Destroy() *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	if b.monitor != nil {
		b.monitor.stop()
		b.monitor = nil
	}
	b.markDestroyed()
	b.world.removeBot(b.netId)
	pkt := proto.MakeDestroyBotPacket(b.netId)
	defer pkt.Release()
	return b.world.gw.Broadcast(pkt)
}

func (b *Bot) sendFull() *Deferred {
	pkt := b.makeBotPacket()
	defer pkt.Release()
	return b.world.gw.Broadcast(pkt)
}

func (b *Bot) makeBotPacket() *netutil.Packet {
	pkt := proto.AllocPacket(proto.PK_BOT)
	pkt.AppendUint32(b.netId)
	pkt.AppendVarStr(b.name)
	appendVector(pkt, b.position)
	appendVector(pkt, b.rotation)
	appendVector(pkt, b.scale)
	pkt.AppendFloat32(b.speed)
	pkt.AppendVarStr(b.colors.Head)
	pkt.AppendVarStr(b.colors.Torso)
	pkt.AppendVarStr(b.colors.LeftArm)
	pkt.AppendVarStr(b.colors.RightArm)
	pkt.AppendVarStr(b.colors.LeftLeg)
	pkt.AppendVarStr(b.colors.RightLeg)
	pkt.AppendVarStr(b.refs.hat1)
	pkt.AppendVarStr(b.refs.hat2)
	pkt.AppendVarStr(b.refs.hat3)
	pkt.AppendVarStr(b.refs.face)
	return pkt
}
