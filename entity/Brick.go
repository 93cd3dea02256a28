package entity

import (
	"github.com/pkg/errors"

	"github.com/brickhost/brickd/engine/consts"
	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/engine/proto"
)

// Click gate failures
var (
	ErrNotClickable    = errors.New("brick is not clickable")
	ErrOutOfClickRange = errors.New("player is out of click range")
)

// Brick field bits carried in PK_BRICK_SINGLE update frames
const (
	brickFieldPosition = 1 << iota
	brickFieldScale
	brickFieldRotation
	brickFieldColor
	brickFieldVisibility
	brickFieldCollision
	brickFieldClickable
	brickFieldModel
	brickFieldShape
	brickFieldLight

	brickFieldAll = 1<<10 - 1
)

// Brick is a movable/clickable scenery piece. A brick with a non-nil owner
// is connection-scoped: its updates go to that one connection only and it
// never enters the shared world index.
type Brick struct {
	entityHeader
	world *World
	owner Client

	position Vector3
	scale    Vector3
	rotation Vector3

	color      string
	visibility float32
	collision  bool

	clickable     bool
	clickDistance Coord

	model    uint32
	modelRef string
	shape    string

	lightEnabled bool
	lightColor   string
	lightRange   uint32

	monitor *touchMonitor
}

// NewBrick creates a shared brick, indexes it and replicates it to everyone
func (w *World) NewBrick(position Vector3, scale Vector3) *Brick {
	b := newBrick(w, nil, position, scale)
	w.addBrick(b)
	b.sendFull()
	return b
}

// NewLocalBrick creates a connection-scoped brick visible to owner only
func (w *World) NewLocalBrick(owner Client, position Vector3, scale Vector3) *Brick {
	b := newBrick(w, owner, position, scale)
	b.sendFull()
	return b
}

// LoadBrick creates a brick from the map description: netId from the load
// range, indexed but not replicated (joiners get it from the initial sync).
func (w *World) LoadBrick(position Vector3, scale Vector3) *Brick {
	b := newBrick(w, nil, position, scale)
	b.netId = NextLoadNetId()
	w.addBrick(b)
	return b
}

func newBrick(w *World, owner Client, position Vector3, scale Vector3) *Brick {
	b := &Brick{
		world:         w,
		owner:         owner,
		position:      position,
		scale:         scale,
		color:         "#c9c9c9",
		visibility:    1,
		collision:     true,
		clickDistance: consts.DEFAULT_CLICK_DISTANCE,
		shape:         "cube",
	}
	b.initHeader(KindBrick)
	return b
}

// IsLocal reports whether the brick is connection-scoped
func (b *Brick) IsLocal() bool {
	return b.owner != nil
}

func (b *Brick) Position() Vector3   { return b.position }
func (b *Brick) Scale() Vector3      { return b.scale }
func (b *Brick) Rotation() Vector3   { return b.rotation }
func (b *Brick) Color() string       { return b.color }
func (b *Brick) Visibility() float32 { return b.visibility }
func (b *Brick) Collision() bool     { return b.collision }
func (b *Brick) Clickable() bool     { return b.clickable }

// deliver routes an update to the owner connection for local bricks, or to
// every authenticated connection otherwise. Callers check destroyed first.
func (b *Brick) deliver(pkt *netutil.Packet) *Deferred {
	defer pkt.Release()
	if b.owner != nil {
		return b.owner.Push(pkt)
	}
	return b.world.gw.Broadcast(pkt)
}

// SetPosition moves the brick
func (b *Brick) SetPosition(p Vector3) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.position = p
	return b.deliver(b.makeUpdatePacket(brickFieldPosition))
}

// SetScale resizes the brick
func (b *Brick) SetScale(s Vector3) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.scale = s
	return b.deliver(b.makeUpdatePacket(brickFieldScale))
}

// SetRotation rotates the brick. Rotation is stored as a free vector; the
// legacy map writer quantizes to 90 degree steps, the live protocol does not.
func (b *Brick) SetRotation(r Vector3) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.rotation = r
	return b.deliver(b.makeUpdatePacket(brickFieldRotation))
}

// SetColor recolors the brick; color is a "#rrggbb" string
func (b *Brick) SetColor(color string) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.color = color
	return b.deliver(b.makeUpdatePacket(brickFieldColor))
}

// SetVisibility sets continuous visibility in [0, 1]
func (b *Brick) SetVisibility(v float32) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	b.visibility = v
	return b.deliver(b.makeUpdatePacket(brickFieldVisibility))
}

// SetCollision toggles physical collision
func (b *Brick) SetCollision(on bool) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.collision = on
	return b.deliver(b.makeUpdatePacket(brickFieldCollision))
}

// SetClickable marks the brick clickable within the given distance.
// distance <= 0 keeps the current threshold.
func (b *Brick) SetClickable(clickable bool, distance Coord) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.clickable = clickable
	if distance > 0 {
		b.clickDistance = distance
	}
	return b.deliver(b.makeUpdatePacket(brickFieldClickable))
}

// SetModel attaches a mesh asset. The asset id resolves to a reference
// string off the game goroutine; the frame goes out once resolution lands.
// A failed resolution fails the mutation and nothing is committed or sent.
func (b *Brick) SetModel(assetId uint32) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	d := NewDeferred()
	b.world.resolveAsset(assetId, func(ref string, err error) {
		if err != nil {
			d.Resolve(errors.Wrapf(err, "resolve model asset %d", assetId))
			return
		}
		if b.destroyed {
			d.Resolve(ErrDestroyed)
			return
		}
		b.model = assetId
		b.modelRef = ref
		d.ResolveFrom(b.deliver(b.makeUpdatePacket(brickFieldModel)))
	})
	return d
}

// SetShape changes the shape tag ("cube", "cylinder", ...)
func (b *Brick) SetShape(shape string) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.shape = shape
	return b.deliver(b.makeUpdatePacket(brickFieldShape))
}

// SetLight configures light emission
func (b *Brick) SetLight(enabled bool, color string, lightRange uint32) *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.lightEnabled = enabled
	b.lightColor = color
	b.lightRange = lightRange
	return b.deliver(b.makeUpdatePacket(brickFieldLight))
}

// Click runs the secure click gate and emits "clicked" when it passes.
// The distance check reads the live player position, never the touch cache.
func (b *Brick) Click(p *Player) error {
	if b.destroyed {
		return ErrDestroyed
	}
	if !b.clickable {
		return ErrNotClickable
	}
	if p.position.DistanceTo(b.position) > b.clickDistance {
		return ErrOutOfClickRange
	}
	b.Emit("clicked", p)
	return nil
}

// OnClick registers a click listener
func (b *Brick) OnClick(fn func(p *Player)) Disposable {
	return b.On("clicked", func(args ...interface{}) {
		fn(args[0].(*Player))
	})
}

// Touch registers a touch-enter listener; the monitor starts lazily on the
// first touch listener.
func (b *Brick) Touch(fn func(p *Player)) Disposable {
	return b.touchOn("touch", fn)
}

// TouchEnded registers a touch-leave listener
func (b *Brick) TouchEnded(fn func(p *Player)) Disposable {
	return b.touchOn("touchEnded", fn)
}

func (b *Brick) touchOn(name string, fn func(p *Player)) Disposable {
	inner := b.On(name, func(args ...interface{}) {
		fn(args[0].(*Player))
	})
	b.ensureMonitor()
	return &touchHandle{brick: b, inner: inner}
}

type touchHandle struct {
	brick *Brick
	inner Disposable
}

func (h *touchHandle) Dispose() {
	h.inner.Dispose()
	h.brick.maybeStopMonitor()
}

func (b *Brick) ensureMonitor() {
	if b.destroyed || b.monitor != nil {
		return
	}
	if b.owner != nil && !b.world.localBrickTouch {
		// local bricks do not poll unless explicitly enabled
		return
	}
	b.monitor = newTouchMonitor(b.world, &b.Events, b.overlaps)
}

func (b *Brick) maybeStopMonitor() {
	if b.monitor == nil {
		return
	}
	if b.ListenerCount("touch")+b.ListenerCount("touchEnded") == 0 {
		b.monitor.stop()
		b.monitor = nil
	}
}

// overlaps tests the player position against the brick's axis-aligned
// bounding volume, position ± half-scale.
func (b *Brick) overlaps(p *Player) bool {
	half := b.scale.Mul(0.5)
	d := p.position.Sub(b.position)
	return absCoord(d.X) <= half.X && absCoord(d.Y) <= half.Y && absCoord(d.Z) <= half.Z
}

func absCoord(c Coord) Coord {
	if c < 0 {
		return -c
	}
	return c
}

// Destroy stops the monitor synchronously, de-indexes the brick and
// replicates the removal. Further mutations fail without sending.
func (b *Brick) Destroy() *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	b.stopMonitor()
	b.markDestroyed()
	if b.owner == nil {
		b.world.removeBrick(b.netId)
	}
	return b.deliver(proto.MakeDeleteBrickPacket(b.netId))
}

// destroySilently tears the brick down without a removal frame; used by
// ClearMap which replicates one wipe frame instead.
func (b *Brick) destroySilently() {
	if b.destroyed {
		return
	}
	b.stopMonitor()
	b.markDestroyed()
}

func (b *Brick) stopMonitor() {
	if b.monitor != nil {
		b.monitor.stop()
		b.monitor = nil
	}
}

func (b *Brick) sendFull() *Deferred {
	if b.destroyed {
		return destroyedDeferred()
	}
	pkt := proto.AllocPacket(proto.PK_BRICK_SINGLE)
	pkt.AppendUint32(b.netId)
	pkt.AppendUint16(brickFieldAll)
	b.appendFields(pkt, brickFieldAll)
	return b.deliver(pkt)
}

func (b *Brick) makeUpdatePacket(mask uint16) *netutil.Packet {
	pkt := proto.AllocPacket(proto.PK_BRICK_SINGLE)
	pkt.AppendUint32(b.netId)
	pkt.AppendUint16(mask)
	b.appendFields(pkt, mask)
	return pkt
}

// appendFullFields writes the maskless full layout used by the batched
// PK_BRICK world sync
func (b *Brick) appendFullFields(pkt *netutil.Packet) {
	pkt.AppendUint32(b.netId)
	b.appendFields(pkt, brickFieldAll)
}

func (b *Brick) appendFields(pkt *netutil.Packet, mask uint16) {
	if mask&brickFieldPosition != 0 {
		appendVector(pkt, b.position)
	}
	if mask&brickFieldScale != 0 {
		appendVector(pkt, b.scale)
	}
	if mask&brickFieldRotation != 0 {
		appendVector(pkt, b.rotation)
	}
	if mask&brickFieldColor != 0 {
		pkt.AppendVarStr(b.color)
	}
	if mask&brickFieldVisibility != 0 {
		pkt.AppendFloat32(b.visibility)
	}
	if mask&brickFieldCollision != 0 {
		pkt.AppendBool(b.collision)
	}
	if mask&brickFieldClickable != 0 {
		pkt.AppendBool(b.clickable)
		pkt.AppendFloat32(float32(b.clickDistance))
	}
	if mask&brickFieldModel != 0 {
		pkt.AppendVarStr(b.modelRef)
	}
	if mask&brickFieldShape != 0 {
		pkt.AppendVarStr(b.shape)
	}
	if mask&brickFieldLight != 0 {
		pkt.AppendBool(b.lightEnabled)
		pkt.AppendVarStr(b.lightColor)
		pkt.AppendUint32(b.lightRange)
	}
}

func appendVector(pkt *netutil.Packet, v Vector3) {
	pkt.AppendFloat32(float32(v.X))
	pkt.AppendFloat32(float32(v.Y))
	pkt.AppendFloat32(float32(v.Z))
}
